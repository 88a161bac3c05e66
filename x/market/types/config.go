package types

import (
	"cosmossdk.io/math"
)

// Config holds the market's tunable parameters. Fee amounts denominated in
// USD are converted to collateral at the relevant price point.
type Config struct {
	// Flat crank fee charged into the system when queueing a deferred
	// execution, in USD.
	CrankFeeCharged math.LegacyDec `json:"crank_fee_charged"`
	// Surcharge added to the crank fee for every 10 items already sitting
	// in the deferred execution queue, in USD. Creates backpressure in
	// times of high congestion. Charged only when adding new items, never
	// on protocol work like liquifunding or liquidations.
	CrankFeeSurcharge math.LegacyDec `json:"crank_fee_surcharge"`
	// Portion of the crank fee paid out to crankers, in USD.
	CrankFeeReward math.LegacyDec `json:"crank_fee_reward"`
	// Default number of work items processed per crank message.
	CrankExecs uint32 `json:"crank_execs"`
	// Hard ceilings on the pending queue, per congestion reason. Zero
	// means the category is unbounded.
	QueueCeilings map[CongestionReason]uint32 `json:"queue_ceilings"`

	// Position parameters.
	MaxLeverage         math.LegacyDec `json:"max_leverage"`
	MinimumDepositUsd   math.LegacyDec `json:"minimum_deposit_usd"`
	TradingFeeRate      math.LegacyDec `json:"trading_fee_rate"`
	ExposureMarginRatio math.LegacyDec `json:"exposure_margin_ratio"`
	// Counter collateral locked per unit of notional when the trader does
	// not specify max gains.
	DefaultMaxGainsRatio math.LegacyDec `json:"default_max_gains_ratio"`

	// Liquifunding schedule.
	LiquifundingDelaySeconds     uint32 `json:"liquifunding_delay_seconds"`
	LiquifundingDelayFuzzSeconds uint32 `json:"liquifunding_delay_fuzz_seconds"`

	// Fee model parameters; consumed by the pluggable fee models.
	FundingRateSensitivity        math.LegacyDec `json:"funding_rate_sensitivity"`
	FundingRateMaxAnnualized      math.LegacyDec `json:"funding_rate_max_annualized"`
	BorrowFeeRateAnnualized       math.LegacyDec `json:"borrow_fee_rate_annualized"`
	DeltaNeutralityFeeSensitivity math.LegacyDec `json:"delta_neutrality_fee_sensitivity"`
	DeltaNeutralityFeeCap         math.LegacyDec `json:"delta_neutrality_fee_cap"`

	// A price older than this, relative to block time, is considered
	// stale and blocks crank progress rather than executing on bad data.
	PriceUpdateTooOldSeconds uint32 `json:"price_update_too_old_seconds"`
}

// DefaultConfig returns the default market configuration.
func DefaultConfig() Config {
	return Config{
		CrankFeeCharged:   math.LegacyNewDecWithPrec(1, 2), // $0.01
		CrankFeeSurcharge: math.LegacyNewDecWithPrec(1, 2), // $0.01 per 10 queued
		CrankFeeReward:    math.LegacyNewDecWithPrec(8, 3), // $0.008
		CrankExecs:        7,
		QueueCeilings: map[CongestionReason]uint32{
			CongestionReasonOpenMarket: 30,
			CongestionReasonPlaceLimit: 30,
			CongestionReasonUpdate:     50,
			CongestionReasonSetTrigger: 50,
		},
		MaxLeverage:                   math.LegacyNewDec(30),
		MinimumDepositUsd:             math.LegacyNewDec(5),
		TradingFeeRate:                math.LegacyNewDecWithPrec(1, 3), // 0.1%
		ExposureMarginRatio:           math.LegacyNewDecWithPrec(5, 3), // 0.5%
		DefaultMaxGainsRatio:          math.LegacyOneDec(),
		LiquifundingDelaySeconds:      60 * 60,
		LiquifundingDelayFuzzSeconds:  60,
		FundingRateSensitivity:        math.LegacyNewDec(10),
		FundingRateMaxAnnualized:      math.LegacyNewDecWithPrec(9, 1), // 90%
		BorrowFeeRateAnnualized:       math.LegacyNewDecWithPrec(5, 2), // 5%
		DeltaNeutralityFeeSensitivity: math.LegacyNewDec(50000000),
		DeltaNeutralityFeeCap:         math.LegacyNewDecWithPrec(5, 3), // 0.5%
		PriceUpdateTooOldSeconds:      300,
	}
}

// QueueCeiling returns the pending-queue ceiling for the given reason, or
// zero when the category is unbounded.
func (c Config) QueueCeiling(reason CongestionReason) uint32 {
	return c.QueueCeilings[reason]
}

// Validate performs basic sanity checks on the configuration.
func (c Config) Validate() error {
	if c.CrankFeeCharged.IsNegative() || c.CrankFeeSurcharge.IsNegative() || c.CrankFeeReward.IsNegative() {
		return ErrInvalidAmount.Wrap("crank fees must be non-negative")
	}
	if c.CrankExecs == 0 {
		return ErrInvalidAmount.Wrap("crank execs must be positive")
	}
	if !c.MaxLeverage.IsPositive() {
		return ErrInvalidLeverage
	}
	if c.ExposureMarginRatio.IsNegative() {
		return ErrInvalidAmount.Wrap("exposure margin ratio must be non-negative")
	}
	return nil
}
