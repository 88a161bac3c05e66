package types

import (
	"cosmossdk.io/math"
)

// The exact derivations of the funding rate, borrow fee and delta neutrality
// fee live outside this module. They are modelled as pluggable strategies
// with fixed inputs and outputs so that alternative curves can be swapped in
// without touching the scheduler.

// FundingRateModel computes the instantaneous funding rate from the net
// long/short imbalance. A positive rate means longs pay shorts.
type FundingRateModel interface {
	// Rate returns the annualized funding rate given net notional exposure
	// (long minus short) and total open notional.
	Rate(cfg Config, netNotional, totalNotional math.LegacyDec) math.LegacyDec
}

// BorrowFeeModel computes the fee paid by positions for the counter
// collateral borrowed from the liquidity pool.
type BorrowFeeModel interface {
	// Fee returns the borrow fee in collateral owed for the elapsed time.
	Fee(cfg Config, counterCollateral math.LegacyDec, elapsedSeconds uint64) math.LegacyDec
}

// DeltaNeutralityFeeModel computes the fee or rebate that pushes net
// exposure back toward balance.
type DeltaNeutralityFeeModel interface {
	// Fee returns the fee in collateral for a change in notional exposure.
	// Negative results are rebates.
	Fee(cfg Config, netNotionalBefore, notionalDelta math.LegacyDec) math.LegacyDec
}

// FeeModels bundles the three strategies used by liquifunding and the
// execution applier.
type FeeModels struct {
	Funding         FundingRateModel
	Borrow          BorrowFeeModel
	DeltaNeutrality DeltaNeutralityFeeModel
}

// DefaultFeeModels returns the built-in strategies.
func DefaultFeeModels() FeeModels {
	return FeeModels{
		Funding:         dampedFundingModel{},
		Borrow:          linearBorrowModel{},
		DeltaNeutrality: cappedDeltaNeutralityModel{},
	}
}

const secondsPerYear = 365 * 24 * 60 * 60

// dampedFundingModel scales the imbalance ratio by the configured
// sensitivity and clamps to the annualized maximum.
type dampedFundingModel struct{}

func (dampedFundingModel) Rate(cfg Config, netNotional, totalNotional math.LegacyDec) math.LegacyDec {
	if totalNotional.IsZero() {
		return math.LegacyZeroDec()
	}
	rate := netNotional.Quo(totalNotional).Mul(cfg.FundingRateSensitivity)
	if rate.GT(cfg.FundingRateMaxAnnualized) {
		return cfg.FundingRateMaxAnnualized
	}
	if rate.LT(cfg.FundingRateMaxAnnualized.Neg()) {
		return cfg.FundingRateMaxAnnualized.Neg()
	}
	return rate
}

// linearBorrowModel accrues the annualized borrow rate pro rata over time.
type linearBorrowModel struct{}

func (linearBorrowModel) Fee(cfg Config, counterCollateral math.LegacyDec, elapsedSeconds uint64) math.LegacyDec {
	elapsed := math.LegacyNewDec(int64(elapsedSeconds)).QuoInt64(secondsPerYear)
	return counterCollateral.Mul(cfg.BorrowFeeRateAnnualized).Mul(elapsed)
}

// cappedDeltaNeutralityModel charges proportionally to how far the trade
// pushes net exposure from zero, capped per trade.
type cappedDeltaNeutralityModel struct{}

func (cappedDeltaNeutralityModel) Fee(cfg Config, netNotionalBefore, notionalDelta math.LegacyDec) math.LegacyDec {
	if cfg.DeltaNeutralityFeeSensitivity.IsZero() {
		return math.LegacyZeroDec()
	}
	after := netNotionalBefore.Add(notionalDelta)
	// Fee is the integral of imbalance/sensitivity over the trade, which
	// for a linear curve is the average of the endpoints.
	avg := netNotionalBefore.Add(after).QuoInt64(2)
	fee := avg.Quo(cfg.DeltaNeutralityFeeSensitivity).Mul(notionalDelta)
	cap := notionalDelta.Abs().Mul(cfg.DeltaNeutralityFeeCap)
	if fee.GT(cap) {
		return cap
	}
	if fee.LT(cap.Neg()) {
		return cap.Neg()
	}
	return fee
}
