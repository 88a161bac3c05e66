package types

import (
	"cosmossdk.io/math"
)

// Position is an open perpetual position. Collateral amounts are in the
// collateral asset; NotionalSize is the exposure in collateral terms at
// entry (active collateral times leverage).
type Position struct {
	Id                 PositionId      `json:"id"`
	Owner              string          `json:"owner"`
	Direction          DirectionToBase `json:"direction"`
	DepositCollateral  math.LegacyDec  `json:"deposit_collateral"`
	ActiveCollateral   math.LegacyDec  `json:"active_collateral"`
	CounterCollateral  math.LegacyDec  `json:"counter_collateral"`
	NotionalSize       math.LegacyDec  `json:"notional_size"`
	Leverage           math.LegacyDec  `json:"leverage"`
	EntryPrice         math.LegacyDec  `json:"entry_price"`
	MaxGains           *math.LegacyDec `json:"max_gains,omitempty"`
	StopLossOverride   *math.LegacyDec `json:"stop_loss_override,omitempty"`
	TakeProfitOverride *math.LegacyDec `json:"take_profit_override,omitempty"`
	// Scheduled periodic fee settlement.
	NextLiquifunding Timestamp `json:"next_liquifunding"`
	// Accumulated fees charged against this position.
	CrankFeeCollateral math.LegacyDec `json:"crank_fee_collateral"`
	CrankFeeUsd        math.LegacyDec `json:"crank_fee_usd"`
	TradingFee         math.LegacyDec `json:"trading_fee"`
	FundingFee         math.LegacyDec `json:"funding_fee"`
	BorrowFee          math.LegacyDec `json:"borrow_fee"`
	DeltaNeutralityFee math.LegacyDec `json:"delta_neutrality_fee"`
	CreatedAt          Timestamp      `json:"created_at"`
	LiquifundedAt      Timestamp      `json:"liquifunded_at"`
}

// BaseExposure is the position size in base asset units.
func (p *Position) BaseExposure() math.LegacyDec {
	if p.EntryPrice.IsZero() {
		return math.LegacyZeroDec()
	}
	return p.NotionalSize.Quo(p.EntryPrice)
}

// UnrealizedPnl is the price exposure of the position at the given base
// price, in collateral terms.
func (p *Position) UnrealizedPnl(price math.LegacyDec) math.LegacyDec {
	move := price.Sub(p.EntryPrice)
	pnl := p.BaseExposure().Mul(move)
	if p.Direction == DirectionShort {
		pnl = pnl.Neg()
	}
	return pnl
}

// LiquidationMargin is the minimum equity below which the position is
// liquidated, derived from the exposure margin ratio.
func (p *Position) LiquidationMargin(exposureMarginRatio math.LegacyDec) math.LegacyDec {
	return p.NotionalSize.Mul(exposureMarginRatio)
}

// LiquidationReasonAt evaluates all price triggers against a price point.
// Returns nil when no trigger fires. Evaluation order matters: a true
// liquidation takes precedence over max gains, which takes precedence over
// the trader-set overrides.
func (p *Position) LiquidationReasonAt(price math.LegacyDec, exposureMarginRatio math.LegacyDec) *LiquidationReason {
	pnl := p.UnrealizedPnl(price)
	equity := p.ActiveCollateral.Add(pnl)

	if equity.LTE(p.LiquidationMargin(exposureMarginRatio)) {
		r := LiquidationReasonLiquidated
		return &r
	}
	if pnl.GTE(p.CounterCollateral) {
		r := LiquidationReasonMaxGains
		return &r
	}
	if p.StopLossOverride != nil {
		if (p.Direction == DirectionLong && price.LTE(*p.StopLossOverride)) ||
			(p.Direction == DirectionShort && price.GTE(*p.StopLossOverride)) {
			r := LiquidationReasonStopLoss
			return &r
		}
	}
	if p.TakeProfitOverride != nil {
		if (p.Direction == DirectionLong && price.GTE(*p.TakeProfitOverride)) ||
			(p.Direction == DirectionShort && price.LTE(*p.TakeProfitOverride)) {
			r := LiquidationReasonTakeProfit
			return &r
		}
	}
	return nil
}
