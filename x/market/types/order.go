package types

import (
	"cosmossdk.io/math"
)

// LimitOrder opens a position once the spot price crosses the trigger price.
type LimitOrder struct {
	OrderId          OrderId         `json:"order_id"`
	Owner            string          `json:"owner"`
	TriggerPrice     math.LegacyDec  `json:"trigger_price"`
	Collateral       math.LegacyDec  `json:"collateral"`
	Leverage         math.LegacyDec  `json:"leverage"`
	Direction        DirectionToBase `json:"direction"`
	MaxGains         *math.LegacyDec `json:"max_gains,omitempty"`
	StopLossOverride *math.LegacyDec `json:"stop_loss_override,omitempty"`
	TakeProfit       *math.LegacyDec `json:"take_profit,omitempty"`
	// Crank fee charged during deferred execution of placing the order.
	// Carried into the position when the order triggers.
	CrankFeeCollateral math.LegacyDec `json:"crank_fee_collateral"`
	CrankFeeUsd        math.LegacyDec `json:"crank_fee_usd"`
	CreatedAt          Timestamp      `json:"created_at"`
}

// IsTriggered reports whether the given price crosses the trigger. A long
// order triggers when the price falls to or below the trigger, a short order
// when it rises to or above it.
func (o *LimitOrder) IsTriggered(price math.LegacyDec) bool {
	if o.Direction == DirectionLong {
		return price.LTE(o.TriggerPrice)
	}
	return price.GTE(o.TriggerPrice)
}
