package types

import (
	"cosmossdk.io/errors"
)

// Module error codes
var (
	ErrInvalidAmount    = errors.Register("market", 1, "invalid amount")
	ErrInvalidPrice     = errors.Register("market", 2, "invalid price")
	ErrInvalidLeverage  = errors.Register("market", 3, "leverage out of range")
	ErrInvalidDirection = errors.Register("market", 4, "invalid direction")
	ErrUnauthorized     = errors.Register("market", 5, "unauthorized")

	// Price store errors
	ErrPriceNotFound      = errors.Register("market", 10, "price not found")
	ErrPriceTooOld        = errors.Register("market", 11, "price too old")
	ErrPriceAlreadyExists = errors.Register("market", 12, "price point with equal or newer timestamp already exists")

	// Deferred execution queue errors
	ErrCongestion           = errors.Register("market", 20, "deferred execution queue is congested")
	ErrPendingDeferredExec  = errors.Register("market", 21, "target already has a pending deferred execution")
	ErrDeferredExecNotFound = errors.Register("market", 22, "deferred execution item not found")

	// Execution-time validation errors, recorded as item failure reasons
	ErrSlippageAssert     = errors.Register("market", 30, "slippage assertion failed")
	ErrInsufficientMargin = errors.Register("market", 31, "insufficient margin")
	ErrMinimumDeposit     = errors.Register("market", 32, "deposit below minimum")
	ErrMaxGainsTooLarge   = errors.Register("market", 33, "max gains too large")

	// Position / order errors
	ErrPositionNotFound       = errors.Register("market", 40, "position not found")
	ErrOrderNotFound          = errors.Register("market", 41, "limit order not found")
	ErrPositionAlreadyClosing = errors.Register("market", 42, "position already has a pending close")
	ErrOrderAlreadyCanceling  = errors.Register("market", 43, "limit order already has a pending cancellation")
	ErrInvalidTriggerPrice    = errors.Register("market", 44, "invalid trigger price")

	// Liquidity errors
	ErrInsufficientLiquidity = errors.Register("market", 50, "insufficient unlocked liquidity")

	// Market lifecycle errors
	ErrMarketWoundDown = errors.Register("market", 60, "market is in wind-down, no new positions or orders accepted")
)

// CongestionReason records what the user was doing when they hit the
// congestion ceiling. Ceilings are configured per reason.
type CongestionReason string

const (
	CongestionReasonOpenMarket CongestionReason = "open_market"
	CongestionReasonPlaceLimit CongestionReason = "place_limit"
	CongestionReasonUpdate     CongestionReason = "update"
	CongestionReasonSetTrigger CongestionReason = "set_trigger"
)

// NewCongestionError wraps ErrCongestion with queue details so callers can
// see how far over the ceiling they are and retry later.
func NewCongestionError(currentQueue, maxSize uint32, reason CongestionReason) error {
	return ErrCongestion.Wrapf("current_queue=%d max_size=%d reason=%s", currentQueue, maxSize, reason)
}
