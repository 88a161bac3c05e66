package types

import (
	"cosmossdk.io/errors"
	"cosmossdk.io/math"
)

// Module errors
var (
	ErrInvalidAmount         = errors.Register("liquidity", 1, "invalid amount")
	ErrUnauthorized          = errors.Register("liquidity", 2, "unauthorized")
	ErrInsufficientLiquidity = errors.Register("liquidity", 3, "insufficient unlocked liquidity")
	ErrInsufficientShares    = errors.Register("liquidity", 4, "insufficient shares")
	ErrPoolEmpty             = errors.Register("liquidity", 5, "pool is empty")
)

// Pool is the single shared liquidity pool backing the market. Locked
// liquidity is counter collateral reserved against open positions and cannot
// be withdrawn until those positions close.
type Pool struct {
	TotalLiquidity  math.LegacyDec `json:"total_liquidity"`
	LockedLiquidity math.LegacyDec `json:"locked_liquidity"`
	TotalShares     math.LegacyDec `json:"total_shares"`
	UpdatedAt       int64          `json:"updated_at"`
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{
		TotalLiquidity:  math.LegacyZeroDec(),
		LockedLiquidity: math.LegacyZeroDec(),
		TotalShares:     math.LegacyZeroDec(),
	}
}

// Unlocked returns the liquidity available for locking or withdrawal.
func (p *Pool) Unlocked() math.LegacyDec {
	return p.TotalLiquidity.Sub(p.LockedLiquidity)
}

// SharePrice returns the collateral value of one share. An empty pool prices
// shares at one.
func (p *Pool) SharePrice() math.LegacyDec {
	if p.TotalShares.IsZero() {
		return math.LegacyOneDec()
	}
	return p.TotalLiquidity.Quo(p.TotalShares)
}

// SharesForDeposit converts a deposit amount into newly minted shares at the
// current share price.
func (p *Pool) SharesForDeposit(amount math.LegacyDec) math.LegacyDec {
	if p.TotalShares.IsZero() {
		return amount
	}
	return amount.Quo(p.SharePrice())
}

// LpShares records one provider's share balance.
type LpShares struct {
	Address string         `json:"address"`
	Shares  math.LegacyDec `json:"shares"`
}

// Event types and attribute keys
const (
	EventTypeDeposit        = "liquidity_deposit"
	EventTypeWithdraw       = "liquidity_withdraw"
	EventTypeLpBalanceReset = "lp_balances_reset"

	AttributeKeyProvider = "provider"
	AttributeKeyAmount   = "amount"
	AttributeKeyShares   = "shares"
)
