package keeper

import (
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/perp-market/x/liquidity/types"
)

// The market module consumes the pool through these methods. Funds move
// between the liquidity and market escrow accounts; the pool struct tracks
// how much of the balance is reserved against open positions.

// LockCounterCollateral reserves unlocked liquidity as counter collateral.
func (k *Keeper) LockCounterCollateral(ctx sdk.Context, amount math.LegacyDec) error {
	if !amount.IsPositive() {
		return nil
	}
	pool := k.GetPool(ctx)
	if pool.Unlocked().LT(amount) {
		return types.ErrInsufficientLiquidity.Wrapf("need %s, unlocked %s", amount, pool.Unlocked())
	}
	pool.LockedLiquidity = pool.LockedLiquidity.Add(amount)
	k.SetPool(ctx, pool)
	return nil
}

// UnlockCounterCollateral releases previously locked counter collateral.
func (k *Keeper) UnlockCounterCollateral(ctx sdk.Context, amount math.LegacyDec) {
	if !amount.IsPositive() {
		return
	}
	pool := k.GetPool(ctx)
	pool.LockedLiquidity = pool.LockedLiquidity.Sub(amount)
	if pool.LockedLiquidity.IsNegative() {
		pool.LockedLiquidity = math.LegacyZeroDec()
	}
	k.SetPool(ctx, pool)
}

// PayoutFromPool moves realized trader gains out of the pool into the market
// escrow. The locked counter collateral covering the payout must be unlocked
// separately by the caller.
func (k *Keeper) PayoutFromPool(ctx sdk.Context, amount math.LegacyDec) error {
	if !amount.IsPositive() {
		return nil
	}
	pool := k.GetPool(ctx)
	if pool.TotalLiquidity.LT(amount) {
		return types.ErrInsufficientLiquidity.Wrapf("payout %s exceeds pool %s", amount, pool.TotalLiquidity)
	}
	if err := k.bankKeeper.SendCoinsFromModuleToModule(ctx, ModuleName, MarketModuleName, k.coins(amount)); err != nil {
		return err
	}
	pool.TotalLiquidity = pool.TotalLiquidity.Sub(amount)
	k.SetPool(ctx, pool)
	return nil
}

// AbsorbIntoPool moves realized trader losses and fees into the pool,
// accruing to share value.
func (k *Keeper) AbsorbIntoPool(ctx sdk.Context, amount math.LegacyDec) {
	if !amount.IsPositive() {
		return
	}
	if err := k.bankKeeper.SendCoinsFromModuleToModule(ctx, MarketModuleName, ModuleName, k.coins(amount)); err != nil {
		k.logger.Error("absorb transfer failed", "amount", amount.String(), "err", err)
		return
	}
	pool := k.GetPool(ctx)
	pool.TotalLiquidity = pool.TotalLiquidity.Add(amount)
	k.SetPool(ctx, pool)
}

// Drained reports whether all liquidity has left the pool.
func (k *Keeper) Drained(ctx sdk.Context) bool {
	pool := k.GetPool(ctx)
	return pool.TotalLiquidity.IsZero() && pool.LockedLiquidity.IsZero()
}

// ResetLpBalances zeroes every provider's share balance and the pool
// counters. Only meaningful once the pool is drained after wind-down; the
// reset lets the share ledger start fresh if the market is relaunched.
func (k *Keeper) ResetLpBalances(ctx sdk.Context) {
	var providers []string
	k.IterateShares(ctx, func(s types.LpShares) bool {
		providers = append(providers, s.Address)
		return false
	})
	for _, p := range providers {
		k.setShares(ctx, p, math.LegacyZeroDec())
	}
	k.SetPool(ctx, types.NewPool())

	ctx.EventManager().EmitEvent(sdk.NewEvent(types.EventTypeLpBalanceReset))
	k.logger.Info("lp balances reset", "providers", len(providers))
}
