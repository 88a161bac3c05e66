package keeper

import (
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/perp-market/x/liquidity/types"
)

// Deposit adds collateral to the pool and mints shares at the current share
// price.
func (k *Keeper) Deposit(ctx sdk.Context, provider string, amount math.LegacyDec) (math.LegacyDec, error) {
	zero := math.LegacyZeroDec()
	if !amount.IsPositive() {
		return zero, types.ErrInvalidAmount
	}
	addr, err := sdk.AccAddressFromBech32(provider)
	if err != nil {
		return zero, err
	}
	if err := k.bankKeeper.SendCoinsFromAccountToModule(ctx, addr, ModuleName, k.coins(amount)); err != nil {
		return zero, err
	}

	pool := k.GetPool(ctx)
	shares := pool.SharesForDeposit(amount)
	pool.TotalLiquidity = pool.TotalLiquidity.Add(amount)
	pool.TotalShares = pool.TotalShares.Add(shares)
	k.SetPool(ctx, pool)
	k.setShares(ctx, provider, k.GetShares(ctx, provider).Add(shares))

	ctx.EventManager().EmitEvent(sdk.NewEvent(types.EventTypeDeposit,
		sdk.NewAttribute(types.AttributeKeyProvider, provider),
		sdk.NewAttribute(types.AttributeKeyAmount, amount.String()),
		sdk.NewAttribute(types.AttributeKeyShares, shares.String()),
	))
	k.logger.Info("liquidity deposited",
		"provider", provider,
		"amount", amount.String(),
		"shares", shares.String(),
	)
	return shares, nil
}

// Withdraw burns shares for unlocked collateral. Zero shares means the whole
// balance. Fails when the pool's unlocked liquidity cannot cover the value of
// the shares, which happens while counter collateral is reserved against
// open positions.
func (k *Keeper) Withdraw(ctx sdk.Context, provider string, shares math.LegacyDec) (math.LegacyDec, error) {
	zero := math.LegacyZeroDec()
	balance := k.GetShares(ctx, provider)
	if shares.IsZero() {
		shares = balance
	}
	if !shares.IsPositive() {
		return zero, types.ErrInvalidAmount
	}
	if shares.GT(balance) {
		return zero, types.ErrInsufficientShares.Wrapf("have %s, want %s", balance, shares)
	}

	pool := k.GetPool(ctx)
	if pool.TotalShares.IsZero() {
		return zero, types.ErrPoolEmpty
	}
	amount := shares.Mul(pool.SharePrice())
	if pool.Unlocked().LT(amount) {
		return zero, types.ErrInsufficientLiquidity.Wrapf("withdrawal %s exceeds unlocked %s", amount, pool.Unlocked())
	}

	addr, err := sdk.AccAddressFromBech32(provider)
	if err != nil {
		return zero, err
	}
	if err := k.bankKeeper.SendCoinsFromModuleToAccount(ctx, ModuleName, addr, k.coins(amount)); err != nil {
		return zero, err
	}

	pool.TotalLiquidity = pool.TotalLiquidity.Sub(amount)
	pool.TotalShares = pool.TotalShares.Sub(shares)
	k.SetPool(ctx, pool)
	k.setShares(ctx, provider, balance.Sub(shares))

	ctx.EventManager().EmitEvent(sdk.NewEvent(types.EventTypeWithdraw,
		sdk.NewAttribute(types.AttributeKeyProvider, provider),
		sdk.NewAttribute(types.AttributeKeyAmount, amount.String()),
		sdk.NewAttribute(types.AttributeKeyShares, shares.String()),
	))
	k.logger.Info("liquidity withdrawn",
		"provider", provider,
		"amount", amount.String(),
		"shares", shares.String(),
	)
	return amount, nil
}
