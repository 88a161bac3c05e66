package keeper

import (
	"encoding/json"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/perp-market/x/market/types"
)

// SetPosition saves a position to the store
func (k *Keeper) SetPosition(ctx sdk.Context, pos *types.Position) {
	bz, _ := json.Marshal(pos)
	k.GetStore(ctx).Set(u64Key(PositionKeyPrefix, uint64(pos.Id)), bz)
}

// GetPosition retrieves a position, or nil when it does not exist.
func (k *Keeper) GetPosition(ctx sdk.Context, id types.PositionId) *types.Position {
	bz := k.GetStore(ctx).Get(u64Key(PositionKeyPrefix, uint64(id)))
	if bz == nil {
		return nil
	}
	var pos types.Position
	if err := json.Unmarshal(bz, &pos); err != nil {
		return nil
	}
	return &pos
}

func (k *Keeper) deletePosition(ctx sdk.Context, id types.PositionId) {
	k.GetStore(ctx).Delete(u64Key(PositionKeyPrefix, uint64(id)))
}

// IteratePositions walks all open positions in ascending ID order until the
// callback returns true.
func (k *Keeper) IteratePositions(ctx sdk.Context, cb func(pos *types.Position) (stop bool)) {
	iterator := storetypes.KVStorePrefixIterator(k.GetStore(ctx), PositionKeyPrefix)
	defer iterator.Close()
	for ; iterator.Valid(); iterator.Next() {
		var pos types.Position
		if err := json.Unmarshal(iterator.Value(), &pos); err != nil {
			continue
		}
		if cb(&pos) {
			return
		}
	}
}

// OpenPositionCount returns the number of open positions.
func (k *Keeper) OpenPositionCount(ctx sdk.Context) uint32 {
	var n uint32
	k.IteratePositions(ctx, func(*types.Position) bool {
		n++
		return false
	})
	return n
}

func (k *Keeper) mintPositionId(ctx sdk.Context) types.PositionId {
	id := k.getUint64(ctx, NextPositionIdKey) + 1
	k.setUint64(ctx, NextPositionIdKey, id)
	return types.PositionId(id)
}

// openPositionParams carries the validated inputs to opening a position,
// shared by market opens and triggered limit orders.
type openPositionParams struct {
	Owner            string
	Amount           math.LegacyDec
	Leverage         math.LegacyDec
	Direction        types.DirectionToBase
	MaxGains         *math.LegacyDec
	StopLossOverride *math.LegacyDec
	TakeProfit       *math.LegacyDec
	CrankFee         math.LegacyDec
	CrankFeeUsd      math.LegacyDec
}

// openPosition creates and stores a new position at the given execution
// price, locking counter collateral from the liquidity pool and scheduling
// the first liquifunding. The collateral is assumed already escrowed.
func (k *Keeper) openPosition(ctx sdk.Context, params openPositionParams, execPrice types.PricePoint) (types.PositionId, error) {
	cfg := k.GetConfig(ctx)

	if !params.Leverage.IsPositive() || params.Leverage.GT(cfg.MaxLeverage) {
		return 0, types.ErrInvalidLeverage.Wrapf("leverage %s, max %s", params.Leverage, cfg.MaxLeverage)
	}
	depositUsd := execPrice.CollateralToUsd(params.Amount)
	if depositUsd.LT(cfg.MinimumDepositUsd) {
		return 0, types.ErrMinimumDeposit.Wrapf("deposit %s USD, minimum %s", depositUsd, cfg.MinimumDepositUsd)
	}

	notional := params.Amount.Mul(params.Leverage)
	tradingFee := notional.Mul(cfg.TradingFeeRate)
	active := params.Amount.Sub(tradingFee)
	if !active.IsPositive() {
		return 0, types.ErrInsufficientMargin.Wrap("collateral does not cover trading fee")
	}

	maxGainsRatio := cfg.DefaultMaxGainsRatio
	if params.MaxGains != nil {
		if !params.MaxGains.IsPositive() {
			return 0, types.ErrMaxGainsTooLarge.Wrap("max gains must be positive")
		}
		maxGainsRatio = *params.MaxGains
	}
	counter := notional.Mul(maxGainsRatio)
	if err := k.liquidityKeeper.LockCounterCollateral(ctx, counter); err != nil {
		return 0, err
	}

	// Delta neutrality fee on the notional change.
	notionalDelta := notional
	if params.Direction == types.DirectionShort {
		notionalDelta = notional.Neg()
	}
	dnFee := k.feeModels.DeltaNeutrality.Fee(cfg, k.NetNotional(ctx), notionalDelta)
	active = active.Sub(dnFee)
	if !active.IsPositive() {
		k.liquidityKeeper.UnlockCounterCollateral(ctx, counter)
		return 0, types.ErrInsufficientMargin.Wrap("collateral does not cover delta neutrality fee")
	}
	k.adjustNetNotional(ctx, notionalDelta)

	// Trading and delta neutrality fees accrue to the pool.
	k.liquidityKeeper.AbsorbIntoPool(ctx, tradingFee.Add(dnFee))

	now := types.NewTimestampFromTime(ctx.BlockTime())
	id := k.mintPositionId(ctx)
	pos := &types.Position{
		Id:                 id,
		Owner:              params.Owner,
		Direction:          params.Direction,
		DepositCollateral:  params.Amount,
		ActiveCollateral:   active,
		CounterCollateral:  counter,
		NotionalSize:       notional,
		Leverage:           params.Leverage,
		EntryPrice:         execPrice.PriceBase,
		MaxGains:           params.MaxGains,
		StopLossOverride:   params.StopLossOverride,
		TakeProfitOverride: params.TakeProfit,
		CrankFeeCollateral: params.CrankFee,
		CrankFeeUsd:        params.CrankFeeUsd,
		TradingFee:         tradingFee,
		DeltaNeutralityFee: dnFee,
		FundingFee:         math.LegacyZeroDec(),
		BorrowFee:          math.LegacyZeroDec(),
		CreatedAt:          now,
		LiquifundedAt:      now,
		NextLiquifunding:   k.nextLiquifundingTime(ctx, now),
	}
	k.SetPosition(ctx, pos)
	k.scheduleLiquifunding(ctx, pos.NextLiquifunding, id)

	ctx.EventManager().EmitEvent(sdk.NewEvent(types.EventTypePositionOpened,
		sdk.NewAttribute(types.AttributeKeyPositionId, id.String()),
		sdk.NewAttribute(types.AttributeKeyOwner, params.Owner),
		sdk.NewAttribute(types.AttributeKeyPrice, execPrice.PriceBase.String()),
	))
	return id, nil
}

// closePosition settles a position at the given price and removes it. The
// reason is "direct" for trader closes, otherwise a liquidation reason.
func (k *Keeper) closePosition(ctx sdk.Context, pos *types.Position, execPrice types.PricePoint, reason string) error {
	pnl := pos.UnrealizedPnl(execPrice.PriceBase)

	// Cap the payout at the locked counter collateral, and the loss at the
	// trader's active collateral. The well-funded invariant: neither side
	// can lose more than what was locked.
	if pnl.GT(pos.CounterCollateral) {
		pnl = pos.CounterCollateral
	}
	if pnl.Neg().GT(pos.ActiveCollateral) {
		pnl = pos.ActiveCollateral.Neg()
	}

	payout := pos.ActiveCollateral.Add(pnl)
	if pnl.IsPositive() {
		if err := k.liquidityKeeper.PayoutFromPool(ctx, pnl); err != nil {
			return err
		}
	} else if pnl.IsNegative() {
		k.liquidityKeeper.AbsorbIntoPool(ctx, pnl.Neg())
	}
	k.liquidityKeeper.UnlockCounterCollateral(ctx, pos.CounterCollateral)

	notionalDelta := pos.NotionalSize.Neg()
	if pos.Direction == types.DirectionShort {
		notionalDelta = pos.NotionalSize
	}
	k.adjustNetNotional(ctx, notionalDelta)

	if payout.IsPositive() {
		if err := k.payToUser(ctx, pos.Owner, payout); err != nil {
			return err
		}
	}

	k.unscheduleLiquifunding(ctx, pos.NextLiquifunding, pos.Id)
	k.deletePosition(ctx, pos.Id)

	ctx.EventManager().EmitEvent(sdk.NewEvent(types.EventTypePositionClosed,
		sdk.NewAttribute(types.AttributeKeyPositionId, pos.Id.String()),
		sdk.NewAttribute(types.AttributeKeyOwner, pos.Owner),
		sdk.NewAttribute(types.AttributeKeyReason, reason),
		sdk.NewAttribute(types.AttributeKeyPrice, execPrice.PriceBase.String()),
		sdk.NewAttribute(types.AttributeKeyAmount, payout.String()),
	))
	k.logger.Info("position closed",
		"id", pos.Id.String(),
		"reason", reason,
		"payout", payout.String(),
	)
	return nil
}
