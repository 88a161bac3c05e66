package keeper

import (
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/perp-market/x/market/types"
)

// The execution applier performs the state change one deferred item
// describes. Preconditions are re-validated here, at execution time, against
// the crank price: time has passed since submission, so the price assumed by
// the trader may no longer hold. This re-validation is what makes deferred
// execution safe under asynchronous price delay.
//
// The caller runs this on a branched context; returning an error discards
// every write made here.

func (k *Keeper) applyDeferredExecItem(ctx sdk.Context, item *types.DeferredExecWithStatus, price types.PricePoint) (types.DeferredExecCompleteTarget, error) {
	var none types.DeferredExecCompleteTarget
	i := item.Item
	switch {
	case i.OpenPosition != nil:
		return k.applyOpenPosition(ctx, item.Owner, i.OpenPosition, price)
	case i.UpdatePositionAddCollateralImpactLeverage != nil:
		return k.applyAddCollateralImpactLeverage(ctx, item.Owner, i.UpdatePositionAddCollateralImpactLeverage)
	case i.UpdatePositionAddCollateralImpactSize != nil:
		return k.applyAddCollateralImpactSize(ctx, item.Owner, i.UpdatePositionAddCollateralImpactSize, price)
	case i.UpdatePositionRemoveCollateralImpactLeverage != nil:
		return k.applyRemoveCollateralImpactLeverage(ctx, item.Owner, i.UpdatePositionRemoveCollateralImpactLeverage, price)
	case i.UpdatePositionRemoveCollateralImpactSize != nil:
		return k.applyRemoveCollateralImpactSize(ctx, item.Owner, i.UpdatePositionRemoveCollateralImpactSize, price)
	case i.UpdatePositionLeverage != nil:
		return k.applyUpdateLeverage(ctx, item.Owner, i.UpdatePositionLeverage, price)
	case i.UpdatePositionMaxGains != nil:
		return k.applyUpdateMaxGains(ctx, item.Owner, i.UpdatePositionMaxGains)
	case i.UpdatePositionTakeProfitPrice != nil:
		return k.applyUpdateTakeProfit(ctx, item.Owner, i.UpdatePositionTakeProfitPrice, price)
	case i.UpdatePositionStopLossPrice != nil:
		return k.applyUpdateStopLoss(ctx, item.Owner, i.UpdatePositionStopLossPrice, price)
	case i.ClosePosition != nil:
		return k.applyClosePosition(ctx, item.Owner, i.ClosePosition, price)
	case i.SetTriggerOrder != nil:
		return k.applySetTriggerOrder(ctx, item.Owner, i.SetTriggerOrder, price)
	case i.PlaceLimitOrder != nil:
		return k.applyPlaceLimitOrder(ctx, item.Owner, i.PlaceLimitOrder, price)
	case i.CancelLimitOrder != nil:
		return k.applyCancelLimitOrder(ctx, item.Owner, i.CancelLimitOrder)
	default:
		return none, types.ErrInvalidAmount.Wrap("empty deferred exec item")
	}
}

func (k *Keeper) applyOpenPosition(ctx sdk.Context, owner string, i *types.OpenPositionItem, price types.PricePoint) (types.DeferredExecCompleteTarget, error) {
	var none types.DeferredExecCompleteTarget
	if i.SlippageAssert != nil {
		if err := i.SlippageAssert.Check(i.Direction, price.PriceBase); err != nil {
			return none, err
		}
	}
	id, err := k.openPosition(ctx, openPositionParams{
		Owner:            owner,
		Amount:           i.Amount,
		Leverage:         i.Leverage,
		Direction:        i.Direction,
		MaxGains:         i.MaxGains,
		StopLossOverride: i.StopLossOverride,
		TakeProfit:       i.TakeProfit,
		CrankFee:         i.CrankFee,
		CrankFeeUsd:      i.CrankFeeUsd,
	}, price)
	if err != nil {
		return none, err
	}
	return types.CompletePositionTarget(id), nil
}

// ownedPosition loads a position and verifies the item owner still owns it.
func (k *Keeper) ownedPosition(ctx sdk.Context, owner string, id types.PositionId) (*types.Position, error) {
	pos := k.GetPosition(ctx, id)
	if pos == nil {
		return nil, types.ErrPositionNotFound.Wrapf("position %s", id)
	}
	if pos.Owner != owner {
		return nil, types.ErrUnauthorized.Wrapf("position %s not owned by %s", id, owner)
	}
	return pos, nil
}

func (k *Keeper) applyAddCollateralImpactLeverage(ctx sdk.Context, owner string, i *types.UpdateCollateralItem) (types.DeferredExecCompleteTarget, error) {
	var none types.DeferredExecCompleteTarget
	pos, err := k.ownedPosition(ctx, owner, i.Id)
	if err != nil {
		return none, err
	}
	if !i.Amount.IsPositive() {
		return none, types.ErrInvalidAmount
	}
	// Notional stays fixed; more collateral means lower leverage.
	pos.DepositCollateral = pos.DepositCollateral.Add(i.Amount)
	pos.ActiveCollateral = pos.ActiveCollateral.Add(i.Amount)
	pos.Leverage = pos.NotionalSize.Quo(pos.ActiveCollateral)
	k.SetPosition(ctx, pos)
	return types.CompletePositionTarget(pos.Id), nil
}

func (k *Keeper) applyAddCollateralImpactSize(ctx sdk.Context, owner string, i *types.UpdateCollateralSizeItem, price types.PricePoint) (types.DeferredExecCompleteTarget, error) {
	var none types.DeferredExecCompleteTarget
	pos, err := k.ownedPosition(ctx, owner, i.Id)
	if err != nil {
		return none, err
	}
	if !i.Amount.IsPositive() {
		return none, types.ErrInvalidAmount
	}
	if i.SlippageAssert != nil {
		if err := i.SlippageAssert.Check(pos.Direction, price.PriceBase); err != nil {
			return none, err
		}
	}
	// Leverage stays fixed; more collateral means a bigger notional, which
	// needs more counter collateral locked.
	added := i.Amount.Mul(pos.Leverage)
	if err := k.resizeNotional(ctx, pos, pos.NotionalSize.Add(added)); err != nil {
		return none, err
	}
	pos.DepositCollateral = pos.DepositCollateral.Add(i.Amount)
	pos.ActiveCollateral = pos.ActiveCollateral.Add(i.Amount)
	k.SetPosition(ctx, pos)
	return types.CompletePositionTarget(pos.Id), nil
}

func (k *Keeper) applyRemoveCollateralImpactLeverage(ctx sdk.Context, owner string, i *types.UpdateCollateralItem, price types.PricePoint) (types.DeferredExecCompleteTarget, error) {
	var none types.DeferredExecCompleteTarget
	pos, err := k.ownedPosition(ctx, owner, i.Id)
	if err != nil {
		return none, err
	}
	if err := k.removeCollateral(ctx, pos, i.Amount, price); err != nil {
		return none, err
	}
	pos.Leverage = pos.NotionalSize.Quo(pos.ActiveCollateral)
	cfg := k.GetConfig(ctx)
	if pos.Leverage.GT(cfg.MaxLeverage) {
		return none, types.ErrInvalidLeverage.Wrapf("resulting leverage %s exceeds max %s", pos.Leverage, cfg.MaxLeverage)
	}
	k.SetPosition(ctx, pos)
	if err := k.payToUser(ctx, owner, i.Amount); err != nil {
		return none, err
	}
	return types.CompletePositionTarget(pos.Id), nil
}

func (k *Keeper) applyRemoveCollateralImpactSize(ctx sdk.Context, owner string, i *types.UpdateCollateralSizeItem, price types.PricePoint) (types.DeferredExecCompleteTarget, error) {
	var none types.DeferredExecCompleteTarget
	pos, err := k.ownedPosition(ctx, owner, i.Id)
	if err != nil {
		return none, err
	}
	if i.SlippageAssert != nil {
		if err := i.SlippageAssert.Check(pos.Direction, price.PriceBase); err != nil {
			return none, err
		}
	}
	if err := k.removeCollateral(ctx, pos, i.Amount, price); err != nil {
		return none, err
	}
	if err := k.resizeNotional(ctx, pos, pos.ActiveCollateral.Mul(pos.Leverage)); err != nil {
		return none, err
	}
	k.SetPosition(ctx, pos)
	if err := k.payToUser(ctx, owner, i.Amount); err != nil {
		return none, err
	}
	return types.CompletePositionTarget(pos.Id), nil
}

// removeCollateral deducts from active collateral, rejecting removals that
// would leave the position liquidatable at the current price.
func (k *Keeper) removeCollateral(ctx sdk.Context, pos *types.Position, amount math.LegacyDec, price types.PricePoint) error {
	if !amount.IsPositive() {
		return types.ErrInvalidAmount
	}
	if amount.GTE(pos.ActiveCollateral) {
		return types.ErrInsufficientMargin.Wrapf("removing %s from %s active collateral", amount, pos.ActiveCollateral)
	}
	cfg := k.GetConfig(ctx)
	remaining := pos.ActiveCollateral.Sub(amount)
	equity := remaining.Add(pos.UnrealizedPnl(price.PriceBase))
	if equity.LTE(pos.LiquidationMargin(cfg.ExposureMarginRatio)) {
		return types.ErrInsufficientMargin.Wrap("removal would leave position liquidatable")
	}
	pos.ActiveCollateral = remaining
	pos.DepositCollateral = pos.DepositCollateral.Sub(amount)
	return nil
}

// resizeNotional adjusts a position's notional size, re-locking counter
// collateral and net notional accordingly.
func (k *Keeper) resizeNotional(ctx sdk.Context, pos *types.Position, newNotional math.LegacyDec) error {
	if !newNotional.IsPositive() {
		return types.ErrInvalidAmount.Wrap("notional must stay positive")
	}
	cfg := k.GetConfig(ctx)
	ratio := cfg.DefaultMaxGainsRatio
	if pos.MaxGains != nil {
		ratio = *pos.MaxGains
	}
	newCounter := newNotional.Mul(ratio)
	if newCounter.GT(pos.CounterCollateral) {
		if err := k.liquidityKeeper.LockCounterCollateral(ctx, newCounter.Sub(pos.CounterCollateral)); err != nil {
			return err
		}
	} else {
		k.liquidityKeeper.UnlockCounterCollateral(ctx, pos.CounterCollateral.Sub(newCounter))
	}

	delta := newNotional.Sub(pos.NotionalSize)
	if pos.Direction == types.DirectionShort {
		delta = delta.Neg()
	}
	k.adjustNetNotional(ctx, delta)

	pos.NotionalSize = newNotional
	pos.CounterCollateral = newCounter
	return nil
}

func (k *Keeper) applyUpdateLeverage(ctx sdk.Context, owner string, i *types.UpdateLeverageItem, price types.PricePoint) (types.DeferredExecCompleteTarget, error) {
	var none types.DeferredExecCompleteTarget
	pos, err := k.ownedPosition(ctx, owner, i.Id)
	if err != nil {
		return none, err
	}
	cfg := k.GetConfig(ctx)
	if !i.Leverage.IsPositive() || i.Leverage.GT(cfg.MaxLeverage) {
		return none, types.ErrInvalidLeverage.Wrapf("leverage %s, max %s", i.Leverage, cfg.MaxLeverage)
	}
	if i.SlippageAssert != nil {
		if err := i.SlippageAssert.Check(pos.Direction, price.PriceBase); err != nil {
			return none, err
		}
	}
	if err := k.resizeNotional(ctx, pos, pos.ActiveCollateral.Mul(i.Leverage)); err != nil {
		return none, err
	}
	pos.Leverage = i.Leverage
	k.SetPosition(ctx, pos)
	return types.CompletePositionTarget(pos.Id), nil
}

func (k *Keeper) applyUpdateMaxGains(ctx sdk.Context, owner string, i *types.UpdateMaxGainsItem) (types.DeferredExecCompleteTarget, error) {
	var none types.DeferredExecCompleteTarget
	pos, err := k.ownedPosition(ctx, owner, i.Id)
	if err != nil {
		return none, err
	}
	if !i.MaxGains.IsPositive() {
		return none, types.ErrMaxGainsTooLarge.Wrap("max gains must be positive")
	}
	newCounter := pos.NotionalSize.Mul(i.MaxGains)
	if newCounter.GT(pos.CounterCollateral) {
		if err := k.liquidityKeeper.LockCounterCollateral(ctx, newCounter.Sub(pos.CounterCollateral)); err != nil {
			return none, err
		}
	} else {
		k.liquidityKeeper.UnlockCounterCollateral(ctx, pos.CounterCollateral.Sub(newCounter))
	}
	mg := i.MaxGains
	pos.MaxGains = &mg
	pos.CounterCollateral = newCounter
	k.SetPosition(ctx, pos)
	return types.CompletePositionTarget(pos.Id), nil
}

func (k *Keeper) applyUpdateTakeProfit(ctx sdk.Context, owner string, i *types.UpdateTakeProfitItem, price types.PricePoint) (types.DeferredExecCompleteTarget, error) {
	var none types.DeferredExecCompleteTarget
	pos, err := k.ownedPosition(ctx, owner, i.Id)
	if err != nil {
		return none, err
	}
	if err := validateTakeProfit(pos.Direction, i.Price, price.PriceBase); err != nil {
		return none, err
	}
	tp := i.Price
	pos.TakeProfitOverride = &tp
	k.SetPosition(ctx, pos)
	return types.CompletePositionTarget(pos.Id), nil
}

func (k *Keeper) applyUpdateStopLoss(ctx sdk.Context, owner string, i *types.UpdateStopLossItem, price types.PricePoint) (types.DeferredExecCompleteTarget, error) {
	var none types.DeferredExecCompleteTarget
	pos, err := k.ownedPosition(ctx, owner, i.Id)
	if err != nil {
		return none, err
	}
	if i.StopLoss == nil {
		pos.StopLossOverride = nil
	} else {
		if err := validateStopLoss(pos.Direction, *i.StopLoss, price.PriceBase); err != nil {
			return none, err
		}
		sl := *i.StopLoss
		pos.StopLossOverride = &sl
	}
	k.SetPosition(ctx, pos)
	return types.CompletePositionTarget(pos.Id), nil
}

func (k *Keeper) applyClosePosition(ctx sdk.Context, owner string, i *types.ClosePositionItem, price types.PricePoint) (types.DeferredExecCompleteTarget, error) {
	var none types.DeferredExecCompleteTarget
	pos, err := k.ownedPosition(ctx, owner, i.Id)
	if err != nil {
		return none, err
	}
	if i.SlippageAssert != nil {
		// Closing takes the opposite side of the market: the unfavorable
		// direction flips.
		closeDir := types.DirectionShort
		if pos.Direction == types.DirectionShort {
			closeDir = types.DirectionLong
		}
		if err := i.SlippageAssert.Check(closeDir, price.PriceBase); err != nil {
			return none, err
		}
	}
	if err := k.closePosition(ctx, pos, price, "direct"); err != nil {
		return none, err
	}
	return types.CompletePositionTarget(pos.Id), nil
}

func (k *Keeper) applySetTriggerOrder(ctx sdk.Context, owner string, i *types.SetTriggerOrderItem, price types.PricePoint) (types.DeferredExecCompleteTarget, error) {
	var none types.DeferredExecCompleteTarget
	pos, err := k.ownedPosition(ctx, owner, i.Id)
	if err != nil {
		return none, err
	}
	// Nil stop loss removes the override; nil take profit leaves it alone.
	if i.StopLossOverride == nil {
		pos.StopLossOverride = nil
	} else {
		if err := validateStopLoss(pos.Direction, *i.StopLossOverride, price.PriceBase); err != nil {
			return none, err
		}
		sl := *i.StopLossOverride
		pos.StopLossOverride = &sl
	}
	if i.TakeProfit != nil {
		if err := validateTakeProfit(pos.Direction, *i.TakeProfit, price.PriceBase); err != nil {
			return none, err
		}
		tp := *i.TakeProfit
		pos.TakeProfitOverride = &tp
	}
	k.SetPosition(ctx, pos)
	return types.CompletePositionTarget(pos.Id), nil
}

func validateStopLoss(direction types.DirectionToBase, stopLoss, current math.LegacyDec) error {
	if !stopLoss.IsPositive() {
		return types.ErrInvalidTriggerPrice
	}
	if direction == types.DirectionLong && stopLoss.GTE(current) {
		return types.ErrInvalidTriggerPrice.Wrapf("long stop loss %s must be below current price %s", stopLoss, current)
	}
	if direction == types.DirectionShort && stopLoss.LTE(current) {
		return types.ErrInvalidTriggerPrice.Wrapf("short stop loss %s must be above current price %s", stopLoss, current)
	}
	return nil
}

func validateTakeProfit(direction types.DirectionToBase, takeProfit, current math.LegacyDec) error {
	if !takeProfit.IsPositive() {
		return types.ErrInvalidTriggerPrice
	}
	if direction == types.DirectionLong && takeProfit.LTE(current) {
		return types.ErrInvalidTriggerPrice.Wrapf("long take profit %s must be above current price %s", takeProfit, current)
	}
	if direction == types.DirectionShort && takeProfit.GTE(current) {
		return types.ErrInvalidTriggerPrice.Wrapf("short take profit %s must be below current price %s", takeProfit, current)
	}
	return nil
}

func (k *Keeper) applyPlaceLimitOrder(ctx sdk.Context, owner string, i *types.PlaceLimitOrderItem, price types.PricePoint) (types.DeferredExecCompleteTarget, error) {
	var none types.DeferredExecCompleteTarget
	cfg := k.GetConfig(ctx)
	if !i.Leverage.IsPositive() || i.Leverage.GT(cfg.MaxLeverage) {
		return none, types.ErrInvalidLeverage.Wrapf("leverage %s, max %s", i.Leverage, cfg.MaxLeverage)
	}
	if !i.TriggerPrice.IsPositive() {
		return none, types.ErrInvalidTriggerPrice
	}
	// An already-crossed trigger would fire on the next crank pass against
	// this same price, making the limit order a market order in disguise.
	if i.Direction == types.DirectionLong && i.TriggerPrice.GTE(price.PriceBase) {
		return none, types.ErrInvalidTriggerPrice.Wrapf("long trigger %s must be below current price %s", i.TriggerPrice, price.PriceBase)
	}
	if i.Direction == types.DirectionShort && i.TriggerPrice.LTE(price.PriceBase) {
		return none, types.ErrInvalidTriggerPrice.Wrapf("short trigger %s must be above current price %s", i.TriggerPrice, price.PriceBase)
	}

	id := k.mintOrderId(ctx)
	order := &types.LimitOrder{
		OrderId:            id,
		Owner:              owner,
		TriggerPrice:       i.TriggerPrice,
		Collateral:         i.Amount,
		Leverage:           i.Leverage,
		Direction:          i.Direction,
		MaxGains:           i.MaxGains,
		StopLossOverride:   i.StopLossOverride,
		TakeProfit:         i.TakeProfit,
		CrankFeeCollateral: i.CrankFee,
		CrankFeeUsd:        i.CrankFeeUsd,
		CreatedAt:          types.NewTimestampFromTime(ctx.BlockTime()),
	}
	k.SetLimitOrder(ctx, order)

	ctx.EventManager().EmitEvent(sdk.NewEvent(types.EventTypeLimitOrderPlaced,
		sdk.NewAttribute(types.AttributeKeyOrderId, id.String()),
		sdk.NewAttribute(types.AttributeKeyOwner, owner),
		sdk.NewAttribute(types.AttributeKeyPrice, i.TriggerPrice.String()),
	))
	return types.CompleteOrderTarget(id), nil
}

func (k *Keeper) applyCancelLimitOrder(ctx sdk.Context, owner string, i *types.CancelLimitOrderItem) (types.DeferredExecCompleteTarget, error) {
	var none types.DeferredExecCompleteTarget
	order := k.GetLimitOrder(ctx, i.OrderId)
	if order == nil {
		return none, types.ErrOrderNotFound.Wrapf("limit order %s", i.OrderId)
	}
	if order.Owner != owner {
		return none, types.ErrUnauthorized.Wrapf("order %s not owned by %s", i.OrderId, owner)
	}
	k.deleteLimitOrder(ctx, order)
	if err := k.payToUser(ctx, owner, order.Collateral); err != nil {
		return none, err
	}
	return types.CompleteOrderTarget(order.OrderId), nil
}
