package keeper

import (
	"fmt"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/perp-market/x/market/types"
)

// The crank is the permissionless operation that advances protocol state.
// Each crank message processes up to N work units sequentially; every unit
// fully commits or fully rolls back before the next is selected. The host
// transaction linearizes all access, so there is no locking here.

// NextCrankWork decides the single next unit of work. It is a pure read:
// calling it repeatedly without processing returns the same answer.
//
// Priority is a policy decision, not incidental. Wind-down outranks
// everything; liquidations outrank queued user actions so queue growth
// cannot starve them and protocol risk stays bounded; deferred items run
// FIFO for predictable user latency; limit orders come last.
func (k *Keeper) NextCrankWork(ctx sdk.Context) types.CrankWorkInfo {
	if k.CloseAllTriggered(ctx) {
		if pos := k.oldestOpenPosition(ctx); pos != nil {
			return types.CrankWorkInfo{CloseAllPositions: &types.CloseAllPositionsWork{Position: pos.Id}}
		}
		if k.lpResetNeeded(ctx) {
			return types.CrankWorkInfo{ResetLpBalances: &struct{}{}}
		}
	}

	price := k.LatestPricePoint(ctx)
	if price == nil || k.priceIsStale(ctx, price) {
		// No qualifying price. Waiting is expressed as completed, not
		// as an error; items stay pending.
		return types.CompletedWork()
	}

	if pos, reason := k.nextLiquidatablePosition(ctx, *price); pos != nil {
		return types.CrankWorkInfo{Liquidation: &types.LiquidationWork{
			Position:          pos.Id,
			LiquidationReason: *reason,
		}}
	}

	if id := k.nextLiquifundingDue(ctx, price.Timestamp); id != nil {
		return types.CrankWorkInfo{Liquifunding: &types.LiquifundingWork{Position: *id}}
	}

	// Deferred items execute strictly in creation order, and only once a
	// price point at or after their creation time exists.
	if head := k.NextPendingDeferredExec(ctx); head != nil && head.Created <= price.Timestamp {
		return types.CrankWorkInfo{DeferredExec: &types.DeferredExecWork{
			DeferredExecId: head.Id,
			Target:         head.Item.Target(),
		}}
	}

	if order := k.triggeredLimitOrder(ctx, price.PriceBase); order != nil {
		return types.CrankWorkInfo{LimitOrder: &types.LimitOrderWork{OrderId: order.OrderId}}
	}

	return types.CompletedWork()
}

// Crank processes up to execs work units (zero uses the configured
// default), crediting crank rewards to the rewards address, or to the
// cranker when empty. Returns the work kinds processed in order.
func (k *Keeper) Crank(ctx sdk.Context, cranker string, execs uint32, rewards string) ([]string, error) {
	cfg := k.GetConfig(ctx)
	if execs == 0 {
		execs = cfg.CrankExecs
	}
	if rewards == "" {
		rewards = cranker
	}

	var kinds []string
	for i := uint32(0); i < execs; i++ {
		work := k.NextCrankWork(ctx)
		if work.Completed {
			k.setUint64(ctx, LastCrankCompletedKey, uint64(types.NewTimestampFromTime(ctx.BlockTime())))
			break
		}
		if err := k.processCrankWork(ctx, work); err != nil {
			return kinds, err
		}
		kinds = append(kinds, work.Kind())
	}

	if len(kinds) > 0 {
		k.payCrankRewards(ctx, rewards, uint32(len(kinds)))
	}

	ctx.EventManager().EmitEvent(sdk.NewEvent(types.EventTypeCrankCompleted,
		sdk.NewAttribute(types.AttributeKeyOwner, cranker),
		sdk.NewAttribute(types.AttributeKeyWorkKind, fmt.Sprintf("%d", len(kinds))),
	))
	k.logger.Debug("crank batch done", "cranker", cranker, "processed", len(kinds))
	return kinds, nil
}

// processCrankWork applies one selected work unit.
func (k *Keeper) processCrankWork(ctx sdk.Context, work types.CrankWorkInfo) error {
	price := k.LatestPricePoint(ctx)

	switch {
	case work.CloseAllPositions != nil:
		pos := k.GetPosition(ctx, work.CloseAllPositions.Position)
		if pos == nil {
			return types.ErrPositionNotFound.Wrapf("close-all position %s", work.CloseAllPositions.Position)
		}
		execPrice := types.PricePoint{PriceBase: pos.EntryPrice, PriceUsd: pos.EntryPrice}
		if price != nil {
			execPrice = *price
		}
		return k.closePosition(ctx, pos, execPrice, "market_wound_down")

	case work.ResetLpBalances != nil:
		k.resetLpBalances(ctx)
		return nil

	case work.Liquidation != nil:
		pos := k.GetPosition(ctx, work.Liquidation.Position)
		if pos == nil {
			return types.ErrPositionNotFound.Wrapf("liquidation position %s", work.Liquidation.Position)
		}
		return k.executeLiquidation(ctx, pos, work.Liquidation.LiquidationReason, *price)

	case work.Liquifunding != nil:
		pos := k.GetPosition(ctx, work.Liquifunding.Position)
		if pos == nil {
			return types.ErrPositionNotFound.Wrapf("liquifunding position %s", work.Liquifunding.Position)
		}
		k.liquifund(ctx, pos, *price)
		return nil

	case work.DeferredExec != nil:
		k.performDeferredExec(ctx, work.DeferredExec.DeferredExecId, *price)
		return nil

	case work.LimitOrder != nil:
		return k.executeTriggeredLimitOrder(ctx, work.LimitOrder.OrderId, *price)

	default:
		return nil
	}
}

// performDeferredExec applies one deferred item against the given price
// point. It is deliberately unexported: only the crank loop may invoke it,
// never the external message surface.
//
// The item's effects run on a branched store; a failed precondition rolls
// the branch back, records a failure status and refunds the escrowed
// collateral. One bad item never aborts the rest of the crank batch.
func (k *Keeper) performDeferredExec(ctx sdk.Context, id types.DeferredExecId, price types.PricePoint) {
	item := k.mustPendingDeferredExec(ctx, id)
	executed := price.Timestamp

	branch, commit := ctx.CacheContext()
	target, err := k.applyDeferredExecItem(branch, item, price)
	if err != nil {
		k.markDeferredFailure(ctx, id, err.Error(), executed, &price)
		k.refundEscrow(ctx, item)
		ctx.EventManager().EmitEvent(types.NewDeferredExecExecutedEvent(
			id, item.Item.Target(), item.Owner, false, err.Error()))
		k.logger.Info("deferred exec failed",
			"id", id.String(),
			"owner", item.Owner,
			"reason", err.Error(),
		)
		return
	}
	commit()

	k.markDeferredSuccess(ctx, id, target, executed)
	ctx.EventManager().EmitEvent(types.NewDeferredExecExecutedEvent(
		id, item.Item.Target(), item.Owner, true, "executed"))
	k.logger.Debug("deferred exec applied", "id", id.String(), "owner", item.Owner)
}

// refundEscrow returns the collateral attached at submission time to the
// owner after a failed execution.
func (k *Keeper) refundEscrow(ctx sdk.Context, item *types.DeferredExecWithStatus) {
	amount := item.Item.EscrowedAmount()
	if !amount.IsPositive() {
		return
	}
	if err := k.payToUser(ctx, item.Owner, amount); err != nil {
		k.logger.Error("escrow refund failed", "id", item.Id.String(), "err", err)
		return
	}
	ctx.EventManager().EmitEvent(types.NewFeesReturnedEvent(
		item.Owner, amount, k.latestUsdValue(ctx, amount)))
}

func (k *Keeper) latestUsdValue(ctx sdk.Context, collateral math.LegacyDec) math.LegacyDec {
	if point := k.LatestPricePoint(ctx); point != nil {
		return point.CollateralToUsd(collateral)
	}
	return collateral
}

// executeTriggeredLimitOrder opens the position a crossed limit order
// describes. A failed open cancels the order and returns its collateral;
// the order never re-triggers.
func (k *Keeper) executeTriggeredLimitOrder(ctx sdk.Context, id types.OrderId, price types.PricePoint) error {
	order := k.GetLimitOrder(ctx, id)
	if order == nil {
		return types.ErrOrderNotFound.Wrapf("limit order %s", id)
	}

	branch, commit := ctx.CacheContext()
	posId, err := k.openPosition(branch, openPositionParams{
		Owner:            order.Owner,
		Amount:           order.Collateral,
		Leverage:         order.Leverage,
		Direction:        order.Direction,
		MaxGains:         order.MaxGains,
		StopLossOverride: order.StopLossOverride,
		TakeProfit:       order.TakeProfit,
		CrankFee:         order.CrankFeeCollateral,
		CrankFeeUsd:      order.CrankFeeUsd,
	}, price)
	if err != nil {
		k.deleteLimitOrder(ctx, order)
		if payErr := k.payToUser(ctx, order.Owner, order.Collateral); payErr != nil {
			return payErr
		}
		ctx.EventManager().EmitEvent(types.NewFeesReturnedEvent(
			order.Owner, order.Collateral, k.latestUsdValue(ctx, order.Collateral)))
		k.logger.Info("limit order trigger failed, order cancelled",
			"order", id.String(), "reason", err.Error())
		return nil
	}
	commit()
	k.deleteLimitOrder(ctx, order)

	ctx.EventManager().EmitEvent(sdk.NewEvent(types.EventTypeLimitOrderTriggered,
		sdk.NewAttribute(types.AttributeKeyOrderId, id.String()),
		sdk.NewAttribute(types.AttributeKeyPositionId, posId.String()),
		sdk.NewAttribute(types.AttributeKeyPrice, price.PriceBase.String()),
	))
	return nil
}

// payCrankRewards pays the per-exec reward out of the accumulated crank
// fee pool, never exceeding what the pool holds.
func (k *Keeper) payCrankRewards(ctx sdk.Context, recipient string, processed uint32) {
	cfg := k.GetConfig(ctx)
	pool := k.CrankRewards(ctx)
	if !pool.IsPositive() {
		return
	}
	reward := k.UsdToCollateralAtLatest(ctx, cfg.CrankFeeReward).MulInt64(int64(processed))
	if reward.GT(pool) {
		reward = pool
	}
	if !reward.IsPositive() {
		return
	}
	if err := k.payToUser(ctx, recipient, reward); err != nil {
		k.logger.Error("crank reward payout failed", "recipient", recipient, "err", err)
		return
	}
	k.setDec(ctx, CrankRewardsKey, pool.Sub(reward))
}

// LastCrankCompleted returns when the crank last ran out of work.
func (k *Keeper) LastCrankCompleted(ctx sdk.Context) *types.Timestamp {
	v := k.getUint64(ctx, LastCrankCompletedKey)
	if v == 0 {
		return nil
	}
	ts := types.Timestamp(v)
	return &ts
}
