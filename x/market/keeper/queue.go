package keeper

import (
	"encoding/json"
	"fmt"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/perp-market/x/market/types"
)

// The deferred execution queue is an append-only, ordered store of work
// items keyed by DeferredExecId, indexed by owner for enumeration and by
// target to enforce the single-outstanding-item-per-target invariant.
// Terminal items are never deleted; they remain queryable indefinitely.

// EnqueueDeferredExec allocates the next ID and inserts the item in pending
// status, charging the crank fee plus the congestion surcharge. Returns the
// new ID and the total crank fee charged in collateral.
func (k *Keeper) EnqueueDeferredExec(ctx sdk.Context, owner string, item types.DeferredExecItem) (types.DeferredExecId, math.LegacyDec, error) {
	zero := math.LegacyZeroDec()
	if err := item.Validate(); err != nil {
		return 0, zero, err
	}
	if k.CloseAllTriggered(ctx) {
		return 0, zero, types.ErrMarketWoundDown
	}

	reason := item.CongestionReason()
	cfg := k.GetConfig(ctx)
	if ceiling := cfg.QueueCeiling(reason); ceiling > 0 {
		depth := k.pendingCountByReason(ctx, reason)
		if depth >= ceiling {
			return 0, zero, types.NewCongestionError(depth, ceiling, reason)
		}
	}

	// Reject a second outstanding item against the same target. Opens and
	// placements target nothing yet and never conflict.
	target := item.Target()
	if key := target.Key(); key != nil {
		if existing := k.pendingIdForTarget(ctx, key); existing != nil {
			switch {
			case item.ClosePosition != nil:
				return 0, zero, types.ErrPositionAlreadyClosing.Wrapf("deferred exec %s", existing)
			case item.CancelLimitOrder != nil:
				return 0, zero, types.ErrOrderAlreadyCanceling.Wrapf("deferred exec %s", existing)
			default:
				return 0, zero, types.ErrPendingDeferredExec.Wrapf("deferred exec %s targets %s", existing, target)
			}
		}
	}

	// Crank fee: flat charge plus the congestion surcharge, both USD
	// denominated and converted at the latest price.
	surchargeUsd := k.CrankFeeSurchargeUsd(ctx, k.PendingDeferredCount(ctx))
	feeCollateral := k.UsdToCollateralAtLatest(ctx, cfg.CrankFeeCharged.Add(surchargeUsd))

	// Escrow the attached collateral and the fee up front.
	escrow := item.EscrowedAmount().Add(feeCollateral)
	if err := k.escrowFromUser(ctx, owner, escrow); err != nil {
		return 0, zero, err
	}
	k.addCrankRewards(ctx, feeCollateral)

	// Opens and placements record the charged fee on the item so the
	// resulting position carries it in its fee accumulators.
	feeUsd := cfg.CrankFeeCharged.Add(surchargeUsd)
	switch {
	case item.OpenPosition != nil:
		item.OpenPosition.CrankFee = feeCollateral
		item.OpenPosition.CrankFeeUsd = feeUsd
	case item.PlaceLimitOrder != nil:
		item.PlaceLimitOrder.CrankFee = feeCollateral
		item.PlaceLimitOrder.CrankFeeUsd = feeUsd
	}

	id := types.DeferredExecId(k.getUint64(ctx, NextDeferredExecIdKey) + 1)
	k.setUint64(ctx, NextDeferredExecIdKey, uint64(id))

	created := types.NewTimestampFromTime(ctx.BlockTime())
	wrapped := types.DeferredExecWithStatus{
		Id:      id,
		Created: created,
		Owner:   owner,
		Item:    item,
	}
	k.setDeferredExec(ctx, &wrapped)
	k.GetStore(ctx).Set(k.ownerIndexKey(owner, id), []byte{})
	if key := target.Key(); key != nil {
		k.setUint64(ctx, append(PendingTargetKeyPrefix, key...), uint64(id))
	}
	k.setUint64(ctx, PendingCountKey, uint64(k.PendingDeferredCount(ctx))+1)
	k.bumpReasonCount(ctx, reason, 1)

	ctx.EventManager().EmitEvent(types.NewDeferredExecQueuedEvent(id, target, owner))
	k.logger.Debug("deferred exec queued",
		"id", id.String(),
		"owner", owner,
		"target", target.String(),
		"crank_fee", feeCollateral.String(),
	)
	return id, feeCollateral, nil
}

// GetDeferredExec retrieves an item by ID.
func (k *Keeper) GetDeferredExec(ctx sdk.Context, id types.DeferredExecId) *types.DeferredExecWithStatus {
	bz := k.GetStore(ctx).Get(u64Key(DeferredExecKeyPrefix, uint64(id)))
	if bz == nil {
		return nil
	}
	var item types.DeferredExecWithStatus
	if err := json.Unmarshal(bz, &item); err != nil {
		return nil
	}
	return &item
}

func (k *Keeper) setDeferredExec(ctx sdk.Context, item *types.DeferredExecWithStatus) {
	bz, _ := json.Marshal(item)
	k.GetStore(ctx).Set(u64Key(DeferredExecKeyPrefix, uint64(item.Id)), bz)
}

func (k *Keeper) ownerIndexKey(owner string, id types.DeferredExecId) []byte {
	key := append(append([]byte{}, DeferredOwnerKeyPrefix...), []byte(owner)...)
	key = append(key, 0x00)
	return u64Key(key, uint64(id))
}

// ListDeferredExecs enumerates a trader's items newest first. A startAfter
// of nil begins at the newest; otherwise enumeration resumes strictly below
// the given ID. Returns the page and the cursor for the next one.
func (k *Keeper) ListDeferredExecs(ctx sdk.Context, owner string, startAfter *types.DeferredExecId, limit int) types.ListDeferredExecsResp {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	prefix := append(append([]byte{}, DeferredOwnerKeyPrefix...), []byte(owner)...)
	prefix = append(prefix, 0x00)
	end := u64Key(prefix, ^uint64(0))
	if startAfter != nil {
		end = u64Key(prefix, uint64(*startAfter))
	}
	iterator := k.GetStore(ctx).ReverseIterator(prefix, end)
	defer iterator.Close()

	var resp types.ListDeferredExecsResp
	for ; iterator.Valid() && len(resp.Items) < limit; iterator.Next() {
		key := iterator.Key()
		id := types.DeferredExecId(bigEndianSuffix(key))
		item := k.GetDeferredExec(ctx, id)
		if item == nil {
			continue
		}
		resp.Items = append(resp.Items, *item)
	}
	if len(resp.Items) == limit && iterator.Valid() {
		last := resp.Items[len(resp.Items)-1].Id
		resp.NextStartAfter = &last
	}
	return resp
}

func bigEndianSuffix(key []byte) uint64 {
	if len(key) < 8 {
		return 0
	}
	var v uint64
	for _, b := range key[len(key)-8:] {
		v = v<<8 | uint64(b)
	}
	return v
}

// PendingDeferredCount is the queue depth: the number of items still
// waiting to be cranked. Drives the congestion surcharge.
func (k *Keeper) PendingDeferredCount(ctx sdk.Context) uint32 {
	return uint32(k.getUint64(ctx, PendingCountKey))
}

func (k *Keeper) pendingCountByReason(ctx sdk.Context, reason types.CongestionReason) uint32 {
	return uint32(k.getUint64(ctx, append(PendingReasonCountPrefix, []byte(reason)...)))
}

func (k *Keeper) bumpReasonCount(ctx sdk.Context, reason types.CongestionReason, delta int64) {
	key := append(PendingReasonCountPrefix, []byte(reason)...)
	k.setUint64(ctx, key, uint64(int64(k.getUint64(ctx, key))+delta))
}

func (k *Keeper) pendingIdForTarget(ctx sdk.Context, targetKey []byte) *types.DeferredExecId {
	key := append(PendingTargetKeyPrefix, targetKey...)
	bz := k.GetStore(ctx).Get(key)
	if bz == nil {
		return nil
	}
	id := types.DeferredExecId(k.getUint64(ctx, key))
	return &id
}

// LastProcessedDeferredExecId returns the most recently resolved ID, or nil
// when nothing has been processed yet.
func (k *Keeper) LastProcessedDeferredExecId(ctx sdk.Context) *types.DeferredExecId {
	v := k.getUint64(ctx, LastProcessedIdKey)
	if v == 0 {
		return nil
	}
	id := types.DeferredExecId(v)
	return &id
}

// NextPendingDeferredExec returns the oldest pending item, respecting FIFO
// order: items are only ever resolved in ascending ID order, so the head of
// the queue is the item right after the last processed one.
func (k *Keeper) NextPendingDeferredExec(ctx sdk.Context) *types.DeferredExecWithStatus {
	next := k.getUint64(ctx, LastProcessedIdKey) + 1
	newest := k.getUint64(ctx, NextDeferredExecIdKey)
	for ; next <= newest; next++ {
		item := k.GetDeferredExec(ctx, types.DeferredExecId(next))
		if item == nil {
			continue
		}
		if item.Status.IsPending() {
			return item
		}
	}
	return nil
}

// NewestPendingDeferredExec returns the most recently queued pending item.
func (k *Keeper) NewestPendingDeferredExec(ctx sdk.Context) *types.DeferredExecWithStatus {
	newest := k.getUint64(ctx, NextDeferredExecIdKey)
	oldest := k.getUint64(ctx, LastProcessedIdKey)
	for ; newest > oldest; newest-- {
		item := k.GetDeferredExec(ctx, types.DeferredExecId(newest))
		if item != nil && item.Status.IsPending() {
			return item
		}
	}
	return nil
}

// markDeferredSuccess transitions a pending item to success. Each item may
// be resolved exactly once; resolving a non-pending item indicates a
// scheduler bug and panics rather than corrupting history.
func (k *Keeper) markDeferredSuccess(ctx sdk.Context, id types.DeferredExecId, target types.DeferredExecCompleteTarget, executed types.Timestamp) {
	item := k.mustPendingDeferredExec(ctx, id)
	item.Status = types.DeferredExecStatus{Success: &types.DeferredExecSuccess{
		Target:   target,
		Executed: executed,
	}}
	k.resolveDeferredExec(ctx, item)
}

// markDeferredFailure transitions a pending item to failure.
func (k *Keeper) markDeferredFailure(ctx sdk.Context, id types.DeferredExecId, reason string, executed types.Timestamp, crankPrice *types.PricePoint) {
	item := k.mustPendingDeferredExec(ctx, id)
	item.Status = types.DeferredExecStatus{Failure: &types.DeferredExecFailure{
		Reason:     reason,
		Executed:   executed,
		CrankPrice: crankPrice,
	}}
	k.resolveDeferredExec(ctx, item)
}

func (k *Keeper) mustPendingDeferredExec(ctx sdk.Context, id types.DeferredExecId) *types.DeferredExecWithStatus {
	item := k.GetDeferredExec(ctx, id)
	if item == nil {
		panic(fmt.Sprintf("deferred exec %s does not exist", id))
	}
	if !item.Status.IsPending() {
		panic(fmt.Sprintf("deferred exec %s already resolved to %s", id, item.Status))
	}
	return item
}

func (k *Keeper) resolveDeferredExec(ctx sdk.Context, item *types.DeferredExecWithStatus) {
	k.setDeferredExec(ctx, item)
	if key := item.Item.Target().Key(); key != nil {
		k.GetStore(ctx).Delete(append(PendingTargetKeyPrefix, key...))
	}
	if depth := k.PendingDeferredCount(ctx); depth > 0 {
		k.setUint64(ctx, PendingCountKey, uint64(depth)-1)
	}
	k.bumpReasonCount(ctx, item.Item.CongestionReason(), -1)
	k.setUint64(ctx, LastProcessedIdKey, uint64(item.Id))
}
