package keeper

import (
	"encoding/json"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/google/btree"
	"github.com/openalpha/perp-market/x/market/types"
)

// Limit orders are stored in the KVStore by ID. The work selector builds a
// btree per direction keyed by trigger price for each lookup, so the
// selection is always a function of the store state it is handed. Branched
// contexts and aborted transactions need no cache bookkeeping.

const btreeDegree = 32

// orderTriggerItem keys a limit order by trigger price for the btree.
type orderTriggerItem struct {
	price math.LegacyDec
	id    types.OrderId
}

// Less orders ascending by price, then by id for determinism.
func (a *orderTriggerItem) Less(b btree.Item) bool {
	other := b.(*orderTriggerItem)
	if a.price.Equal(other.price) {
		return a.id < other.id
	}
	return a.price.LT(other.price)
}

type limitOrderIndex struct {
	longs  *btree.BTree // long orders trigger when price <= trigger
	shorts *btree.BTree // short orders trigger when price >= trigger
}

func (idx *limitOrderIndex) insert(order *types.LimitOrder) {
	item := &orderTriggerItem{price: order.TriggerPrice, id: order.OrderId}
	if order.Direction == types.DirectionLong {
		idx.longs.ReplaceOrInsert(item)
	} else {
		idx.shorts.ReplaceOrInsert(item)
	}
}

// triggered returns the most-crossed order ID for the given price, or nil.
// For longs that is the order with the highest trigger at or above the
// price; for shorts the lowest trigger at or below it. Long orders win ties
// to keep selection deterministic.
func (idx *limitOrderIndex) triggered(price math.LegacyDec) *types.OrderId {
	var found *types.OrderId
	idx.longs.DescendGreaterThan(&orderTriggerItem{price: price, id: 0}, func(i btree.Item) bool {
		id := i.(*orderTriggerItem).id
		found = &id
		return false
	})
	if found != nil {
		return found
	}
	idx.shorts.AscendLessThan(&orderTriggerItem{price: price, id: ^types.OrderId(0)}, func(i btree.Item) bool {
		id := i.(*orderTriggerItem).id
		found = &id
		return false
	})
	return found
}

// orderIndex builds the trigger index from the limit orders visible through
// the given context.
func (k *Keeper) orderIndex(ctx sdk.Context) *limitOrderIndex {
	idx := &limitOrderIndex{
		longs:  btree.New(btreeDegree),
		shorts: btree.New(btreeDegree),
	}
	k.IterateLimitOrders(ctx, func(order *types.LimitOrder) bool {
		idx.insert(order)
		return false
	})
	return idx
}

// SetLimitOrder saves a limit order.
func (k *Keeper) SetLimitOrder(ctx sdk.Context, order *types.LimitOrder) {
	bz, _ := json.Marshal(order)
	k.GetStore(ctx).Set(u64Key(LimitOrderKeyPrefix, uint64(order.OrderId)), bz)
}

// GetLimitOrder retrieves a limit order, or nil when it does not exist.
func (k *Keeper) GetLimitOrder(ctx sdk.Context, id types.OrderId) *types.LimitOrder {
	bz := k.GetStore(ctx).Get(u64Key(LimitOrderKeyPrefix, uint64(id)))
	if bz == nil {
		return nil
	}
	var order types.LimitOrder
	if err := json.Unmarshal(bz, &order); err != nil {
		return nil
	}
	return &order
}

func (k *Keeper) deleteLimitOrder(ctx sdk.Context, order *types.LimitOrder) {
	k.GetStore(ctx).Delete(u64Key(LimitOrderKeyPrefix, uint64(order.OrderId)))
}

// IterateLimitOrders walks all limit orders in ascending ID order.
func (k *Keeper) IterateLimitOrders(ctx sdk.Context, cb func(order *types.LimitOrder) (stop bool)) {
	iterator := storetypes.KVStorePrefixIterator(k.GetStore(ctx), LimitOrderKeyPrefix)
	defer iterator.Close()
	for ; iterator.Valid(); iterator.Next() {
		var order types.LimitOrder
		if err := json.Unmarshal(iterator.Value(), &order); err != nil {
			continue
		}
		if cb(&order) {
			return
		}
	}
}

// OpenLimitOrderCount returns the number of open limit orders.
func (k *Keeper) OpenLimitOrderCount(ctx sdk.Context) uint32 {
	var n uint32
	k.IterateLimitOrders(ctx, func(*types.LimitOrder) bool {
		n++
		return false
	})
	return n
}

func (k *Keeper) mintOrderId(ctx sdk.Context) types.OrderId {
	id := k.getUint64(ctx, NextOrderIdKey) + 1
	k.setUint64(ctx, NextOrderIdKey, id)
	return types.OrderId(id)
}

// triggeredLimitOrder returns a limit order crossed by the given price, or
// nil when none is.
func (k *Keeper) triggeredLimitOrder(ctx sdk.Context, price math.LegacyDec) *types.LimitOrder {
	id := k.orderIndex(ctx).triggered(price)
	if id == nil {
		return nil
	}
	return k.GetLimitOrder(ctx, *id)
}
