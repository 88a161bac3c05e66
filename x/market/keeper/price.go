package keeper

import (
	"encoding/json"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/perp-market/x/market/types"
)

// The price store is an append-only sequence of price points keyed by
// publish time. The engine never computes prices itself; it only consumes
// points supplied by the oracle feed composer.

// AppendPricePoint stores a new price point. Points must arrive in strictly
// increasing timestamp order.
func (k *Keeper) AppendPricePoint(ctx sdk.Context, point types.PricePoint) error {
	if !point.PriceBase.IsPositive() || !point.PriceUsd.IsPositive() {
		return types.ErrInvalidPrice
	}
	if latest := k.LatestPricePoint(ctx); latest != nil && point.Timestamp <= latest.Timestamp {
		return types.ErrPriceAlreadyExists.Wrapf("have %s, got %s", latest.Timestamp, point.Timestamp)
	}
	if point.PriceNotional.IsNil() || point.PriceNotional.IsZero() {
		point.PriceNotional = point.PriceBase
	}
	store := k.GetStore(ctx)
	bz, err := json.Marshal(point)
	if err != nil {
		return err
	}
	store.Set(u64Key(PricePointKeyPrefix, uint64(point.Timestamp)), bz)

	ctx.EventManager().EmitEvent(sdk.NewEvent(types.EventTypePriceUpdate,
		sdk.NewAttribute(types.AttributeKeyPrice, point.PriceBase.String()),
		sdk.NewAttribute(types.AttributeKeyTimestamp, point.Timestamp.String()),
	))
	return nil
}

// LatestPricePoint returns the most recent price point, or nil when no price
// has been published yet.
func (k *Keeper) LatestPricePoint(ctx sdk.Context) *types.PricePoint {
	store := k.GetStore(ctx)
	iterator := storetypes.KVStoreReversePrefixIterator(store, PricePointKeyPrefix)
	defer iterator.Close()
	if !iterator.Valid() {
		return nil
	}
	var point types.PricePoint
	if err := json.Unmarshal(iterator.Value(), &point); err != nil {
		return nil
	}
	return &point
}

// PricePointAtOrAfter returns the earliest price point with timestamp >= ts,
// or nil when none exists yet. This answers "is there a price that makes a
// deferred item created at ts executable".
func (k *Keeper) PricePointAtOrAfter(ctx sdk.Context, ts types.Timestamp) *types.PricePoint {
	store := k.GetStore(ctx)
	start := u64Key(PricePointKeyPrefix, uint64(ts))
	end := storetypes.PrefixEndBytes(PricePointKeyPrefix)
	iterator := store.Iterator(start, end)
	defer iterator.Close()
	if !iterator.Valid() {
		return nil
	}
	var point types.PricePoint
	if err := json.Unmarshal(iterator.Value(), &point); err != nil {
		return nil
	}
	return &point
}

// SpotPriceHistory returns up to limit price points ending at or before
// startBefore (zero means newest), newest first.
func (k *Keeper) SpotPriceHistory(ctx sdk.Context, startBefore types.Timestamp, limit int) []types.PricePoint {
	if limit <= 0 {
		limit = 20
	}
	store := k.GetStore(ctx)
	end := storetypes.PrefixEndBytes(PricePointKeyPrefix)
	if startBefore > 0 {
		end = u64Key(PricePointKeyPrefix, uint64(startBefore))
	}
	iterator := store.ReverseIterator(PricePointKeyPrefix, end)
	defer iterator.Close()

	var points []types.PricePoint
	for ; iterator.Valid() && len(points) < limit; iterator.Next() {
		var point types.PricePoint
		if err := json.Unmarshal(iterator.Value(), &point); err != nil {
			continue
		}
		points = append(points, point)
	}
	return points
}

// priceIsStale reports whether the latest price is too old to safely execute
// against, per the configured staleness window.
func (k *Keeper) priceIsStale(ctx sdk.Context, point *types.PricePoint) bool {
	cfg := k.GetConfig(ctx)
	if cfg.PriceUpdateTooOldSeconds == 0 {
		return false
	}
	now := types.NewTimestampFromTime(ctx.BlockTime())
	cutoff := point.Timestamp.PlusSeconds(uint64(cfg.PriceUpdateTooOldSeconds))
	return now > cutoff
}

// UsdToCollateralAtLatest converts a USD amount to collateral at the latest
// price, or returns zero when no price exists. Used for crank fee math at
// enqueue time, where a missing price simply charges the flat minimum.
func (k *Keeper) UsdToCollateralAtLatest(ctx sdk.Context, usd math.LegacyDec) math.LegacyDec {
	point := k.LatestPricePoint(ctx)
	if point == nil {
		return usd
	}
	return point.UsdToCollateral(usd)
}
