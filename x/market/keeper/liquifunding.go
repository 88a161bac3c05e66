package keeper

import (
	"encoding/binary"
	"time"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/perp-market/x/market/types"
)

// Liquifunding is the periodic settlement of funding and borrow fees on an
// open position. Positions are indexed by their next due time so the crank
// can find the most overdue one cheaply.

func liquifundingKey(ts types.Timestamp, id types.PositionId) []byte {
	key := make([]byte, len(LiquifundingKeyPrefix)+16)
	copy(key, LiquifundingKeyPrefix)
	binary.BigEndian.PutUint64(key[len(LiquifundingKeyPrefix):], uint64(ts))
	binary.BigEndian.PutUint64(key[len(LiquifundingKeyPrefix)+8:], uint64(id))
	return key
}

func (k *Keeper) scheduleLiquifunding(ctx sdk.Context, ts types.Timestamp, id types.PositionId) {
	k.GetStore(ctx).Set(liquifundingKey(ts, id), []byte{})
}

func (k *Keeper) unscheduleLiquifunding(ctx sdk.Context, ts types.Timestamp, id types.PositionId) {
	k.GetStore(ctx).Delete(liquifundingKey(ts, id))
}

// nextLiquifundingTime computes when a position liquifunded now is due
// again. The fuzz spreads positions out to smooth crank traffic; it is
// derived from block time so it stays deterministic.
func (k *Keeper) nextLiquifundingTime(ctx sdk.Context, from types.Timestamp) types.Timestamp {
	cfg := k.GetConfig(ctx)
	delay := uint64(cfg.LiquifundingDelaySeconds)
	if fuzz := uint64(cfg.LiquifundingDelayFuzzSeconds); fuzz > 0 {
		delay -= uint64(ctx.BlockTime().Unix()) % fuzz
	}
	return from.PlusSeconds(delay)
}

// nextLiquifundingDue returns the position with the earliest due time at or
// before asOf, or nil when nothing is due.
func (k *Keeper) nextLiquifundingDue(ctx sdk.Context, asOf types.Timestamp) *types.PositionId {
	store := k.GetStore(ctx)
	end := liquifundingKey(asOf, types.PositionId(^uint64(0)))
	iterator := store.Iterator(LiquifundingKeyPrefix, storetypes.PrefixEndBytes(end))
	defer iterator.Close()
	if !iterator.Valid() {
		return nil
	}
	key := iterator.Key()
	id := types.PositionId(bigEndianSuffix(key))
	return &id
}

// liquifund settles funding and borrow fees on one position and reschedules
// it. Fee depletion does not close the position here; the work selector
// picks up the resulting liquidation on its next pass.
func (k *Keeper) liquifund(ctx sdk.Context, pos *types.Position, price types.PricePoint) {
	cfg := k.GetConfig(ctx)
	now := types.NewTimestampFromTime(ctx.BlockTime())
	elapsed := uint64(0)
	if now > pos.LiquifundedAt {
		elapsed = uint64(now-pos.LiquifundedAt) / uint64(time.Second)
	}

	borrowFee := k.feeModels.Borrow.Fee(cfg, pos.CounterCollateral, elapsed)

	rate := k.feeModels.Funding.Rate(cfg, k.NetNotional(ctx), k.totalNotional(ctx))
	elapsedYears := math.LegacyNewDec(int64(elapsed)).QuoInt64(365 * 24 * 60 * 60)
	fundingFee := pos.NotionalSize.Mul(rate).Mul(elapsedYears)
	// Positive rate: longs pay. Short positions receive the payment.
	if pos.Direction == types.DirectionShort {
		fundingFee = fundingFee.Neg()
	}

	total := borrowFee.Add(fundingFee)
	pos.ActiveCollateral = pos.ActiveCollateral.Sub(total)
	pos.BorrowFee = pos.BorrowFee.Add(borrowFee)
	pos.FundingFee = pos.FundingFee.Add(fundingFee)
	if total.IsPositive() {
		k.liquidityKeeper.AbsorbIntoPool(ctx, total)
	} else if total.IsNegative() {
		// Net rebate, paid from the pool into the position.
		if err := k.liquidityKeeper.PayoutFromPool(ctx, total.Neg()); err != nil {
			// Pool cannot cover the rebate; forgo it rather than fail
			// the crank.
			pos.ActiveCollateral = pos.ActiveCollateral.Add(total)
			pos.FundingFee = pos.FundingFee.Sub(fundingFee)
			pos.BorrowFee = pos.BorrowFee.Sub(borrowFee)
		}
	}

	k.unscheduleLiquifunding(ctx, pos.NextLiquifunding, pos.Id)
	pos.LiquifundedAt = now
	pos.NextLiquifunding = k.nextLiquifundingTime(ctx, now)
	k.SetPosition(ctx, pos)
	k.scheduleLiquifunding(ctx, pos.NextLiquifunding, pos.Id)

	ctx.EventManager().EmitEvent(sdk.NewEvent(types.EventTypeLiquifunding,
		sdk.NewAttribute(types.AttributeKeyPositionId, pos.Id.String()),
		sdk.NewAttribute(types.AttributeKeyAmount, total.String()),
		sdk.NewAttribute(types.AttributeKeyPrice, price.PriceBase.String()),
	))
}

func (k *Keeper) totalNotional(ctx sdk.Context) math.LegacyDec {
	total := math.LegacyZeroDec()
	k.IteratePositions(ctx, func(pos *types.Position) bool {
		total = total.Add(pos.NotionalSize)
		return false
	})
	return total
}
