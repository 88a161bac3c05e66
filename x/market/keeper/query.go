package keeper

import (
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/perp-market/x/market/types"
)

// Status assembles the market-wide status snapshot. Everything here is
// derivable from store state; the response exists so offchain crankers can
// poll one endpoint to decide whether cranking is worthwhile.
func (k *Keeper) Status(ctx sdk.Context) types.StatusResp {
	resp := types.StatusResp{
		DeferredExecutionItems: k.PendingDeferredCount(ctx),
		CrankRewards:           k.CrankRewards(ctx),
		OpenPositions:          k.OpenPositionCount(ctx),
		OpenLimitOrders:        k.OpenLimitOrderCount(ctx),
		WoundDown:              k.CloseAllTriggered(ctx),
		LatestPrice:            k.LatestPricePoint(ctx),
		LastCrankCompleted:     k.LastCrankCompleted(ctx),
	}

	if work := k.NextCrankWork(ctx); !work.Completed {
		resp.NextCrank = &work
	}
	if next := k.NextPendingDeferredExec(ctx); next != nil {
		ts := next.Created
		resp.NextDeferredExecution = &ts
	}
	if newest := k.NewestPendingDeferredExec(ctx); newest != nil {
		ts := newest.Created
		resp.NewestDeferredExecution = &ts
	}
	if last := k.getUint64(ctx, LastProcessedIdKey); last > 0 {
		id := types.DeferredExecId(last)
		resp.LastProcessedDeferredExecId = &id
	}
	return resp
}

// QueryDeferredExec returns a single item by ID, wrapped for the query API.
// A missing ID is not an error; Found is simply nil.
func (k *Keeper) QueryDeferredExec(ctx sdk.Context, id types.DeferredExecId) types.GetDeferredExecResp {
	return types.GetDeferredExecResp{Found: k.GetDeferredExec(ctx, id)}
}
