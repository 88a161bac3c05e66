package keeper

import (
	"testing"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/perp-market/x/market/types"
)

// placeTestLimitOrder drives a limit order placement through the queue and
// crank, returning the resulting order ID.
func placeTestLimitOrder(t *testing.T, k *Keeper, ctx sdk.Context, owner, trigger string) types.OrderId {
	t.Helper()
	placeId := mustEnqueue(t, k, ctx, owner, types.DeferredExecItem{
		PlaceLimitOrder: &types.PlaceLimitOrderItem{
			TriggerPrice: dec(trigger),
			Amount:       dec("100"),
			Leverage:     dec("5"),
			Direction:    types.DirectionLong,
		},
	})
	later := advanceTime(ctx, time.Second)
	appendTestPrice(t, k, later, "100")
	if _, err := k.Crank(later, owner, 1, ""); err != nil {
		t.Fatalf("crank: %v", err)
	}
	placed := k.GetDeferredExec(later, placeId)
	if placed.Status.Success == nil {
		t.Fatalf("expected placement success, got %s", placed.Status)
	}
	if placed.Status.Success.Target.Order == nil {
		t.Fatalf("expected order target, got %s", placed.Status)
	}
	return *placed.Status.Success.Target.Order
}

func TestOrderSelectionIgnoresDiscardedBranchWrites(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	owner := testAddr(1)
	appendTestPrice(t, k, ctx, "100")
	orderId := placeTestLimitOrder(t, k, ctx, owner, "95")

	// Write an order on a branched context and discard the branch. The
	// selector must never see it.
	branch, _ := ctx.CacheContext()
	k.SetLimitOrder(branch, &types.LimitOrder{
		OrderId:            types.OrderId(999),
		Owner:              owner,
		TriggerPrice:       dec("99"),
		Collateral:         dec("100"),
		Leverage:           dec("5"),
		Direction:          types.DirectionLong,
		CrankFeeCollateral: dec("0"),
		CrankFeeUsd:        dec("0"),
	})

	later := advanceTime(ctx, 2*time.Second)
	appendTestPrice(t, k, later, "90")
	work := k.NextCrankWork(later)
	if work.LimitOrder == nil {
		t.Fatalf("expected limit_order work, got %s", work.Kind())
	}
	if work.LimitOrder.OrderId != orderId {
		t.Errorf("expected order %s selected, got %s", orderId, work.LimitOrder.OrderId)
	}
}

func TestOrderSelectionIgnoresDiscardedBranchDeletes(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	owner := testAddr(1)
	appendTestPrice(t, k, ctx, "100")
	orderId := placeTestLimitOrder(t, k, ctx, owner, "95")

	// Delete the order on a branched context and discard the branch. The
	// committed order must still trigger.
	branch, _ := ctx.CacheContext()
	order := k.GetLimitOrder(branch, orderId)
	if order == nil {
		t.Fatalf("expected order %s in branch", orderId)
	}
	k.deleteLimitOrder(branch, order)

	later := advanceTime(ctx, 2*time.Second)
	appendTestPrice(t, k, later, "90")
	work := k.NextCrankWork(later)
	if work.LimitOrder == nil {
		t.Fatalf("expected limit_order work, got %s", work.Kind())
	}
	if work.LimitOrder.OrderId != orderId {
		t.Errorf("expected order %s selected, got %s", orderId, work.LimitOrder.OrderId)
	}

	kinds, err := k.Crank(later, owner, 1, "")
	if err != nil {
		t.Fatalf("crank: %v", err)
	}
	if len(kinds) != 1 || kinds[0] != "limit_order" {
		t.Fatalf("expected [limit_order], got %v", kinds)
	}
	if k.GetLimitOrder(later, orderId) != nil {
		t.Error("expected triggered order removed")
	}
}
