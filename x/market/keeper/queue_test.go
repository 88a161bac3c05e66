package keeper

import (
	"errors"
	"testing"

	"cosmossdk.io/math"
	"github.com/openalpha/perp-market/x/market/types"
)

func TestEnqueueAssignsSequentialIds(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	owner := testAddr(1)

	for want := uint64(1); want <= 5; want++ {
		id := mustEnqueue(t, k, ctx, owner, openItem("100", "5"))
		if uint64(id) != want {
			t.Errorf("expected id %d, got %s", want, id)
		}
	}
	if depth := k.PendingDeferredCount(ctx); depth != 5 {
		t.Errorf("expected queue depth 5, got %d", depth)
	}
}

func TestEnqueueChargesFlatCrankFee(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	appendTestPrice(t, k, ctx, "100")

	_, fee, err := k.EnqueueDeferredExec(ctx, testAddr(1), openItem("100", "5"))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	// $0.01 at a 1:1 collateral price, no congestion.
	want := math.LegacyNewDecWithPrec(1, 2)
	if !fee.Equal(want) {
		t.Errorf("expected fee %s, got %s", want, fee)
	}
	if !k.CrankRewards(ctx).Equal(want) {
		t.Errorf("expected crank rewards pool %s, got %s", want, k.CrankRewards(ctx))
	}
}

func TestEnqueueStampsFeeOnOpenItem(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	id := mustEnqueue(t, k, ctx, testAddr(1), openItem("100", "5"))

	stored := k.GetDeferredExec(ctx, id)
	if stored == nil {
		t.Fatal("item not stored")
	}
	if stored.Item.OpenPosition.CrankFee.IsZero() {
		t.Error("expected crank fee stamped on open item")
	}
	if !stored.Status.IsPending() {
		t.Errorf("expected pending status, got %s", stored.Status)
	}
	if stored.Owner != testAddr(1) {
		t.Errorf("expected owner %s, got %s", testAddr(1), stored.Owner)
	}
}

func TestEnqueueRejectsInvalidItem(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)

	if _, _, err := k.EnqueueDeferredExec(ctx, testAddr(1), types.DeferredExecItem{}); err == nil {
		t.Error("expected error for empty item")
	}

	two := types.DeferredExecItem{
		ClosePosition:    &types.ClosePositionItem{Id: 1},
		CancelLimitOrder: &types.CancelLimitOrderItem{OrderId: 1},
	}
	if _, _, err := k.EnqueueDeferredExec(ctx, testAddr(1), two); err == nil {
		t.Error("expected error for item with two variants")
	}
}

func TestEnqueueSingleOutstandingItemPerTarget(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	owner := testAddr(1)

	mustEnqueue(t, k, ctx, owner, closeItem(7))

	_, _, err := k.EnqueueDeferredExec(ctx, owner, closeItem(7))
	if !errors.Is(err, types.ErrPositionAlreadyClosing) {
		t.Errorf("expected ErrPositionAlreadyClosing, got %v", err)
	}

	_, _, err = k.EnqueueDeferredExec(ctx, owner, maxGainsItem(7, "0.5"))
	if !errors.Is(err, types.ErrPendingDeferredExec) {
		t.Errorf("expected ErrPendingDeferredExec, got %v", err)
	}

	// A different position is a different target.
	mustEnqueue(t, k, ctx, owner, closeItem(8))

	// Opens never conflict: no target exists yet.
	mustEnqueue(t, k, ctx, owner, openItem("100", "5"))
	mustEnqueue(t, k, ctx, owner, openItem("100", "5"))
}

func TestEnqueueCancelOrderConflict(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	owner := testAddr(1)

	cancel := types.DeferredExecItem{CancelLimitOrder: &types.CancelLimitOrderItem{OrderId: 3}}
	mustEnqueue(t, k, ctx, owner, cancel)

	_, _, err := k.EnqueueDeferredExec(ctx, owner, cancel)
	if !errors.Is(err, types.ErrOrderAlreadyCanceling) {
		t.Errorf("expected ErrOrderAlreadyCanceling, got %v", err)
	}
}

func TestEnqueueRejectedAfterWindDown(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)

	if err := k.TriggerCloseAll(ctx, testAuthority); err != nil {
		t.Fatalf("trigger close all: %v", err)
	}
	_, _, err := k.EnqueueDeferredExec(ctx, testAddr(1), openItem("100", "5"))
	if !errors.Is(err, types.ErrMarketWoundDown) {
		t.Errorf("expected ErrMarketWoundDown, got %v", err)
	}
}

func TestTriggerCloseAllRequiresAuthority(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)

	if err := k.TriggerCloseAll(ctx, testAddr(2)); !errors.Is(err, types.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if k.CloseAllTriggered(ctx) {
		t.Error("wind-down must not trigger for a non-authority sender")
	}
}

func TestGetDeferredExecMissing(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	if item := k.GetDeferredExec(ctx, 42); item != nil {
		t.Errorf("expected nil for missing id, got %+v", item)
	}
}

func TestListDeferredExecsNewestFirstWithCursor(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	owner := testAddr(1)
	other := testAddr(2)

	for i := 0; i < 5; i++ {
		mustEnqueue(t, k, ctx, owner, openItem("100", "5"))
	}
	mustEnqueue(t, k, ctx, other, openItem("100", "5"))

	page := k.ListDeferredExecs(ctx, owner, nil, 3)
	if len(page.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(page.Items))
	}
	for i, want := range []types.DeferredExecId{5, 4, 3} {
		if page.Items[i].Id != want {
			t.Errorf("item %d: expected id %s, got %s", i, want, page.Items[i].Id)
		}
	}
	if page.NextStartAfter == nil || *page.NextStartAfter != 3 {
		t.Fatalf("expected cursor 3, got %v", page.NextStartAfter)
	}

	rest := k.ListDeferredExecs(ctx, owner, page.NextStartAfter, 3)
	if len(rest.Items) != 2 {
		t.Fatalf("expected 2 remaining items, got %d", len(rest.Items))
	}
	if rest.Items[0].Id != 2 || rest.Items[1].Id != 1 {
		t.Errorf("expected ids [2 1], got [%s %s]", rest.Items[0].Id, rest.Items[1].Id)
	}
	if rest.NextStartAfter != nil {
		t.Errorf("expected no cursor on final page, got %v", rest.NextStartAfter)
	}

	// The other owner's item never leaks in.
	for _, item := range append(page.Items, rest.Items...) {
		if item.Owner != owner {
			t.Errorf("foreign item in listing: %s", item.Owner)
		}
	}
}

func TestNextPendingDeferredExecIsFifoHead(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	owner := testAddr(1)

	first := mustEnqueue(t, k, ctx, owner, openItem("100", "5"))
	mustEnqueue(t, k, ctx, owner, openItem("200", "5"))

	head := k.NextPendingDeferredExec(ctx)
	if head == nil || head.Id != first {
		t.Fatalf("expected head %s, got %+v", first, head)
	}
	if k.LastProcessedDeferredExecId(ctx) != nil {
		t.Error("nothing processed yet")
	}
}
