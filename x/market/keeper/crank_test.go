package keeper

import (
	"strings"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/openalpha/perp-market/x/market/types"
)

func TestCrankWaitsForQualifyingPrice(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)

	// No price at all: nothing to do.
	if work := k.NextCrankWork(ctx); !work.Completed {
		t.Fatalf("expected completed with no price, got %s", work.Kind())
	}

	// A price older than the item's enqueue time does not unblock it.
	appendTestPrice(t, k, ctx, "100")
	later := advanceTime(ctx, 10*time.Second)
	mustEnqueue(t, k, later, testAddr(1), openItem("100", "5"))

	if work := k.NextCrankWork(later); !work.Completed {
		t.Fatalf("expected completed while price predates item, got %s", work.Kind())
	}
	kinds, err := k.Crank(later, testAddr(1), 0, "")
	if err != nil {
		t.Fatalf("crank: %v", err)
	}
	if len(kinds) != 0 {
		t.Errorf("expected no work processed, got %v", kinds)
	}
	if item := k.GetDeferredExec(later, 1); !item.Status.IsPending() {
		t.Errorf("item must stay pending, got %s", item.Status)
	}

	// A fresh price at or after the enqueue time unblocks it.
	appendTestPrice(t, k, later, "100")
	work := k.NextCrankWork(later)
	if work.DeferredExec == nil {
		t.Fatalf("expected deferred exec work, got %s", work.Kind())
	}
}

func TestCrankRepeatedSelectionIsStable(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	mustEnqueue(t, k, ctx, testAddr(1), openItem("100", "5"))
	appendTestPrice(t, k, ctx, "100")

	first := k.NextCrankWork(ctx)
	second := k.NextCrankWork(ctx)
	if first.Kind() != second.Kind() {
		t.Fatalf("selection changed without processing: %s then %s", first.Kind(), second.Kind())
	}
	if first.DeferredExec == nil || second.DeferredExec == nil ||
		first.DeferredExec.DeferredExecId != second.DeferredExec.DeferredExecId {
		t.Error("expected the same deferred exec on both reads")
	}
}

func TestStalePriceBlocksCrank(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	appendTestPrice(t, k, ctx, "100")
	mustEnqueue(t, k, ctx, testAddr(1), openItem("100", "5"))

	// Past the staleness window the price no longer qualifies.
	stale := advanceTime(ctx, 301*time.Second)
	if work := k.NextCrankWork(stale); !work.Completed {
		t.Fatalf("expected completed on stale price, got %s", work.Kind())
	}
}

func TestCrankExecutesOpenPosition(t *testing.T) {
	k, ctx, _, liquidity := setupKeeper(t)
	owner := testAddr(1)
	id := mustEnqueue(t, k, ctx, owner, openItem("100", "10"))
	appendTestPrice(t, k, ctx, "100")

	kinds, err := k.Crank(ctx, testAddr(9), 0, "")
	if err != nil {
		t.Fatalf("crank: %v", err)
	}
	if len(kinds) != 1 || kinds[0] != "deferred_exec" {
		t.Fatalf("expected [deferred_exec], got %v", kinds)
	}

	item := k.GetDeferredExec(ctx, id)
	if item.Status.Success == nil {
		t.Fatalf("expected success, got %s", item.Status)
	}
	posId := item.Status.Success.Target.Position
	if posId == nil {
		t.Fatal("expected a position target")
	}

	pos := k.GetPosition(ctx, *posId)
	if pos == nil {
		t.Fatal("position not stored")
	}
	if !pos.NotionalSize.Equal(math.LegacyNewDec(1000)) {
		t.Errorf("expected notional 1000, got %s", pos.NotionalSize)
	}
	if !pos.EntryPrice.Equal(math.LegacyNewDec(100)) {
		t.Errorf("expected entry price 100, got %s", pos.EntryPrice)
	}
	// Counter collateral at the default 1.0 max gains ratio.
	if !liquidity.locked.Equal(math.LegacyNewDec(1000)) {
		t.Errorf("expected 1000 locked, got %s", liquidity.locked)
	}
	// Trading fee of 0.1% on notional accrues to the pool (plus a small
	// delta neutrality fee).
	if liquidity.absorbed.LT(math.LegacyOneDec()) {
		t.Errorf("expected at least the 1.0 trading fee absorbed, got %s", liquidity.absorbed)
	}
	if depth := k.PendingDeferredCount(ctx); depth != 0 {
		t.Errorf("expected empty queue, got depth %d", depth)
	}
	if last := k.LastProcessedDeferredExecId(ctx); last == nil || *last != id {
		t.Errorf("expected last processed %s, got %v", id, last)
	}
}

func TestCrankProcessesFifo(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	owner := testAddr(1)
	first := mustEnqueue(t, k, ctx, owner, openItem("100", "5"))
	second := mustEnqueue(t, k, ctx, owner, openItem("200", "5"))
	appendTestPrice(t, k, ctx, "100")

	kinds, err := k.Crank(ctx, owner, 2, "")
	if err != nil {
		t.Fatalf("crank: %v", err)
	}
	if len(kinds) != 2 {
		t.Fatalf("expected 2 work units, got %v", kinds)
	}

	a := k.GetDeferredExec(ctx, first)
	b := k.GetDeferredExec(ctx, second)
	if a.Status.Success == nil || b.Status.Success == nil {
		t.Fatalf("expected both executed, got %s and %s", a.Status, b.Status)
	}
	// FIFO: the first item produced the lower position ID.
	if *a.Status.Success.Target.Position >= *b.Status.Success.Target.Position {
		t.Errorf("expected position ids in queue order, got %s then %s",
			a.Status.Success.Target.Position, b.Status.Success.Target.Position)
	}
}

func TestFailedExecRefundsAndKeepsBatchGoing(t *testing.T) {
	k, ctx, bank, _ := setupKeeper(t)
	owner := testAddr(1)

	// Slippage assertion pinned below the execution price: the open must
	// fail at crank time.
	bad := types.DeferredExecItem{OpenPosition: &types.OpenPositionItem{
		Amount:    math.LegacyNewDec(100),
		Leverage:  math.LegacyNewDec(5),
		Direction: types.DirectionLong,
		SlippageAssert: &types.SlippageAssert{
			Price:     math.LegacyNewDec(90),
			Tolerance: math.LegacyNewDecWithPrec(1, 2),
		},
	}}
	badId := mustEnqueue(t, k, ctx, owner, bad)
	goodId := mustEnqueue(t, k, ctx, owner, openItem("100", "5"))
	appendTestPrice(t, k, ctx, "100")

	kinds, err := k.Crank(ctx, owner, 2, "")
	if err != nil {
		t.Fatalf("crank: %v", err)
	}
	if len(kinds) != 2 {
		t.Fatalf("one failure must not abort the batch, got %v", kinds)
	}

	failed := k.GetDeferredExec(ctx, badId)
	if failed.Status.Failure == nil {
		t.Fatalf("expected failure, got %s", failed.Status)
	}
	if !strings.Contains(failed.Status.Failure.Reason, "slippage") {
		t.Errorf("expected slippage reason, got %q", failed.Status.Failure.Reason)
	}
	if failed.Status.Failure.CrankPrice == nil {
		t.Error("expected the crank price recorded on the failure")
	}
	// The escrowed collateral came back; the crank fee did not.
	refunded, ok := bank.paid[owner]
	if !ok || refunded.LT(math.NewInt(100)) {
		t.Errorf("expected at least the 100 escrow refunded, got %v", refunded)
	}

	succeeded := k.GetDeferredExec(ctx, goodId)
	if succeeded.Status.Success == nil {
		t.Fatalf("expected the second item to succeed, got %s", succeeded.Status)
	}
}

func TestLiquidationOutranksDeferredExecs(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	owner := testAddr(1)
	posId := openTestPosition(t, k, ctx, owner, "100", "10")

	// Queue a user action, then crash the price far enough to liquidate.
	ctx = advanceTime(ctx, 5*time.Second)
	pendingId := mustEnqueue(t, k, ctx, owner, maxGainsItem(posId, "0.5"))
	appendTestPrice(t, k, ctx, "85")

	kinds, err := k.Crank(ctx, owner, 1, "")
	if err != nil {
		t.Fatalf("crank: %v", err)
	}
	if len(kinds) != 1 || kinds[0] != "liquidation" {
		t.Fatalf("expected [liquidation], got %v", kinds)
	}
	if k.GetPosition(ctx, posId) != nil {
		t.Error("liquidated position must be removed")
	}
	if item := k.GetDeferredExec(ctx, pendingId); !item.Status.IsPending() {
		t.Errorf("queued action must still be pending, got %s", item.Status)
	}

	// The next crank reaches the deferred item, which now fails cleanly:
	// its target is gone.
	kinds, err = k.Crank(ctx, owner, 1, "")
	if err != nil {
		t.Fatalf("second crank: %v", err)
	}
	if len(kinds) != 1 || kinds[0] != "deferred_exec" {
		t.Fatalf("expected [deferred_exec], got %v", kinds)
	}
	item := k.GetDeferredExec(ctx, pendingId)
	if item.Status.Failure == nil {
		t.Fatalf("expected failure after target vanished, got %s", item.Status)
	}
}

func TestCloseAllDrainsPositionsThenResetsLp(t *testing.T) {
	k, ctx, _, liquidity := setupKeeper(t)
	owner := testAddr(1)
	mustEnqueue(t, k, ctx, owner, openItem("100", "5"))
	mustEnqueue(t, k, ctx, owner, openItem("100", "5"))
	appendTestPrice(t, k, ctx, "100")
	if _, err := k.Crank(ctx, owner, 2, ""); err != nil {
		t.Fatalf("setup crank: %v", err)
	}
	if n := k.OpenPositionCount(ctx); n != 2 {
		t.Fatalf("expected 2 open positions, got %d", n)
	}

	if err := k.TriggerCloseAll(ctx, testAuthority); err != nil {
		t.Fatalf("trigger close all: %v", err)
	}

	work := k.NextCrankWork(ctx)
	if work.CloseAllPositions == nil {
		t.Fatalf("expected close-all work, got %s", work.Kind())
	}
	// Oldest first.
	if work.CloseAllPositions.Position != 1 {
		t.Errorf("expected position 1 first, got %s", work.CloseAllPositions.Position)
	}

	kinds, err := k.Crank(ctx, owner, 10, "")
	if err != nil {
		t.Fatalf("crank: %v", err)
	}
	for _, kind := range kinds[:2] {
		if kind != "close_all_positions" {
			t.Errorf("expected close_all_positions, got %s", kind)
		}
	}
	if n := k.OpenPositionCount(ctx); n != 0 {
		t.Errorf("expected all positions closed, got %d", n)
	}

	// Once the pool reports drained, the LP reset runs exactly once.
	liquidity.drained = true
	kinds, err = k.Crank(ctx, owner, 10, "")
	if err != nil {
		t.Fatalf("reset crank: %v", err)
	}
	if len(kinds) != 1 || kinds[0] != "reset_lp_balances" {
		t.Fatalf("expected [reset_lp_balances], got %v", kinds)
	}
	if liquidity.resets != 1 {
		t.Errorf("expected 1 reset, got %d", liquidity.resets)
	}
	if work := k.NextCrankWork(ctx); work.ResetLpBalances != nil {
		t.Error("reset must not be selected twice")
	}
}

func TestCrankPaysRewardsFromFeePool(t *testing.T) {
	k, ctx, bank, _ := setupKeeper(t)
	owner := testAddr(1)
	rewards := testAddr(7)
	appendTestPrice(t, k, ctx, "100")
	mustEnqueue(t, k, ctx, owner, openItem("100", "5"))

	poolBefore := k.CrankRewards(ctx)
	if !poolBefore.IsPositive() {
		t.Fatal("expected a funded rewards pool after enqueue")
	}

	later := advanceTime(ctx, time.Second)
	appendTestPrice(t, k, later, "100")
	if _, err := k.Crank(later, owner, 1, rewards); err != nil {
		t.Fatalf("crank: %v", err)
	}

	poolAfter := k.CrankRewards(later)
	if !poolAfter.LT(poolBefore) {
		t.Errorf("expected rewards pool to shrink, %s -> %s", poolBefore, poolAfter)
	}
	// $0.008 per exec at a 1:1 price.
	want := poolBefore.Sub(math.LegacyNewDecWithPrec(8, 3))
	if !poolAfter.Equal(want) {
		t.Errorf("expected pool %s, got %s", want, poolAfter)
	}
	if _, ok := bank.paid[rewards]; !ok {
		t.Error("expected a payout to the rewards address")
	}
}

func TestCrankCompletedStampsTimestamp(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	appendTestPrice(t, k, ctx, "100")

	if ts := k.LastCrankCompleted(ctx); ts != nil {
		t.Fatalf("expected no completion yet, got %s", ts)
	}
	if _, err := k.Crank(ctx, testAddr(1), 3, ""); err != nil {
		t.Fatalf("crank: %v", err)
	}
	ts := k.LastCrankCompleted(ctx)
	if ts == nil {
		t.Fatal("expected a completion timestamp")
	}
	if *ts != types.NewTimestampFromTime(ctx.BlockTime()) {
		t.Errorf("expected completion at block time, got %s", ts)
	}
}
