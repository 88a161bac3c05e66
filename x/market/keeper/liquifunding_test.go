package keeper

import (
	"testing"
	"time"

	"github.com/openalpha/perp-market/x/market/types"
)

func TestLiquifundingNotDueBeforeDelay(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	owner := testAddr(1)
	openTestPosition(t, k, ctx, owner, "100", "10")

	now := types.NewTimestampFromTime(ctx.BlockTime())
	if due := k.nextLiquifundingDue(ctx, now); due != nil {
		t.Errorf("expected nothing due right after opening, got %s", *due)
	}
}

func TestNextLiquifundingDuePicksOldest(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	first := openTestPosition(t, k, ctx, testAddr(1), "100", "10")
	ctx = advanceTime(ctx, 30*time.Second)
	openTestPosition(t, k, ctx, testAddr(2), "100", "10")

	far := types.NewTimestampFromTime(ctx.BlockTime()).PlusSeconds(2 * 3600)
	due := k.nextLiquifundingDue(ctx, far)
	if due == nil {
		t.Fatal("expected a due position")
	}
	if *due != first {
		t.Errorf("expected the oldest position %s first, got %s", first, *due)
	}
}

func TestCrankLiquifundsDuePosition(t *testing.T) {
	k, ctx, _, liquidity := setupKeeper(t)
	owner := testAddr(1)
	posId := openTestPosition(t, k, ctx, owner, "100", "10")
	before := k.GetPosition(ctx, posId)
	absorbedBefore := liquidity.absorbed

	ctx = advanceTime(ctx, time.Hour)
	appendTestPrice(t, k, ctx, "100")
	kinds, err := k.Crank(ctx, owner, 1, "")
	if err != nil {
		t.Fatalf("crank: %v", err)
	}
	if len(kinds) != 1 || kinds[0] != "liquifunding" {
		t.Fatalf("expected [liquifunding], got %v", kinds)
	}

	after := k.GetPosition(ctx, posId)
	if !after.ActiveCollateral.LT(before.ActiveCollateral) {
		t.Errorf("expected fees charged, collateral %s -> %s", before.ActiveCollateral, after.ActiveCollateral)
	}
	if !after.BorrowFee.IsPositive() {
		t.Errorf("expected a positive borrow fee, got %s", after.BorrowFee)
	}
	// A lone long pays funding at the capped rate.
	if !after.FundingFee.IsPositive() {
		t.Errorf("expected the long to pay funding, got %s", after.FundingFee)
	}
	if !liquidity.absorbed.GT(absorbedBefore) {
		t.Error("expected the charged fees absorbed into the pool")
	}
	if after.NextLiquifunding <= types.NewTimestampFromTime(ctx.BlockTime()) {
		t.Errorf("expected a future reschedule, got %s", after.NextLiquifunding)
	}
	if after.LiquifundedAt != types.NewTimestampFromTime(ctx.BlockTime()) {
		t.Errorf("expected liquifunded-at stamped to now, got %s", after.LiquifundedAt)
	}
}

func TestLiquifundingReschedulesNotRepeats(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	owner := testAddr(1)
	openTestPosition(t, k, ctx, owner, "100", "10")

	ctx = advanceTime(ctx, time.Hour)
	appendTestPrice(t, k, ctx, "100")
	if _, err := k.Crank(ctx, owner, 1, ""); err != nil {
		t.Fatalf("crank: %v", err)
	}

	// Immediately after settling, the same position is not due again.
	ctx = advanceTime(ctx, time.Second)
	appendTestPrice(t, k, ctx, "100")
	kinds, err := k.Crank(ctx, owner, 1, "")
	if err != nil {
		t.Fatalf("second crank: %v", err)
	}
	if len(kinds) != 1 || kinds[0] != "completed" {
		t.Fatalf("expected [completed], got %v", kinds)
	}
}

func TestClosingUnschedulesLiquifunding(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	owner := testAddr(1)
	posId := openTestPosition(t, k, ctx, owner, "100", "10")

	ctx = advanceTime(ctx, time.Second)
	mustEnqueue(t, k, ctx, owner, closeItem(posId))
	appendTestPrice(t, k, ctx, "100")
	if _, err := k.Crank(ctx, owner, 1, ""); err != nil {
		t.Fatalf("crank: %v", err)
	}

	far := types.NewTimestampFromTime(ctx.BlockTime()).PlusSeconds(24 * 3600)
	if due := k.nextLiquifundingDue(ctx, far); due != nil {
		t.Errorf("expected no scheduled liquifunding after close, got %s", *due)
	}
}
