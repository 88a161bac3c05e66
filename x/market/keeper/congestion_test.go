package keeper

import (
	"errors"
	"testing"

	"cosmossdk.io/math"
	"github.com/openalpha/perp-market/x/market/types"
)

func TestSurchargeIsStepFunctionOfDepth(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	step := k.GetConfig(ctx).CrankFeeSurcharge

	cases := []struct {
		depth uint32
		steps int64
	}{
		{0, 0},
		{9, 0},
		{10, 1},
		{19, 1},
		{20, 2},
		{95, 9},
	}
	for _, tc := range cases {
		got := k.CrankFeeSurchargeUsd(ctx, tc.depth)
		want := step.MulInt64(tc.steps)
		if !got.Equal(want) {
			t.Errorf("depth %d: expected surcharge %s, got %s", tc.depth, want, got)
		}
	}
}

func TestEnqueueAddsSurchargeUnderCongestion(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	appendTestPrice(t, k, ctx, "100")
	owner := testAddr(1)

	// Fill the queue to depth 10 with updates against distinct positions.
	for i := uint64(1); i <= 10; i++ {
		mustEnqueue(t, k, ctx, owner, maxGainsItem(types.PositionId(i), "0.5"))
	}

	_, fee, err := k.EnqueueDeferredExec(ctx, owner, maxGainsItem(types.PositionId(11), "0.5"))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	// Flat $0.01 plus one $0.01 surcharge step at a 1:1 price.
	want := math.LegacyNewDecWithPrec(2, 2)
	if !fee.Equal(want) {
		t.Errorf("expected fee %s at depth 10, got %s", want, fee)
	}
}

func TestQueueCeilingRejectsByReason(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	cfg := k.GetConfig(ctx)
	cfg.QueueCeilings = map[types.CongestionReason]uint32{
		types.CongestionReasonOpenMarket: 2,
	}
	if err := k.SetConfig(ctx, cfg); err != nil {
		t.Fatalf("set config: %v", err)
	}
	owner := testAddr(1)

	mustEnqueue(t, k, ctx, owner, openItem("100", "5"))
	mustEnqueue(t, k, ctx, owner, openItem("100", "5"))

	_, _, err := k.EnqueueDeferredExec(ctx, owner, openItem("100", "5"))
	if !errors.Is(err, types.ErrCongestion) {
		t.Fatalf("expected ErrCongestion, got %v", err)
	}

	// Other categories are not throttled by the open-market ceiling.
	mustEnqueue(t, k, ctx, owner, maxGainsItem(1, "0.5"))
}

func TestCeilingFreesUpAfterExecution(t *testing.T) {
	k, ctx, _, liquidity := setupKeeper(t)
	_ = liquidity
	cfg := k.GetConfig(ctx)
	cfg.QueueCeilings = map[types.CongestionReason]uint32{
		types.CongestionReasonOpenMarket: 1,
	}
	if err := k.SetConfig(ctx, cfg); err != nil {
		t.Fatalf("set config: %v", err)
	}
	owner := testAddr(1)

	mustEnqueue(t, k, ctx, owner, openItem("100", "5"))
	if _, _, err := k.EnqueueDeferredExec(ctx, owner, openItem("100", "5")); !errors.Is(err, types.ErrCongestion) {
		t.Fatalf("expected ErrCongestion, got %v", err)
	}

	appendTestPrice(t, k, ctx, "100")
	if _, err := k.Crank(ctx, owner, 1, ""); err != nil {
		t.Fatalf("crank: %v", err)
	}

	mustEnqueue(t, k, ctx, owner, openItem("100", "5"))
}
