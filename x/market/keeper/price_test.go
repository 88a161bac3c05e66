package keeper

import (
	"errors"
	"testing"
	"time"

	"github.com/openalpha/perp-market/x/market/types"
)

func TestAppendPricePointRejectsNonIncreasing(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	appendTestPrice(t, k, ctx, "100")

	// Same timestamp.
	point := types.PricePoint{
		PriceBase: dec("101"),
		PriceUsd:  dec("1"),
		Timestamp: types.NewTimestampFromTime(ctx.BlockTime()),
	}
	if err := k.AppendPricePoint(ctx, point); !errors.Is(err, types.ErrPriceAlreadyExists) {
		t.Errorf("expected ErrPriceAlreadyExists, got %v", err)
	}

	// Earlier timestamp.
	point.Timestamp = types.NewTimestampFromTime(ctx.BlockTime().Add(-time.Second))
	if err := k.AppendPricePoint(ctx, point); !errors.Is(err, types.ErrPriceAlreadyExists) {
		t.Errorf("expected ErrPriceAlreadyExists for an older point, got %v", err)
	}

	// Strictly later is fine.
	point.Timestamp = types.NewTimestampFromTime(ctx.BlockTime().Add(time.Second))
	if err := k.AppendPricePoint(ctx, point); err != nil {
		t.Errorf("expected a later point to append, got %v", err)
	}
}

func TestAppendPricePointRejectsNonPositive(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	point := types.PricePoint{
		PriceBase: dec("0"),
		PriceUsd:  dec("1"),
		Timestamp: types.NewTimestampFromTime(ctx.BlockTime()),
	}
	if err := k.AppendPricePoint(ctx, point); !errors.Is(err, types.ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice, got %v", err)
	}
}

func TestPriceNotionalDefaultsToBase(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	point := types.PricePoint{
		PriceBase: dec("42"),
		PriceUsd:  dec("1"),
		Timestamp: types.NewTimestampFromTime(ctx.BlockTime()),
	}
	if err := k.AppendPricePoint(ctx, point); err != nil {
		t.Fatalf("append: %v", err)
	}
	latest := k.LatestPricePoint(ctx)
	if latest == nil {
		t.Fatal("expected a latest price")
	}
	if !latest.PriceNotional.Equal(dec("42")) {
		t.Errorf("expected notional price to default to 42, got %s", latest.PriceNotional)
	}
}

func TestLatestPricePoint(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	if k.LatestPricePoint(ctx) != nil {
		t.Error("expected nil before any price")
	}

	appendTestPrice(t, k, ctx, "100")
	ctx = advanceTime(ctx, time.Second)
	appendTestPrice(t, k, ctx, "105")

	latest := k.LatestPricePoint(ctx)
	if latest == nil {
		t.Fatal("expected a latest price")
	}
	if !latest.PriceBase.Equal(dec("105")) {
		t.Errorf("expected latest 105, got %s", latest.PriceBase)
	}
}

func TestPricePointAtOrAfter(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	t0 := types.NewTimestampFromTime(ctx.BlockTime())
	appendTestPrice(t, k, ctx, "100")
	ctx = advanceTime(ctx, 10*time.Second)
	t1 := types.NewTimestampFromTime(ctx.BlockTime())
	appendTestPrice(t, k, ctx, "105")

	// Exactly at the first point.
	got := k.PricePointAtOrAfter(ctx, t0)
	if got == nil || !got.PriceBase.Equal(dec("100")) {
		t.Errorf("expected the point at t0, got %v", got)
	}

	// Between the two points lands on the later one.
	got = k.PricePointAtOrAfter(ctx, t0.PlusSeconds(5))
	if got == nil || !got.PriceBase.Equal(dec("105")) {
		t.Errorf("expected the later point, got %v", got)
	}

	// Past the last point finds nothing.
	if got := k.PricePointAtOrAfter(ctx, t1.PlusSeconds(1)); got != nil {
		t.Errorf("expected nil past the newest point, got %v", got)
	}
}

func TestSpotPriceHistoryPagination(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	for i := 0; i < 5; i++ {
		appendTestPrice(t, k, ctx, []string{"100", "101", "102", "103", "104"}[i])
		ctx = advanceTime(ctx, time.Second)
	}

	page := k.SpotPriceHistory(ctx, 0, 3)
	if len(page) != 3 {
		t.Fatalf("expected 3 points, got %d", len(page))
	}
	// Newest first.
	if !page[0].PriceBase.Equal(dec("104")) || !page[2].PriceBase.Equal(dec("102")) {
		t.Errorf("expected [104 103 102], got [%s %s %s]",
			page[0].PriceBase, page[1].PriceBase, page[2].PriceBase)
	}

	// The oldest timestamp of the page is the cursor for the next one.
	rest := k.SpotPriceHistory(ctx, page[2].Timestamp, 3)
	if len(rest) != 2 {
		t.Fatalf("expected 2 remaining points, got %d", len(rest))
	}
	if !rest[0].PriceBase.Equal(dec("101")) || !rest[1].PriceBase.Equal(dec("100")) {
		t.Errorf("expected [101 100], got [%s %s]", rest[0].PriceBase, rest[1].PriceBase)
	}
}

func TestSpotPriceHistoryDefaultLimit(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)
	for i := 0; i < 25; i++ {
		appendTestPrice(t, k, ctx, "100")
		ctx = advanceTime(ctx, time.Second)
	}
	if got := len(k.SpotPriceHistory(ctx, 0, 0)); got != 20 {
		t.Errorf("expected the default limit of 20, got %d", got)
	}
}
