package types

import (
	"testing"

	"cosmossdk.io/math"
)

func testPosition(direction DirectionToBase) *Position {
	return &Position{
		Id:                1,
		Direction:         direction,
		ActiveCollateral:  math.LegacyNewDec(100),
		CounterCollateral: math.LegacyNewDec(1000),
		NotionalSize:      math.LegacyNewDec(1000),
		Leverage:          math.LegacyNewDec(10),
		EntryPrice:        math.LegacyNewDec(100),
	}
}

func TestUnrealizedPnl(t *testing.T) {
	long := testPosition(DirectionLong)
	// Base exposure 10: a 5 point move is 50 collateral.
	if pnl := long.UnrealizedPnl(math.LegacyNewDec(105)); !pnl.Equal(math.LegacyNewDec(50)) {
		t.Errorf("expected long pnl 50, got %s", pnl)
	}
	if pnl := long.UnrealizedPnl(math.LegacyNewDec(95)); !pnl.Equal(math.LegacyNewDec(-50)) {
		t.Errorf("expected long pnl -50, got %s", pnl)
	}

	short := testPosition(DirectionShort)
	if pnl := short.UnrealizedPnl(math.LegacyNewDec(95)); !pnl.Equal(math.LegacyNewDec(50)) {
		t.Errorf("expected short pnl 50, got %s", pnl)
	}
	if pnl := short.UnrealizedPnl(math.LegacyNewDec(105)); !pnl.Equal(math.LegacyNewDec(-50)) {
		t.Errorf("expected short pnl -50, got %s", pnl)
	}
}

func TestLiquidationReasonPrecedence(t *testing.T) {
	ratio := math.LegacyMustNewDecFromStr("0.005") // margin 5 on notional 1000

	// Deep enough under water, liquidation wins even with a stop loss set
	// at a higher price.
	pos := testPosition(DirectionLong)
	sl := math.LegacyNewDec(99)
	pos.StopLossOverride = &sl
	reason := pos.LiquidationReasonAt(math.LegacyNewDec(90), ratio)
	if reason == nil || *reason != LiquidationReasonLiquidated {
		t.Errorf("expected liquidated, got %v", reason)
	}

	// Between the stop loss and the liquidation point the stop loss fires.
	reason = pos.LiquidationReasonAt(math.LegacyNewDec(98), ratio)
	if reason == nil || *reason != LiquidationReasonStopLoss {
		t.Errorf("expected stop loss, got %v", reason)
	}

	// Above the stop loss nothing fires.
	if reason := pos.LiquidationReasonAt(math.LegacyNewDec(100), ratio); reason != nil {
		t.Errorf("expected no trigger, got %v", *reason)
	}
}

func TestLiquidationMaxGains(t *testing.T) {
	ratio := math.LegacyMustNewDecFromStr("0.005")
	pos := testPosition(DirectionLong)
	// Counter collateral 1000 is exhausted after a 100 point move.
	reason := pos.LiquidationReasonAt(math.LegacyNewDec(200), ratio)
	if reason == nil || *reason != LiquidationReasonMaxGains {
		t.Errorf("expected max gains, got %v", reason)
	}
}

func TestLiquidationTakeProfit(t *testing.T) {
	ratio := math.LegacyMustNewDecFromStr("0.005")
	pos := testPosition(DirectionShort)
	tp := math.LegacyNewDec(95)
	pos.TakeProfitOverride = &tp
	reason := pos.LiquidationReasonAt(math.LegacyNewDec(94), ratio)
	if reason == nil || *reason != LiquidationReasonTakeProfit {
		t.Errorf("expected take profit, got %v", reason)
	}
	if reason := pos.LiquidationReasonAt(math.LegacyNewDec(96), ratio); reason != nil {
		t.Errorf("expected no trigger above the take profit, got %v", *reason)
	}
}

func TestSlippageAssertCheck(t *testing.T) {
	assert := SlippageAssert{
		Price:     math.LegacyNewDec(100),
		Tolerance: math.LegacyMustNewDecFromStr("0.01"),
	}

	// Longs tolerate up to 101.
	if err := assert.Check(DirectionLong, math.LegacyNewDec(101)); err != nil {
		t.Errorf("expected 101 within long tolerance, got %v", err)
	}
	if err := assert.Check(DirectionLong, math.LegacyMustNewDecFromStr("101.01")); err == nil {
		t.Error("expected a long to fail above tolerance")
	}
	// Longs never fail on favorable moves down.
	if err := assert.Check(DirectionLong, math.LegacyNewDec(50)); err != nil {
		t.Errorf("expected a favorable move to pass, got %v", err)
	}

	// Shorts tolerate down to 99.
	if err := assert.Check(DirectionShort, math.LegacyNewDec(99)); err != nil {
		t.Errorf("expected 99 within short tolerance, got %v", err)
	}
	if err := assert.Check(DirectionShort, math.LegacyMustNewDecFromStr("98.99")); err == nil {
		t.Error("expected a short to fail below tolerance")
	}

	bad := SlippageAssert{Tolerance: math.LegacyMustNewDecFromStr("0.01")}
	if err := bad.Check(DirectionLong, math.LegacyNewDec(100)); err == nil {
		t.Error("expected an unset assertion price to be rejected")
	}
}
