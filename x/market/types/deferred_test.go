package types

import (
	"encoding/json"
	"strings"
	"testing"

	"cosmossdk.io/math"
)

func TestDeferredExecItemValidate(t *testing.T) {
	var empty DeferredExecItem
	if err := empty.Validate(); err == nil {
		t.Error("expected empty item to fail validation")
	}

	one := DeferredExecItem{ClosePosition: &ClosePositionItem{Id: 1}}
	if err := one.Validate(); err != nil {
		t.Errorf("expected a single variant to validate, got %v", err)
	}

	two := DeferredExecItem{
		ClosePosition:          &ClosePositionItem{Id: 1},
		UpdatePositionLeverage: &UpdateLeverageItem{Id: 1, Leverage: math.LegacyNewDec(5)},
	}
	if err := two.Validate(); err == nil {
		t.Error("expected two variants to fail validation")
	}
}

func TestDeferredExecItemVariant(t *testing.T) {
	cases := []struct {
		item DeferredExecItem
		want string
	}{
		{DeferredExecItem{OpenPosition: &OpenPositionItem{}}, "open_position"},
		{DeferredExecItem{ClosePosition: &ClosePositionItem{}}, "close_position"},
		{DeferredExecItem{UpdatePositionMaxGains: &UpdateMaxGainsItem{}}, "update_max_gains"},
		{DeferredExecItem{PlaceLimitOrder: &PlaceLimitOrderItem{}}, "place_limit_order"},
		{DeferredExecItem{CancelLimitOrder: &CancelLimitOrderItem{}}, "cancel_limit_order"},
		{DeferredExecItem{}, "unknown"},
	}
	for _, tc := range cases {
		if got := tc.item.Variant(); got != tc.want {
			t.Errorf("expected variant %q, got %q", tc.want, got)
		}
	}
}

func TestDeferredExecItemTarget(t *testing.T) {
	open := DeferredExecItem{OpenPosition: &OpenPositionItem{}}
	if target := open.Target(); !target.DoesNotExist {
		t.Errorf("expected open to target does-not-exist, got %s", target)
	}

	closeItem := DeferredExecItem{ClosePosition: &ClosePositionItem{Id: 42}}
	target := closeItem.Target()
	if target.Position == nil || *target.Position != 42 {
		t.Errorf("expected position 42, got %s", target)
	}

	cancel := DeferredExecItem{CancelLimitOrder: &CancelLimitOrderItem{OrderId: 7}}
	target = cancel.Target()
	if target.Order == nil || *target.Order != 7 {
		t.Errorf("expected order 7, got %s", target)
	}
}

func TestDeferredExecTargetKey(t *testing.T) {
	if key := (DeferredExecTarget{DoesNotExist: true}).Key(); key != nil {
		t.Errorf("expected nil key for does-not-exist, got %q", key)
	}
	posKey := PositionTarget(1).Key()
	ordKey := OrderTarget(1).Key()
	if string(posKey) == string(ordKey) {
		t.Error("position and order targets with equal ids must not collide")
	}
}

func TestDeferredExecStatusJSON(t *testing.T) {
	pending := DeferredExecStatus{}
	bz, err := json.Marshal(pending)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(bz) != `"pending"` {
		t.Errorf("expected the bare string \"pending\", got %s", bz)
	}
	var back DeferredExecStatus
	if err := json.Unmarshal(bz, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.IsPending() {
		t.Error("expected the round-tripped status to be pending")
	}

	id := PositionId(9)
	success := DeferredExecStatus{Success: &DeferredExecSuccess{
		Target:   CompletePositionTarget(id),
		Executed: NewTimestampFromSeconds(1700000000),
	}}
	bz, err = json.Marshal(success)
	if err != nil {
		t.Fatalf("marshal success: %v", err)
	}
	if err := json.Unmarshal(bz, &back); err != nil {
		t.Fatalf("unmarshal success: %v", err)
	}
	if back.Success == nil || back.Success.Target.Position == nil || *back.Success.Target.Position != 9 {
		t.Errorf("success target lost in round trip: %s", bz)
	}

	failure := DeferredExecStatus{Failure: &DeferredExecFailure{Reason: "slippage"}}
	bz, err = json.Marshal(failure)
	if err != nil {
		t.Fatalf("marshal failure: %v", err)
	}
	if err := json.Unmarshal(bz, &back); err != nil {
		t.Fatalf("unmarshal failure: %v", err)
	}
	if back.Failure == nil || back.Failure.Reason != "slippage" {
		t.Errorf("failure reason lost in round trip: %s", bz)
	}
}

func TestDeferredExecTargetJSON(t *testing.T) {
	bz, err := json.Marshal(DeferredExecTarget{DoesNotExist: true})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(bz) != `"does-not-exist"` {
		t.Errorf("expected the bare string \"does-not-exist\", got %s", bz)
	}
	var back DeferredExecTarget
	if err := json.Unmarshal(bz, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.DoesNotExist {
		t.Error("expected does-not-exist after round trip")
	}

	bz, err = json.Marshal(PositionTarget(3))
	if err != nil {
		t.Fatalf("marshal position: %v", err)
	}
	if err := json.Unmarshal(bz, &back); err != nil {
		t.Fatalf("unmarshal position: %v", err)
	}
	if back.Position == nil || *back.Position != 3 {
		t.Errorf("position target lost in round trip: %s", bz)
	}
}

func TestEscrowedAmount(t *testing.T) {
	amount := math.LegacyNewDec(250)
	withFunds := DeferredExecItem{OpenPosition: &OpenPositionItem{Amount: amount}}
	if got := withFunds.EscrowedAmount(); !got.Equal(amount) {
		t.Errorf("expected escrow %s, got %s", amount, got)
	}
	withoutFunds := DeferredExecItem{ClosePosition: &ClosePositionItem{Id: 1}}
	if got := withoutFunds.EscrowedAmount(); !got.IsZero() {
		t.Errorf("expected zero escrow for close, got %s", got)
	}
}

func TestUpdateCollateralWireShapes(t *testing.T) {
	// Leverage-impact collateral updates carry only id and amount; a
	// slippage assertion only makes sense when notional size changes.
	leverage := DeferredExecItem{
		UpdatePositionAddCollateralImpactLeverage: &UpdateCollateralItem{
			Id:     PositionId(4),
			Amount: math.LegacyNewDec(50),
		},
	}
	bz, err := json.Marshal(leverage)
	if err != nil {
		t.Fatalf("marshal leverage impact: %v", err)
	}
	if strings.Contains(string(bz), "slippage_assert") {
		t.Errorf("leverage impact must not carry slippage_assert: %s", bz)
	}

	tolerance := math.LegacyMustNewDecFromStr("0.01")
	size := DeferredExecItem{
		UpdatePositionRemoveCollateralImpactSize: &UpdateCollateralSizeItem{
			Id:     PositionId(4),
			Amount: math.LegacyNewDec(50),
			SlippageAssert: &SlippageAssert{
				Price:     math.LegacyNewDec(100),
				Tolerance: tolerance,
			},
		},
	}
	bz, err = json.Marshal(size)
	if err != nil {
		t.Fatalf("marshal size impact: %v", err)
	}
	if !strings.Contains(string(bz), "slippage_assert") {
		t.Errorf("size impact should carry slippage_assert: %s", bz)
	}

	var back DeferredExecItem
	if err := json.Unmarshal(bz, &back); err != nil {
		t.Fatalf("unmarshal size impact: %v", err)
	}
	item := back.UpdatePositionRemoveCollateralImpactSize
	if item == nil || item.SlippageAssert == nil || !item.SlippageAssert.Tolerance.Equal(tolerance) {
		t.Errorf("size impact lost in round trip: %s", bz)
	}
}
