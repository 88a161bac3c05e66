package types

import (
	"encoding/json"
	"fmt"

	"cosmossdk.io/math"
)

// DeferredExecItem is one pending user intent, queued at submission time and
// applied later by the crank once a qualifying price point exists. Exactly one
// of the variant fields is non-nil. Items are immutable once created and are
// consumed, not mutated, by execution.
type DeferredExecItem struct {
	OpenPosition                                 *OpenPositionItem         `json:"open_position,omitempty"`
	UpdatePositionAddCollateralImpactLeverage    *UpdateCollateralItem     `json:"update_position_add_collateral_impact_leverage,omitempty"`
	UpdatePositionAddCollateralImpactSize        *UpdateCollateralSizeItem `json:"update_position_add_collateral_impact_size,omitempty"`
	UpdatePositionRemoveCollateralImpactLeverage *UpdateCollateralItem     `json:"update_position_remove_collateral_impact_leverage,omitempty"`
	UpdatePositionRemoveCollateralImpactSize     *UpdateCollateralSizeItem `json:"update_position_remove_collateral_impact_size,omitempty"`
	UpdatePositionLeverage                       *UpdateLeverageItem       `json:"update_position_leverage,omitempty"`
	UpdatePositionMaxGains                       *UpdateMaxGainsItem       `json:"update_position_max_gains,omitempty"`
	UpdatePositionTakeProfitPrice                *UpdateTakeProfitItem     `json:"update_position_take_profit_price,omitempty"`
	UpdatePositionStopLossPrice                  *UpdateStopLossItem       `json:"update_position_stop_loss_price,omitempty"`
	ClosePosition                                *ClosePositionItem        `json:"close_position,omitempty"`
	SetTriggerOrder                              *SetTriggerOrderItem      `json:"set_trigger_order,omitempty"`
	PlaceLimitOrder                              *PlaceLimitOrderItem      `json:"place_limit_order,omitempty"`
	CancelLimitOrder                             *CancelLimitOrderItem     `json:"cancel_limit_order,omitempty"`
}

// OpenPositionItem opens a new position.
type OpenPositionItem struct {
	SlippageAssert   *SlippageAssert `json:"slippage_assert,omitempty"`
	Leverage         math.LegacyDec  `json:"leverage"`
	Direction        DirectionToBase `json:"direction"`
	MaxGains         *math.LegacyDec `json:"max_gains,omitempty"`
	StopLossOverride *math.LegacyDec `json:"stop_loss_override,omitempty"`
	TakeProfit       *math.LegacyDec `json:"take_profit,omitempty"`
	Amount           math.LegacyDec  `json:"amount"`
	// Crank fee already charged at enqueue time. Only open/place variants
	// carry the fee on the item; other variants charge the existing
	// position or order directly.
	CrankFee    math.LegacyDec `json:"crank_fee"`
	CrankFeeUsd math.LegacyDec `json:"crank_fee_usd"`
}

// UpdateCollateralItem adds or removes collateral with leverage taking the
// impact. Notional size stays fixed, so no slippage assertion applies.
type UpdateCollateralItem struct {
	Id     PositionId     `json:"id"`
	Amount math.LegacyDec `json:"amount"`
}

// UpdateCollateralSizeItem adds or removes collateral with notional size
// taking the impact.
type UpdateCollateralSizeItem struct {
	Id             PositionId      `json:"id"`
	Amount         math.LegacyDec  `json:"amount"`
	SlippageAssert *SlippageAssert `json:"slippage_assert,omitempty"`
}

// UpdateLeverageItem changes the leverage, impacting notional size.
type UpdateLeverageItem struct {
	Id             PositionId      `json:"id"`
	Leverage       math.LegacyDec  `json:"leverage"`
	SlippageAssert *SlippageAssert `json:"slippage_assert,omitempty"`
}

// UpdateMaxGainsItem changes the max gains of a position.
type UpdateMaxGainsItem struct {
	Id       PositionId     `json:"id"`
	MaxGains math.LegacyDec `json:"max_gains"`
}

// UpdateTakeProfitItem changes the take profit price of a position.
type UpdateTakeProfitItem struct {
	Id    PositionId     `json:"id"`
	Price math.LegacyDec `json:"price"`
}

// UpdateStopLossItem changes the stop loss price of a position. A nil
// StopLoss removes the override.
type UpdateStopLossItem struct {
	Id       PositionId      `json:"id"`
	StopLoss *math.LegacyDec `json:"stop_loss,omitempty"`
}

// ClosePositionItem closes a position.
type ClosePositionItem struct {
	Id             PositionId      `json:"id"`
	SlippageAssert *SlippageAssert `json:"slippage_assert,omitempty"`
}

// SetTriggerOrderItem sets stop loss or take profit overrides on a position.
type SetTriggerOrderItem struct {
	Id               PositionId      `json:"id"`
	StopLossOverride *math.LegacyDec `json:"stop_loss_override,omitempty"`
	TakeProfit       *math.LegacyDec `json:"take_profit,omitempty"`
}

// PlaceLimitOrderItem opens a position once the trigger price is crossed.
type PlaceLimitOrderItem struct {
	TriggerPrice     math.LegacyDec  `json:"trigger_price"`
	Leverage         math.LegacyDec  `json:"leverage"`
	Direction        DirectionToBase `json:"direction"`
	MaxGains         *math.LegacyDec `json:"max_gains,omitempty"`
	StopLossOverride *math.LegacyDec `json:"stop_loss_override,omitempty"`
	TakeProfit       *math.LegacyDec `json:"take_profit,omitempty"`
	Amount           math.LegacyDec  `json:"amount"`
	CrankFee         math.LegacyDec  `json:"crank_fee"`
	CrankFeeUsd      math.LegacyDec  `json:"crank_fee_usd"`
}

// CancelLimitOrderItem cancels an open limit order.
type CancelLimitOrderItem struct {
	OrderId OrderId `json:"order_id"`
}

// Target returns the entity this item acts on. Opens and limit order
// placements have no ID yet and target "does-not-exist".
func (item DeferredExecItem) Target() DeferredExecTarget {
	switch {
	case item.OpenPosition != nil, item.PlaceLimitOrder != nil:
		return DeferredExecTarget{DoesNotExist: true}
	case item.UpdatePositionAddCollateralImpactLeverage != nil:
		return PositionTarget(item.UpdatePositionAddCollateralImpactLeverage.Id)
	case item.UpdatePositionAddCollateralImpactSize != nil:
		return PositionTarget(item.UpdatePositionAddCollateralImpactSize.Id)
	case item.UpdatePositionRemoveCollateralImpactLeverage != nil:
		return PositionTarget(item.UpdatePositionRemoveCollateralImpactLeverage.Id)
	case item.UpdatePositionRemoveCollateralImpactSize != nil:
		return PositionTarget(item.UpdatePositionRemoveCollateralImpactSize.Id)
	case item.UpdatePositionLeverage != nil:
		return PositionTarget(item.UpdatePositionLeverage.Id)
	case item.UpdatePositionMaxGains != nil:
		return PositionTarget(item.UpdatePositionMaxGains.Id)
	case item.UpdatePositionTakeProfitPrice != nil:
		return PositionTarget(item.UpdatePositionTakeProfitPrice.Id)
	case item.UpdatePositionStopLossPrice != nil:
		return PositionTarget(item.UpdatePositionStopLossPrice.Id)
	case item.ClosePosition != nil:
		return PositionTarget(item.ClosePosition.Id)
	case item.SetTriggerOrder != nil:
		return PositionTarget(item.SetTriggerOrder.Id)
	case item.CancelLimitOrder != nil:
		return OrderTarget(item.CancelLimitOrder.OrderId)
	default:
		return DeferredExecTarget{DoesNotExist: true}
	}
}

// CongestionReason classifies the item for per-category queue ceilings.
func (item DeferredExecItem) CongestionReason() CongestionReason {
	switch {
	case item.OpenPosition != nil:
		return CongestionReasonOpenMarket
	case item.PlaceLimitOrder != nil:
		return CongestionReasonPlaceLimit
	case item.SetTriggerOrder != nil, item.UpdatePositionStopLossPrice != nil,
		item.UpdatePositionTakeProfitPrice != nil:
		return CongestionReasonSetTrigger
	default:
		return CongestionReasonUpdate
	}
}

// EscrowedAmount is the collateral attached by the user at submission time,
// returned to the owner if execution fails.
func (item DeferredExecItem) EscrowedAmount() math.LegacyDec {
	switch {
	case item.OpenPosition != nil:
		return item.OpenPosition.Amount
	case item.PlaceLimitOrder != nil:
		return item.PlaceLimitOrder.Amount
	case item.UpdatePositionAddCollateralImpactLeverage != nil:
		return item.UpdatePositionAddCollateralImpactLeverage.Amount
	case item.UpdatePositionAddCollateralImpactSize != nil:
		return item.UpdatePositionAddCollateralImpactSize.Amount
	default:
		return math.LegacyZeroDec()
	}
}

// Variant names the set variant, used for event attributes and metrics labels.
func (item DeferredExecItem) Variant() string {
	switch {
	case item.OpenPosition != nil:
		return "open_position"
	case item.UpdatePositionAddCollateralImpactLeverage != nil:
		return "add_collateral_impact_leverage"
	case item.UpdatePositionAddCollateralImpactSize != nil:
		return "add_collateral_impact_size"
	case item.UpdatePositionRemoveCollateralImpactLeverage != nil:
		return "remove_collateral_impact_leverage"
	case item.UpdatePositionRemoveCollateralImpactSize != nil:
		return "remove_collateral_impact_size"
	case item.UpdatePositionLeverage != nil:
		return "update_leverage"
	case item.UpdatePositionMaxGains != nil:
		return "update_max_gains"
	case item.UpdatePositionTakeProfitPrice != nil:
		return "update_take_profit"
	case item.UpdatePositionStopLossPrice != nil:
		return "update_stop_loss"
	case item.ClosePosition != nil:
		return "close_position"
	case item.SetTriggerOrder != nil:
		return "set_trigger_order"
	case item.PlaceLimitOrder != nil:
		return "place_limit_order"
	case item.CancelLimitOrder != nil:
		return "cancel_limit_order"
	default:
		return "unknown"
	}
}

// Validate checks that exactly one variant is set.
func (item DeferredExecItem) Validate() error {
	count := 0
	for _, set := range []bool{
		item.OpenPosition != nil,
		item.UpdatePositionAddCollateralImpactLeverage != nil,
		item.UpdatePositionAddCollateralImpactSize != nil,
		item.UpdatePositionRemoveCollateralImpactLeverage != nil,
		item.UpdatePositionRemoveCollateralImpactSize != nil,
		item.UpdatePositionLeverage != nil,
		item.UpdatePositionMaxGains != nil,
		item.UpdatePositionTakeProfitPrice != nil,
		item.UpdatePositionStopLossPrice != nil,
		item.ClosePosition != nil,
		item.SetTriggerOrder != nil,
		item.PlaceLimitOrder != nil,
		item.CancelLimitOrder != nil,
	} {
		if set {
			count++
		}
	}
	if count != 1 {
		return fmt.Errorf("deferred exec item must have exactly one variant, got %d", count)
	}
	return nil
}

// DeferredExecTarget identifies what entity an item will affect. For opening
// positions or placing limit orders no ID exists yet.
type DeferredExecTarget struct {
	DoesNotExist bool
	Position     *PositionId
	Order        *OrderId
}

// PositionTarget targets an existing position.
func PositionTarget(id PositionId) DeferredExecTarget {
	return DeferredExecTarget{Position: &id}
}

// OrderTarget targets an existing limit order.
func OrderTarget(id OrderId) DeferredExecTarget {
	return DeferredExecTarget{Order: &id}
}

// Key returns a stable byte key for the pending-target index, or nil when the
// target does not exist yet (opens never conflict).
func (t DeferredExecTarget) Key() []byte {
	switch {
	case t.Position != nil:
		return append([]byte{'p'}, []byte(t.Position.String())...)
	case t.Order != nil:
		return append([]byte{'o'}, []byte(t.Order.String())...)
	default:
		return nil
	}
}

func (t DeferredExecTarget) String() string {
	switch {
	case t.Position != nil:
		return "position " + t.Position.String()
	case t.Order != nil:
		return "order " + t.Order.String()
	default:
		return "does-not-exist"
	}
}

func (t DeferredExecTarget) MarshalJSON() ([]byte, error) {
	switch {
	case t.Position != nil:
		return json.Marshal(map[string]PositionId{"position": *t.Position})
	case t.Order != nil:
		return json.Marshal(map[string]OrderId{"order": *t.Order})
	default:
		return json.Marshal("does-not-exist")
	}
}

func (t *DeferredExecTarget) UnmarshalJSON(data []byte) error {
	if string(data) == `"does-not-exist"` {
		*t = DeferredExecTarget{DoesNotExist: true}
		return nil
	}
	var m struct {
		Position *PositionId `json:"position"`
		Order    *OrderId    `json:"order"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*t = DeferredExecTarget{Position: m.Position, Order: m.Order}
	return nil
}

// DeferredExecCompleteTarget identifies what a successfully executed item
// impacted. Unlike DeferredExecTarget there is always a concrete ID.
type DeferredExecCompleteTarget struct {
	Position *PositionId `json:"position,omitempty"`
	Order    *OrderId    `json:"order,omitempty"`
}

// CompletePositionTarget resolves to a concrete position.
func CompletePositionTarget(id PositionId) DeferredExecCompleteTarget {
	return DeferredExecCompleteTarget{Position: &id}
}

// CompleteOrderTarget resolves to a concrete limit order.
func CompleteOrderTarget(id OrderId) DeferredExecCompleteTarget {
	return DeferredExecCompleteTarget{Order: &id}
}

// DeferredExecStatus is the status state machine of a work item. The only
// transitions are pending to success or pending to failure, both performed by
// the crank; terminal statuses are immutable.
type DeferredExecStatus struct {
	Success *DeferredExecSuccess
	Failure *DeferredExecFailure
}

// DeferredExecSuccess records a successfully applied item.
type DeferredExecSuccess struct {
	Target   DeferredExecCompleteTarget `json:"target"`
	Executed Timestamp                  `json:"executed"`
}

// DeferredExecFailure records an item that did not apply.
type DeferredExecFailure struct {
	Reason     string      `json:"reason"`
	Executed   Timestamp   `json:"executed"`
	CrankPrice *PricePoint `json:"crank_price,omitempty"`
}

// IsPending reports whether the item is still waiting to be cranked.
func (s DeferredExecStatus) IsPending() bool {
	return s.Success == nil && s.Failure == nil
}

func (s DeferredExecStatus) String() string {
	switch {
	case s.Success != nil:
		return "success"
	case s.Failure != nil:
		return "failure"
	default:
		return "pending"
	}
}

func (s DeferredExecStatus) MarshalJSON() ([]byte, error) {
	switch {
	case s.Success != nil:
		return json.Marshal(map[string]*DeferredExecSuccess{"success": s.Success})
	case s.Failure != nil:
		return json.Marshal(map[string]*DeferredExecFailure{"failure": s.Failure})
	default:
		return json.Marshal("pending")
	}
}

func (s *DeferredExecStatus) UnmarshalJSON(data []byte) error {
	if string(data) == `"pending"` {
		*s = DeferredExecStatus{}
		return nil
	}
	var m struct {
		Success *DeferredExecSuccess `json:"success"`
		Failure *DeferredExecFailure `json:"failure"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*s = DeferredExecStatus{Success: m.Success, Failure: m.Failure}
	return nil
}

// DeferredExecWithStatus is a queued work item and its current status.
// Created is both the queue timestamp and the minimum price point timestamp
// required before the item may execute.
type DeferredExecWithStatus struct {
	Id      DeferredExecId     `json:"id"`
	Created Timestamp          `json:"created"`
	Status  DeferredExecStatus `json:"status"`
	Owner   string             `json:"owner"`
	Item    DeferredExecItem   `json:"item"`
}

// ListDeferredExecsResp is a page of items, newest first.
type ListDeferredExecsResp struct {
	Items          []DeferredExecWithStatus `json:"items"`
	NextStartAfter *DeferredExecId          `json:"next_start_after,omitempty"`
}

// GetDeferredExecResp is the result of looking up a single item.
type GetDeferredExecResp struct {
	Found *DeferredExecWithStatus `json:"found,omitempty"`
}
