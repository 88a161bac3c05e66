package types

import (
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Event types emitted by the market module
const (
	EventTypeDeferredExecQueued   = "deferred_exec_queued"
	EventTypeDeferredExecExecuted = "deferred_exec_executed"
	EventTypeFeesReturned         = "fees_returned"
	EventTypeCrankCompleted       = "crank_completed"
	EventTypePositionOpened       = "position_opened"
	EventTypePositionClosed       = "position_closed"
	EventTypeLiquidation          = "liquidation"
	EventTypeLiquifunding         = "liquifunding"
	EventTypeLimitOrderPlaced     = "limit_order_placed"
	EventTypeLimitOrderTriggered  = "limit_order_triggered"
	EventTypePriceUpdate          = "price_update"

	AttributeKeyDeferredExecId = "deferred_exec_id"
	AttributeKeyTarget         = "target"
	AttributeKeyOwner          = "owner"
	AttributeKeySuccess        = "success"
	AttributeKeyDesc           = "desc"
	AttributeKeyRecipient      = "recipient"
	AttributeKeyAmount         = "amount"
	AttributeKeyAmountUsd      = "amount_usd"
	AttributeKeyPositionId     = "position_id"
	AttributeKeyOrderId        = "order_id"
	AttributeKeyReason         = "reason"
	AttributeKeyPrice          = "price"
	AttributeKeyTimestamp      = "timestamp"
	AttributeKeyWorkKind       = "work"
)

// NewDeferredExecQueuedEvent is emitted when an item enters the queue.
func NewDeferredExecQueuedEvent(id DeferredExecId, target DeferredExecTarget, owner string) sdk.Event {
	return sdk.NewEvent(EventTypeDeferredExecQueued,
		sdk.NewAttribute(AttributeKeyDeferredExecId, id.String()),
		sdk.NewAttribute(AttributeKeyTarget, target.String()),
		sdk.NewAttribute(AttributeKeyOwner, owner),
	)
}

// NewDeferredExecExecutedEvent is emitted when the crank resolves an item.
func NewDeferredExecExecutedEvent(id DeferredExecId, target DeferredExecTarget, owner string, success bool, desc string) sdk.Event {
	result := "false"
	if success {
		result = "true"
	}
	return sdk.NewEvent(EventTypeDeferredExecExecuted,
		sdk.NewAttribute(AttributeKeyDeferredExecId, id.String()),
		sdk.NewAttribute(AttributeKeyTarget, target.String()),
		sdk.NewAttribute(AttributeKeyOwner, owner),
		sdk.NewAttribute(AttributeKeySuccess, result),
		sdk.NewAttribute(AttributeKeyDesc, desc),
	)
}

// NewFeesReturnedEvent is emitted when escrowed funds go back to the owner
// after a failed execution.
func NewFeesReturnedEvent(recipient string, amount, amountUsd math.LegacyDec) sdk.Event {
	return sdk.NewEvent(EventTypeFeesReturned,
		sdk.NewAttribute(AttributeKeyRecipient, recipient),
		sdk.NewAttribute(AttributeKeyAmount, amount.String()),
		sdk.NewAttribute(AttributeKeyAmountUsd, amountUsd.String()),
	)
}
