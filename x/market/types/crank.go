package types

import (
	"encoding/json"
)

// LiquidationReason is why a position was closed by a price trigger.
type LiquidationReason string

const (
	// True liquidation: insufficient funds in active collateral.
	LiquidationReasonLiquidated LiquidationReason = "liquidated"
	// Maximum gains were achieved.
	LiquidationReasonMaxGains LiquidationReason = "max_gains"
	// Stop loss override was triggered.
	LiquidationReasonStopLoss LiquidationReason = "stop_loss"
	// Take profit override, not max gains.
	LiquidationReasonTakeProfit LiquidationReason = "take_profit"
)

// CrankWorkInfo describes the single next unit of work available to the
// crank. The crank loop re-queries after each execution until Completed.
type CrankWorkInfo struct {
	CloseAllPositions *CloseAllPositionsWork `json:"close_all_positions,omitempty"`
	ResetLpBalances   *struct{}              `json:"reset_lp_balances,omitempty"`
	Liquifunding      *LiquifundingWork      `json:"liquifunding,omitempty"`
	Liquidation       *LiquidationWork       `json:"liquidation,omitempty"`
	DeferredExec      *DeferredExecWork      `json:"deferred_exec,omitempty"`
	LimitOrder        *LimitOrderWork        `json:"limit_order,omitempty"`
	Completed         bool                   `json:"-"`
}

// CloseAllPositionsWork closes the next position during market wind-down.
type CloseAllPositionsWork struct {
	Position PositionId `json:"position"`
}

// LiquifundingWork settles fees on the next position due for liquifunding.
type LiquifundingWork struct {
	Position PositionId `json:"position"`
}

// LiquidationWork liquidates a position, including max gains, take profit
// and stop loss triggers.
type LiquidationWork struct {
	Position          PositionId        `json:"position"`
	LiquidationReason LiquidationReason `json:"liquidation_reason"`
}

// DeferredExecWork executes a queued deferred item.
type DeferredExecWork struct {
	DeferredExecId DeferredExecId     `json:"deferred_exec_id"`
	Target         DeferredExecTarget `json:"target"`
}

// LimitOrderWork opens a limit order whose trigger price was crossed.
type LimitOrderWork struct {
	OrderId OrderId `json:"order_id"`
}

// CompletedWork reports no work left for the current price.
func CompletedWork() CrankWorkInfo {
	return CrankWorkInfo{Completed: true}
}

// Kind names the work variant, used for logging and metrics labels.
func (w CrankWorkInfo) Kind() string {
	switch {
	case w.CloseAllPositions != nil:
		return "close_all_positions"
	case w.ResetLpBalances != nil:
		return "reset_lp_balances"
	case w.Liquifunding != nil:
		return "liquifunding"
	case w.Liquidation != nil:
		return "liquidation"
	case w.DeferredExec != nil:
		return "deferred_exec"
	case w.LimitOrder != nil:
		return "limit_order"
	default:
		return "completed"
	}
}

func (w CrankWorkInfo) MarshalJSON() ([]byte, error) {
	if w.Completed {
		return []byte(`{"completed":{}}`), nil
	}
	type alias CrankWorkInfo
	return json.Marshal(alias(w))
}

func (w *CrankWorkInfo) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if _, ok := fields["completed"]; ok {
		*w = CompletedWork()
		return nil
	}
	type alias CrankWorkInfo
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*w = CrankWorkInfo(a)
	return nil
}
