package types

import (
	"cosmossdk.io/math"
)

// StatusResp is the overall market status, returned from the status query.
type StatusResp struct {
	// Next bit of crank work available, if any.
	NextCrank *CrankWorkInfo `json:"next_crank,omitempty"`
	// Timestamp of the last completed crank.
	LastCrankCompleted *Timestamp `json:"last_crank_completed,omitempty"`
	// Earliest deferred execution price timestamp needed.
	NextDeferredExecution *Timestamp `json:"next_deferred_execution,omitempty"`
	// Latest deferred execution price timestamp needed.
	NewestDeferredExecution *Timestamp `json:"newest_deferred_execution,omitempty"`
	// Number of work items sitting in the deferred execution queue.
	DeferredExecutionItems uint32 `json:"deferred_execution_items"`
	// Last processed deferred execution ID, if any.
	LastProcessedDeferredExecId *DeferredExecId `json:"last_processed_deferred_exec_id,omitempty"`
	// Latest price point, if any.
	LatestPrice *PricePoint `json:"latest_price,omitempty"`
	// Crank fees collected and waiting to be allocated to crankers.
	CrankRewards math.LegacyDec `json:"crank_rewards"`
	// Number of open positions.
	OpenPositions uint32 `json:"open_positions"`
	// Number of open limit orders.
	OpenLimitOrders uint32 `json:"open_limit_orders"`
	// True once wind-down has been triggered.
	WoundDown bool `json:"wound_down"`
}
