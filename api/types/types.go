package types

import (
	"context"
	"time"
)

// Status represents the market status in the API response
type Status struct {
	QueueDepth              uint32     `json:"queue_depth"`
	NextCrank               string     `json:"next_crank,omitempty"`
	LastCrankCompleted      int64      `json:"last_crank_completed,omitempty"`
	NextDeferredExecution   int64      `json:"next_deferred_execution,omitempty"`
	NewestDeferredExecution int64      `json:"newest_deferred_execution,omitempty"`
	LastProcessedExecId     uint64     `json:"last_processed_exec_id,omitempty"`
	LatestPrice             *PriceInfo `json:"latest_price,omitempty"`
	CrankRewards            string     `json:"crank_rewards"`
	OpenPositions           uint32     `json:"open_positions"`
	OpenLimitOrders         uint32     `json:"open_limit_orders"`
	WoundDown               bool       `json:"wound_down"`
}

// PriceInfo represents a price point in the API response
type PriceInfo struct {
	PriceNotional string `json:"price_notional"`
	PriceUsd      string `json:"price_usd"`
	PriceBase     string `json:"price_base"`
	Timestamp     int64  `json:"timestamp"`
}

// DeferredExec represents a queue item in the API response
type DeferredExec struct {
	Id      uint64 `json:"id"`
	Owner   string `json:"owner"`
	Variant string `json:"variant"`
	Status  string `json:"status"`
	Created int64  `json:"created"`
	// Failure reason, set only for failed items
	Reason string `json:"reason,omitempty"`
	// Executed timestamp, set once the item left pending
	Executed int64 `json:"executed,omitempty"`
}

// ListDeferredExecsResponse represents a page of queue items
type ListDeferredExecsResponse struct {
	Items          []*DeferredExec `json:"items"`
	NextStartAfter uint64          `json:"next_start_after,omitempty"`
	Total          int             `json:"total"`
}

// Position represents a position in the API response
type Position struct {
	Id                uint64 `json:"id"`
	Owner             string `json:"owner"`
	Direction         string `json:"direction"`
	DepositCollateral string `json:"deposit_collateral"`
	ActiveCollateral  string `json:"active_collateral"`
	CounterCollateral string `json:"counter_collateral"`
	NotionalSize      string `json:"notional_size"`
	Leverage          string `json:"leverage"`
	EntryPrice        string `json:"entry_price"`
	StopLoss          string `json:"stop_loss,omitempty"`
	TakeProfit        string `json:"take_profit,omitempty"`
	NextLiquifunding  int64  `json:"next_liquifunding"`
	CreatedAt         int64  `json:"created_at"`
}

// LimitOrder represents a limit order in the API response
type LimitOrder struct {
	OrderId      uint64 `json:"order_id"`
	Owner        string `json:"owner"`
	TriggerPrice string `json:"trigger_price"`
	Collateral   string `json:"collateral"`
	Leverage     string `json:"leverage"`
	Direction    string `json:"direction"`
	StopLoss     string `json:"stop_loss,omitempty"`
	TakeProfit   string `json:"take_profit,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

// Pool represents the liquidity pool in the API response
type Pool struct {
	TotalLiquidity  string `json:"total_liquidity"`
	LockedLiquidity string `json:"locked_liquidity"`
	TotalShares     string `json:"total_shares"`
	SharePrice      string `json:"share_price"`
	UpdatedAt       int64  `json:"updated_at"`
}

// SubmitPriceRequest represents a price submission in standalone mode
type SubmitPriceRequest struct {
	PriceBase string `json:"price_base"`
	PriceUsd  string `json:"price_usd"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// CrankRequest represents a crank trigger in standalone mode
type CrankRequest struct {
	Cranker string `json:"cranker"`
	Execs   uint32 `json:"execs,omitempty"`
	Rewards string `json:"rewards,omitempty"`
}

// CrankResponse represents the result of a crank batch
type CrankResponse struct {
	Processed int      `json:"processed"`
	Work      []string `json:"work"`
}

// StatusService defines the interface for market status queries
type StatusService interface {
	GetStatus(ctx context.Context) (*Status, error)
	GetPrices(ctx context.Context, limit int) ([]*PriceInfo, error)
}

// ExecService defines the interface for deferred execution queries
type ExecService interface {
	GetDeferredExec(ctx context.Context, id uint64) (*DeferredExec, error)
	ListDeferredExecs(ctx context.Context, owner string, startAfter uint64, limit int) (*ListDeferredExecsResponse, error)
}

// PositionService defines the interface for position and order queries
type PositionService interface {
	GetPositions(ctx context.Context, owner string) ([]*Position, error)
	GetLimitOrders(ctx context.Context, owner string) ([]*LimitOrder, error)
}

// PoolService defines the interface for liquidity pool queries
type PoolService interface {
	GetPool(ctx context.Context) (*Pool, error)
}

// Helper function to get current timestamp in milliseconds
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
