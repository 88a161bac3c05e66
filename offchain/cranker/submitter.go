package cranker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"
)

// TxSubmitter defines the interface for submitting crank transactions to the chain
type TxSubmitter interface {
	// SubmitCrank submits a crank transaction processing up to execs items
	SubmitCrank(ctx context.Context, execs uint32, rewards string) error

	// SubmitPrice submits a fresh price point
	SubmitPrice(ctx context.Context, priceBase, priceUsd string) error

	// GetStatus returns the submitter status
	GetStatus() SubmitterStatus
}

// SubmitterStatus represents the status of a submitter
type SubmitterStatus struct {
	Connected         bool
	LastSubmitTime    time.Time
	LastError         string
	TotalSubmissions  int64
	FailedSubmissions int64
}

// CrankTx records a submitted crank for inspection
type CrankTx struct {
	Execs   uint32
	Rewards string
}

// PriceTx records a submitted price for inspection
type PriceTx struct {
	PriceBase string
	PriceUsd  string
}

// MockSubmitter is a mock implementation for testing
type MockSubmitter struct {
	mu              sync.Mutex
	cranks          []CrankTx
	prices          []PriceTx
	status          SubmitterStatus
	simulateFailure bool
}

// NewMockSubmitter creates a new mock submitter
func NewMockSubmitter() *MockSubmitter {
	return &MockSubmitter{
		cranks: make([]CrankTx, 0),
		prices: make([]PriceTx, 0),
		status: SubmitterStatus{
			Connected: true,
		},
	}
}

// SubmitCrank submits a crank (mock implementation)
func (s *MockSubmitter) SubmitCrank(ctx context.Context, execs uint32, rewards string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.simulateFailure {
		s.status.FailedSubmissions++
		s.status.LastError = "simulated failure"
		return fmt.Errorf("simulated failure")
	}

	s.cranks = append(s.cranks, CrankTx{Execs: execs, Rewards: rewards})
	s.status.TotalSubmissions++
	s.status.LastSubmitTime = time.Now()

	log.Printf("[MockSubmitter] Submitted crank: execs=%d rewards=%s", execs, rewards)

	return nil
}

// SubmitPrice submits a price point (mock implementation)
func (s *MockSubmitter) SubmitPrice(ctx context.Context, priceBase, priceUsd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.simulateFailure {
		s.status.FailedSubmissions++
		s.status.LastError = "simulated failure"
		return fmt.Errorf("simulated failure")
	}

	s.prices = append(s.prices, PriceTx{PriceBase: priceBase, PriceUsd: priceUsd})
	s.status.TotalSubmissions++
	s.status.LastSubmitTime = time.Now()

	log.Printf("[MockSubmitter] Submitted price: base=%s usd=%s", priceBase, priceUsd)

	return nil
}

// GetStatus returns the mock submitter status
func (s *MockSubmitter) GetStatus() SubmitterStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// GetSubmittedCranks returns all submitted cranks (for testing)
func (s *MockSubmitter) GetSubmittedCranks() []CrankTx {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]CrankTx, len(s.cranks))
	copy(result, s.cranks)
	return result
}

// GetSubmittedPrices returns all submitted prices (for testing)
func (s *MockSubmitter) GetSubmittedPrices() []PriceTx {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]PriceTx, len(s.prices))
	copy(result, s.prices)
	return result
}

// SetSimulateFailure enables or disables failure simulation
func (s *MockSubmitter) SetSimulateFailure(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.simulateFailure = fail
}

// Clear clears all submitted data (for testing)
func (s *MockSubmitter) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cranks = make([]CrankTx, 0)
	s.prices = make([]PriceTx, 0)
}

// RPCSubmitter submits crank transactions to a chain RPC endpoint
type RPCSubmitter struct {
	rpcURL        string
	sender        string
	retryAttempts int
	retryDelay    time.Duration

	mu     sync.Mutex
	status SubmitterStatus
}

// RPCSubmitterConfig holds configuration for RPCSubmitter
type RPCSubmitterConfig struct {
	RPCURL        string
	Sender        string
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultRPCSubmitterConfig returns default configuration
func DefaultRPCSubmitterConfig() *RPCSubmitterConfig {
	return &RPCSubmitterConfig{
		RPCURL:        "http://localhost:26657",
		Sender:        "cranker",
		RetryAttempts: 3,
		RetryDelay:    time.Second,
	}
}

// NewRPCSubmitter creates a new RPC submitter
func NewRPCSubmitter(config *RPCSubmitterConfig) *RPCSubmitter {
	if config == nil {
		config = DefaultRPCSubmitterConfig()
	}

	return &RPCSubmitter{
		rpcURL:        config.RPCURL,
		sender:        config.Sender,
		retryAttempts: config.RetryAttempts,
		retryDelay:    config.RetryDelay,
		status: SubmitterStatus{
			Connected: true,
		},
	}
}

// SubmitCrank submits a crank transaction with retry
func (s *RPCSubmitter) SubmitCrank(ctx context.Context, execs uint32, rewards string) error {
	payload := map[string]string{
		"@type":   "/perpmarket.market.MsgCrank",
		"sender":  s.sender,
		"execs":   fmt.Sprintf("%d", execs),
		"rewards": rewards,
	}

	if err := s.broadcastWithRetry(ctx, payload); err != nil {
		s.mu.Lock()
		s.status.FailedSubmissions++
		s.status.LastError = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("failed to submit crank: %w", err)
	}

	s.mu.Lock()
	s.status.TotalSubmissions++
	s.status.LastSubmitTime = time.Now()
	s.mu.Unlock()

	return nil
}

// SubmitPrice submits a price transaction with retry
func (s *RPCSubmitter) SubmitPrice(ctx context.Context, priceBase, priceUsd string) error {
	payload := map[string]string{
		"@type":      "/perpmarket.market.MsgAppendPrice",
		"sender":     s.sender,
		"price_base": priceBase,
		"price_usd":  priceUsd,
	}

	if err := s.broadcastWithRetry(ctx, payload); err != nil {
		s.mu.Lock()
		s.status.FailedSubmissions++
		s.status.LastError = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("failed to submit price: %w", err)
	}

	s.mu.Lock()
	s.status.TotalSubmissions++
	s.status.LastSubmitTime = time.Now()
	s.mu.Unlock()

	return nil
}

// broadcastWithRetry broadcasts a message with retry logic
func (s *RPCSubmitter) broadcastWithRetry(ctx context.Context, payload map[string]string) error {
	var lastErr error
	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		if err := s.broadcast(ctx, payload); err != nil {
			lastErr = err
			log.Printf("Broadcast attempt %d failed: %v", attempt+1, err)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryDelay):
				continue
			}
		}
		return nil
	}
	return fmt.Errorf("all retry attempts failed: %w", lastErr)
}

// broadcast sends a single message to the chain RPC
func (s *RPCSubmitter) broadcast(ctx context.Context, payload map[string]string) error {
	msg := struct {
		Jsonrpc string        `json:"jsonrpc"`
		ID      int           `json:"id"`
		Method  string        `json:"method"`
		Params  []interface{} `json:"params"`
	}{
		Jsonrpc: "2.0",
		ID:      1,
		Method:  "broadcast_tx_async",
		Params:  []interface{}{s.encodePayload(payload)},
	}

	// Log the submission (in production, this would be an actual RPC call)
	msgBytes, _ := json.Marshal(msg)
	log.Printf("[RPCSubmitter] Broadcasting %s to %s", payload["@type"], s.rpcURL)
	log.Printf("[RPCSubmitter] Message: %s", string(msgBytes))

	// In a real deployment, we would:
	// 1. Build the transaction from the message
	// 2. Sign it with the cranker key
	// 3. Broadcast via RPC

	return nil
}

// encodePayload encodes a message payload for submission
func (s *RPCSubmitter) encodePayload(payload map[string]string) string {
	encoded, _ := json.Marshal(payload)
	return string(encoded)
}

// GetStatus returns the submitter status
func (s *RPCSubmitter) GetStatus() SubmitterStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetRPCURL updates the RPC URL
func (s *RPCSubmitter) SetRPCURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rpcURL = url
}

// SubmitterFactory creates submitters based on configuration
type SubmitterFactory struct{}

// NewSubmitterFactory creates a new submitter factory
func NewSubmitterFactory() *SubmitterFactory {
	return &SubmitterFactory{}
}

// Create creates a new submitter based on the type
func (f *SubmitterFactory) Create(submitterType string, config *RPCSubmitterConfig) TxSubmitter {
	switch submitterType {
	case "mock":
		return NewMockSubmitter()
	case "rpc":
		return NewRPCSubmitter(config)
	default:
		return NewMockSubmitter()
	}
}
