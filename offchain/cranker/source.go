package cranker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	apitypes "github.com/openalpha/perp-market/api/types"
)

// MarketStatus is the slice of chain status the cranker cares about
type MarketStatus struct {
	QueueDepth          uint32
	NextCrank           string
	LatestPriceTs       int64 // unix millis of the newest price point
	NextDeferredTs      int64 // timestamp the oldest pending exec waits on
	LastProcessedExecId uint64
}

// PendingExec is a queued deferred execution awaiting a fresh price
type PendingExec struct {
	Id              uint64
	NeedsPriceAfter int64
}

// StatusSource provides the cranker with a view of market state
type StatusSource interface {
	// FetchStatus returns the current market status
	FetchStatus(ctx context.Context) (*MarketStatus, error)

	// FetchPendingExecs returns deferred execs still awaiting execution
	FetchPendingExecs(ctx context.Context) ([]PendingExec, error)
}

// HTTPStatusSource polls the gateway REST API for market status
type HTTPStatusSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStatusSource creates a status source backed by the gateway API
func NewHTTPStatusSource(baseURL string) *HTTPStatusSource {
	return &HTTPStatusSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// FetchStatus fetches /v1/status from the gateway
func (s *HTTPStatusSource) FetchStatus(ctx context.Context) (*MarketStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/status", nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status request returned %d", resp.StatusCode)
	}

	var body apitypes.Status
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding status: %w", err)
	}

	status := &MarketStatus{
		QueueDepth:          body.QueueDepth,
		NextCrank:           body.NextCrank,
		NextDeferredTs:      body.NextDeferredExecution,
		LastProcessedExecId: body.LastProcessedExecId,
	}
	if body.LatestPrice != nil {
		status.LatestPriceTs = body.LatestPrice.Timestamp
	}
	return status, nil
}

// FetchPendingExecs derives the next pending exec from the status endpoint.
// The queue is FIFO, so the only exec whose readiness gates a crank is the
// one right after the last processed id.
func (s *HTTPStatusSource) FetchPendingExecs(ctx context.Context) ([]PendingExec, error) {
	status, err := s.FetchStatus(ctx)
	if err != nil {
		return nil, err
	}
	if status.QueueDepth == 0 || status.NextDeferredTs == 0 {
		return nil, nil
	}
	return []PendingExec{{
		Id:              status.LastProcessedExecId + 1,
		NeedsPriceAfter: status.NextDeferredTs,
	}}, nil
}

// MockStatusSource is a settable status source for testing
type MockStatusSource struct {
	mu      sync.Mutex
	status  MarketStatus
	pending []PendingExec
	err     error
}

// NewMockStatusSource creates a mock status source
func NewMockStatusSource() *MockStatusSource {
	return &MockStatusSource{}
}

// FetchStatus returns the configured status
func (s *MockStatusSource) FetchStatus(ctx context.Context) (*MarketStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	status := s.status
	return &status, nil
}

// FetchPendingExecs returns the configured pending execs
func (s *MockStatusSource) FetchPendingExecs(ctx context.Context) ([]PendingExec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	result := make([]PendingExec, len(s.pending))
	copy(result, s.pending)
	return result, nil
}

// SetStatus updates the status returned by FetchStatus
func (s *MockStatusSource) SetStatus(status MarketStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// SetPending updates the pending execs returned by FetchPendingExecs
func (s *MockStatusSource) SetPending(pending []PendingExec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = pending
}

// SetError makes both fetch methods fail with err
func (s *MockStatusSource) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
