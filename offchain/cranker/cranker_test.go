package cranker

import (
	"context"
	"errors"
	"testing"
)

func newTestCranker() (*Cranker, *MockStatusSource, *MockSubmitter) {
	source := NewMockStatusSource()
	submitter := NewMockSubmitter()
	c := NewCranker(DefaultConfig(), source, submitter)
	return c, source, submitter
}

func TestHasProcessableWork(t *testing.T) {
	c, _, _ := newTestCranker()

	if c.hasProcessableWork(nil) {
		t.Error("nil status must not be processable")
	}
	if c.hasProcessableWork(&MarketStatus{NextCrank: "completed"}) {
		t.Error("a completed market must not be processable")
	}
	if c.hasProcessableWork(&MarketStatus{NextCrank: ""}) {
		t.Error("an empty next-crank with no watched execs must not be processable")
	}
	if !c.hasProcessableWork(&MarketStatus{NextCrank: "liquidation"}) {
		t.Error("a pending liquidation must be processable")
	}

	// A watched exec becomes processable once the price catches up.
	c.watchlist.Add(1, 2000)
	if c.hasProcessableWork(&MarketStatus{NextCrank: "completed", LatestPriceTs: 1000}) {
		t.Error("an exec waiting on a future price must not be processable")
	}
	if !c.hasProcessableWork(&MarketStatus{NextCrank: "completed", LatestPriceTs: 2000}) {
		t.Error("an exec unblocked by the latest price must be processable")
	}
}

func TestPollSignalsWorkAndFillsWatchlist(t *testing.T) {
	c, source, _ := newTestCranker()
	source.SetStatus(MarketStatus{
		QueueDepth:    1,
		NextCrank:     "completed",
		LatestPriceTs: 500,
	})
	source.SetPending([]PendingExec{{Id: 7, NeedsPriceAfter: 1000}})

	c.poll(context.Background())
	if c.watchlist.Len() != 1 {
		t.Fatalf("expected the pending exec watched, got %d", c.watchlist.Len())
	}
	select {
	case <-c.workCh:
		t.Error("no work signal expected while the price lags the exec")
	default:
	}

	// A fresher price makes the same exec processable.
	source.SetStatus(MarketStatus{
		QueueDepth:    1,
		NextCrank:     "completed",
		LatestPriceTs: 1000,
	})
	c.poll(context.Background())
	select {
	case <-c.workCh:
	default:
		t.Error("expected a work signal once the price caught up")
	}
}

func TestPollToleratesSourceErrors(t *testing.T) {
	c, source, _ := newTestCranker()
	source.SetError(errors.New("gateway down"))

	c.poll(context.Background())
	if c.lastStatus != nil {
		t.Error("expected no status cached on fetch error")
	}

	source.SetError(nil)
	source.SetStatus(MarketStatus{NextCrank: "completed"})
	c.poll(context.Background())
	if c.lastStatus == nil {
		t.Error("expected recovery after the source comes back")
	}
}

func TestCrankSubmitsAndSettlesWatchlist(t *testing.T) {
	c, source, submitter := newTestCranker()
	source.SetStatus(MarketStatus{NextCrank: "deferred_exec", LatestPriceTs: 2000})
	source.SetPending([]PendingExec{{Id: 3, NeedsPriceAfter: 1500}})
	c.poll(context.Background())

	c.crank(context.Background())

	cranks := submitter.GetSubmittedCranks()
	if len(cranks) != 1 {
		t.Fatalf("expected 1 crank submitted, got %d", len(cranks))
	}
	if cranks[0].Execs != c.config.BatchExecs {
		t.Errorf("expected batch size %d, got %d", c.config.BatchExecs, cranks[0].Execs)
	}
	if cranks[0].Rewards != c.config.Rewards {
		t.Errorf("expected rewards address %q, got %q", c.config.Rewards, cranks[0].Rewards)
	}
	if c.watchlist.Len() != 0 {
		t.Errorf("expected the unblocked exec popped, got %d watched", c.watchlist.Len())
	}

	stats := c.GetStats()
	if stats.CranksSent != 1 {
		t.Errorf("expected 1 crank counted, got %d", stats.CranksSent)
	}
	if stats.ExecsUnlocked != 1 {
		t.Errorf("expected 1 exec unlocked, got %d", stats.ExecsUnlocked)
	}
}

func TestCrankSubmitFailureLeavesWatchlist(t *testing.T) {
	c, source, submitter := newTestCranker()
	source.SetStatus(MarketStatus{NextCrank: "deferred_exec", LatestPriceTs: 2000})
	source.SetPending([]PendingExec{{Id: 3, NeedsPriceAfter: 1500}})
	c.poll(context.Background())

	submitter.SetSimulateFailure(true)
	c.crank(context.Background())

	if c.watchlist.Len() != 1 {
		t.Errorf("expected the exec kept for retry, got %d watched", c.watchlist.Len())
	}
	stats := c.GetStats()
	if stats.CranksSent != 0 {
		t.Errorf("expected no crank counted on failure, got %d", stats.CranksSent)
	}
	if stats.Submitter.FailedSubmissions != 1 {
		t.Errorf("expected 1 failed submission, got %d", stats.Submitter.FailedSubmissions)
	}
}

func TestGetStatsReflectsLastStatus(t *testing.T) {
	c, source, _ := newTestCranker()
	source.SetStatus(MarketStatus{QueueDepth: 12, NextCrank: "liquifunding"})
	c.poll(context.Background())
	// Drain the signal so later tests see a clean channel.
	select {
	case <-c.workCh:
	default:
	}

	stats := c.GetStats()
	if stats.QueueDepth != 12 {
		t.Errorf("expected queue depth 12, got %d", stats.QueueDepth)
	}
	if stats.NextCrank != "liquifunding" {
		t.Errorf("expected next crank liquifunding, got %q", stats.NextCrank)
	}
}
