package cranker

import (
	"context"
	"log"
	"sync"
	"time"
)

// Config holds the cranker configuration
type Config struct {
	PollInterval time.Duration // How often to poll chain status
	IdleInterval time.Duration // Poll interval while the queue is empty
	BatchExecs   uint32        // Maximum deferred execs per crank transaction
	ChainRPCURL  string        // Chain RPC URL for submission
	APIURL       string        // Gateway URL for status polling
	Rewards      string        // Address receiving crank fee rewards
}

// DefaultConfig returns the default cranker configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval: 500 * time.Millisecond,
		IdleInterval: 5 * time.Second,
		BatchExecs:   25,
		ChainRPCURL:  "http://localhost:26657",
		APIURL:       "http://localhost:8080",
		Rewards:      "cranker",
	}
}

// Cranker polls market status and submits crank transactions whenever
// deferred work becomes processable. Anyone can run one; the chain pays
// crank fees to whichever cranker lands the transaction first.
type Cranker struct {
	config    *Config
	source    StatusSource
	submitter TxSubmitter
	watchlist *ExecWatchlist

	mu            sync.RWMutex
	lastStatus    *MarketStatus
	cranksSent    int64
	execsUnlocked int64

	// Signals the crank loop that polled state shows processable work
	workCh chan struct{}

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewCranker creates a new cranker instance
func NewCranker(config *Config, source StatusSource, submitter TxSubmitter) *Cranker {
	if config == nil {
		config = DefaultConfig()
	}
	if submitter == nil {
		submitter = NewMockSubmitter()
	}

	return &Cranker{
		config:    config,
		source:    source,
		submitter: submitter,
		watchlist: NewExecWatchlist(),
		workCh:    make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start starts the cranker
func (c *Cranker) Start(ctx context.Context) error {
	log.Println("Starting cranker...")

	c.wg.Add(1)
	go c.pollLoop(ctx)

	c.wg.Add(1)
	go c.crankLoop(ctx)

	log.Println("Cranker started")
	return nil
}

// Stop stops the cranker
func (c *Cranker) Stop() error {
	log.Println("Stopping cranker...")
	close(c.stopCh)
	c.wg.Wait()
	log.Println("Cranker stopped")
	return nil
}

// pollLoop periodically fetches market status and updates the watchlist
func (c *Cranker) pollLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.poll(ctx)
		}
	}
}

// poll fetches status, refreshes the watchlist and signals the crank
// loop when processable work exists
func (c *Cranker) poll(ctx context.Context) {
	status, err := c.source.FetchStatus(ctx)
	if err != nil {
		log.Printf("Error fetching status: %v", err)
		return
	}

	c.mu.Lock()
	c.lastStatus = status
	c.mu.Unlock()

	pending, err := c.source.FetchPendingExecs(ctx)
	if err != nil {
		log.Printf("Error fetching pending execs: %v", err)
	} else {
		for _, exec := range pending {
			c.watchlist.Add(exec.Id, exec.NeedsPriceAfter)
		}
	}

	if c.hasProcessableWork(status) {
		select {
		case c.workCh <- struct{}{}:
		default:
		}
	}
}

// hasProcessableWork reports whether a crank would make progress. Deferred
// execs count only once a price newer than their enqueue time exists; other
// work items (liquidations, liquifunding, order triggers) are surfaced by
// the chain directly through NextCrank.
func (c *Cranker) hasProcessableWork(status *MarketStatus) bool {
	if status == nil {
		return false
	}
	if status.NextCrank != "" && status.NextCrank != "completed" {
		return true
	}
	return c.watchlist.ReadyCount(status.LatestPriceTs) > 0
}

// crankLoop submits crank transactions when signalled, with an idle
// fallback so work never waits longer than IdleInterval
func (c *Cranker) crankLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.IdleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-c.workCh:
			c.crank(ctx)
		case <-ticker.C:
			c.mu.RLock()
			status := c.lastStatus
			c.mu.RUnlock()
			if c.hasProcessableWork(status) {
				c.crank(ctx)
			}
		}
	}
}

// crank submits a single crank transaction and settles the watchlist
func (c *Cranker) crank(ctx context.Context) {
	if err := c.submitter.SubmitCrank(ctx, c.config.BatchExecs, c.config.Rewards); err != nil {
		log.Printf("Error submitting crank: %v", err)
		return
	}

	c.mu.RLock()
	status := c.lastStatus
	c.mu.RUnlock()

	unlocked := 0
	if status != nil {
		unlocked = len(c.watchlist.PopReady(status.LatestPriceTs))
	}

	c.mu.Lock()
	c.cranksSent++
	c.execsUnlocked += int64(unlocked)
	c.mu.Unlock()

	log.Printf("Crank submitted: execs=%d unlocked=%d watching=%d",
		c.config.BatchExecs, unlocked, c.watchlist.Len())
}

// Stats returns cranker statistics
type Stats struct {
	CranksSent    int64
	ExecsUnlocked int64
	Watching      int
	QueueDepth    uint32
	NextCrank     string
	Submitter     SubmitterStatus
}

// GetStats returns current cranker statistics
func (c *Cranker) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{
		CranksSent:    c.cranksSent,
		ExecsUnlocked: c.execsUnlocked,
		Watching:      c.watchlist.Len(),
		Submitter:     c.submitter.GetStatus(),
	}
	if c.lastStatus != nil {
		stats.QueueDepth = c.lastStatus.QueueDepth
		stats.NextCrank = c.lastStatus.NextCrank
	}
	return stats
}
