package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openalpha/perp-market/offchain/cranker"
)

// Config holds the application configuration
type Config struct {
	PollInterval  time.Duration `json:"poll_interval"`
	IdleInterval  time.Duration `json:"idle_interval"`
	BatchExecs    uint32        `json:"batch_execs"`
	ChainRPCURL   string        `json:"chain_rpc_url"`
	APIURL        string        `json:"api_url"`
	Rewards       string        `json:"rewards"`
	SubmitterType string        `json:"submitter_type"` // "mock" or "rpc"
	Demo          bool          `json:"demo"`           // run demo mode
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval:  500 * time.Millisecond,
		IdleInterval:  5 * time.Second,
		BatchExecs:    25,
		ChainRPCURL:   "http://localhost:26657",
		APIURL:        "http://localhost:8080",
		Rewards:       "cranker",
		SubmitterType: "mock",
		Demo:          false,
	}
}

// LoadConfig loads configuration from a file
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	pollInterval := flag.Duration("poll-interval", 0, "How often to poll market status")
	batchExecs := flag.Uint("batch-execs", 0, "Maximum deferred execs per crank")
	rpcURL := flag.String("rpc", "", "Chain RPC URL")
	apiURL := flag.String("api", "", "Gateway API URL")
	rewards := flag.String("rewards", "", "Address receiving crank rewards")
	submitterType := flag.String("submitter", "", "Submitter type (mock or rpc)")
	demo := flag.Bool("demo", false, "Run demo mode with a scripted queue")
	flag.Parse()

	// Load configuration
	config, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Override with command line flags
	if *pollInterval > 0 {
		config.PollInterval = *pollInterval
	}
	if *batchExecs > 0 {
		config.BatchExecs = uint32(*batchExecs)
	}
	if *rpcURL != "" {
		config.ChainRPCURL = *rpcURL
	}
	if *apiURL != "" {
		config.APIURL = *apiURL
	}
	if *rewards != "" {
		config.Rewards = *rewards
	}
	if *submitterType != "" {
		config.SubmitterType = *submitterType
	}
	if *demo {
		config.Demo = true
	}

	// Print configuration
	log.Println("=== Perp Market Cranker ===")
	log.Printf("Poll Interval: %v", config.PollInterval)
	log.Printf("Batch Execs: %d", config.BatchExecs)
	log.Printf("Chain RPC: %s", config.ChainRPCURL)
	log.Printf("Gateway API: %s", config.APIURL)
	log.Printf("Rewards: %s", config.Rewards)
	log.Printf("Submitter: %s", config.SubmitterType)
	log.Println("===========================")

	// Create submitter
	factory := cranker.NewSubmitterFactory()
	submitter := factory.Create(config.SubmitterType, &cranker.RPCSubmitterConfig{
		RPCURL:        config.ChainRPCURL,
		Sender:        config.Rewards,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
	})

	// Create status source; demo mode uses a scripted mock instead of
	// polling a live gateway
	var source cranker.StatusSource
	var mockSource *cranker.MockStatusSource
	if config.Demo {
		mockSource = cranker.NewMockStatusSource()
		source = mockSource
	} else {
		source = cranker.NewHTTPStatusSource(config.APIURL)
	}

	// Create cranker
	crankerConfig := &cranker.Config{
		PollInterval: config.PollInterval,
		IdleInterval: config.IdleInterval,
		BatchExecs:   config.BatchExecs,
		ChainRPCURL:  config.ChainRPCURL,
		APIURL:       config.APIURL,
		Rewards:      config.Rewards,
	}
	c := cranker.NewCranker(crankerConfig, source, submitter)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the cranker
	if err := c.Start(ctx); err != nil {
		log.Fatalf("Failed to start cranker: %v", err)
	}

	// Run demo if requested
	if config.Demo {
		go runDemo(mockSource)
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Periodic stats logging
	statsTicker := time.NewTicker(10 * time.Second)
	defer statsTicker.Stop()

	log.Println("Cranker is running. Press Ctrl+C to stop.")

	for {
		select {
		case sig := <-sigCh:
			log.Printf("Received signal: %v", sig)
			cancel()
			if err := c.Stop(); err != nil {
				log.Printf("Error stopping cranker: %v", err)
			}
			log.Println("Cranker stopped")
			return
		case <-statsTicker.C:
			stats := c.GetStats()
			log.Printf("Stats: Cranks=%d, Unlocked=%d, Watching=%d, QueueDepth=%d, NextCrank=%s",
				stats.CranksSent, stats.ExecsUnlocked, stats.Watching, stats.QueueDepth, stats.NextCrank)
		}
	}
}

// runDemo scripts a queue filling up and prices arriving to unblock it
func runDemo(source *cranker.MockStatusSource) {
	log.Println("Starting demo mode...")
	time.Sleep(time.Second)

	now := time.Now().UnixMilli()

	// Three execs enqueued, no price newer than their enqueue time yet
	log.Println("Demo: three execs enqueued, waiting on a fresh price")
	source.SetStatus(cranker.MarketStatus{
		QueueDepth:     3,
		LatestPriceTs:  now - 1000,
		NextDeferredTs: now,
	})
	source.SetPending([]cranker.PendingExec{
		{Id: 1, NeedsPriceAfter: now},
		{Id: 2, NeedsPriceAfter: now + 200},
		{Id: 3, NeedsPriceAfter: now + 400},
	})
	time.Sleep(2 * time.Second)

	// A price newer than the first two enqueue times arrives
	log.Println("Demo: fresh price arrives, first two execs become processable")
	source.SetStatus(cranker.MarketStatus{
		QueueDepth:     3,
		LatestPriceTs:  now + 300,
		NextDeferredTs: now,
	})
	time.Sleep(2 * time.Second)

	// Next price covers the rest, and the chain reports liquidation work
	log.Println("Demo: liquidation work surfaced by the chain")
	source.SetStatus(cranker.MarketStatus{
		QueueDepth:    1,
		NextCrank:     "liquidation",
		LatestPriceTs: now + 600,
	})
	time.Sleep(2 * time.Second)

	// Everything drained
	log.Println("Demo: queue drained")
	source.SetStatus(cranker.MarketStatus{
		QueueDepth:    0,
		NextCrank:     "completed",
		LatestPriceTs: now + 600,
	})

	log.Println("Demo completed!")
}
