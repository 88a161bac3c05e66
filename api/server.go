package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/openalpha/perp-market/api/handlers"
	"github.com/openalpha/perp-market/api/middleware"
	"github.com/openalpha/perp-market/api/types"
	"github.com/openalpha/perp-market/api/websocket"
	"github.com/openalpha/perp-market/metrics"
)

// Server represents the API gateway. In standalone mode it serves from an
// in-memory keeper and also accepts price submissions and crank triggers,
// which makes a full deferred-execution round trip possible without a chain.
type Server struct {
	httpServer *http.Server
	wsServer   *websocket.Server
	config     *Config

	// Services
	statusService   types.StatusService
	execService     types.ExecService
	positionService types.PositionService
	poolService     types.PoolService

	// Standalone write path, nil when serving a remote chain
	keeperService *KeeperService

	// Handlers
	execHandler     *handlers.ExecHandler
	positionHandler *handlers.PositionHandler
	poolHandler     *handlers.PoolHandler

	// Rate limiter
	rateLimiter *middleware.RateLimiter

	// Prometheus collector
	collector *metrics.Collector
}

// Config contains server configuration
type Config struct {
	Host             string
	Port             int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	DisableRateLimit bool // For testing purposes
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// NewServer creates a standalone API server backed by an in-memory keeper
func NewServer(config *Config) (*Server, error) {
	ks, err := NewKeeperService()
	if err != nil {
		return nil, fmt.Errorf("failed to create keeper service: %w", err)
	}

	s := newServer(config, ks, ks, ks, ks)
	s.keeperService = ks
	return s, nil
}

// NewServerWithServices creates an API server with custom services
func NewServerWithServices(config *Config, statusSvc types.StatusService, execSvc types.ExecService, positionSvc types.PositionService, poolSvc types.PoolService) *Server {
	return newServer(config, statusSvc, execSvc, positionSvc, poolSvc)
}

func newServer(config *Config, statusSvc types.StatusService, execSvc types.ExecService, positionSvc types.PositionService, poolSvc types.PoolService) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	wsConfig := websocket.DefaultServerConfig()
	wsConfig.Port = config.Port

	s := &Server{
		config:          config,
		wsServer:        websocket.NewServer(wsConfig),
		statusService:   statusSvc,
		execService:     execSvc,
		positionService: positionSvc,
		poolService:     poolSvc,
		rateLimiter:     middleware.NewRateLimiter(middleware.DefaultRateLimitConfig()),
		collector:       metrics.GetCollector(),
	}

	s.execHandler = handlers.NewExecHandler(s.execService)
	s.positionHandler = handlers.NewPositionHandler(s.positionService)
	s.poolHandler = handlers.NewPoolHandler(s.poolService)

	return s
}

// Start starts the API server
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Health check (support both /health and /v1/health for compatibility)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/health", s.handleHealth)

	// Market status and price history
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/prices", s.handlePrices)

	// Deferred execution queue
	mux.HandleFunc("/v1/deferred-execs", s.execHandler.HandleDeferredExecs)
	mux.HandleFunc("/v1/deferred-execs/", s.execHandler.HandleDeferredExec)

	// Positions and limit orders
	mux.HandleFunc("/v1/positions", s.positionHandler.HandlePositions)
	mux.HandleFunc("/v1/orders", s.positionHandler.HandleLimitOrders)

	// Liquidity pool
	mux.HandleFunc("/v1/pool", s.poolHandler.HandlePool)

	// Standalone write path
	if s.keeperService != nil {
		mux.HandleFunc("/v1/crank", s.handleCrank)
	}

	// WebSocket
	mux.HandleFunc("/ws", s.wsServer.GetHub().ServeWS)

	// Prometheus metrics
	mux.Handle("/metrics", metrics.Handler())

	// Apply middleware chain: CORS -> RateLimit -> Handler
	var handler http.Handler
	if s.config.DisableRateLimit {
		handler = corsMiddleware(mux)
	} else {
		handler = corsMiddleware(
			middleware.RateLimitMiddleware(s.rateLimiter)(mux),
		)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	// Start WebSocket hub
	go s.wsServer.GetHub().Run()

	// Start the status broadcaster
	go s.runBroadcaster()

	log.Printf("API server starting on %s (standalone: %v)", addr, s.keeperService != nil)
	if s.config.DisableRateLimit {
		log.Printf("Rate limiting DISABLED (for testing)")
	}
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// runBroadcaster periodically snapshots status for WebSocket subscribers and
// keeps the queue and price gauges current.
func (s *Server) runBroadcaster() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		status, err := s.statusService.GetStatus(context.Background())
		if err != nil {
			continue
		}

		s.wsServer.BroadcastStatus(&websocket.StatusMessage{
			QueueDepth:      status.QueueDepth,
			OpenPositions:   status.OpenPositions,
			OpenLimitOrders: status.OpenLimitOrders,
			CrankRewards:    status.CrankRewards,
			NextCrank:       status.NextCrank,
			WoundDown:       status.WoundDown,
			Timestamp:       types.NowMillis(),
		})

		s.collector.QueueDepth.Set(float64(status.QueueDepth))
		if status.LatestPrice != nil {
			s.wsServer.BroadcastPrice(&websocket.PriceMessage{
				PriceNotional: status.LatestPrice.PriceNotional,
				PriceUsd:      status.LatestPrice.PriceUsd,
				PriceBase:     status.LatestPrice.PriceBase,
				Timestamp:     status.LatestPrice.Timestamp,
			})
			staleness := float64(types.NowMillis()-status.LatestPrice.Timestamp) / 1000.0
			s.collector.PriceStaleness.Set(staleness)
		}
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	mode := "chain"
	modeDescription := "Serving queries from a remote chain node"
	if s.keeperService != nil {
		mode = "standalone"
		modeDescription = "Using in-memory keeper state (development/testing)"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "healthy",
		"timestamp":        time.Now().Unix(),
		"mode":             mode,
		"mode_description": modeDescription,
	})
}

// handleStatus handles GET /v1/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	status, err := s.statusService.GetStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handlePrices handles /v1/prices: GET lists history, POST appends a price
// point in standalone mode.
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := 100
		if l := r.URL.Query().Get("limit"); l != "" {
			fmt.Sscanf(l, "%d", &limit)
		}
		prices, err := s.statusService.GetPrices(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"prices": prices,
			"total":  len(prices),
		})

	case http.MethodPost:
		if s.keeperService == nil {
			writeError(w, http.StatusNotImplemented, "Price submission requires standalone mode")
			return
		}
		var req types.SubmitPriceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if req.PriceBase == "" {
			writeError(w, http.StatusBadRequest, "price_base is required")
			return
		}
		point, err := s.keeperService.SubmitPrice(&req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.collector.PricesAppended.Inc()
		writeJSON(w, http.StatusOK, map[string]interface{}{"price": point})

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleCrank handles POST /v1/crank in standalone mode
func (s *Server) handleCrank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req types.CrankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	timer := metrics.NewTimer()
	resp, err := s.keeperService.RunCrank(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.collector.RecordCrankBatch(resp.Work, timer.ElapsedMs())

	s.wsServer.BroadcastCrank(&websocket.CrankMessage{
		Cranker:   req.Cranker,
		Processed: resp.Processed,
		Work:      resp.Work,
		Timestamp: types.NowMillis(),
	})

	writeJSON(w, http.StatusOK, resp)
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": message,
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Trader-Address")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
