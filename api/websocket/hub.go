package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by channel
	clients  map[*Client]bool
	channels map[string]map[*Client]bool // channel -> clients

	// Inbound messages from clients
	broadcast chan []byte

	// Register/unregister requests
	register   chan *Client
	unregister chan *Client

	// Channel subscription requests
	subscribe   chan *SubscriptionRequest
	unsubscribe chan *SubscriptionRequest

	// Buffered snapshots, rebroadcast on a fixed interval
	priceBuffer  *PriceMessage
	statusBuffer *StatusMessage

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Configuration
	config *HubConfig
}

// HubConfig contains hub configuration
type HubConfig struct {
	// Update intervals
	PriceInterval  time.Duration // Default: 500ms
	StatusInterval time.Duration // Default: 1s

	// Connection limits
	MaxClientsPerIP  int
	MaxSubscriptions int

	// Rate limiting
	MessageRateLimit int // Messages per second per client
}

// DefaultHubConfig returns default hub configuration
func DefaultHubConfig() *HubConfig {
	return &HubConfig{
		PriceInterval:    500 * time.Millisecond,
		StatusInterval:   time.Second,
		MaxClientsPerIP:  10,
		MaxSubscriptions: 50,
		MessageRateLimit: 100,
	}
}

// SubscriptionRequest represents a subscription request
type SubscriptionRequest struct {
	Client  *Client
	Channel string
	Action  string // "subscribe" or "unsubscribe"
}

// NewHub creates a new Hub
func NewHub(config *HubConfig) *Hub {
	if config == nil {
		config = DefaultHubConfig()
	}

	return &Hub{
		clients:     make(map[*Client]bool),
		channels:    make(map[string]map[*Client]bool),
		broadcast:   make(chan []byte, 256),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan *SubscriptionRequest, 256),
		unsubscribe: make(chan *SubscriptionRequest, 256),
		config:      config,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	priceTicker := time.NewTicker(h.config.PriceInterval)
	statusTicker := time.NewTicker(h.config.StatusInterval)

	defer priceTicker.Stop()
	defer statusTicker.Stop()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case req := <-h.subscribe:
			h.handleSubscription(req)

		case req := <-h.unsubscribe:
			h.handleUnsubscription(req)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case <-priceTicker.C:
			h.broadcastPrice()

		case <-statusTicker.C:
			h.broadcastStatus()
		}
	}
}

// registerClient adds a new client
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
}

// unregisterClient removes a client
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)

		// Remove from all channels
		for channel, clients := range h.channels {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.channels, channel)
			}
		}

		close(client.send)
	}
}

// handleSubscription handles a subscription request
func (h *Hub) handleSubscription(req *SubscriptionRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	channel := req.Channel
	client := req.Client

	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*Client]bool)
	}
	h.channels[channel][client] = true

	// Send subscription confirmation
	confirmation := &WSMessage{
		Type:    "subscribed",
		Channel: channel,
		Data:    nil,
	}
	data, _ := json.Marshal(confirmation)
	client.send <- data
}

// handleUnsubscription handles an unsubscription request
func (h *Hub) handleUnsubscription(req *SubscriptionRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	channel := req.Channel
	client := req.Client

	if clients, ok := h.channels[channel]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.channels, channel)
		}
	}

	// Send unsubscription confirmation
	confirmation := &WSMessage{
		Type:    "unsubscribed",
		Channel: channel,
		Data:    nil,
	}
	data, _ := json.Marshal(confirmation)
	client.send <- data
}

// broadcastMessage sends a message to all clients
func (h *Hub) broadcastMessage(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			// Client buffer is full, skip
		}
	}
}

// BroadcastToChannel sends a message to all clients subscribed to a channel
func (h *Hub) BroadcastToChannel(channel string, message interface{}) {
	h.mu.RLock()
	clients, ok := h.channels[channel]
	if !ok {
		h.mu.RUnlock()
		return
	}

	// Make a copy of clients to avoid holding lock during send
	clientList := make([]*Client, 0, len(clients))
	for client := range clients {
		clientList = append(clientList, client)
	}
	h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	for _, client := range clientList {
		select {
		case client.send <- data:
		default:
			// Client buffer is full, skip
		}
	}
}

// ============ Channel-specific broadcasts ============

// UpdatePrice updates the buffered price snapshot
func (h *Hub) UpdatePrice(price *PriceMessage) {
	h.mu.Lock()
	h.priceBuffer = price
	h.mu.Unlock()
}

// UpdateStatus updates the buffered status snapshot
func (h *Hub) UpdateStatus(status *StatusMessage) {
	h.mu.Lock()
	h.statusBuffer = status
	h.mu.Unlock()
}

// broadcastPrice broadcasts the latest price snapshot
func (h *Hub) broadcastPrice() {
	h.mu.RLock()
	price := h.priceBuffer
	h.mu.RUnlock()

	if price == nil {
		return
	}
	msg := &WSMessage{
		Type:    "price",
		Channel: "prices",
		Data:    price,
	}
	h.BroadcastToChannel("prices", msg)
}

// broadcastStatus broadcasts the latest status snapshot
func (h *Hub) broadcastStatus() {
	h.mu.RLock()
	status := h.statusBuffer
	h.mu.RUnlock()

	if status == nil {
		return
	}
	msg := &WSMessage{
		Type:    "status",
		Channel: "status",
		Data:    status,
	}
	h.BroadcastToChannel("status", msg)
}

// BroadcastCrank broadcasts a completed crank batch to subscribers
func (h *Hub) BroadcastCrank(crank *CrankMessage) {
	msg := &WSMessage{
		Type:    "crank",
		Channel: "crank",
		Data:    crank,
	}
	h.BroadcastToChannel("crank", msg)
}

// BroadcastExecResult broadcasts a deferred execution result to its owner
func (h *Hub) BroadcastExecResult(owner string, exec *ExecMessage) {
	channel := "execs:" + owner
	msg := &WSMessage{
		Type:    "exec",
		Channel: channel,
		Data:    exec,
	}
	h.BroadcastToChannel(channel, msg)
}

// BroadcastPosition broadcasts a position update to its owner
func (h *Hub) BroadcastPosition(owner string, position *PositionMessage) {
	channel := "positions:" + owner
	msg := &WSMessage{
		Type:    "position",
		Channel: channel,
		Data:    position,
	}
	h.BroadcastToChannel(channel, msg)
}

// ============ Message Types ============

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Channel string      `json:"channel"`
	Data    interface{} `json:"data,omitempty"`
}

// PriceMessage represents a price point update
type PriceMessage struct {
	PriceNotional string `json:"price_notional"`
	PriceUsd      string `json:"price_usd"`
	PriceBase     string `json:"price_base"`
	Timestamp     int64  `json:"timestamp"`
}

// StatusMessage represents a market status snapshot
type StatusMessage struct {
	QueueDepth      uint32 `json:"queue_depth"`
	OpenPositions   uint32 `json:"open_positions"`
	OpenLimitOrders uint32 `json:"open_limit_orders"`
	CrankRewards    string `json:"crank_rewards"`
	NextCrank       string `json:"next_crank,omitempty"`
	WoundDown       bool   `json:"wound_down"`
	Timestamp       int64  `json:"timestamp"`
}

// CrankMessage represents a completed crank batch
type CrankMessage struct {
	Cranker   string   `json:"cranker"`
	Processed int      `json:"processed"`
	Work      []string `json:"work"`
	Timestamp int64    `json:"timestamp"`
}

// ExecMessage represents a deferred execution result
type ExecMessage struct {
	Id        uint64 `json:"id"`
	Owner     string `json:"owner"`
	Variant   string `json:"variant"`
	Status    string `json:"status"` // "success" or "failure"
	Reason    string `json:"reason,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// PositionMessage represents a position update
type PositionMessage struct {
	Id               uint64 `json:"id"`
	Owner            string `json:"owner"`
	Direction        string `json:"direction"`
	ActiveCollateral string `json:"active_collateral"`
	NotionalSize     string `json:"notional_size"`
	Leverage         string `json:"leverage"`
	EntryPrice       string `json:"entry_price"`
	Timestamp        int64  `json:"timestamp"`
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetChannelCount returns the number of active channels
func (h *Hub) GetChannelCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels)
}

// GetChannelClientCount returns the number of clients in a channel
func (h *Hub) GetChannelClientCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.channels[channel]; ok {
		return len(clients)
	}
	return 0
}

// ServeWS handles WebSocket upgrade requests
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = generateID()
	}

	owner := r.URL.Query().Get("owner")
	ip := getClientIPFromRequest(r)

	client := NewClient(h, conn, clientID, owner, ip)

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// Helper function to get client IP
func getClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	for i := len(ip) - 1; i >= 0; i-- {
		if ip[i] == ':' {
			return ip[:i]
		}
	}
	return ip
}

// Generate a simple ID
func generateID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
