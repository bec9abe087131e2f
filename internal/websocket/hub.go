package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/elo-ledger/internal/domain"
)

// Message types
const (
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeError       = "error"
)

// ErrHubBusy is returned when the broadcast queue is full
var ErrHubBusy = errors.New("websocket broadcast queue full")

// Message represents a WebSocket message. Ledger events use the
// notification type (match_recorded, match_undone, starter_set).
type Message struct {
	Type          string    `json:"type"`
	LeaderboardID string    `json:"leaderboard_id,omitempty"`
	Data          any       `json:"data,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// outbound is a message addressed to the subscribers of several leaderboards
type outbound struct {
	message *Message
	targets []string
}

// Hub maintains the set of active clients and broadcasts ledger events to
// the subscribers of the affected leaderboards
type Hub struct {
	// Registered clients by leaderboard ID
	clients map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *outbound
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	mu     sync.RWMutex
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client        *Client
	leaderboardID string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *outbound, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				for lbID, clients := range h.clients {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.clients, lbID)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.clients[req.leaderboardID]; !ok {
				h.clients[req.leaderboardID] = make(map[*Client]bool)
			}
			h.clients[req.leaderboardID][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "leaderboard_id", req.leaderboardID)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.clients[req.leaderboardID]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.leaderboardID)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "leaderboard_id", req.leaderboardID)

		case out := <-h.broadcast:
			h.broadcastMessage(out)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message once to every client subscribed to any of
// its targets. A message without targets goes to every client.
func (h *Hub) broadcastMessage(out *outbound) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(out.message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	recipients := make(map[*Client]bool)
	if len(out.targets) == 0 {
		recipients = h.allClients
	}
	for _, id := range out.targets {
		for client := range h.clients[id] {
			recipients[client] = true
		}
	}

	for client := range recipients {
		select {
		case client.send <- data:
		default:
			// Client's buffer is full, skip
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

// Notify broadcasts a ledger notification to the subscribers of its all-time
// leaderboard and of its season
func (h *Hub) Notify(_ context.Context, n domain.Notification) error {
	targets := []string{n.LeaderboardID}
	if n.SeasonID != "" {
		targets = append(targets, n.SeasonID)
	}
	out := &outbound{
		message: &Message{
			Type:          string(n.Type),
			LeaderboardID: n.LeaderboardID,
			Data:          n,
			Timestamp:     time.Now().UTC(),
		},
		targets: targets,
	}

	select {
	case h.broadcast <- out:
		return nil
	default:
		return ErrHubBusy
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a leaderboard subscription
func (h *Hub) Subscribe(client *Client, leaderboardID string) {
	h.subscribe <- &subscriptionRequest{
		client:        client,
		leaderboardID: leaderboardID,
	}
}

// Unsubscribe removes a client from a leaderboard subscription
func (h *Hub) Unsubscribe(client *Client, leaderboardID string) {
	h.unsubscribe <- &subscriptionRequest{
		client:        client,
		leaderboardID: leaderboardID,
	}
}

// GetSubscriberCount returns the number of subscribers for a leaderboard
func (h *Hub) GetSubscriberCount(leaderboardID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.clients[leaderboardID]; ok {
		return len(clients)
	}
	return 0
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
