package notifications

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"jobfeed/internal/middleware"
	"jobfeed/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per authenticated user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

var (
	ErrHubFull      = errors.New("server connection limit reached")
	ErrUserConnsMax = errors.New("user connection limit reached")
	ErrHubClosed    = errors.New("feed hub is shutting down")
)

// FeedHub fans feed events out to live websocket viewers. Anonymous viewers
// receive the public feed; signed-in viewers also get their own
// notifications.
type FeedHub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	byUser  map[uint]map[*Client]struct{}
	closed  bool
}

// NewFeedHub creates an empty hub.
func NewFeedHub() *FeedHub {
	return &FeedHub{
		clients: make(map[*Client]struct{}),
		byUser:  make(map[uint]map[*Client]struct{}),
	}
}

// Register adds a connection. userID is zero for anonymous viewers.
func (h *FeedHub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if len(h.clients) >= maxTotalConns {
		return nil, ErrHubFull
	}
	if userID != 0 && len(h.byUser[userID]) >= maxConnsPerUser {
		return nil, ErrUserConnsMax
	}

	client := newClient(h, conn, userID)
	h.clients[client] = struct{}{}
	if userID != 0 {
		m, ok := h.byUser[userID]
		if !ok {
			m = make(map[*Client]struct{})
			h.byUser[userID] = m
		}
		m[client] = struct{}{}
	}
	observability.FeedConnections.Inc()
	return client, nil
}

// Unregister removes the client and closes its send channel. Calling it
// twice is safe.
func (h *FeedHub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	if m, ok := h.byUser[c.UserID]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byUser, c.UserID)
		}
	}
	c.closeSend()
	observability.FeedConnections.Dec()
}

// Count returns the number of live connections.
func (h *FeedHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastAll sends message to every connected viewer.
func (h *FeedHub) BroadcastAll(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.TrySend(message)
	}
}

// SendToUser sends message to every connection of userID.
func (h *FeedHub) SendToUser(userID uint, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.byUser[userID] {
		c.TrySend(message)
	}
}

// StartWiring relays Redis feed traffic into the hub until ctx is done.
func (h *FeedHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartFeedSubscriber(ctx, func(channel, payload string) {
		if channel == FeedChannel {
			h.BroadcastAll([]byte(payload))
			return
		}
		raw, ok := strings.CutPrefix(channel, "notifications:user:")
		if !ok {
			return
		}
		userID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			middleware.Logger.Warn("invalid notification channel", slog.String("channel", channel))
			return
		}
		h.SendToUser(uint(userID), []byte(payload))
	})
}

// Shutdown unregisters every client; each WritePump then sends the close
// frame on its own connection. New registrations are refused afterwards.
func (h *FeedHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.Unregister(c)
	}
	return nil
}
