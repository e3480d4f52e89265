package notifications

import (
	"log/slog"
	"sync"
	"time"

	"jobfeed/internal/middleware"
	"jobfeed/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10 // must stay below pongWait

	// viewers never send data frames; this only bounds control traffic
	maxMessageSize = 1024

	sendBuffer = 64
)

// dropNotice takes the last buffer slot of a lagging viewer so the client
// knows to re-fetch instead of trusting its incremental view.
var dropNotice = []byte(`{"type":"messages_dropped","data":{"reason":"buffer_full"}}`)

// Client is one live feed connection. The hub owns Send: only TrySend
// writes to it and only the hub closes it.
type Client struct {
	hub    *FeedHub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID uint // zero for anonymous viewers

	mu      sync.Mutex
	closed  bool
	lagging bool
}

func newClient(hub *FeedHub, conn *websocket.Conn, userID uint) *Client {
	return &Client{hub: hub, Conn: conn, UserID: userID, Send: make(chan []byte, sendBuffer)}
}

// TrySend queues message without blocking. A viewer whose buffer is full
// loses messages; the first loss of a run queues dropNotice instead.
func (c *Client) TrySend(message []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	switch {
	case len(c.Send) < cap(c.Send)-1:
		c.Send <- message
		c.lagging = false
	case !c.lagging:
		c.Send <- dropNotice
		c.lagging = true
		observability.FeedBackpressureDrops.Inc()
	default:
		observability.FeedBackpressureDrops.Inc()
	}
}

// closeSend closes Send once; WritePump then says goodbye to the peer.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// ReadPump keeps the read deadline fresh from pongs and returns when the
// peer disconnects, unregistering the client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	extend := func() error { return c.Conn.SetReadDeadline(time.Now().Add(pongWait)) }
	_ = extend()
	c.Conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, _, err := c.Conn.ReadMessage()
		if err == nil {
			continue
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			middleware.Logger.Warn("feed socket closed unexpectedly",
				slog.Uint64("user_id", uint64(c.UserID)), slog.String("error", err.Error()))
		}
		return
	}
}

// WritePump delivers queued messages and pings until Send is closed or a
// write fails.
func (c *Client) WritePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.Conn.Close()
	}()

	write := func(kind int, data []byte) error {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.Conn.WriteMessage(kind, data)
	}

	for {
		select {
		case <-ping.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		case msg, open := <-c.Send:
			if !open {
				_ = write(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closing"))
				return
			}
			if write(websocket.TextMessage, msg) != nil {
				return
			}
		}
	}
}
