package rpc

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/sunbird89629/pip-plugin/internal/logger"
)

// sendBuffer is the number of outbound frames queued per connection before
// notifications to that connection are dropped.
const sendBuffer = 32

// writeWait bounds a single frame write to a host.
const writeWait = 10 * time.Second

// Hub tracks connected hosts and fans notifications out to them. It
// implements pip.Notifier.
type Hub struct {
	mu      sync.RWMutex
	clients map[*conn]struct{}
	log     *zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*conn]struct{}),
		log:     logger.WithComponent("rpc"),
	}
}

// Notify queues a notification for every connected host. It never blocks: a
// host that is not draining its connection misses the notification.
func (h *Hub) Notify(method string, payload any) {
	n := Notification{Method: method, Args: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		h.log.Debug().Str("method", method).Msg("Notification with no connected host")
		return
	}
	for c := range h.clients {
		if !c.enqueue(n) {
			h.log.Warn().Str("client", c.id.String()).Str("method", method).Msg("Dropping notification for slow host")
		}
	}
}

// Count returns the number of connected hosts.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// disconnectAll closes every websocket; the handlers then unregister.
func (h *Hub) disconnectAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.ws.Close()
	}
}

func (h *Hub) add(c *conn) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.log.Info().Str("client", c.id.String()).Str("remote", c.ws.RemoteAddr().String()).Int("clients", total).Msg("Host connected")
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	delete(h.clients, c)
	total := len(h.clients)
	h.mu.Unlock()
	h.log.Info().Str("client", c.id.String()).Int("clients", total).Msg("Host disconnected")
}

// conn is one websocket connection. Reads happen on the handler goroutine,
// writes on writeLoop. No method holds a lock while waiting on send, so a
// host that stops reading can only stall its own replies.
type conn struct {
	id uuid.UUID
	ws *websocket.Conn

	send      chan any
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		id:   uuid.New(),
		ws:   ws,
		send: make(chan any, sendBuffer),
		done: make(chan struct{}),
	}
}

// enqueue adds a frame without blocking and reports whether it was queued.
func (c *conn) enqueue(v any) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- v:
		return true
	default:
		return false
	}
}

// reply queues a response. Responses wait for room in the buffer instead of
// being dropped, until the connection is closed.
func (c *conn) reply(v any) {
	select {
	case c.send <- v:
	case <-c.done:
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *conn) writeLoop(log *zerolog.Logger) {
	for {
		select {
		case v := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(v); err != nil {
				log.Debug().Err(err).Str("client", c.id.String()).Msg("WebSocket write error")
				c.close()
				c.ws.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
