package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrClientClosed is returned by calls made on, or pending at, a closed Client.
var ErrClientClosed = errors.New("rpc: client closed")

// Client is a host-side connection used by the CLI and by tests.
type Client struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan frame
	err     error

	notifications chan Notification
	done          chan struct{}
}

// Dial connects to a pipd websocket endpoint such as ws://127.0.0.1:8765/ws.
func Dial(ctx context.Context, url string) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		ws:            ws,
		pending:       make(map[int64]chan frame),
		notifications: make(chan Notification, sendBuffer),
		done:          make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Notifications delivers notifications sent by the plugin. The channel is
// closed when the connection ends.
func (c *Client) Notifications() <-chan Notification {
	return c.notifications
}

// Call sends a request and waits for its response. A response carrying an
// error is returned as *Error.
func (c *Client) Call(ctx context.Context, method string, args any) (json.RawMessage, error) {
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encode arguments: %w", err)
		}
		raw = b
	}

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.nextID++
	id := c.nextID
	ch := make(chan frame, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	err := c.ws.WriteJSON(Request{ID: id, Method: method, Args: raw})
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case f := <-ch:
		if f.Error != nil {
			return nil, f.Error
		}
		return f.Result, nil
	case <-c.done:
		return nil, ErrClientClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CallBool is Call for methods whose result is a boolean.
func (c *Client) CallBool(ctx context.Context, method string, args any) (bool, error) {
	raw, err := c.Call(ctx, method, args)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := json.Unmarshal(raw, &ok); err != nil {
		return false, fmt.Errorf("decode %s result: %w", method, err)
	}
	return ok, nil
}

// Close ends the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	err := c.ws.Close()
	<-c.done
	return err
}

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		if c.err == nil {
			c.err = ErrClientClosed
		}
		c.mu.Unlock()
		close(c.notifications)
		close(c.done)
	}()

	for {
		var f frame
		if err := c.ws.ReadJSON(&f); err != nil {
			c.mu.Lock()
			c.err = fmt.Errorf("%w: %v", ErrClientClosed, err)
			c.mu.Unlock()
			return
		}

		if f.Method != "" {
			n := Notification{Method: f.Method}
			var args any
			if len(f.Args) > 0 && json.Unmarshal(f.Args, &args) == nil {
				n.Args = args
			}
			select {
			case c.notifications <- n:
			default:
			}
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[f.ID]
		c.mu.Unlock()
		if ok {
			ch <- f
		}
	}
}
