// Package camclient is a Go client for the camsession WebSocket gateway.
//
// Example:
//
//	c, err := camclient.Dial(ctx, "ws://127.0.0.1:8790/ws",
//	    camclient.WithToken(os.Getenv("CAMSESSION_TOKEN")),
//	)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//	size, err := c.Initialize(ctx, camclient.CreateOptions{DeviceID: "synthetic:0"})
//	path, err := c.TakePicture(ctx, "synthetic:0", "")
package camclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// ErrClosed is returned by calls made on, or interrupted by, a closed client.
var ErrClosed = errors.New("camclient: connection closed")

// Error is a failed RPC as reported by the gateway.
type Error struct {
	Method  string
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Method, e.Code, e.Message)
}

// IsCode reports whether err is a gateway error with the given code.
func IsCode(err error, code string) bool {
	var rpcErr *Error
	return errors.As(err, &rpcErr) && rpcErr.Code == code
}

type frame struct {
	Type    string          `json:"type"`
	ID      uint64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Code    string          `json:"code,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client is a single gateway connection. It is safe for concurrent use.
type Client struct {
	ws     *websocket.Conn
	logger *slog.Logger
	events chan Event

	nextID  atomic.Uint64
	mu      sync.Mutex
	pending map[uint64]chan frame
	err     error

	cancel context.CancelFunc
	done   chan struct{}
}

// Dial connects to the gateway's /ws endpoint.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	o := options{logger: slog.Default(), eventBuffer: 64}
	for _, opt := range opts {
		opt(&o)
	}
	header := http.Header{}
	if o.token != "" {
		header.Set("Authorization", "Bearer "+o.token)
	}
	ws, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient: o.httpClient,
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("camclient: dial %s: %w", url, err)
	}
	ws.SetReadLimit(1 << 20)

	readCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		ws:      ws,
		logger:  o.logger,
		events:  make(chan Event, o.eventBuffer),
		pending: make(map[uint64]chan frame),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go c.readLoop(readCtx)
	return c, nil
}

// Events delivers session notifications. The channel is closed when the
// connection ends. Events are dropped while the buffer is full.
func (c *Client) Events() <-chan Event { return c.events }

// Close ends the connection and fails every outstanding call.
func (c *Client) Close() error {
	c.cancel()
	err := c.ws.Close(websocket.StatusNormalClosure, "")
	<-c.done
	return err
}

func (c *Client) readLoop(ctx context.Context) {
	defer close(c.done)
	defer close(c.events)
	for {
		var f frame
		if err := wsjson.Read(ctx, c.ws, &f); err != nil {
			c.fail(err)
			return
		}
		switch f.Type {
		case "response":
			c.mu.Lock()
			ch, ok := c.pending[f.ID]
			delete(c.pending, f.ID)
			c.mu.Unlock()
			if ok {
				ch <- f
			}
		case "event":
			var ev Event
			if err := json.Unmarshal(f.Payload, &ev); err != nil {
				c.logger.Warn("camclient: bad event", "error", err)
				continue
			}
			select {
			case c.events <- ev:
			default:
				c.logger.Warn("camclient: dropped event", "type", ev.Type)
			}
		}
	}
}

// fail wakes every waiting call once the connection is gone.
func (c *Client) fail(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = fmt.Errorf("%w: %v", ErrClosed, cause)
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// Call invokes method with params and decodes the result into out.
// out may be nil.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	var payload json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("camclient: marshal %s params: %w", method, err)
		}
		payload = data
	}

	id := c.nextID.Add(1)
	ch := make(chan frame, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	req := frame{Type: "request", ID: id, Method: method, Payload: payload}
	if err := wsjson.Write(ctx, c.ws, req); err != nil {
		c.forget(id)
		return fmt.Errorf("camclient: send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.err
		}
		if resp.Code != "" || resp.Error != "" {
			return &Error{Method: method, Code: resp.Code, Message: resp.Error}
		}
		if out == nil || len(resp.Payload) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Payload, out); err != nil {
			return fmt.Errorf("camclient: decode %s result: %w", method, err)
		}
		return nil
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
