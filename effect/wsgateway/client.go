package wsgateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hupe1980/lifemesh/effect"
	"github.com/hupe1980/lifemesh/internal/schema"
	"github.com/hupe1980/lifemesh/logging"
	"github.com/hupe1980/lifemesh/queue"
)

// ErrClosed is returned by calls on a closed client.
var ErrClosed = errors.New("wsgateway: connection closed")

// DialOptions configures Dial.
type DialOptions struct {
	Header http.Header
	Logger logging.Logger
}

type subscription struct {
	id      uint64
	prefix  string
	events  []string
	handler effect.EventHandler
}

// Client is the client side of the gateway. It implements effect.Gateway.
type Client struct {
	conn   *websocket.Conn
	logger logging.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan frame
	subs    []subscription
	nextSub uint64
	closed  bool

	// events buffers received event frames for the dispatch goroutine so
	// handlers may issue calls without blocking the reader.
	events *queue.Queue[frame]

	done chan struct{}
	once sync.Once
}

var _ effect.Gateway = (*Client)(nil)

// Dial connects to a gateway served by Handler.
func Dial(ctx context.Context, url string, optFns ...func(o *DialOptions)) (*Client, error) {
	opts := DialOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, opts.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c := &Client{
		conn:    conn,
		logger:  logging.OrNoOp(opts.Logger),
		pending: make(map[string]chan frame),
		events:  queue.New[frame](),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	go c.dispatchLoop()
	return c, nil
}

// Call implements effect.Gateway. Remote failures are returned as
// *effect.RemoteError.
func (c *Client) Call(ctx context.Context, method string, expect *schema.Schema) (any, error) {
	id := uuid.NewString()
	respCh := make(chan frame, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = respCh
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(frame{ID: id, Method: method})
	c.writeMu.Unlock()
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	case resp := <-respCh:
		if resp.Error != "" {
			return nil, &effect.RemoteError{Method: method, Message: resp.Error}
		}
		var v any
		if len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, &v); err != nil {
				return nil, err
			}
		}
		return effect.CheckResult(method, expect, v)
	}
}

// Subscribe implements effect.Gateway.
func (c *Client) Subscribe(prefix string, events []string, handler effect.EventHandler) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, subscription{id: id, prefix: prefix, events: events, handler: handler})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}, nil
}

// Close closes the connection and fails pending calls.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		err = c.conn.Close()
		c.events.Stop()
		close(c.done)
	})
	return err
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) readLoop() {
	defer func() { _ = c.Close() }()

	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			c.logger.Debug("wsgateway.client_read_failed", "error", err)
			return
		}

		if f.Event != "" {
			c.events.Push(f)
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

// dispatchLoop delivers event frames in read order until the client closes.
func (c *Client) dispatchLoop() {
	for {
		f, ok, _ := c.events.Next(context.Background())
		if !ok {
			return
		}
		c.dispatch(f)
	}
}

// dispatch runs the handlers matching f.
func (c *Client) dispatch(f frame) {
	c.mu.Lock()
	subs := append([]subscription(nil), c.subs...)
	c.mu.Unlock()

	for _, s := range subs {
		if effect.MatchEvent(s.prefix, s.events, f.Event) {
			s.handler(f.Event, f.Data)
		}
	}
}
