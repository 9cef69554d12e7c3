package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nhle/taskhub/internal/credential"
)

// Frame operations on the push wire.
const (
	opSubscribe   = "subscribe"
	opUnsubscribe = "unsubscribe"
	opSnapshot    = "snapshot"
	opError       = "error"
)

const (
	writeTimeout     = 10 * time.Second
	minReconnectWait = time.Second
	maxReconnectWait = 30 * time.Second
)

// ErrClosed is returned when subscribing on a closed channel.
var ErrClosed = errors.New("realtime channel closed")

// frame is the JSON envelope exchanged with the push server.
type frame struct {
	Op      string          `json:"op"`
	ID      string          `json:"id,omitempty"`
	Path    string          `json:"path,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

type wsSub struct {
	listener
	id string
	ch *WSChannel
}

func (s *wsSub) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.ch.remove(s)
}

// WSChannel is a Channel over a single websocket connection. It reconnects
// with backoff when the connection drops and re-subscribes every open
// subscription.
type WSChannel struct {
	url    string
	tokens credential.TokenStore
	dialer *websocket.Dialer
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	subs   map[string]*wsSub
	closed bool

	writeMu sync.Mutex
	done    chan struct{}
}

// WSOption customizes a WSChannel.
type WSOption func(*WSChannel)

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) WSOption {
	return func(c *WSChannel) { c.dialer = d }
}

// WithWSLogger sets the logger.
func WithWSLogger(l *slog.Logger) WSOption {
	return func(c *WSChannel) { c.logger = l }
}

// DialWS connects to the push server at url, authenticating with the
// stored bearer token.
func DialWS(ctx context.Context, url string, tokens credential.TokenStore, opts ...WSOption) (*WSChannel, error) {
	c := &WSChannel{
		url:    url,
		tokens: tokens,
		dialer: websocket.DefaultDialer,
		logger: slog.Default(),
		subs:   make(map[string]*wsSub),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.conn = conn

	go c.readLoop(conn)
	return c, nil
}

func (c *WSChannel) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.tokens != nil {
		if token, err := c.tokens.Token(); err == nil && token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dialing realtime %s: %w", c.url, err)
	}
	return conn, nil
}

// Subscribe opens a listener on path.
func (c *WSChannel) Subscribe(_ context.Context, path string, h Handler) (Subscription, error) {
	sub := &wsSub{
		listener: listener{path: path, handler: h},
		id:       uuid.New().String(),
		ch:       c,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.subs[sub.id] = sub
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		if err := c.write(conn, frame{Op: opSubscribe, ID: sub.id, Path: path}); err != nil {
			// The read loop will reconnect and re-subscribe.
			c.logger.Warn("realtime subscribe deferred", "path", path, "err", err)
		}
	}
	return sub, nil
}

func (c *WSChannel) remove(s *wsSub) {
	c.mu.Lock()
	delete(c.subs, s.id)
	conn := c.conn
	closed := c.closed
	c.mu.Unlock()

	if conn == nil || closed {
		return
	}
	// The listener is already detached; the frame only tells the server.
	// A stalled connection must not hold up the caller.
	go func() {
		if err := c.write(conn, frame{Op: opUnsubscribe, ID: s.id, Path: s.path}); err != nil {
			c.logger.Debug("realtime unsubscribe not sent", "path", s.path, "err", err)
		}
	}()
}

// Close shuts the connection. Subscriptions stop receiving snapshots.
func (c *WSChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	for _, s := range c.subs {
		s.closed.Store(true)
	}
	c.subs = make(map[string]*wsSub)
	c.mu.Unlock()

	close(c.done)
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		return conn.Close()
	}
	return nil
}

func (c *WSChannel) write(conn *websocket.Conn, f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop dispatches frames until the connection fails, then reconnects.
func (c *WSChannel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}
			c.logger.Warn("realtime connection lost", "err", err)
			conn = c.reconnect()
			if conn == nil {
				return
			}
			continue
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn("realtime frame ignored", "err", err)
			continue
		}
		c.dispatch(f)
	}
}

func (c *WSChannel) dispatch(f frame) {
	switch f.Op {
	case opSnapshot:
		c.mu.Lock()
		sub := c.subs[f.ID]
		c.mu.Unlock()
		if sub == nil {
			return
		}
		sub.deliver(makeSnapshot(sub.path, f.Data))
	case opError:
		c.logger.Warn("realtime subscription error", "id", f.ID, "message", f.Message)
	}
}

// reconnect dials with exponential backoff until it succeeds or the
// channel is closed, then re-subscribes every open subscription.
func (c *WSChannel) reconnect() *websocket.Conn {
	wait := minReconnectWait
	for {
		select {
		case <-c.done:
			return nil
		case <-time.After(wait):
		}

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		conn, err := c.dial(ctx)
		cancel()
		if err != nil {
			c.logger.Debug("realtime reconnect failed", "wait", wait, "err", err)
			wait *= 2
			if wait > maxReconnectWait {
				wait = maxReconnectWait
			}
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		old := c.conn
		c.conn = conn
		subs := make([]*wsSub, 0, len(c.subs))
		for _, s := range c.subs {
			subs = append(subs, s)
		}
		c.mu.Unlock()

		if old != nil {
			_ = old.Close()
		}
		for _, s := range subs {
			if err := c.write(conn, frame{Op: opSubscribe, ID: s.id, Path: s.path}); err != nil {
				c.logger.Warn("realtime resubscribe failed", "path", s.path, "err", err)
			}
		}
		c.logger.Info("realtime reconnected", "subscriptions", len(subs))
		return conn
	}
}

func (c *WSChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
