// Package wsconn provides a WebSocket client with reconnection.
package wsconn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	jsoniter "github.com/json-iterator/go"

	"github.com/fd1az/dexswap/internal/apperror"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// ErrClosed is returned by operations on a closed client.
var ErrClosed = errors.New("wsconn: client closed")

// Config holds WebSocket client configuration.
type Config struct {
	URL            string
	Name           string
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnects  int // 0 = infinite
	PingInterval   time.Duration
	PongTimeout    time.Duration
	ReadTimeout    time.Duration // 0 = no deadline
	WriteTimeout   time.Duration
	MaxMessageSize int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		MaxReconnects:  0,
		PingInterval:   30 * time.Second,
		PongTimeout:    10 * time.Second,
		WriteTimeout:   5 * time.Second,
		MaxMessageSize: 1 << 20,
	}
}

// MessageHandler receives every inbound message.
type MessageHandler func(ctx context.Context, msg []byte)

// StateHandler observes state transitions. err is set when the
// transition was caused by a failure.
type StateHandler func(state State, err error)

// Client is a WebSocket client that reconnects after read failures.
type Client struct {
	config Config

	mu    sync.RWMutex
	state State
	conn  *websocket.Conn

	handlersMu sync.RWMutex
	onMessage  MessageHandler
	onState    StateHandler

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
	wg     sync.WaitGroup
}

// New creates a new WebSocket client.
func New(config Config) (*Client, error) {
	if config.URL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("field", "url"),
			apperror.WithMessage("websocket url is required"))
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = 1 << 20
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		config: config,
		state:  StateDisconnected,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// OnMessage sets the inbound message handler.
func (c *Client) OnMessage(h MessageHandler) {
	c.handlersMu.Lock()
	c.onMessage = h
	c.handlersMu.Unlock()
}

// OnStateChange sets the state transition handler.
func (c *Client) OnStateChange(h StateHandler) {
	c.handlersMu.Lock()
	c.onState = h
	c.handlersMu.Unlock()
}

// Connect dials once and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.setState(StateConnecting, nil)

	conn, _, err := websocket.Dial(ctx, c.config.URL, nil)
	if err != nil {
		c.setState(StateDisconnected, err)
		return apperror.New(apperror.CodeWebSocketConnection,
			apperror.WithCause(err),
			apperror.WithContext("name", c.config.Name))
	}
	conn.SetReadLimit(c.config.MaxMessageSize)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if c.closed.Load() {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return ErrClosed
	}
	c.setState(StateConnected, nil)

	c.wg.Add(1)
	go c.readLoop(conn)

	if c.config.PingInterval > 0 {
		c.wg.Add(1)
		go c.pingLoop(conn)
	}
	return nil
}

// ConnectWithRetry keeps dialing with exponential backoff until it
// connects, ctx ends or MaxReconnects attempts fail.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	opts := []backoff.RetryOption{
		backoff.WithBackOff(c.backoff()),
		backoff.WithMaxElapsedTime(0),
	}
	if c.config.MaxReconnects > 0 {
		opts = append(opts, backoff.WithMaxTries(uint(c.config.MaxReconnects)))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.Connect(ctx)
		if errors.Is(err, ErrClosed) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, opts...)
	return err
}

// Send writes a text message.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	c.mu.RLock()
	conn := c.conn
	state := c.state
	c.mu.RUnlock()

	if conn == nil || state != StateConnected {
		return apperror.New(apperror.CodeWebSocketClosed,
			apperror.WithContext("name", c.config.Name))
	}

	if c.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.WriteTimeout)
		defer cancel()
	}

	if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
		return apperror.New(apperror.CodeWebSocketSend,
			apperror.WithCause(err),
			apperror.WithContext("name", c.config.Name))
	}
	return nil
}

// SendJSON marshals v and sends it as a text message.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperror.New(apperror.CodeWebSocketSend, apperror.WithCause(err))
	}
	return c.Send(ctx, data)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether the client is connected.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Close stops reconnection and closes the connection. Safe to call twice.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client closing")
	}
	c.cancel()
	c.wg.Wait()

	c.setState(StateClosed, nil)
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		ctx := c.ctx
		var cancel context.CancelFunc = func() {}
		if c.config.ReadTimeout > 0 {
			ctx, cancel = context.WithTimeout(c.ctx, c.config.ReadTimeout)
		}
		_, data, err := conn.Read(ctx)
		cancel()

		if err != nil {
			if c.closed.Load() {
				return
			}
			c.dropConn(conn, err)
			c.wg.Add(1)
			go c.reconnect()
			return
		}

		c.handlersMu.RLock()
		h := c.onMessage
		c.handlersMu.RUnlock()
		if h != nil {
			h(c.ctx, data)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if c.currentConn() != conn {
				return
			}
			ctx, cancel := context.WithTimeout(c.ctx, c.config.PongTimeout)
			err := conn.Ping(ctx)
			cancel()
			if err != nil {
				// Closing wakes the read loop, which reconnects.
				_ = conn.Close(websocket.StatusGoingAway, "pong timeout")
				return
			}
		}
	}
}

func (c *Client) reconnect() {
	defer c.wg.Done()

	c.setState(StateReconnecting, nil)

	select {
	case <-c.ctx.Done():
		return
	case <-time.After(c.config.InitialBackoff):
	}

	if err := c.ConnectWithRetry(c.ctx); err != nil && !c.closed.Load() {
		c.setState(StateDisconnected, err)
	}
}

func (c *Client) dropConn(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()

	_ = conn.CloseNow()
	c.setState(StateDisconnected, err)
}

func (c *Client) currentConn() *websocket.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

func (c *Client) backoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if c.config.InitialBackoff > 0 {
		b.InitialInterval = c.config.InitialBackoff
	}
	if c.config.MaxBackoff > 0 {
		b.MaxInterval = c.config.MaxBackoff
	}
	b.Reset()
	return b
}

func (c *Client) setState(state State, err error) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()

	c.handlersMu.RLock()
	h := c.onState
	c.handlersMu.RUnlock()
	if h != nil {
		h(state, err)
	}
}
