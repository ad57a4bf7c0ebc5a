// Package transport owns the WebSocket connection to the game server.
//
// Frames are read on a background goroutine and queued in arrival order.
// They are dispatched to subscribers only when the owner calls Poll or
// PollWait, so every handler runs on the owner's goroutine.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/tomz197/lander/internal/protocol"
)

const (
	defaultMaxAttempts  = 5
	defaultBaseDelay    = time.Second
	defaultPingInterval = 2 * time.Second
	writeWait           = 5 * time.Second
	frameQueueSize      = 256
)

var (
	// ErrRetriesExhausted is returned by Connect once every attempt failed.
	ErrRetriesExhausted = errors.New("connect retries exhausted")
	// ErrConnectionLost reports an established session that dropped.
	ErrConnectionLost = errors.New("connection lost")
	// ErrClosed is returned when using a client after Close.
	ErrClosed = errors.New("transport closed")
)

// Handler receives one inbound message.
type Handler func(msg protocol.Message)

// LatencyCollector receives ping round-trip samples.
type LatencyCollector interface {
	RecordLatency(d time.Duration)
}

// Options configures a Client. Zero values select the defaults.
type Options struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	PingInterval time.Duration
	Latency      LatencyCollector
	Logger       *log.Logger
	Dialer       *websocket.Dialer
	// Sleep waits between connect attempts. Tests replace it to observe the schedule.
	Sleep func(ctx context.Context, d time.Duration) error
}

type frame struct {
	msg protocol.Message
	at  time.Time
}

type handlerEntry struct {
	id int
	fn Handler
}

// Client is a single live connection. Subscribe, Poll, PollWait and Close
// must be called from the owning goroutine; Send may be called from any.
type Client struct {
	url    string
	opts   Options
	logger *log.Logger

	mu        sync.Mutex // guards the fields below and serializes socket writes
	conn      *websocket.Conn
	connected bool
	closed    bool
	lastPing  time.Time
	stopConn  func()
	err       error

	frames   chan frame
	closing  chan struct{}
	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup

	handlers map[protocol.Kind][]handlerEntry
	nextID   int
}

// New creates an unconnected client for the given ws:// or wss:// URL.
func New(url string, opts Options) *Client {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Client{
		url:      url,
		opts:     opts,
		logger:   logger.With("url", url),
		frames:   make(chan frame, frameQueueSize),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
		handlers: make(map[protocol.Kind][]handlerEntry),
	}
}

// URL returns the address the client dials.
func (c *Client) URL() string {
	return c.url
}

// Connect dials the server, retrying with exponential backoff. The wait
// before attempt n+1 is BaseDelay * 2^(n-1). Calls must not overlap.
func (c *Client) Connect(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}

	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		conn, resp, err := c.opts.Dialer.DialContext(ctx, c.url, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err == nil {
			if c.attach(conn) {
				c.logger.Info("connected", "attempt", attempt)
				return nil
			}
			conn.Close()
			return ErrClosed
		}

		lastErr = err
		c.logger.Warn("connect failed", "attempt", attempt, "err", err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == c.opts.MaxAttempts {
			break
		}
		delay := c.opts.BaseDelay << (attempt - 1)
		if err := c.opts.Sleep(ctx, delay); err != nil {
			return err
		}
	}

	err := fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, c.opts.MaxAttempts, lastErr)
	c.emit(frame{msg: &protocol.Error{Message: err.Error()}, at: time.Now()})
	return err
}

// attach installs conn and starts the reader and keepalive goroutines.
func (c *Client) attach(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	stop := make(chan struct{})
	c.conn = conn
	c.connected = true
	c.lastPing = time.Time{}
	c.stopConn = sync.OnceFunc(func() { close(stop) })

	c.wg.Add(2)
	go c.readLoop(conn, stop)
	go c.keepalive(stop)
	return true
}

// Connected reports whether the socket is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Send writes msg if the connection is open and silently drops it otherwise.
// It reports whether the message was written.
func (c *Client) Send(msg protocol.Outbound) bool {
	data, err := protocol.Encode(msg)
	if err != nil {
		c.logger.Error("encode failed", "type", msg.Type(), "err", err)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if msg.Type() == (protocol.Ping{}).Type() {
		c.lastPing = time.Now()
	}
	return c.writeLocked(data, msg.Type())
}

func (c *Client) writeLocked(data []byte, kind string) bool {
	if !c.connected || c.closed || c.conn == nil {
		c.logger.Debug("dropping message while disconnected", "type", kind)
		return false
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.Warn("write failed", "type", kind, "err", err)
		return false
	}
	return true
}

func (c *Client) readLoop(conn *websocket.Conn, stop <-chan struct{}) {
	defer c.wg.Done()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.dropped(conn, err)
			return
		}
		at := time.Now()

		msg, err := protocol.Decode(data)
		if err != nil {
			if errors.Is(err, protocol.ErrUnknownKind) {
				c.logger.Debug("ignoring frame", "err", err)
			} else {
				c.logger.Warn("discarding malformed frame", "err", err)
			}
			continue
		}

		select {
		case c.frames <- frame{msg: msg, at: at}:
		case <-stop:
			return
		}
	}
}

func (c *Client) keepalive(stop <-chan struct{}) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.Send(protocol.Ping{})
		}
	}
}

// dropped handles a read error. Errors caused by Close are expected and ignored.
func (c *Client) dropped(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.conn = nil
	c.err = fmt.Errorf("%w: %w", ErrConnectionLost, err)
	stop := c.stopConn
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	conn.Close()
	c.logger.Warn("connection lost", "err", err)
	c.doneOnce.Do(func() { close(c.done) })
}

// Done is closed when an established connection drops unexpectedly.
// It is never closed by Close.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason Done was closed.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Subscribe registers h for messages of the given kind. Handlers of one kind
// run in registration order.
func (c *Client) Subscribe(kind protocol.Kind, h Handler) (unsubscribe func()) {
	if c.isClosed() {
		return func() {}
	}
	id := c.nextID
	c.nextID++
	c.handlers[kind] = append(c.handlers[kind], handlerEntry{id: id, fn: h})
	return func() {
		entries := c.handlers[kind]
		for i, e := range entries {
			if e.id == id {
				c.handlers[kind] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// HandlerCount returns the number of registered handlers across all kinds.
func (c *Client) HandlerCount() int {
	n := 0
	for _, entries := range c.handlers {
		n += len(entries)
	}
	return n
}

// Poll dispatches every queued frame and returns how many were handled.
func (c *Client) Poll() int {
	n := 0
	for {
		select {
		case f := <-c.frames:
			if c.isClosed() {
				return n
			}
			c.dispatch(f)
			n++
		default:
			return n
		}
	}
}

// PollWait blocks until at least one frame arrives, then dispatches everything queued.
func (c *Client) PollWait(ctx context.Context) error {
	select {
	case f := <-c.frames:
		if c.isClosed() {
			return ErrClosed
		}
		c.dispatch(f)
		c.Poll()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return c.Err()
	case <-c.closing:
		return ErrClosed
	}
}

func (c *Client) emit(f frame) {
	if c.isClosed() {
		return
	}
	c.dispatch(f)
}

func (c *Client) dispatch(f frame) {
	kind := f.msg.Kind()
	if kind == protocol.KindPong && c.opts.Latency != nil {
		c.mu.Lock()
		sent := c.lastPing
		c.mu.Unlock()
		if !sent.IsZero() && f.at.After(sent) {
			c.opts.Latency.RecordLatency(f.at.Sub(sent))
		}
	}

	entries := append([]handlerEntry(nil), c.handlers[kind]...)
	for _, e := range entries {
		// A handler may close the client; stop delivering once that happens.
		if c.isClosed() {
			return
		}
		e.fn(f.msg)
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close tears the connection down. Handlers are detached before the socket is
// closed so no frame already in flight reaches them. Safe to call repeatedly and
// on a client that never connected.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	stop := c.stopConn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	clear(c.handlers)
	close(c.closing)
	if stop != nil {
		stop()
	}
	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
	}
	c.wg.Wait()
	c.logger.Debug("closed")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
