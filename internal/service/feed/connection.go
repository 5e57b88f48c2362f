package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"CryptoPulse/internal/domain/models"
	"CryptoPulse/internal/domain/repository"
	"CryptoPulse/pkg/logger"

	"github.com/gorilla/websocket"
)

var (
	ErrListenTimeout = errors.New("feed: no message within listen timeout")
	ErrDormant       = errors.New("feed: reconnect attempts exhausted")
	ErrNotConnected  = errors.New("feed: not connected")
	ErrNotDormant    = errors.New("feed: restart requires a dormant connection")
	errClosed        = errors.New("feed: connection closed")
)

// EventSink receives the records parsed from every frame.
type EventSink func(ctx context.Context, feed string, events []models.MarketEvent)

type Options struct {
	ListenTimeout        time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	HandshakeTimeout     time.Duration
	WriteTimeout         time.Duration
}

type frame struct {
	data []byte
	err  error
}

// Connection owns one websocket transport to one (exchange, channel) and
// drives the DISCONNECTED → CONNECTING → CONNECTED ⇄ RECEIVING state machine,
// falling back to RECONNECTING on transport loss and DORMANT once the retry
// budget is spent.
type Connection struct {
	parser  Parser
	opts    Options
	dialer  *websocket.Dialer
	sink    EventSink
	log     *logger.Logger
	metrics repository.Metrics
	symbols []string
	exch    string
	channel string

	mu       sync.RWMutex
	conn     *websocket.Conn
	frames   chan frame
	done     chan struct{}
	state    models.FeedState
	attempts int
	lastMsg  time.Time
	lastPong time.Time
	stopped  bool

	writeMu sync.Mutex
}

func NewConnection(parser Parser, opts Options, sink EventSink, log *logger.Logger, metrics repository.Metrics) *Connection {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = 10
	}
	if opts.ListenTimeout <= 0 {
		opts.ListenTimeout = 30 * time.Second
	}
	return &Connection{
		parser:  parser,
		opts:    opts,
		dialer:  &websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout},
		sink:    sink,
		log:     log.With(logger.String("feed", parser.Name())),
		metrics: metrics,
	}
}

// WithDescription records the configured exchange, channel and symbols for status reporting.
func (c *Connection) WithDescription(exchange, channel string, symbols []string) *Connection {
	c.exch, c.channel, c.symbols = exchange, channel, symbols
	return c
}

func (c *Connection) Name() string { return c.parser.Name() }

func (c *Connection) State() models.FeedState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Connection) Status() models.FeedStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.FeedStatus{
		Name:        c.parser.Name(),
		Exchange:    c.exch,
		Channel:     c.channel,
		Symbols:     c.symbols,
		State:       c.state.String(),
		Attempts:    c.attempts,
		LastMessage: c.lastMsg,
	}
}

func (c *Connection) setState(s models.FeedState) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev == s {
		return
	}
	c.metrics.RecordFeedState(c.parser.Name(), s)
	c.log.Info("feed state", logger.String("from", prev.String()), logger.String("to", s.String()))
}

// Connect dials the endpoint and sends the subscribe frames. A successful
// connect resets the attempt counter.
func (c *Connection) Connect(ctx context.Context) error {
	c.setState(models.FeedConnecting)

	conn, _, err := c.dialer.DialContext(ctx, c.parser.Endpoint(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.parser.Endpoint(), err)
	}

	subs, err := c.parser.SubscribeMessages()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("build subscribe: %w", err)
	}
	for _, msg := range subs {
		_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			_ = conn.Close()
			return fmt.Errorf("subscribe: %w", err)
		}
	}

	frames := make(chan frame, 64)
	done := make(chan struct{})
	conn.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.lastPong = time.Now()
		c.mu.Unlock()
		return nil
	})

	c.mu.Lock()
	c.conn, c.frames, c.done = conn, frames, done
	c.attempts = 0
	c.mu.Unlock()

	go readLoop(conn, frames, done)
	c.setState(models.FeedConnected)
	return nil
}

// readLoop is the single reader of conn. It stops after the first read error.
func readLoop(conn *websocket.Conn, frames chan<- frame, done <-chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		select {
		case frames <- frame{data: data, err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

// Listen waits for one frame. It returns the parsed records (possibly empty
// for control frames), ErrListenTimeout, or the transport close error.
func (c *Connection) Listen(ctx context.Context, timeout time.Duration) ([]models.MarketEvent, error) {
	c.mu.RLock()
	frames, done := c.frames, c.done
	c.mu.RUnlock()
	if frames == nil {
		return nil, ErrNotConnected
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
		return nil, errClosed
	case <-timer.C:
		return nil, ErrListenTimeout
	case f := <-frames:
		if f.err != nil {
			return nil, f.err
		}
		c.mu.Lock()
		c.lastMsg = time.Now()
		c.mu.Unlock()
		if c.State() == models.FeedConnected {
			c.setState(models.FeedReceiving)
		}

		events, err := c.parser.Parse(f.data)
		if err != nil {
			c.metrics.RecordParseDrop(c.parser.Name())
			c.log.Debug("dropping unparsable payload", logger.Error(err), logger.Int("bytes", len(f.data)))
			return nil, nil
		}
		return events, nil
	}
}

// Run listens until ctx ends, Close is called, or the connection goes DORMANT.
func (c *Connection) Run(ctx context.Context) error {
	if c.State() == models.FeedDormant {
		return ErrDormant
	}
	c.mu.Lock()
	c.stopped = false
	c.mu.Unlock()

	immediate := true
	for {
		if err := c.establish(ctx, immediate); err != nil {
			return err
		}
		immediate = false

		err := c.pump(ctx)
		if ctx.Err() != nil || c.isStopped() {
			c.Close()
			return ctx.Err()
		}
		c.log.Warn("feed transport closed", logger.Error(err))
		c.dropTransport()
		c.metrics.RecordReconnect(c.parser.Name())
		c.setState(models.FeedReconnecting)
	}
}

// establish dials until it succeeds or the attempt budget is spent.
func (c *Connection) establish(ctx context.Context, immediate bool) error {
	for {
		if !immediate {
			if !sleepCtx(ctx, c.opts.ReconnectDelay) {
				c.Close()
				return ctx.Err()
			}
		}
		immediate = false

		err := c.Connect(ctx)
		if err == nil {
			c.log.Info("feed connected", logger.String("endpoint", c.parser.Endpoint()))
			return nil
		}
		if ctx.Err() != nil {
			c.Close()
			return ctx.Err()
		}

		c.mu.Lock()
		c.attempts++
		n := c.attempts
		c.mu.Unlock()
		c.log.Warn("feed connect failed",
			logger.Error(err),
			logger.Int("attempt", n),
			logger.Int("max_attempts", c.opts.MaxReconnectAttempts))

		if n >= c.opts.MaxReconnectAttempts {
			c.setState(models.FeedDormant)
			c.log.Error("feed dormant, giving up", logger.Int("attempts", n))
			return ErrDormant
		}
		c.setState(models.FeedReconnecting)
	}
}

// pump forwards records until the transport closes. An idle period triggers a
// keepalive probe; a second idle period with no pong in between counts as a close.
func (c *Connection) pump(ctx context.Context) error {
	probing := false
	var probeAt time.Time
	for {
		events, err := c.Listen(ctx, c.opts.ListenTimeout)
		switch {
		case err == nil:
			probing = false
			if len(events) > 0 {
				for _, ev := range events {
					kind := "sample"
					if ev.Book != nil {
						kind = "book"
					}
					c.metrics.RecordMessage(c.parser.Name(), kind)
				}
				if c.sink != nil {
					c.sink(ctx, c.parser.Name(), events)
				}
			}
		case errors.Is(err, ErrListenTimeout):
			if probing && !c.pongSince(probeAt) {
				return fmt.Errorf("keepalive unanswered after %s", c.opts.ListenTimeout)
			}
			probeAt = time.Now()
			probing = true
			if perr := c.probe(); perr != nil {
				return fmt.Errorf("keepalive: %w", perr)
			}
		default:
			return err
		}
	}
}

func (c *Connection) probe() error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return errClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := time.Now().Add(c.opts.WriteTimeout)
	if msg := c.parser.KeepaliveMessage(); msg != nil {
		_ = conn.SetWriteDeadline(deadline)
		return conn.WriteMessage(websocket.TextMessage, msg)
	}
	return conn.WriteControl(websocket.PingMessage, nil, deadline)
}

func (c *Connection) pongSince(t time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPong.After(t) || c.lastMsg.After(t)
}

func (c *Connection) isStopped() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stopped
}

func (c *Connection) dropTransport() {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn, c.frames, c.done = nil, nil, nil
	c.mu.Unlock()

	if done != nil {
		close(done)
	}
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = conn.Close()
	}
}

// Close releases the transport and moves to DISCONNECTED. A DORMANT
// connection stays DORMANT.
func (c *Connection) Close() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.dropTransport()
	if c.State() != models.FeedDormant {
		c.setState(models.FeedDisconnected)
	}
}

// Restart leaves DORMANT with a fresh attempt budget and runs again.
func (c *Connection) Restart(ctx context.Context) error {
	c.mu.Lock()
	if c.state != models.FeedDormant {
		c.mu.Unlock()
		return ErrNotDormant
	}
	c.attempts = 0
	c.state = models.FeedDisconnected
	c.mu.Unlock()

	c.metrics.RecordFeedState(c.parser.Name(), models.FeedDisconnected)
	c.log.Info("feed restarting from dormant")
	return c.Run(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
