// Package stream owns the push-transport lifecycle: a reconnecting
// WebSocket client with exponential backoff, a capped retry budget and a
// degrade-to-polling fallback. All state transitions run through a single
// event loop so callbacks are delivered in order, one at a time.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/goth-coder/stream-bit/internal/domain"
	"github.com/goth-coder/stream-bit/pkg/logger"
)

// ErrClosed is returned by Open after the client has been closed.
var ErrClosed = errors.New("stream client closed")

// Poller pulls the latest observation once the client has fallen back to
// periodic polling. Implemented by the history client.
type Poller interface {
	Latest(ctx context.Context) (domain.Observation, error)
}

// Callbacks are invoked from the client's event loop, strictly one at a
// time and never after the Closed state has been announced.
type Callbacks struct {
	OnObservation func(domain.Observation)
	OnStateChange func(domain.ConnectionState)
	OnTerminal    func(reason string)
}

// Config tunes the reconnect policy. Zero values fall back to the backend
// stream's documented defaults.
type Config struct {
	URL              string
	BackoffBase      time.Duration // first retry delay, default 1s
	BackoffCap       time.Duration // delay ceiling, default 30s
	MaxRetries       int           // consecutive failures before polling, default 5
	PollInterval     time.Duration // pull cadence after fallback, default 30s
	HandshakeTimeout time.Duration // default 10s
	PingInterval     time.Duration // default 15s
	ReadTimeout      time.Duration // default 60s
	WriteTimeout     time.Duration // default 10s
}

func (c *Config) applyDefaults() {
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 15 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
}

// conn is the slice of *websocket.Conn the pump needs; tests substitute it.
type conn interface {
	ReadMessage() (int, []byte, error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// dialFunc opens a transport connection; tests substitute it.
type dialFunc func(ctx context.Context, url string, handshakeTimeout time.Duration) (conn, error)

func gorillaDial(ctx context.Context, url string, handshakeTimeout time.Duration) (conn, error) {
	d := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	c, _, err := d.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "dial")
	}
	return c, nil
}

// event drives the state machine. Every transition, including the ones
// triggered by the read pump, goes through the run loop as one of these.
type event struct {
	kind   eventKind
	gen    int    // connection generation the event belongs to
	conn   conn   // evDialed
	err    error  // evError
	obs    domain.Observation
	reason string // evTerminal
}

type eventKind int

const (
	evOpen eventKind = iota // Open() requested
	evDialed
	evError       // transport failure while Connecting or Open
	evRetryTimer  // backoff delay elapsed
	evPollTick    // polling cadence elapsed
	evObservation // validated observation from the pump or the poller
	evTerminal    // clean end-of-stream message from the server
	evClose       // Close() requested
)

// Client is the push-transport client. It owns the ConnectionState
// exclusively; collaborators observe it via OnStateChange.
type Client struct {
	cfg    Config
	poller Poller
	cbs    Callbacks
	dial   dialFunc
	log    *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	events chan event
	loopWG sync.WaitGroup

	openOnce  sync.Once
	closeOnce sync.Once

	mu      sync.RWMutex
	state   domain.ConnectionState
	opened  bool
	attempt int
	dropped uint64 // malformed frames, for the health surface

	active conn // current connection, loop-owned
}

// NewClient builds a client; it does nothing until Open is called. The
// poller may be nil, in which case the fallback state still happens but no
// pulled observations are produced.
func NewClient(cfg Config, poller Poller, cbs Callbacks) *Client {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:    cfg,
		poller: poller,
		cbs:    cbs,
		dial:   gorillaDial,
		log:    logger.WithField("module", "stream"),
		ctx:    ctx,
		cancel: cancel,
		events: make(chan event, 64),
		state:  domain.StateIdle,
	}
}

// State returns the current connection state.
func (c *Client) State() domain.ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// DroppedFrames returns how many malformed frames were discarded.
func (c *Client) DroppedFrames() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dropped
}

// Open starts the connect cycle. Subsequent calls are no-ops; calling Open
// after Close returns ErrClosed.
func (c *Client) Open(url string) error {
	if c.State() == domain.StateClosed {
		return ErrClosed
	}
	c.openOnce.Do(func() {
		if url != "" {
			c.cfg.URL = url
		}
		c.mu.Lock()
		c.opened = true
		c.mu.Unlock()
		c.loopWG.Add(1)
		go c.run()
		c.events <- event{kind: evOpen}
	})
	return nil
}

// Close tears the client down deterministically. Idempotent; after it
// returns no further callbacks fire.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		opened := c.opened
		c.mu.Unlock()
		if !opened {
			// Loop never started; nothing to drain.
			c.setState(domain.StateClosed)
			c.cancel()
			return
		}
		select {
		case c.events <- event{kind: evClose}:
		case <-c.ctx.Done():
		}
		c.loopWG.Wait()
	})
}
