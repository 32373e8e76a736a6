package stream

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/goth-coder/stream-bit/internal/domain"
)

// loop-owned timer state. Only the run goroutine touches these.
type loopState struct {
	gen        int // connection generation; stale pump events are ignored
	retryTimer *time.Timer
	pollTicker *time.Ticker
}

func (l *loopState) retryC() <-chan time.Time {
	if l.retryTimer == nil {
		return nil
	}
	return l.retryTimer.C
}

func (l *loopState) pollC() <-chan time.Time {
	if l.pollTicker == nil {
		return nil
	}
	return l.pollTicker.C
}

func (l *loopState) stopTimers() {
	if l.retryTimer != nil {
		l.retryTimer.Stop()
		l.retryTimer = nil
	}
	if l.pollTicker != nil {
		l.pollTicker.Stop()
		l.pollTicker = nil
	}
}

func (c *Client) run() {
	defer c.loopWG.Done()

	ls := &loopState{}
	defer ls.stopTimers()

	for {
		select {
		case ev := <-c.events:
			if c.transition(ls, ev) {
				return
			}
		case <-ls.retryC():
			ls.retryTimer = nil
			if c.transition(ls, event{kind: evRetryTimer}) {
				return
			}
		case <-ls.pollC():
			if c.transition(ls, event{kind: evPollTick}) {
				return
			}
		}
	}
}

// transition is the one place connection state changes. It returns true
// when the machine has reached Closed and the loop should exit.
func (c *Client) transition(ls *loopState, ev event) bool {
	switch ev.kind {

	case evOpen:
		c.setState(domain.StateConnecting)
		c.connect(ls)

	case evDialed:
		if ev.gen != ls.gen || c.State() != domain.StateConnecting {
			// A late dial from an attempt we already gave up on.
			if ev.conn != nil {
				_ = ev.conn.Close()
			}
			return false
		}
		c.active = ev.conn
		c.resetAttempts()
		c.setState(domain.StateOpen)
		go c.pump(ev.conn, ev.gen)

	case evError:
		if ev.gen != ls.gen {
			return false
		}
		st := c.State()
		if st != domain.StateOpen && st != domain.StateConnecting {
			// Polling mode: stream errors are no longer escalated.
			return false
		}
		c.dropConn()
		attempt := c.bumpAttempt()
		if attempt > c.cfg.MaxRetries {
			c.log.Warnf("retry budget exhausted after %d attempts, falling back to polling every %s",
				c.cfg.MaxRetries, c.cfg.PollInterval)
			ls.stopTimers()
			ls.pollTicker = time.NewTicker(c.cfg.PollInterval)
			c.setState(domain.StatePolling)
			return false
		}
		delay := backoffDelay(attempt, c.cfg.BackoffBase, c.cfg.BackoffCap)
		c.log.Warnf("transport error (attempt %d/%d), reconnecting in %s: %v",
			attempt, c.cfg.MaxRetries, delay, ev.err)
		ls.retryTimer = time.NewTimer(delay)
		c.setState(domain.StateRetrying)

	case evRetryTimer:
		if c.State() != domain.StateRetrying {
			return false
		}
		c.setState(domain.StateConnecting)
		c.connect(ls)

	case evPollTick:
		if c.State() != domain.StatePolling || c.poller == nil {
			return false
		}
		go c.pollOnce(ls.gen)

	case evObservation:
		if ev.gen != ls.gen {
			return false
		}
		if st := c.State(); st != domain.StateOpen && st != domain.StatePolling {
			return false
		}
		if c.cbs.OnObservation != nil {
			c.cbs.OnObservation(ev.obs)
		}

	case evTerminal:
		if ev.gen != ls.gen {
			return false
		}
		c.log.Infof("stream ended by server: %s", ev.reason)
		c.shutdown(ls)
		if c.cbs.OnTerminal != nil {
			c.cbs.OnTerminal(ev.reason)
		}
		return true

	case evClose:
		c.shutdown(ls)
		return true
	}
	return false
}

// connect dials asynchronously so Close stays responsive while a handshake
// is in flight. The result comes back as evDialed or evError for this
// generation only.
func (c *Client) connect(ls *loopState) {
	ls.gen++
	gen := ls.gen
	connID := uuid.NewString()[:8]
	c.log.Infof("connecting to %s (conn=%s)", c.cfg.URL, connID)

	go func() {
		cn, err := c.dial(c.ctx, c.cfg.URL, c.cfg.HandshakeTimeout)
		if err != nil {
			c.post(event{kind: evError, gen: gen, err: err})
			return
		}
		c.log.Infof("connected (conn=%s)", connID)
		c.post(event{kind: evDialed, gen: gen, conn: cn})
	}()
}

// pollOnce pulls one observation on the fallback path. Pull failures are
// logged and swallowed: in Polling, errors never escalate to reconnects.
func (c *Client) pollOnce(gen int) {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.PollInterval)
	defer cancel()

	obs, err := c.poller.Latest(ctx)
	if err != nil {
		c.log.Warnf("poll failed: %v", err)
		return
	}
	c.post(event{kind: evObservation, gen: gen, obs: obs})
}

func (c *Client) shutdown(ls *loopState) {
	ls.stopTimers()
	ls.gen++ // orphan any in-flight pump or dial
	c.dropConn()
	c.setState(domain.StateClosed)
	c.cancel()
}

func (c *Client) dropConn() {
	if c.active != nil {
		_ = c.active.Close()
		c.active = nil
	}
}

// post delivers an event to the loop unless the client is already torn
// down; producers must never block on a dead loop.
func (c *Client) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}

func (c *Client) setState(s domain.ConnectionState) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev == s {
		return
	}
	c.log.Debugf("state %s -> %s", prev, s)
	if c.cbs.OnStateChange != nil {
		c.cbs.OnStateChange(s)
	}
}

func (c *Client) bumpAttempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempt++
	return c.attempt
}

func (c *Client) resetAttempts() {
	c.mu.Lock()
	c.attempt = 0
	c.mu.Unlock()
}

// backoffDelay is min(base * 2^(attempt-1), cap) for attempt >= 1, the
// classic doubling schedule: 1s, 2s, 4s, 8s, 16s with the defaults.
func backoffDelay(attempt int, base, cap time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	if d > cap {
		return cap
	}
	return d
}
