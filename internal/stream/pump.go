package stream

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/goth-coder/stream-bit/internal/domain"
)

// pump reads frames off one connection until it fails or the server ends
// the stream. It reports everything back to the loop tagged with its
// generation, so a superseded pump can never corrupt the state machine.
func (c *Client) pump(cn conn, gen int) {
	stopPing := make(chan struct{})
	defer close(stopPing)
	go c.keepAlive(cn, gen, stopPing)

	_ = cn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	cn.SetPongHandler(func(string) error {
		return cn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	for {
		_, data, err := cn.ReadMessage()
		if err != nil {
			c.post(event{kind: evError, gen: gen, err: err})
			return
		}
		_ = cn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		if terminal := c.dispatchFrame(data, gen); terminal {
			return
		}
	}
}

// dispatchFrame decodes one frame. Malformed payloads are dropped and
// logged, never surfaced as a state transition: a wire-format problem is
// not a connectivity problem. It returns true when the frame cleanly ends
// the stream.
func (c *Client) dispatchFrame(data []byte, gen int) bool {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return false
	}

	var msg domain.StreamMessage
	if err := json.Unmarshal([]byte(trimmed), &msg); err != nil {
		c.dropFrame("undecodable frame: %v", err)
		return false
	}

	switch msg.Type {
	case domain.MsgPriceUpdate:
		var pu domain.PriceUpdate
		if err := json.Unmarshal(msg.Data, &pu); err != nil {
			c.dropFrame("bad price_update payload: %v", err)
			return false
		}
		obs, err := pu.Observation()
		if err != nil {
			c.dropFrame("invalid price_update: %v", err)
			return false
		}
		c.post(event{kind: evObservation, gen: gen, obs: obs})

	case domain.MsgCacheStats:
		// Backend cache telemetry; not ours to interpret.

	case domain.MsgPipelineStopped, domain.MsgStreamEnd:
		c.post(event{kind: evTerminal, gen: gen, reason: msg.Type})
		return true

	default:
		c.log.Debugf("ignoring frame type %q", msg.Type)
	}
	return false
}

func (c *Client) dropFrame(format string, args ...interface{}) {
	c.mu.Lock()
	c.dropped++
	n := c.dropped
	c.mu.Unlock()
	c.log.WithField("dropped_total", n).Warnf(format, args...)
}

// keepAlive sends pings on the connection's cadence until the pump exits.
// A failed ping is a transport error like any other.
func (c *Client) keepAlive(cn conn, gen int, stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := cn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.post(event{kind: evError, gen: gen, err: err})
				return
			}
		}
	}
}
