// Package sigchan provides a non-blocking, coalescing signal channel:
// many Emit calls while the consumer is busy collapse into one wakeup.
package sigchan

// Chan carries "something happened" without data.
type Chan struct {
	c chan struct{}
}

// New creates a signal channel with the given buffer.
func New(bufferSize int) *Chan {
	return &Chan{c: make(chan struct{}, bufferSize)}
}

// Emit signals without blocking; a full buffer means a wakeup is already
// pending and the signal is dropped.
func (c *Chan) Emit() {
	select {
	case c.c <- struct{}{}:
	default:
	}
}

// C returns the receive side for use in a select.
func (c *Chan) C() <-chan struct{} {
	return c.c
}
