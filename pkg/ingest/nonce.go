package ingest

import (
	"sync"
	"time"
)

// NonceSource hands out the nonce that orders ties at equal price. Nonces
// from one source must be strictly increasing.
type NonceSource interface {
	Next() uint64
}

// ClockNonce starts at the wall clock in nanoseconds and then counts up by
// one per order, never going backwards.
type ClockNonce struct {
	mu   sync.Mutex
	now  func() time.Time
	last uint64
}

func NewClockNonce() *ClockNonce {
	return &ClockNonce{now: time.Now}
}

func (c *ClockNonce) Next() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := uint64(c.now().UnixNano())
	if n <= c.last {
		n = c.last + 1
	}
	c.last = n
	return n
}

// CounterNonce is a plain counter, for reproducible runs.
type CounterNonce struct {
	mu   sync.Mutex
	next uint64
}

func NewCounterNonce(start uint64) *CounterNonce {
	return &CounterNonce{next: start}
}

func (c *CounterNonce) Next() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.next
	c.next++
	return n
}
