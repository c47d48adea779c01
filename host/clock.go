package host

import (
	"sync"
	"time"
)

// SystemClock reads wall time. Readings never go back even if the system
// time does.
type SystemClock struct {
	mtx  sync.Mutex
	last uint64
}

// Now implements Clock.
func (c *SystemClock) Now() uint64 {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if now := uint64(time.Now().UnixMilli()); now > c.last {
		c.last = now
	}
	return c.last
}

// ManualClock is a Clock moved by hand.
type ManualClock struct {
	mtx sync.Mutex
	now uint64
}

// NewManualClock returns clock set to the given time.
func NewManualClock(now uint64) *ManualClock {
	return &ManualClock{now: now}
}

// Now implements Clock.
func (c *ManualClock) Now() uint64 {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *ManualClock) Advance(d time.Duration) {
	c.mtx.Lock()
	c.now += uint64(d.Milliseconds())
	c.mtx.Unlock()
}
