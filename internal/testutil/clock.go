package testutil

import (
	"strconv"
	"sync"
	"time"

	"mediasort/internal/media"
)

// StubClock is a manual clock. When step is set, every Now call moves it
// forward by step, so journaled copies get distinct, ordered times.
type StubClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

var _ media.Clock = (*StubClock)(nil)

// NewStubClock creates a StubClock at start advancing by step per reading.
func NewStubClock(start time.Time, step time.Duration) *StubClock {
	return &StubClock{now: start, step: step}
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SequentialIDs hands out run UUIDs "<prefix>-1", "<prefix>-2", ...
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

var _ media.IDGenerator = (*SequentialIDs)(nil)

func NewSequentialIDs(prefix string) *SequentialIDs {
	return &SequentialIDs{prefix: prefix}
}

func (g *SequentialIDs) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return g.prefix + "-" + strconv.Itoa(g.n)
}
