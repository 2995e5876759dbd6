package testutil

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StubClock is a settable acl.Clock. Safe for concurrent use, since
// propagation workers read it from several goroutines.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t.UTC()}
}

// FixedClock returns a StubClock set to 2024-06-01 12:00:00 UTC, after every
// seeded granted_at.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Offset returns now+d as the pointer form used for expires_at.
// A negative d yields an expiry already in the past.
func (c *StubClock) Offset(d time.Duration) *time.Time {
	t := c.Now().Add(d)
	return &t
}

func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *StubClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}

// StubIDGenerator returns deterministic UUIDs derived from a namespace and a
// counter, so generated item ids and archive keys are stable across runs.
type StubIDGenerator struct {
	mu    sync.Mutex
	space uuid.UUID
	n     int
}

func NewStubIDGenerator(namespace string) *StubIDGenerator {
	return &StubIDGenerator{space: uuid.NewSHA1(uuid.NameSpaceOID, []byte(namespace))}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return uuid.NewSHA1(g.space, []byte(strconv.Itoa(g.n))).String()
}
