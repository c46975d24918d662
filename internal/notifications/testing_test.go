package notifications

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/careloop/careminder/internal/directory"
)

// fakeClock is a settable Clock for deterministic scheduling tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingSink captures deliveries and can be told to fail.
type recordingSink struct {
	mu        sync.Mutex
	delivered []Notification
	fail      bool
	failFor   map[Channel]bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{failFor: make(map[Channel]bool)}
}

func (s *recordingSink) Deliver(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail || s.failFor[n.Channel] {
		return errTransportDown
	}
	s.delivered = append(s.delivered, n)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

var errTransportDown = &transportError{}

type transportError struct{}

func (*transportError) Error() string { return "transport down" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture bundles an engine wired entirely with in-memory fakes.
type fixture struct {
	engine *Engine
	store  *MemoryStore
	dir    *directory.MemoryDirectory
	clock  *fakeClock
	sink   *recordingSink
}

func newFixture(now time.Time) *fixture {
	store := NewMemoryStore()
	dir := directory.NewMemoryDirectory()
	clock := newFakeClock(now)
	sink := newRecordingSink()
	logger := testLogger()

	engine := New(Deps{
		Store:      store,
		Patients:   dir,
		Appts:      dir,
		Dispatcher: NewDispatcher(sink, logger),
		Clock:      clock,
		Location:   time.UTC,
		Logger:     logger,
	})
	return &fixture{engine: engine, store: store, dir: dir, clock: clock, sink: sink}
}
