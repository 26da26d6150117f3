package counter

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"go.jetify.com/typeid"
)

// Options configures a Counter.
type Options struct {
	// Backends are the storage mechanisms, in order. The first backend is
	// treated as the durable one: its stored month key drives rollover
	// detection and its session identifier wins on conflict.
	Backends []Backend

	Logger *slog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Counter produces a single best-effort count for the current month from
// its backends. All access is synchronous; the backends are only ever
// touched from the counter's own methods.
type Counter struct {
	backends []Backend
	logger   *slog.Logger
	now      func() time.Time

	mutex     sync.Mutex
	sessionID string
}

// New returns a counter over the given backends.
func New(opts Options) *Counter {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Counter{
		backends: opts.Backends,
		logger:   opts.Logger,
		now:      opts.Now,
	}
}

// NewSessionID returns a new anonymous session identifier.
func NewSessionID() string {
	id, err := typeid.WithPrefix("anon")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// Read returns the usage period for the current month: the maximum of the
// backend counts under the current month key. When the durable backend's
// stored month differs from the calendar month, every backend is first
// reset to zero under the new key, preserving the session identifier.
// A missing or corrupt value reads as zero for that backend only.
func (c *Counter) Read() UsagePeriod {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.readLocked()
}

// Count returns the current month's count. It satisfies the gate
// evaluator's UsageReader.
func (c *Counter) Count() int {
	return c.Read().Count
}

// Rollover resets every backend to zero under the given month key,
// preserving the session identifier already associated with this visitor.
func (c *Counter) Rollover(monthKey string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.rolloverLocked(monthKey)
}

// Increment reads the current maximum and writes max+1 to every backend
// under the current month key, returning the new count. Callers must invoke
// it exactly once per completed workflow run; the completion notifier is
// the sole caller in this module.
func (c *Counter) Increment() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	period := c.readLocked()
	next := Record{
		MonthKey:  period.MonthKey,
		Count:     period.Count + 1,
		SessionID: c.sessionIDLocked(),
	}
	c.writeAllLocked(next)
	return next.Count
}

// SessionID returns the stable anonymous session identifier, minting one on
// first use.
func (c *Counter) SessionID() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.readLocked()
	return c.sessionIDLocked()
}

func (c *Counter) readLocked() UsagePeriod {
	currentKey := MonthKey(c.now())

	// The durable backend drives rollover detection.
	if len(c.backends) > 0 {
		record, ok, err := c.backends[0].Read()
		if err != nil {
			c.logger.Debug("durable counter backend read failed", "error", err)
		} else if ok {
			if record.SessionID != "" && c.sessionID == "" {
				c.sessionID = record.SessionID
			}
			if record.MonthKey != currentKey {
				c.rolloverLocked(currentKey)
				return UsagePeriod{MonthKey: currentKey}
			}
		}
	}

	max := 0
	for i, backend := range c.backends {
		record, ok, err := backend.Read()
		if err != nil {
			c.logger.Debug("counter backend read failed", "backend", i, "error", err)
			continue
		}
		if !ok || record.MonthKey != currentKey || record.Count < 0 {
			continue
		}
		if record.SessionID != "" && c.sessionID == "" {
			c.sessionID = record.SessionID
		}
		if record.Count > max {
			max = record.Count
		}
	}
	return UsagePeriod{MonthKey: currentKey, Count: max}
}

func (c *Counter) rolloverLocked(monthKey string) {
	c.writeAllLocked(Record{
		MonthKey:  monthKey,
		Count:     0,
		SessionID: c.sessionIDLocked(),
	})
	c.logger.Debug("counter rolled over", "month", monthKey)
}

// writeAllLocked writes the record to every backend. Individual write
// failures degrade tamper-resistance but never block the caller.
func (c *Counter) writeAllLocked(record Record) {
	for i, backend := range c.backends {
		if err := backend.Write(record); err != nil {
			c.logger.Debug("counter backend write failed", "backend", i, "error", err)
		}
	}
}

func (c *Counter) sessionIDLocked() string {
	if c.sessionID == "" {
		c.sessionID = NewSessionID()
	}
	return c.sessionID
}
