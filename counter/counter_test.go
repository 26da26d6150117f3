package counter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func january() time.Time {
	return time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
}

func newTestCounter(now time.Time, backends ...Backend) *Counter {
	return New(Options{Backends: backends, Now: fixedClock(now)})
}

func TestMonthKey(t *testing.T) {
	require.Equal(t, "2025-01", MonthKey(january()))
	require.Equal(t, "2025-12", MonthKey(time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC)))
}

func TestCounterIncrementWritesAllBackends(t *testing.T) {
	a, b, c := NewMemoryBackend(), NewMemoryBackend(), NewMemoryBackend()
	counter := newTestCounter(january(), a, b, c)

	require.Equal(t, 1, counter.Increment())
	require.Equal(t, 2, counter.Increment())

	for i, backend := range []*MemoryBackend{a, b, c} {
		record, ok, err := backend.Read()
		require.NoError(t, err)
		require.True(t, ok, "backend %d should hold a record", i)
		require.Equal(t, 2, record.Count)
		require.Equal(t, "2025-01", record.MonthKey)
		require.NotEmpty(t, record.SessionID)
	}
}

func TestCounterMaxOfBackendsSurvivesSingleClear(t *testing.T) {
	a, b, c := NewMemoryBackend(), NewMemoryBackend(), NewMemoryBackend()
	counter := newTestCounter(january(), a, b, c)

	backends := []*MemoryBackend{a, b, c}
	for i := 0; i < 3; i++ {
		counter.Increment()
		// Clearing any one backend between increments never drops the
		// max-of-three result.
		backends[i%3].Clear()
		require.Equal(t, i+1, counter.Read().Count)
	}
}

func TestCounterAllBackendsClearedReadsZero(t *testing.T) {
	a, b := NewMemoryBackend(), NewMemoryBackend()
	counter := newTestCounter(january(), a, b)

	counter.Increment()
	a.Clear()
	b.Clear()
	require.Equal(t, 0, counter.Read().Count)
}

func TestCounterMonthRollover(t *testing.T) {
	now := january()
	a, b, c := NewMemoryBackend(), NewMemoryBackend(), NewMemoryBackend()
	counter := New(Options{
		Backends: []Backend{a, b, c},
		Now:      func() time.Time { return now },
	})

	for i := 0; i < 4; i++ {
		counter.Increment()
	}
	require.Equal(t, 4, counter.Read().Count)
	sessionID := counter.SessionID()

	// Advancing into February resets every backend exactly once.
	now = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	period := counter.Read()
	require.Equal(t, "2025-02", period.MonthKey)
	require.Equal(t, 0, period.Count)

	// A second read in the same month is idempotent.
	require.Equal(t, 0, counter.Read().Count)

	// The session identifier survives the rollover.
	require.Equal(t, sessionID, counter.SessionID())

	for _, backend := range []*MemoryBackend{a, b, c} {
		record, ok, err := backend.Read()
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "2025-02", record.MonthKey)
		require.Equal(t, 0, record.Count)
		require.Equal(t, sessionID, record.SessionID)
	}
}

func TestCounterStaleBackendIgnored(t *testing.T) {
	a, b := NewMemoryBackend(), NewMemoryBackend()
	counter := newTestCounter(january(), a, b)
	counter.Increment()

	// A backend still holding last month's record contributes zero.
	require.NoError(t, b.Write(Record{MonthKey: "2024-12", Count: 40}))
	require.Equal(t, 1, counter.Read().Count)
}

// failingBackend simulates disabled storage.
type failingBackend struct{}

func (failingBackend) Read() (Record, bool, error) {
	return Record{}, false, errStorageDisabled
}

func (failingBackend) Write(Record) error {
	return errStorageDisabled
}

var errStorageDisabled = errors.New("storage disabled")

func TestCounterToleratesFailingBackend(t *testing.T) {
	healthy := NewMemoryBackend()
	counter := newTestCounter(january(), failingBackend{}, healthy)

	// Increment never blocks or panics on a failing backend.
	require.Equal(t, 1, counter.Increment())
	require.Equal(t, 2, counter.Increment())
	require.Equal(t, 2, counter.Read().Count)
}

func TestCounterNoBackends(t *testing.T) {
	counter := newTestCounter(january())
	require.Equal(t, 0, counter.Read().Count)
	require.Equal(t, 1, counter.Increment())
	// Nothing stores the write, so the count stays at zero.
	require.Equal(t, 0, counter.Read().Count)
}
