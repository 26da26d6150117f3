package counter

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	backend, err := NewFileBackend(path)
	require.NoError(t, err)

	_, ok, err := backend.Read()
	require.NoError(t, err)
	require.False(t, ok)

	record := Record{MonthKey: "2025-01", Count: 3, SessionID: "anon_1"}
	require.NoError(t, backend.Write(record))

	got, ok, err := backend.Read()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, record, got)
}

func TestFileBackendCorruptValueReadsAsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	backend, err := NewFileBackend(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	_, ok, err := backend.Read()
	require.Error(t, err)
	require.False(t, ok)

	// The composite treats the error as count=0 for this backend only.
	counter := newTestCounter(january(), backend, NewMemoryBackend())
	require.Equal(t, 0, counter.Read().Count)
	require.Equal(t, 1, counter.Increment())
}

// mapCookieSource is a CookieSource over a plain map, standing in for a
// request/response pair.
type mapCookieSource map[string]*http.Cookie

func (s mapCookieSource) Cookie(name string) (*http.Cookie, bool) {
	cookie, ok := s[name]
	return cookie, ok
}

func (s mapCookieSource) SetCookie(cookie *http.Cookie) {
	s[cookie.Name] = cookie
}

func TestCookieBackendRoundTrip(t *testing.T) {
	source := mapCookieSource{}
	backend := NewCookieBackend("", 0, source)

	_, ok, err := backend.Read()
	require.NoError(t, err)
	require.False(t, ok)

	record := Record{MonthKey: "2025-01", Count: 2, SessionID: "anon_2"}
	require.NoError(t, backend.Write(record))

	cookie, ok := source[DefaultCookieName]
	require.True(t, ok)
	require.Equal(t, "2025-01|2|anon_2", cookie.Value)
	require.Positive(t, cookie.MaxAge)

	got, ok, err := backend.Read()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, record, got)
}

func TestCookieBackendCorruptValue(t *testing.T) {
	source := mapCookieSource{
		DefaultCookieName: {Name: DefaultCookieName, Value: "garbage"},
	}
	backend := NewCookieBackend("", time.Hour, source)

	_, _, err := backend.Read()
	require.Error(t, err)
}

func TestCookieBackendEmptySessionSegment(t *testing.T) {
	source := mapCookieSource{}
	backend := NewCookieBackend("usage", time.Hour, source)
	require.NoError(t, backend.Write(Record{MonthKey: "2025-03", Count: 1}))

	got, ok, err := backend.Read()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Record{MonthKey: "2025-03", Count: 1}, got)
}

func TestSQLiteBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")
	backend, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	defer backend.Close()

	_, ok, err := backend.Read()
	require.NoError(t, err)
	require.False(t, ok)

	record := Record{MonthKey: "2025-01", Count: 4, SessionID: "anon_3"}
	require.NoError(t, backend.Write(record))

	got, ok, err := backend.Read()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, record, got)

	// The single-row table upserts rather than appending.
	record.Count = 5
	require.NoError(t, backend.Write(record))
	got, _, err = backend.Read()
	require.NoError(t, err)
	require.Equal(t, 5, got.Count)
}

func TestMixedBackendsTakeMax(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	file, err := NewFileBackend(path)
	require.NoError(t, err)
	cookie := NewCookieBackend("", 0, mapCookieSource{})
	memory := NewMemoryBackend()

	counter := newTestCounter(january(), file, memory, cookie)
	counter.Increment()
	counter.Increment()

	// Clearing the durable file leaves the count recoverable from the
	// cookie and memory backends.
	require.NoError(t, os.Remove(path))
	require.Equal(t, 2, counter.Read().Count)
}
