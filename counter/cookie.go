package counter

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CookieSource is the host's access to the visitor's cookies, typically an
// adapter over an http.Request / http.ResponseWriter pair.
type CookieSource interface {
	Cookie(name string) (*http.Cookie, bool)
	SetCookie(cookie *http.Cookie)
}

// CookieBackend stores the record in a named cookie. The cookie travels
// with requests and carries its own expiry, giving it different clearing
// characteristics than the durable and memory backends.
type CookieBackend struct {
	name   string
	maxAge time.Duration
	source CookieSource
}

// DefaultCookieName is the cookie used when none is configured.
const DefaultCookieName = "fg_usage"

// NewCookieBackend returns a cookie-backed counter backend. A zero maxAge
// defaults to 90 days, comfortably longer than one usage period.
func NewCookieBackend(name string, maxAge time.Duration, source CookieSource) *CookieBackend {
	if name == "" {
		name = DefaultCookieName
	}
	if maxAge <= 0 {
		maxAge = 90 * 24 * time.Hour
	}
	return &CookieBackend{name: name, maxAge: maxAge, source: source}
}

func (b *CookieBackend) Read() (Record, bool, error) {
	cookie, ok := b.source.Cookie(b.name)
	if !ok || cookie.Value == "" {
		return Record{}, false, nil
	}
	record, err := decodeCookieValue(cookie.Value)
	if err != nil {
		return Record{}, false, fmt.Errorf("corrupt usage cookie: %w", err)
	}
	return record, true, nil
}

func (b *CookieBackend) Write(record Record) error {
	b.source.SetCookie(&http.Cookie{
		Name:     b.name,
		Value:    encodeCookieValue(record),
		Path:     "/",
		MaxAge:   int(b.maxAge.Seconds()),
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// encodeCookieValue packs a record as "monthKey|count|sessionID". The
// session id segment may be empty.
func encodeCookieValue(record Record) string {
	return fmt.Sprintf("%s|%d|%s", record.MonthKey, record.Count, record.SessionID)
}

func decodeCookieValue(value string) (Record, error) {
	parts := strings.SplitN(value, "|", 3)
	if len(parts) < 2 {
		return Record{}, fmt.Errorf("expected monthKey|count, got %q", value)
	}
	count, err := strconv.Atoi(parts[1])
	if err != nil {
		return Record{}, fmt.Errorf("bad count segment: %w", err)
	}
	record := Record{MonthKey: parts[0], Count: count}
	if len(parts) == 3 {
		record.SessionID = parts[2]
	}
	return record, nil
}
