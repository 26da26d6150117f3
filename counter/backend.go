// Package counter tracks anonymous workflow completions across several
// independently clearable storage backends, taking the maximum of their
// counts as the authoritative value. A visitor who clears one mechanism
// still has the true-or-higher count recoverable from whichever backend
// they missed; taking the max rather than the sum avoids over-counting when
// the backends agree.
package counter

import "time"

// Record is the value one backend stores: a count scoped to a calendar
// month, plus the anonymous session identifier, which survives month
// rollovers.
type Record struct {
	MonthKey  string `json:"month_key"`
	Count     int    `json:"count"`
	SessionID string `json:"session_id,omitempty"`
}

// UsagePeriod is a count scoped to one calendar month.
type UsagePeriod struct {
	MonthKey string
	Count    int
}

// Backend is a single storage mechanism for the anonymous usage record.
// Implementations differ in persistence and visibility: a durable store
// survives restarts, a memory store lives as long as the process, a cookie
// store travels with requests and has its own expiry.
//
// Read returns ok=false when no record is stored. Errors mean the backend
// is unavailable or the stored value is unusable; the composite counter
// treats either as count=0 for that backend only and never propagates.
type Backend interface {
	Read() (Record, bool, error)
	Write(Record) error
}

// MonthKey formats a time as the "YYYY-MM" period key.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
