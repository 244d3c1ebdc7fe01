package entitlement

import (
	"time"

	"github.com/google/uuid"
)

// Day is a UTC calendar day key in "2006-01-02" form. Using the day as part
// of the counter identity makes a counter for a new day implicitly zero:
// there is no nightly reset job that could race with reads, and counters
// from past days become read-only history.
type Day string

// DayOf returns the Day containing the given instant, in UTC.
func DayOf(t time.Time) Day {
	return Day(t.UTC().Format("2006-01-02"))
}

// Today returns the current UTC day.
func Today() Day {
	return DayOf(time.Now())
}

// UsageCounter is the per-user, per-day usage count. Rows are created lazily
// on the first quota check of the day and mutated only through
// Store.IncrementUsage.
type UsageCounter struct {
	UserID uuid.UUID
	Day    Day
	Count  int64
}
