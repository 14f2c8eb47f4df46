// Package cronutil expands 5-field cron expressions into shift occurrences
// and validates candidate shift start times against them.
package cronutil

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/robfig/cron/v3"
)

// ErrInvalidCronExpression marks unparsable or non-5-field expressions.
var ErrInvalidCronExpression = errors.New("invalid cron expression")

// maxOccurrences bounds a single expansion against pathological windows.
const maxOccurrences = 10000

// parser accepts exactly the classic 5 fields: minute hour dom month dow.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Occurrence is one concrete firing of a schedule.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// Validate rejects descriptors ("@daily"), wrong field counts and
// expressions the parser cannot handle.
func Validate(expr string) error {
	trimmed := strings.TrimSpace(expr)
	if strings.HasPrefix(trimmed, "@") {
		return fmt.Errorf("%w: descriptors are not allowed: %q", ErrInvalidCronExpression, expr)
	}
	if got := len(strings.Fields(trimmed)); got != 5 {
		return fmt.Errorf("%w: expected 5 fields, got %d", ErrInvalidCronExpression, got)
	}
	if _, err := parser.Parse(trimmed); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCronExpression, err)
	}
	return nil
}

// Expansion lazily yields the firings of one expression inside a window.
type Expansion struct {
	schedule cron.Schedule
	duration time.Duration
	cursor   time.Time
	end      time.Time
	emitted  int
}

// Expand prepares the lazy stream of occurrences in [windowStart, windowEnd).
// All evaluation happens in UTC. A firing exactly at windowStart is included,
// one exactly at windowEnd is excluded. The stream is monotonically
// non-decreasing and capped at 10000 occurrences.
func Expand(expr string, windowStart, windowEnd time.Time, duration time.Duration) (*Expansion, error) {
	if err := Validate(expr); err != nil {
		return nil, err
	}
	schedule, err := parser.Parse(strings.TrimSpace(expr))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCronExpression, err)
	}
	return &Expansion{
		schedule: schedule,
		duration: duration,
		// Next returns firings strictly after the cursor; backing up one
		// second keeps a firing exactly at windowStart in the stream.
		cursor: windowStart.UTC().Add(-1 * time.Second),
		end:    windowEnd.UTC(),
	}, nil
}

// Next returns the next occurrence and false when the window is exhausted.
func (e *Expansion) Next() (Occurrence, bool) {
	if e.emitted >= maxOccurrences {
		return Occurrence{}, false
	}
	next := e.schedule.Next(e.cursor)
	if next.IsZero() || !next.Before(e.end) {
		return Occurrence{}, false
	}
	e.cursor = next
	e.emitted++
	return Occurrence{Start: next, End: next.Add(e.duration)}, true
}

// Collect drains the expansion into a slice.
func (e *Expansion) Collect() []Occurrence {
	var out []Occurrence
	for {
		occ, ok := e.Next()
		if !ok {
			return out
		}
		out = append(out, occ)
	}
}

// Matches reports whether t is an exact firing of expr. It asks for the next
// firing one second before t and checks it lands on t.
func Matches(expr string, t time.Time) bool {
	parsed, err := cronexpr.Parse(strings.TrimSpace(expr))
	if err != nil {
		return false
	}
	t = t.UTC()
	next := parsed.Next(t.Add(-1 * time.Second))
	return !next.IsZero() && next.Equal(t)
}
