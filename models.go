package main

import (
	"fmt"
	"strings"
	"time"
)

// Task is one row of a sprint CSV export.
type Task struct {
	Key         string
	Summary     string
	Status      string
	IssueType   string
	Platform    string
	Assignee    string
	Labels      []string
	StoryPoints float64
	HasPoints   bool       // false when the points cell was empty or unparseable
	CreatedAt   *time.Time // nil when missing
	ClosedAt    *time.Time // nil unless the task reached a done status with a parseable closure date
}

func (t Task) HasLabel(label string) bool {
	for _, l := range t.Labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

// TaskSet is one loaded dataset plus the row-level parse problems
// encountered while loading it.
type TaskSet struct {
	Name     string
	Tasks    []Task
	Warnings []*ParseError
}

// Boundary is a sprint date window. Start and End are day-truncated
// calendar dates with Start <= End.
type Boundary struct {
	Start time.Time
	End   time.Time
}

func NewBoundary(start, end time.Time) (Boundary, error) {
	start, end = DayStart(start), DayStart(end)
	if start.After(end) {
		return Boundary{}, &ValidationError{
			Msg: fmt.Sprintf("start date %s is after end date %s", start.Format(dateLayout), end.Format(dateLayout)),
		}
	}
	return Boundary{Start: start, End: end}, nil
}

// Contains reports whether ts falls inside the window, inclusive on both
// ends. A timestamp anywhere on the end date counts.
func (b Boundary) Contains(ts time.Time) bool {
	return !ts.Before(b.Start) && ts.Before(b.End.AddDate(0, 0, 1))
}

func (b Boundary) String() string {
	return fmt.Sprintf("%s - %s", b.Start.Format(dateLayout), b.End.Format(dateLayout))
}

func (b Boundary) IsZero() bool {
	return b.Start.IsZero() && b.End.IsZero()
}

const dateLayout = "2006-01-02"

// DayStart truncates a timestamp to midnight in its own location.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DefaultFallback is the boundary used when a dataset carries no closure
// dates at all: the two weeks ending today.
func DefaultFallback(now time.Time) Boundary {
	today := DayStart(now)
	return Boundary{Start: today.AddDate(0, 0, -14), End: today}
}

// ValidationError reports a rejected user-supplied boundary.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// LoadError reports a dataset that cannot be loaded at all: unreadable
// file, malformed CSV, or missing/broken required columns.
type LoadError struct {
	Dataset string
	Reason  string
	Err     error
}

func (e *LoadError) Error() string {
	msg := e.Reason
	if e.Dataset != "" {
		msg = e.Dataset + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }

// ParseError reports a single cell that could not be parsed. The affected
// row is excluded from inference and aggregation; the load itself continues.
type ParseError struct {
	Row    int // 1-based CSV line number, header included
	Column string
	Value  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d: cannot parse %s value %q", e.Row, e.Column, e.Value)
}
