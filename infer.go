package main

import (
	"regexp"
	"strconv"
	"time"
)

// InferBoundary derives a candidate sprint window from the closure dates in
// the dataset: the span from the earliest to the latest closed task. With no
// closed tasks it returns the fallback unchanged. CSV exports carry no
// boundary field, so the result is a heuristic starting point and callers
// must present it as one.
func InferBoundary(ts *TaskSet, fallback Boundary) Boundary {
	var min, max time.Time
	for _, task := range ts.Tasks {
		if task.ClosedAt == nil {
			continue
		}
		day := DayStart(*task.ClosedAt)
		if min.IsZero() || day.Before(min) {
			min = day
		}
		if max.IsZero() || day.After(max) {
			max = day
		}
	}
	if min.IsZero() {
		return fallback
	}
	return Boundary{Start: min, End: max}
}

var sprintFileRe = regexp.MustCompile(`(?i)^q([1-4])_sprint_(\d+)_(\d{4})\.csv$`)

// BoundaryFromFilename guesses a two-week sprint window from dataset names
// like q3_sprint_2_2025.csv: sprint n starts (n-1)*2 weeks into the quarter.
func BoundaryFromFilename(name string) (Boundary, bool) {
	m := sprintFileRe.FindStringSubmatch(name)
	if m == nil {
		return Boundary{}, false
	}
	quarter, _ := strconv.Atoi(m[1])
	sprint, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if sprint < 1 {
		return Boundary{}, false
	}

	quarterStart := time.Date(year, time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, time.Local)
	start := quarterStart.AddDate(0, 0, (sprint-1)*14)
	return Boundary{Start: start, End: start.AddDate(0, 0, 13)}, true
}

// FallbackFor picks the inference fallback for a dataset: the filename
// heuristic when the name is recognizable, otherwise the default range.
func FallbackFor(name string, now time.Time) Boundary {
	if b, ok := BoundaryFromFilename(name); ok {
		return b
	}
	return DefaultFallback(now)
}
