package main

import "sort"

// MetricsOptions carries the tunable conventions of the aggregation.
type MetricsOptions struct {
	// FullTimeThreshold is the completed-story-point floor above which an
	// assignee counts as a full-time contributor.
	FullTimeThreshold float64
	// AILabel marks tasks whose completed points are reported separately
	// as AI-assisted capacity.
	AILabel string
}

func (cfg Config) MetricsOptions() MetricsOptions {
	return MetricsOptions{FullTimeThreshold: cfg.FullTimeThreshold, AILabel: cfg.AILabel}
}

// GroupStat is one row of a per-dimension breakdown.
type GroupStat struct {
	Name   string  `json:"name"`
	Count  int     `json:"count"`
	Points float64 `json:"points"`
}

// Metrics is the full set of aggregate numbers for one dataset and one
// boundary. Purely derived; recomputing with identical inputs yields an
// identical value.
type Metrics struct {
	Window     Boundary `json:"-"`
	TotalTasks int      `json:"total_tasks"`

	CompletedCount  int     `json:"completed_count"`
	CompletedPoints float64 `json:"completed_points"`
	PlannedPoints   float64 `json:"planned_points"`
	// CompletionRate divides completed points by the planned points of all
	// tasks in the dataset. That denominator convention matches the
	// original capacity reports and is applied everywhere.
	CompletionRate float64 `json:"completion_rate"`

	ByAssignee  []GroupStat `json:"by_assignee"`
	ByIssueType []GroupStat `json:"by_issue_type"`
	ByPlatform  []GroupStat `json:"by_platform"`

	Contributors         int     `json:"contributors"`
	FullTimeContributors int     `json:"full_time_contributors"`
	AvgPointsPerItem     float64 `json:"avg_points_per_item"`
	// AvgCapacityPerContributor divides completed points by full-time
	// contributors only, so part-time helpers do not dilute the number.
	AvgCapacityPerContributor float64 `json:"avg_capacity_per_contributor"`

	OriginallyPlannedPoints   float64 `json:"originally_planned_points"`
	OriginallyCompletedPoints float64 `json:"originally_completed_points"`
	NaiveScopeDrop            float64 `json:"naive_scope_drop"`
	ActualScopeDrop           float64 `json:"actual_scope_drop"`

	AIAssistedPoints float64 `json:"ai_assisted_points"`
}

// CompletedWithin returns the tasks closed inside the boundary: closure
// timestamp present and Start <= closed_at <= End, both ends inclusive.
// Tasks without a closure timestamp are never completed, whatever their
// status says.
func CompletedWithin(ts *TaskSet, b Boundary) []Task {
	var closed []Task
	for _, task := range ts.Tasks {
		if task.ClosedAt != nil && b.Contains(*task.ClosedAt) {
			closed = append(closed, task)
		}
	}
	return closed
}

// originallyPlanned reports whether the task existed on or before the
// sprint start, by creation date.
func originallyPlanned(task Task, b Boundary) bool {
	return task.CreatedAt != nil && !DayStart(*task.CreatedAt).After(b.Start)
}

// ComputeMetrics aggregates the dataset against a boundary. An empty
// dataset or a boundary excluding every task produces all-zero metrics,
// never an error.
func ComputeMetrics(ts *TaskSet, b Boundary, opts MetricsOptions) Metrics {
	m := Metrics{Window: b, TotalTasks: len(ts.Tasks)}

	closed := CompletedWithin(ts, b)
	closedKeys := make(map[string]bool, len(closed))
	for _, task := range closed {
		closedKeys[task.Key] = true
		m.CompletedCount++
		m.CompletedPoints += task.StoryPoints
		if opts.AILabel != "" && task.HasLabel(opts.AILabel) {
			m.AIAssistedPoints += task.StoryPoints
		}
	}

	contributors := make(map[string]bool)
	completedByAssignee := make(map[string]float64)
	for _, task := range ts.Tasks {
		m.PlannedPoints += task.StoryPoints
		if task.Assignee != "" {
			contributors[task.Assignee] = true
		}
		if originallyPlanned(task, b) {
			m.OriginallyPlannedPoints += task.StoryPoints
			if closedKeys[task.Key] {
				m.OriginallyCompletedPoints += task.StoryPoints
			}
		}
	}
	for _, task := range closed {
		if task.Assignee != "" {
			completedByAssignee[task.Assignee] += task.StoryPoints
		}
	}

	m.Contributors = len(contributors)
	threshold := opts.FullTimeThreshold
	if threshold <= 0 {
		threshold = 5
	}
	for _, points := range completedByAssignee {
		if points >= threshold {
			m.FullTimeContributors++
		}
	}

	if m.PlannedPoints > 0 {
		m.CompletionRate = m.CompletedPoints / m.PlannedPoints
		m.NaiveScopeDrop = (m.PlannedPoints - m.CompletedPoints) / m.PlannedPoints * 100
	}
	if m.OriginallyPlannedPoints > 0 {
		m.ActualScopeDrop = (m.OriginallyPlannedPoints - m.OriginallyCompletedPoints) / m.OriginallyPlannedPoints * 100
	}
	if m.CompletedCount > 0 {
		m.AvgPointsPerItem = m.CompletedPoints / float64(m.CompletedCount)
	}
	if m.FullTimeContributors > 0 {
		m.AvgCapacityPerContributor = m.CompletedPoints / float64(m.FullTimeContributors)
	}

	m.ByAssignee = groupBy(closed, func(t Task) string {
		if t.Assignee == "" {
			return "Unassigned"
		}
		return t.Assignee
	})
	m.ByIssueType = groupBy(closed, func(t Task) string { return t.IssueType })
	m.ByPlatform = groupBy(closed, func(t Task) string { return t.Platform })

	return m
}

func groupBy(tasks []Task, key func(Task) string) []GroupStat {
	byName := make(map[string]*GroupStat)
	for _, task := range tasks {
		name := key(task)
		if name == "" {
			continue
		}
		stat, ok := byName[name]
		if !ok {
			stat = &GroupStat{Name: name}
			byName[name] = stat
		}
		stat.Count++
		stat.Points += task.StoryPoints
	}

	stats := make([]GroupStat, 0, len(byName))
	for _, stat := range byName {
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Points != stats[j].Points {
			return stats[i].Points > stats[j].Points
		}
		return stats[i].Name < stats[j].Name
	})
	return stats
}
