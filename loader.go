package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Column aliases accepted for each logical field. Header matching is
// case-insensitive after trimming.
var (
	keyAliases      = []string{"Issue key", "Issue Key", "Key", "Id", "ID"}
	summaryAliases  = []string{"Summary", "Title"}
	statusAliases   = []string{"Status Category", "Status", "Current State"}
	closedAliases   = []string{"Status Category Changed", "Resolved", "Resolved Date", "Closed", "Accepted at"}
	pointsFallbacks = []string{"Custom field (Story Points)", "Story Points", "Estimate"}
	assigneeAliases = []string{"Assignee", "Owned By"}
	typeAliases     = []string{"Issue Type", "Type"}
	platformAliases = []string{"Platform", "Custom field (Platform)", "Team"}
	labelsAliases   = []string{"Labels", "Label"}
	createdAliases  = []string{"Created", "Created Date", "Created at"}
)

// Loader reads sprint CSV exports into TaskSets.
type Loader struct {
	// DoneStatuses lists the status values treated as closed. A closure
	// timestamp is recorded only for rows whose status is in this set.
	DoneStatuses []string
}

func NewLoader(cfg Config) *Loader {
	return &Loader{DoneStatuses: cfg.DoneStatuses}
}

func (l *Loader) isDone(status string) bool {
	for _, s := range l.DoneStatuses {
		if strings.EqualFold(strings.TrimSpace(status), s) {
			return true
		}
	}
	return false
}

// Load parses one CSV export. Structural problems (unreadable input, bad
// CSV, missing required columns, empty identifiers) return a LoadError.
// Unparseable date cells exclude only the affected row and are reported as
// warnings on the returned TaskSet.
func (l *Loader) Load(name string, r io.Reader) (*TaskSet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, &LoadError{Dataset: name, Reason: "not a valid CSV file", Err: err}
	}
	if len(records) == 0 {
		return nil, &LoadError{Dataset: name, Reason: "missing header row"}
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	cols := columnIndex{
		key:      findColumn(headers, keyAliases),
		summary:  findColumn(headers, summaryAliases),
		status:   findColumn(headers, statusAliases),
		closed:   findColumn(headers, closedAliases),
		points:   findPointsColumn(headers),
		assignee: findColumn(headers, assigneeAliases),
		issue:    findColumn(headers, typeAliases),
		platform: findColumn(headers, platformAliases),
		labels:   findColumn(headers, labelsAliases),
		created:  findColumn(headers, createdAliases),
	}
	if cols.key < 0 {
		return nil, &LoadError{Dataset: name, Reason: fmt.Sprintf("missing required identifier column (one of %s)", strings.Join(keyAliases, ", "))}
	}
	if cols.status < 0 {
		return nil, &LoadError{Dataset: name, Reason: "missing required status column"}
	}
	if cols.closed < 0 {
		return nil, &LoadError{Dataset: name, Reason: "missing required closure date column (e.g. Status Category Changed)"}
	}

	ts := &TaskSet{Name: name}
	for i, record := range records[1:] {
		line := i + 2 // 1-based, after the header

		key := strings.TrimSpace(cell(record, cols.key))
		if key == "" {
			return nil, &LoadError{Dataset: name, Reason: fmt.Sprintf("row %d: empty identifier", line)}
		}

		task := Task{
			Key:       key,
			Summary:   strings.TrimSpace(cell(record, cols.summary)),
			Status:    strings.TrimSpace(cell(record, cols.status)),
			IssueType: strings.TrimSpace(cell(record, cols.issue)),
			Platform:  strings.TrimSpace(cell(record, cols.platform)),
			Assignee:  strings.TrimSpace(cell(record, cols.assignee)),
			Labels:    splitLabels(cell(record, cols.labels)),
		}

		closedRaw := strings.TrimSpace(cell(record, cols.closed))
		if closedRaw != "" {
			closed, perr := parseDate(closedRaw)
			if perr != nil {
				ts.Warnings = append(ts.Warnings, &ParseError{Row: line, Column: headers[cols.closed], Value: closedRaw})
				continue // row excluded from inference and aggregation
			}
			if l.isDone(task.Status) {
				task.ClosedAt = &closed
			}
		}

		if cols.created >= 0 {
			createdRaw := strings.TrimSpace(cell(record, cols.created))
			if createdRaw != "" {
				created, perr := parseDate(createdRaw)
				if perr != nil {
					ts.Warnings = append(ts.Warnings, &ParseError{Row: line, Column: headers[cols.created], Value: createdRaw})
					continue
				}
				task.CreatedAt = &created
			}
		}

		if cols.points >= 0 {
			pointsRaw := strings.TrimSpace(cell(record, cols.points))
			if pointsRaw != "" {
				points, perr := strconv.ParseFloat(pointsRaw, 64)
				if perr != nil {
					// Non-numeric points degrade to zero contribution; the
					// row itself still counts.
					ts.Warnings = append(ts.Warnings, &ParseError{Row: line, Column: headers[cols.points], Value: pointsRaw})
				} else {
					task.StoryPoints = points
					task.HasPoints = true
				}
			}
		}

		ts.Tasks = append(ts.Tasks, task)
	}

	return ts, nil
}

type columnIndex struct {
	key, summary, status, closed, points, assignee, issue, platform, labels, created int
}

func findColumn(headers []string, aliases []string) int {
	for _, alias := range aliases {
		for i, h := range headers {
			if strings.EqualFold(h, alias) {
				return i
			}
		}
	}
	return -1
}

// findPointsColumn prefers any "story points" column that is not a
// total/weekly rollup, matching how the exports name estimate fields.
func findPointsColumn(headers []string) int {
	for i, h := range headers {
		lower := strings.ToLower(h)
		if strings.Contains(lower, "story points") &&
			!strings.Contains(lower, "total") && !strings.Contains(lower, "weekly") {
			return i
		}
	}
	return findColumn(headers, pointsFallbacks)
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func splitLabels(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	sep := ","
	if !strings.Contains(raw, ",") {
		sep = " "
	}
	var labels []string
	for _, l := range strings.Split(raw, sep) {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}
	return labels
}

// dateFormats are tried in order; the Jira export format comes first.
var dateFormats = []string{
	"02/Jan/06 15:04",
	"02/Jan/06 3:04 PM",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/06 15:04",
	"1/2/06 3:04 PM",
	"02.01.2006 15:04",
	"02.01.2006",
	"Jan 2, 2006",
}

// parseDate is the single lenient date parser every date cell goes
// through. All non-zoned formats are read in local time.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, format := range dateFormats {
		if t, err := time.ParseInLocation(format, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
