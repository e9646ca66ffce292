package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// Publisher renders a sprint summary, writes it to the report directory and
// optionally posts it to Slack. Both destinations are best-effort features
// on top of the dashboard; neither is required for the core computations.
type Publisher struct {
	cfg        Config
	api        *slack.Client
	highlights highlightsFn
}

// highlightsFn is swappable in tests.
type highlightsFn func(cfg Config, m Metrics, window Boundary, dataset string) (string, error)

func NewPublisher(cfg Config) *Publisher {
	p := &Publisher{cfg: cfg}
	if cfg.SlackConfigured() {
		p.api = slack.New(cfg.SlackBotToken)
	}
	if cfg.LLMConfigured() {
		p.highlights = generateHighlights
	}
	return p
}

type PublishResult struct {
	FilePath     string `json:"file_path"`
	SlackChannel string `json:"slack_channel,omitempty"`
	Highlighted  bool   `json:"highlighted"`
}

// Publish writes the markdown summary for one session and posts it to the
// configured Slack channel. An LLM failure degrades to a report without the
// highlights paragraph; a Slack failure is returned after the file is
// already on disk.
func (p *Publisher) Publish(sess *Session, m Metrics) (PublishResult, error) {
	var result PublishResult

	highlights := ""
	if p.highlights != nil {
		text, err := p.highlights(p.cfg, m, m.Window, sess.TaskSet.Name)
		if err != nil {
			log.Printf("publish highlights error dataset=%s: %v", sess.TaskSet.Name, err)
		} else {
			highlights = text
			result.Highlighted = true
		}
	}

	content := renderSummaryMarkdown(p.cfg.TeamName, sess.TaskSet.Name, m, highlights)
	path, err := WriteReportFile(content, p.cfg.ReportOutputDir, m.Window.End, p.cfg.TeamName)
	if err != nil {
		return result, fmt.Errorf("writing report file: %w", err)
	}
	result.FilePath = path
	log.Printf("publish wrote report file=%s dataset=%s", path, sess.TaskSet.Name)

	if p.api != nil {
		_, _, err := p.api.PostMessage(p.cfg.SlackChannelID, slack.MsgOptionText(content, false))
		if err != nil {
			return result, fmt.Errorf("posting to Slack channel %s: %w", p.cfg.SlackChannelID, err)
		}
		result.SlackChannel = p.cfg.SlackChannelID
		log.Printf("publish posted to slack channel=%s", p.cfg.SlackChannelID)
	}

	return result, nil
}

func renderSummaryMarkdown(teamName, dataset string, m Metrics, highlights string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s Sprint Report %s\n\n", teamName, m.Window)
	fmt.Fprintf(&b, "Dataset: %s\n\n", dataset)

	if highlights != "" {
		b.WriteString(strings.TrimSpace(highlights))
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "- **Completed**: %.1f SP across %d items\n", m.CompletedPoints, m.CompletedCount)
	fmt.Fprintf(&b, "- **Planned**: %.1f SP across %d items\n", m.PlannedPoints, m.TotalTasks)
	fmt.Fprintf(&b, "- **Completion rate**: %.0f%%\n", m.CompletionRate*100)
	fmt.Fprintf(&b, "- **Scope drop**: %.1f%% naive, %.1f%% against first-day plan\n", m.NaiveScopeDrop, m.ActualScopeDrop)
	fmt.Fprintf(&b, "- **Contributors**: %d total, %d full-time (avg %.1f SP each)\n",
		m.Contributors, m.FullTimeContributors, m.AvgCapacityPerContributor)
	if m.AIAssistedPoints > 0 {
		fmt.Fprintf(&b, "- **AI-assisted**: %.1f SP\n", m.AIAssistedPoints)
	}
	b.WriteString("\n")

	if len(m.ByPlatform) > 0 {
		b.WriteString("#### By platform\n\n")
		writeGroupTable(&b, "Platform", m.ByPlatform)
	}
	if len(m.ByAssignee) > 0 {
		b.WriteString("#### By assignee\n\n")
		writeGroupTable(&b, "Assignee", m.ByAssignee)
	}
	if len(m.ByIssueType) > 0 {
		b.WriteString("#### By issue type\n\n")
		writeGroupTable(&b, "Issue Type", m.ByIssueType)
	}

	return b.String()
}

func writeGroupTable(b *strings.Builder, dimension string, stats []GroupStat) {
	fmt.Fprintf(b, "| %s | Items | Story Points |\n|---|---|---|\n", dimension)
	for _, stat := range stats {
		fmt.Fprintf(b, "| %s | %d | %.1f |\n", stat.Name, stat.Count, stat.Points)
	}
	b.WriteString("\n")
}

func WriteReportFile(content, outputDir string, reportDate time.Time, teamName string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("%s_%s.md", sanitizeFilename(teamName), reportDate.Format("20060102"))
	path := filepath.Join(outputDir, filename)
	return path, os.WriteFile(path, []byte(content), 0644)
}

func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_", " ", "_")
	return replacer.Replace(s)
}
