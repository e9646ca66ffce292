package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	reportStart string
	reportEnd   string
)

var rootCmd = &cobra.Command{
	Use:   "sprintboard",
	Short: "Sprint analytics dashboard over tracker CSV exports",
	Long: `sprintboard reads a sprint CSV export, infers the sprint window from
task closure dates, lets you correct the window, and reports capacity and
velocity metrics, in the browser or on the console.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := LoadConfig()
		store := NewDatasetStore(afero.NewOsFs(), cfg.DatasetsDir)
		loader := NewLoader(cfg)
		publisher := NewPublisher(cfg)

		StartPublishScheduler(cfg, store, loader, publisher)

		server := NewServer(cfg, store, loader, publisher)
		return server.ListenAndServe()
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <dataset.csv>",
	Short: "Print a sprint summary for one dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := LoadConfig()
		store := NewDatasetStore(afero.NewOsFs(), cfg.DatasetsDir)
		return runReport(cfg, store, NewLoader(cfg), args[0], reportStart, reportEnd, cmd.OutOrStdout())
	},
}

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List CSV files in the datasets directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := LoadConfig()
		store := NewDatasetStore(afero.NewOsFs(), cfg.DatasetsDir)
		names, err := store.List()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportStart, "start", "", "sprint start date (YYYY-MM-DD, overrides inference)")
	reportCmd.Flags().StringVar(&reportEnd, "end", "", "sprint end date (YYYY-MM-DD, overrides inference)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(datasetsCmd)
}

// runReport is the console analogue of the dashboard: load, infer,
// optionally override, aggregate, print.
func runReport(cfg Config, store *DatasetStore, loader *Loader, name, startRaw, endRaw string, out io.Writer) error {
	f, err := store.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	ts, err := loader.Load(name, f)
	if err != nil {
		return err
	}

	sess := NewSession(ts, InferBoundary(ts, FallbackFor(name, time.Now().In(cfg.Location))))
	if startRaw != "" || endRaw != "" {
		if startRaw == "" || endRaw == "" {
			return fmt.Errorf("--start and --end must be given together")
		}
		start, end, err := parseBoundaryDates(startRaw, endRaw, cfg.Location)
		if err != nil {
			return err
		}
		if err := sess.SetBoundary(start, end); err != nil {
			return err
		}
	}

	m := sess.Metrics(cfg.MetricsOptions())
	printSummary(out, name, sess, m)

	if len(ts.Warnings) > 0 {
		fmt.Fprintf(out, "\n%d row(s) excluded:\n", len(ts.Warnings))
		for _, w := range ts.Warnings {
			fmt.Fprintf(out, "  - %v\n", w)
		}
	}
	return nil
}

func printSummary(out io.Writer, name string, sess *Session, m Metrics) {
	fmt.Fprintf(out, "Sprint summary for %s\n", name)
	fmt.Fprintf(out, "%-32s: %s", "Sprint window", sess.Boundary())
	if sess.Boundary() == sess.Inferred {
		fmt.Fprint(out, " (inferred from closure dates; best-effort)")
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "%-32s: %d\n", "Total tasks", m.TotalTasks)
	fmt.Fprintf(out, "%-32s: %d\n", "Completed items", m.CompletedCount)
	fmt.Fprintf(out, "%-32s: %.1f\n", "Completed story points", m.CompletedPoints)
	fmt.Fprintf(out, "%-32s: %.1f\n", "Planned story points", m.PlannedPoints)
	fmt.Fprintf(out, "%-32s: %.0f%%\n", "Completion rate", m.CompletionRate*100)
	fmt.Fprintf(out, "%-32s: %.1f%%\n", "Naive scope drop", m.NaiveScopeDrop)
	fmt.Fprintf(out, "%-32s: %.1f%%\n", "Actual scope drop", m.ActualScopeDrop)
	fmt.Fprintf(out, "%-32s: %d (%d full-time)\n", "Contributors", m.Contributors, m.FullTimeContributors)
	fmt.Fprintf(out, "%-32s: %.1f\n", "Avg SP per item", m.AvgPointsPerItem)
	fmt.Fprintf(out, "%-32s: %.1f\n", "Avg SP per full-time contributor", m.AvgCapacityPerContributor)
	if m.AIAssistedPoints > 0 {
		fmt.Fprintf(out, "%-32s: %.1f\n", "AI-assisted story points", m.AIAssistedPoints)
	}

	if len(m.ByPlatform) > 0 {
		fmt.Fprintln(out, "\nPlatform breakdown:")
		for _, stat := range m.ByPlatform {
			fmt.Fprintf(out, "  - %-20s: %.1f SP, %d items\n", stat.Name, stat.Points, stat.Count)
		}
	}
	if len(m.ByAssignee) > 0 {
		fmt.Fprintln(out, "\nAssignee breakdown:")
		for _, stat := range m.ByAssignee {
			fmt.Fprintf(out, "  - %-20s: %.1f SP, %d items\n", stat.Name, stat.Points, stat.Count)
		}
	}
}
