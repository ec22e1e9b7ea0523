package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mwi/cli/render"
	"github.com/pithecene-io/mwi/runtime"
)

// StatsCommand returns the stats command.
// Stats shows the metrics recorded in a report written by submit --report.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Show submission statistics from a report",
		ArgsUsage: "REPORT",
		Flags:     ReadOnlyFlags(),
		Action:    statsAction,
	}
}

func statsAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("expected exactly one report path", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	report, err := readSubmissionReport(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if c.Bool("tui") {
		return r.RenderTUI("stats_submission", report.Metrics)
	}
	return r.RenderDetail(report.Metrics, render.MetricsFields(report.Metrics))
}

func readSubmissionReport(path string) (*runtime.SubmissionReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read report: %w", err)
	}
	var report runtime.SubmissionReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("invalid report %s: %w", path, err)
	}
	if report.Metrics == nil {
		return nil, fmt.Errorf("report %s has no metrics", path)
	}
	return &report, nil
}
