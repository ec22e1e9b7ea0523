package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mwi/archive"
	"github.com/pithecene-io/mwi/cli/render"
	"github.com/pithecene-io/mwi/metrics"
	"github.com/pithecene-io/mwi/runtime"
)

// DownloadResponse is the response for the download command.
type DownloadResponse struct {
	Name     string `json:"name" yaml:"name"`
	Location string `json:"location" yaml:"location"`
	Bytes    int64  `json:"bytes" yaml:"bytes"`
}

// Fields implements render.Describer.
func (d DownloadResponse) Fields() []render.Field {
	return []render.Field{
		{Label: "Archive", Value: d.Name},
		{Label: "Saved to", Value: d.Location, State: "succeeded"},
		{Label: "Size", Value: formatBytes(d.Bytes)},
	}
}

// formatBytes renders n with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// DownloadCommand returns the download command.
// It fetches a finished job's archive by its download URL.
func DownloadCommand() *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "Download a result archive",
		ArgsUsage: "REF",
		Flags: withFlags(
			[]cli.Flag{
				&cli.StringFlag{
					Name:  "save-to",
					Usage: "Directory or s3://bucket/prefix (default: output section of the config)",
				},
			},
			ServiceFlags(),
			ReadOnlyFlags(),
		),
		Action: downloadAction,
	}
}

func downloadAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("expected exactly one download reference", runtime.ExitCodeInvalidInput)
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for download command", 1)
	}
	ref := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	cfg, err := loadSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}
	logger, err := newLogger(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}
	sink, err := newSink(c.Context, c.String("save-to"), cfg)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}
	if sink == nil {
		return cli.Exit("no destination: pass --save-to or set output in the config", runtime.ExitCodeInvalidInput)
	}
	client, err := newClient(cfg, logger)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}

	collector := metrics.NewCollector(client.BaseURL(), sink.Kind())
	saved, err := archive.Fetch(c.Context, client, ref, sink, collector)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeFailure)
	}
	logger.Info("archive saved", map[string]any{
		"location": saved.Location,
		"bytes":    saved.Bytes,
	})

	return r.Render(DownloadResponse{
		Name:     saved.Name,
		Location: saved.Location,
		Bytes:    saved.Bytes,
	})
}
