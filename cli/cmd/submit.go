package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mwi/archive"
	"github.com/pithecene-io/mwi/cli/render"
	"github.com/pithecene-io/mwi/cli/tui"
	"github.com/pithecene-io/mwi/iox"
	"github.com/pithecene-io/mwi/job"
	"github.com/pithecene-io/mwi/journal"
	"github.com/pithecene-io/mwi/metrics"
	"github.com/pithecene-io/mwi/runtime"
	"github.com/pithecene-io/mwi/submit"
	"github.com/pithecene-io/mwi/types"
)

// SubmitCommand returns the submit command.
func SubmitCommand() *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "Submit a photo and follow the job until it finishes",
		ArgsUsage: "[FILE]",
		Description: `Uploads an image together with form fields and streams job progress.

Exit codes:
  0  job succeeded
  1  job reported an error
  2  transport failure, stream fault or stream ended early
  3  input rejected before sending
  4  canceled (SIGINT/SIGTERM or q in --tui)`,
		Flags: withFlags(
			[]cli.Flag{
				&cli.StringFlag{
					Name:    "file",
					Aliases: []string{"i"},
					Usage:   "Path to the image to upload",
				},
				&cli.StringSliceFlag{
					Name:  "field",
					Usage: "Form field as name=value (repeatable)",
				},
				&cli.StringFlag{
					Name:  "drive-link",
					Usage: "Google Drive folder link (shorthand for --field " + submit.DriveLinkField + "=URL)",
				},
				&cli.StringFlag{
					Name:  "journal",
					Usage: "Record every job notification to this file (replay with mwi inspect)",
				},
				&cli.StringFlag{
					Name:  "save-to",
					Usage: "Download the result archive to a directory or s3://bucket/prefix",
				},
				&cli.StringFlag{
					Name:  "report",
					Usage: "Write a JSON submission report to this path (- for stderr)",
				},
				&cli.BoolFlag{
					Name:    "quiet",
					Aliases: []string{"q"},
					Usage:   "Suppress progress and summary output",
				},
			},
			ServiceFlags(),
			ReadOnlyFlags(),
		),
		Action: submitAction,
	}
}

// submitOptions holds parsed submit flags.
type submitOptions struct {
	file    string
	fields  map[string]string
	journal string
	saveTo  string
	report  string
	quiet   bool
	tui     bool
}

func parseSubmitOptions(c *cli.Context) (*submitOptions, error) {
	opts := &submitOptions{
		file:    c.String("file"),
		journal: c.String("journal"),
		saveTo:  c.String("save-to"),
		report:  c.String("report"),
		quiet:   c.Bool("quiet"),
		tui:     c.Bool("tui"),
	}
	if opts.file == "" {
		opts.file = c.Args().First()
	}
	if opts.file == "" {
		return nil, fmt.Errorf("an image is required (--file PATH)")
	}
	if c.NArg() > 1 || (c.IsSet("file") && c.NArg() > 0) {
		return nil, fmt.Errorf("unexpected arguments: %v", c.Args().Slice())
	}

	fields, err := parsePairs(c.StringSlice("field"), "--field")
	if err != nil {
		return nil, err
	}
	if link := c.String("drive-link"); link != "" {
		fields[submit.DriveLinkField] = link
	}
	opts.fields = fields

	if opts.tui && opts.quiet {
		return nil, fmt.Errorf("--tui and --quiet cannot be combined")
	}
	return opts, nil
}

func submitAction(c *cli.Context) error {
	opts, err := parseSubmitOptions(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}
	cfg, err := loadSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}
	constraints, err := cfg.Constraints()
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	att, err := submit.LoadAttachment(opts.file)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}

	logger, err := newLogger(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}
	defer iox.DiscardErr(logger.Sync)
	cliLog := logger.Sugar().With("command", "submit")

	// Signal handling: first SIGINT/SIGTERM cancels the submission.
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Resolve the archive destination up front so a bad destination fails
	// before anything is uploaded.
	sink, err := newSink(ctx, opts.saveTo, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("archive destination: %v", err), runtime.ExitCodeInvalidInput)
	}
	sinkKind := ""
	if sink != nil {
		sinkKind = sink.Kind()
	}

	client, err := newClient(cfg, logger)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}
	collector := metrics.NewCollector(client.BaseURL(), sinkKind)

	pub, err := newAdapter(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("adapter: %v", err), runtime.ExitCodeInvalidInput)
	}
	if pub != nil {
		defer func() {
			if err := pub.Close(); err != nil {
				cliLog.Warnf("adapter close failed: %v", err)
			}
		}()
	}

	var observers job.Observers
	var view *tui.ProgressView
	switch {
	case opts.tui:
		view = tui.NewProgressView(att.Name, cancel)
		observers = append(observers, view.Observer())
	case !opts.quiet:
		observers = append(observers, render.NewProgressPrinter(errWriter(c)))
	}

	journalPath := opts.journal
	if journalPath == "" {
		journalPath = cfg.Journal
	}
	var jw *journal.Writer
	if journalPath != "" {
		f, err := os.Create(journalPath)
		if err != nil {
			return cli.Exit(fmt.Sprintf("journal: %v", err), runtime.ExitCodeInvalidInput)
		}
		defer iox.DiscardClose(f)
		jw = journal.NewWriter(f, "", collector)
		// Flushes whatever was recorded when the submission ends early.
		defer iox.DiscardErr(jw.Flush)
		observers = append(observers, jw)
		cliLog.Debugf("journaling to %s", journalPath)
	}

	runner, err := runtime.NewRunner(runtime.RunConfig{
		Client:       client,
		Logger:       logger,
		Collector:    collector,
		MaxFrameSize: cfg.Stream.MaxFrameBytes,
		Adapter:      pub,
	})
	if err != nil {
		return err
	}
	form := runtime.NewForm(runtime.FormConfig{
		Runner:      runner,
		Constraints: constraints,
		Observer:    observers,
		OnStart: func(id string) {
			if jw != nil {
				jw.SetSubmissionID(id)
			}
		},
	})

	if view != nil {
		view.Start()
	}
	result, submitErr := form.Submit(ctx, att, opts.fields)
	if view != nil {
		if err := view.Stop(); err != nil {
			cliLog.Warnf("progress view failed: %v", err)
		}
	}
	if result == nil {
		return cli.Exit(submitErr.Error(), runtime.ExitCodeForError(submitErr))
	}

	if jw != nil {
		if err := jw.WriteOutcome(result.Outcome); err != nil {
			cliLog.Warnf("journal write failed: %v", err)
		}
		if err := jw.Flush(); err != nil {
			cliLog.Warnf("journal flush failed: %v", err)
		}
	}

	code := runtime.ExitCode(result.Outcome)
	var saved *archive.Result
	var archiveErr error
	if sink != nil && result.Outcome.Status == types.OutcomeSucceeded {
		saved, archiveErr = archive.Fetch(ctx, client, result.Outcome.DownloadURL, sink, collector)
		if archiveErr != nil {
			code = runtime.ExitCodeFailure
			cliLog.Errorf("archive save failed: %v", archiveErr)
		} else {
			cliLog.Infof("archive saved to %s (%d bytes)", saved.Location, saved.Bytes)
		}
	}

	if opts.report != "" {
		report := runtime.BuildSubmissionReport(result, client.BaseURL(), collector.Snapshot(), code)
		if saved != nil {
			report = report.WithArchive(saved.Location, saved.Bytes)
		}
		if err := runtime.WriteSubmissionReport(report, opts.report); err != nil {
			cliLog.Warnf("report write failed: %v", err)
		}
	}

	if !opts.quiet {
		location := ""
		if saved != nil {
			location = saved.Location
		}
		if err := r.Render(render.NewSubmissionView(result, location)); err != nil {
			return err
		}
	}

	if archiveErr != nil {
		return cli.Exit(fmt.Sprintf("job succeeded but the archive was not saved: %v", archiveErr), code)
	}
	if code != runtime.ExitCodeSuccess {
		return cli.Exit("", code)
	}
	return nil
}
