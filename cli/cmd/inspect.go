package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mwi/cli/render"
	"github.com/pithecene-io/mwi/iox"
	"github.com/pithecene-io/mwi/journal"
)

// InspectCommand returns the inspect command.
// Inspect replays a journal written by submit --journal. It never contacts
// the service.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Replay a submission journal",
		ArgsUsage: "JOURNAL",
		Flags:     ReadOnlyFlags(),
		Action:    inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("expected exactly one journal path", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	path := c.Args().First()
	f, err := os.Open(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot open journal: %v", err), 1)
	}
	defer iox.DiscardClose(f)

	// A truncated journal still renders what was recorded before the cut.
	records, readErr := journal.ReadAll(f)
	if readErr != nil && len(records) == 0 {
		return cli.Exit(fmt.Sprintf("invalid journal %s: %v", path, readErr), 1)
	}
	if readErr != nil && isStderrTTY() {
		fmt.Fprintf(os.Stderr, "Warning: journal is truncated after %d records: %v\n\n", len(records), readErr)
	}

	if c.Bool("tui") {
		if err := r.RenderTUI("inspect_journal", records); err != nil {
			return err
		}
	} else if err := r.Render(render.NewJournalRows(records)); err != nil {
		return err
	}

	if readErr != nil {
		return cli.Exit("", 1)
	}
	return nil
}

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
