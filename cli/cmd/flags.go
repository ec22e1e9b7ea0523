// Package cmd provides CLI commands for the mwi binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags for commands that render output.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Valid for submit, status, inspect and stats.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (submit, status, inspect, stats only)",
	}
)

// Shared flags for commands that talk to the service.
var (
	// ConfigFlag points at an mwi.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to mwi.yaml config file",
		EnvVars: []string{"MWI_CONFIG"},
	}

	// EnvFileFlag points at a dotenv file loaded before the config.
	EnvFileFlag = &cli.StringFlag{
		Name:  "env-file",
		Usage: "Path to a .env file (default: ./.env when present)",
	}

	// EndpointFlag overrides the service base URL.
	EndpointFlag = &cli.StringFlag{
		Name:    "endpoint",
		Aliases: []string{"e"},
		Usage:   "Service base URL (default: " + DefaultEndpoint + ")",
	}

	// TimeoutFlag bounds the wait for response headers.
	TimeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "Response header timeout, e.g. 30s (0 = none; never applies to the progress stream)",
	}

	// HeaderFlag adds a request header.
	HeaderFlag = &cli.StringSliceFlag{
		Name:  "header",
		Usage: "Extra request header as name=value (repeatable)",
	}

	// LogLevelFlag sets the log level.
	LogLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level: debug, info, warn, error (default: warn)",
	}
)

// ReadOnlyFlags returns the shared flags for all rendering commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// ServiceFlags returns the connection flags for commands that contact the service.
func ServiceFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		EnvFileFlag,
		EndpointFlag,
		TimeoutFlag,
		HeaderFlag,
		LogLevelFlag,
	}
}

func withFlags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Commands returns every mwi command in display order.
func Commands(commit string) []*cli.Command {
	return []*cli.Command{
		SubmitCommand(),
		StatusCommand(),
		DownloadCommand(),
		InspectCommand(),
		StatsCommand(),
		VersionCommand("", commit),
	}
}
