// Package render provides centralized output rendering for the mwi CLI.
//
// Format selection rules:
//   - If output is a TTY, default to table
//   - If output is not a TTY, default to json
//   - --format flag always overrides defaults
//   - Invalid formats are errors
//
// Tables are laid out by the view itself (Describer or Lister). Values with
// no table layout are printed as YAML in table mode.
//
// Live progress is rendered separately: ProgressPrinter writes plain lines,
// and the --tui view lives in package tui.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pithecene-io/mwi/cli/tui"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string, returning an error for invalid formats.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "yaml":
		return FormatYAML, nil
	case "":
		return "", nil // Let caller decide default
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Field is one labeled value in a detail table. State, when set, selects the
// color of the value on a terminal.
type Field struct {
	Label string
	Value string
	State string
}

// Describer is implemented by views rendered as a label/value table.
type Describer interface {
	Fields() []Field
}

// Lister is implemented by views rendered as a table with one row per item.
type Lister interface {
	Columns() []string
	Rows() [][]string
}

// Renderer handles output formatting.
type Renderer struct {
	format Format
	color  bool
	out    io.Writer
}

// NewRenderer creates a renderer from CLI context. Output goes to the app's
// writer, or stdout.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stdout
	if c.App != nil && c.App.Writer != nil {
		out = c.App.Writer
	}

	// Apply default format based on TTY detection
	if format == "" {
		if isTTY(out) {
			format = FormatTable
		} else {
			format = FormatJSON
		}
	}

	return NewRendererWithWriter(format, c.Bool("no-color"), out), nil
}

// NewRendererWithWriter creates a renderer with a custom writer.
// Color is only used when out is a terminal and noColor is false.
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{
		format: format,
		color:  !noColor && isTTY(out),
		out:    out,
	}
}

// Render outputs the data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(data)
	case FormatTable:
		switch v := data.(type) {
		case Lister:
			return r.renderList(v)
		case Describer:
			return r.renderFields(v.Fields())
		default:
			return r.renderYAML(data)
		}
	case FormatYAML:
		return r.renderYAML(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// RenderDetail outputs data, using fields as its table layout. Use it for
// types that cannot implement Describer themselves.
func (r *Renderer) RenderDetail(data any, fields []Field) error {
	if r.format == FormatTable {
		return r.renderFields(fields)
	}
	return r.Render(data)
}

// RenderTUI initiates TUI mode for the given read-only view type.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	return tui.Run(viewType, data)
}

func (r *Renderer) renderJSON(data any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (r *Renderer) renderYAML(data any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	return enc.Encode(data)
}

// renderFields prints "label:  value" lines. Empty values are skipped.
func (r *Renderer) renderFields(fields []Field) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		fmt.Fprintf(w, "%s:\t%s\n", f.Label, r.paint(f.State, f.Value))
	}
	return w.Flush()
}

func (r *Renderer) renderList(l Lister) error {
	rows := l.Rows()
	if len(rows) == 0 {
		_, err := fmt.Fprintln(r.out, "(no records)")
		return err
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(l.Columns(), "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

func (r *Renderer) paint(state, value string) string {
	if !r.color || state == "" {
		return value
	}
	return tui.StateStyle(state).Render(value)
}

// isTTY returns true if w is a terminal.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
