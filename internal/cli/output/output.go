// Package output provides unified output formatting for vx's CLI
// commands: text, JSON, and aligned-table rendering behind a consistent
// --json/--table flag pair. Adapted from the teacher's
// internal/cli/output, trimmed to the row-oriented data vx's list/ls-remote/
// providers commands print (no streaming text passthrough mode, since vx
// has no Unix-filter commands of its own).
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Format is the selected rendering mode.
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatTable
)

// Options is the decoded shape of a command's --json/--table flags.
type Options struct {
	JSON  bool
	Table bool
}

// Format resolves Options to a concrete Format, table winning over JSON if
// both are somehow set, text otherwise.
func (o Options) Format() Format {
	switch {
	case o.Table:
		return FormatTable
	case o.JSON:
		return FormatJSON
	default:
		return FormatText
	}
}

// Formatter renders row data in the selected format.
type Formatter struct {
	w      io.Writer
	format Format
}

// New builds a Formatter writing to w in format.
func New(w io.Writer, format Format) *Formatter {
	return &Formatter{w: w, format: format}
}

// Rows prints data as JSON (any shape), or as a tab-aligned table/plain
// text table given a header and row slices.
func (f *Formatter) Rows(header []string, rows [][]string, asJSON any) error {
	switch f.format {
	case FormatJSON:
		enc := json.NewEncoder(f.w)
		enc.SetIndent("", "  ")

		return enc.Encode(asJSON)
	case FormatTable:
		return f.table(header, rows)
	default:
		return f.plain(header, rows)
	}
}

func (f *Formatter) table(header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(f.w, 0, 4, 2, ' ', 0)

	if _, err := fmt.Fprintln(tw, strings.Join(header, "\t")); err != nil {
		return err
	}

	for _, row := range rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}

	return tw.Flush()
}

func (f *Formatter) plain(header []string, rows [][]string) error {
	for _, row := range rows {
		if _, err := fmt.Fprintln(f.w, strings.Join(row, "  ")); err != nil {
			return err
		}
	}

	if len(rows) == 0 {
		_, err := fmt.Fprintln(f.w, "(none)")
		return err
	}

	return nil
}
