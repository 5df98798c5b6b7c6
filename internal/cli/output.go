// Package cli renders command results as tables, JSON or YAML.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents the output format for CLI commands
type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

// ParseFormat validates a --output flag value. Empty selects the table format.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputFormatTable:
		return OutputFormatTable, nil
	case OutputFormatJSON:
		return OutputFormatJSON, nil
	case OutputFormatYAML:
		return OutputFormatYAML, nil
	}
	return "", fmt.Errorf("unsupported output format %q (use table, json or yaml)", s)
}

// Printer writes results in one format.
type Printer struct {
	out    io.Writer
	format OutputFormat
}

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer, format OutputFormat) *Printer {
	return &Printer{out: out, format: format}
}

// Format returns the printer's format.
func (p *Printer) Format() OutputFormat { return p.format }

// Records prints rows under headers. JSON and YAML emit a list of objects
// keyed by the lower-cased header.
func (p *Printer) Records(headers []string, rows [][]string) error {
	if p.format != OutputFormatTable {
		items := make([]map[string]string, 0, len(rows))
		for _, row := range rows {
			item := make(map[string]string, len(headers))
			for i, h := range headers {
				if i < len(row) {
					item[strings.ToLower(h)] = row[i]
				}
			}
			items = append(items, item)
		}
		return p.Object(items)
	}

	if len(rows) == 0 {
		fmt.Fprintln(p.out, text.FgYellow.Sprint("No items found"))
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = text.FgHiCyan.Sprint(strings.ToUpper(h))
	}
	t.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = formatCell(cell)
		}
		t.AppendRow(r)
	}
	t.Render()
	return nil
}

// KeyValues prints a flat object. The table format shows one property per row.
func (p *Printer) KeyValues(data map[string]interface{}) error {
	if p.format != OutputFormatTable {
		return p.Object(data)
	}

	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("PROPERTY"),
		text.FgHiCyan.Sprint("VALUE"),
	})

	// Sort keys for consistent output
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		t.AppendRow(table.Row{
			text.FgYellow.Sprint(key),
			formatCell(fmt.Sprintf("%v", data[key])),
		})
	}
	t.Render()
	return nil
}

// Object prints v as JSON or YAML. The table format falls back to YAML,
// which reads well for nested data.
func (p *Printer) Object(v interface{}) error {
	switch p.format {
	case OutputFormatJSON:
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
}

// formatCell colours well-known status words.
func formatCell(value string) interface{} {
	switch strings.ToLower(value) {
	case "":
		return text.FgHiBlack.Sprint("-")
	case "ready", "true", "installed", "active":
		return text.FgGreen.Sprint(value)
	case "notready", "false", "missing", "failed":
		return text.FgRed.Sprint(value)
	default:
		return value
	}
}
