package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/telhawk-systems/telhawk-correlator/internal/models"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow)
	headerColor  = color.New(color.FgWhite, color.Bold)

	severityColors = map[models.Severity]*color.Color{
		models.SeverityCritical: color.New(color.FgRed, color.Bold),
		models.SeverityHigh:     color.New(color.FgRed),
		models.SeverityMedium:   color.New(color.FgYellow),
		models.SeverityLow:      color.New(color.FgCyan),
	}
)

func printSuccess(w io.Writer, format string, a ...any) {
	successColor.Fprintf(w, "✓ "+format+"\n", a...)
}

func printWarn(w io.Writer, format string, a ...any) {
	warnColor.Fprintf(w, "⚠ "+format+"\n", a...)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table renders left-aligned columns
type table struct {
	headers []string
	rows    [][]string
}

func newTable(headers ...string) *table {
	return &table{headers: headers}
}

func (t *table) addRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) render(w io.Writer) {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	for i, h := range t.headers {
		headerColor.Fprintf(w, "%-*s  ", widths[i], h)
	}
	fmt.Fprintln(w)
	for i := range t.headers {
		fmt.Fprint(w, strings.Repeat("-", widths[i])+"  ")
	}
	fmt.Fprintln(w)
	for _, row := range t.rows {
		for i, cell := range row {
			fmt.Fprintf(w, "%-*s  ", widths[i], cell)
		}
		fmt.Fprintln(w)
	}
}

func renderIncidents(w io.Writer, incidents []*models.Incident, format string) error {
	if format == "json" {
		return printJSON(w, incidents)
	}

	if len(incidents) == 0 {
		printWarn(w, "No new incidents")
		return nil
	}

	t := newTable("RULE", "SEVERITY", "CONF", "TITLE")
	for _, inc := range incidents {
		sev := string(inc.Severity)
		if c, ok := severityColors[inc.Severity]; ok {
			sev = c.Sprint(sev)
		}
		t.addRow(string(inc.RuleID), sev, fmt.Sprintf("%d%%", inc.Confidence), inc.Title)
	}
	t.render(w)
	return nil
}
