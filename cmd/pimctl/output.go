package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// render writes data as indented JSON or, for table output, through fill.
func (a *app) render(data any, fill func(t table.Writer)) error {
	if a.json() {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}

	t := table.NewWriter()
	t.SetOutputMirror(a.out)
	t.SetStyle(table.StyleLight)
	fill(t)
	t.Render()
	return nil
}

// details renders a two column field/value table.
func details(t table.Writer, rows ...table.Row) {
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows(rows)
}

func stamp(at *time.Time) string {
	if at == nil {
		return "-"
	}
	return at.Local().Format(time.DateTime)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func joinStates[S ~string](states []S) string {
	if len(states) == 0 {
		return "-"
	}
	parts := make([]string, len(states))
	for i, s := range states {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
