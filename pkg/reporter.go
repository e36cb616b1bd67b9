package pkg

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Summary aggregates a run's placement results.
type Summary struct {
	Total       int
	DryRun      bool
	ByAction    map[Action]int
	BySource    map[DateSource]int
	BytesPlaced int64
	Failures    []PlacementResult
}

// Summarize counts results per action and per date source.
func Summarize(results []PlacementResult) Summary {
	s := Summary{
		Total:    len(results),
		ByAction: make(map[Action]int),
		BySource: make(map[DateSource]int),
	}
	for _, r := range results {
		s.ByAction[r.Action]++
		if r.DryRun {
			s.DryRun = true
		}
		if r.DateSource != SourceNone {
			s.BySource[r.DateSource]++
		}
		if r.Placed() {
			s.BytesPlaced += r.Size
		}
		if r.Action == ActionFailed {
			s.Failures = append(s.Failures, r)
		}
	}
	return s
}

// Placed is the number of files moved, copied or renamed.
func (s Summary) Placed() int {
	return s.ByAction[ActionMoved] + s.ByAction[ActionCopied] + s.ByAction[ActionRenamed]
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	return tw
}

// RenderSummary renders the summary as a table.
func RenderSummary(s Summary) string {
	tw := newTable()
	title := "Sort summary"
	if s.DryRun {
		title += " (dry run)"
	}
	tw.SetTitle(title)
	tw.AppendHeader(table.Row{"Item", "Count"})

	tw.AppendRow(table.Row{"Files scanned", s.Total})
	for _, a := range Actions {
		if n := s.ByAction[a]; n > 0 {
			tw.AppendRow(table.Row{string(a), n})
		}
	}
	tw.AppendSeparator()
	for _, src := range DateSources {
		if n := s.BySource[src]; n > 0 {
			tw.AppendRow(table.Row{"Date from " + string(src), n})
		}
	}
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"Data placed", humanize.IBytes(uint64(s.BytesPlaced))})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

// GenerateReport writes a text report of every result to reportPath.
func GenerateReport(reportPath string, results []PlacementResult) error {
	reportDir := filepath.Dir(reportPath)
	if err := os.MkdirAll(reportDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory for report '%s': %w", reportDir, err)
	}

	file, err := os.Create(reportPath)
	if err != nil {
		return fmt.Errorf("failed to create report file '%s': %w", reportPath, err)
	}
	defer file.Close()

	if err := WriteReport(file, results); err != nil {
		return fmt.Errorf("failed to write report '%s': %w", reportPath, err)
	}
	return file.Close()
}

// WriteReport writes the report body to w.
func WriteReport(w io.Writer, results []PlacementResult) error {
	s := Summarize(results)
	var b strings.Builder

	b.WriteString("Media Sorting Report\n")
	b.WriteString("====================\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().Format(time.RFC3339))
	b.WriteString(RenderSummary(s))
	b.WriteString("\n")

	if len(results) > 0 {
		b.WriteString("\nFiles:\n")
		for _, r := range results {
			fmt.Fprintf(&b, "  - %s: %s", r.Action, r.Source)
			if r.Destination != "" {
				fmt.Fprintf(&b, " -> %s", r.Destination)
			}
			if r.DateSource != SourceNone {
				fmt.Fprintf(&b, " [%s %s]", r.DateSource, r.Date.Format("2006-01-02"))
			}
			if r.Reason != "" {
				fmt.Fprintf(&b, " (%s)", r.Reason)
			}
			b.WriteString("\n")
		}
	}

	if len(s.Failures) > 0 {
		b.WriteString("\nFailures:\n")
		for _, r := range s.Failures {
			fmt.Fprintf(&b, "  - %s\n    Error: %v\n", r.Source, r.Err)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderDuplicates renders duplicate name groups as a table.
func RenderDuplicates(groups []NameGroup) string {
	tw := newTable()
	tw.SetTitle("Duplicate file names")
	tw.AppendHeader(table.Row{"Name", "#", "Path", "Content"})
	for _, g := range groups {
		for i, p := range g.Paths {
			match := ""
			if i > 0 && i-1 < len(g.Matches) {
				match = string(g.Matches[i-1])
			}
			name, count := "", ""
			if i == 0 {
				name, count = g.Name, strconv.Itoa(len(g.Paths))
			}
			tw.AppendRow(table.Row{name, count, p, match})
		}
		tw.AppendSeparator()
	}
	return tw.Render()
}
