package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/dbsmedya/entityplan/internal/plan"
	"github.com/dbsmedya/entityplan/internal/planner"
)

// outputWriter is used for printing output, can be overridden in tests
var outputWriter io.Writer = os.Stdout

// setOutputWriter sets the output writer (used for testing)
func setOutputWriter(w io.Writer) {
	outputWriter = w
}

// resetOutputWriter resets output to stdout (used for testing)
func resetOutputWriter() {
	outputWriter = os.Stdout
}

var (
	headerStyle  = color.New(color.FgCyan, color.OpBold)
	sectionStyle = color.New(color.OpBold)
)

// printHeader prints a boxed title
func printHeader(format string, args ...any) {
	title := fmt.Sprintf(format, args...)
	rule := strings.Repeat("=", runewidth.StringWidth(title)+4)
	fmt.Fprintln(outputWriter, headerStyle.Sprint(rule))
	fmt.Fprintf(outputWriter, "  %s\n", headerStyle.Sprint(title))
	fmt.Fprintln(outputWriter, headerStyle.Sprint(rule))
}

// printSection prints a section header
func printSection(title string) {
	fmt.Fprintf(outputWriter, "[%s]\n", sectionStyle.Sprint(title))
	fmt.Fprintln(outputWriter, strings.Repeat("-", runewidth.StringWidth(title)+2))
}

// printTable prints rows in columns padded to display width, so wide
// characters in record keys do not break alignment. Only the last column
// may carry color codes.
func printTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], runewidth.StringWidth(cell))
			}
		}
	}

	line := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if i == len(cells)-1 {
				parts[i] = cell
				continue
			}
			parts[i] = runewidth.FillRight(cell, widths[i])
		}
		return "  " + strings.Join(parts, "  ")
	}

	fmt.Fprintln(outputWriter, sectionStyle.Sprint(line(headers)))
	for _, row := range rows {
		fmt.Fprintln(outputWriter, line(row))
	}
}

func classificationColor(c plan.Classification) color.Color {
	switch c {
	case plan.New:
		return color.FgGreen
	case plan.Changed:
		return color.FgYellow
	case plan.Removed:
		return color.FgRed
	default:
		return color.FgDefault
	}
}

var classificationOrder = []plan.Classification{plan.New, plan.Changed, plan.Unchanged, plan.Removed}

// printRunSummary prints classification counts, slot statistics and the
// partial-failure report of a run.
func printRunSummary(res *planner.Result) {
	printSection("Records")
	rows := make([][]string, 0, len(classificationOrder)+1)
	for _, c := range classificationOrder {
		rows = append(rows, []string{
			string(c),
			fmt.Sprintf("%d", res.Stats.Records[c]),
		})
	}
	rows = append(rows, []string{"failed", fmt.Sprintf("%d", len(res.Report.Failures))})
	printTable([]string{"CLASS", "COUNT"}, rows)
	fmt.Fprintln(outputWriter)

	printSection("Slots")
	fmt.Fprintf(outputWriter, "  Total:    %d\n", res.Plan.SlotCount())
	fmt.Fprintf(outputWriter, "  Derived:  %d\n", res.Stats.SlotsDerived)
	fmt.Fprintf(outputWriter, "  Reused:   %d\n", res.Stats.SlotsReused)
	fmt.Fprintf(outputWriter, "  Changes:  %s\n", res.Changes.Summary())
	fmt.Fprintf(outputWriter, "  Version:  %d\n", res.Snapshot.Version)
	fmt.Fprintln(outputWriter)

	if len(res.Report.Failures) > 0 {
		printSection("Failures")
		rows := make([][]string, 0, len(res.Report.Failures))
		for _, f := range res.Report.Failures {
			rows = append(rows, []string{
				fmt.Sprintf("#%d", f.Index),
				displayKey(f.Key),
				f.Kind,
				color.FgRed.Sprint(f.Err.Error()),
			})
		}
		printTable([]string{"INDEX", "KEY", "KIND", "ERROR"}, rows)
		fmt.Fprintln(outputWriter)
	}

	if len(res.Report.Warnings) > 0 {
		printSection("Warnings")
		for _, w := range res.Report.Warnings {
			fmt.Fprintf(outputWriter, "  %s %v\n", color.FgYellow.Sprint("!"), w)
		}
		fmt.Fprintln(outputWriter)
	}
}

func displayKey(key string) string {
	if key == "" {
		return "(none)"
	}
	return key
}
