package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/flowsketch/pkg/command"
)

var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorWhite  = lipgloss.Color("255")
	colorGray   = lipgloss.Color("245")
	colorDim    = lipgloss.Color("240")
)

var (
	styleTitle     = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleDim       = lipgloss.NewStyle().Foreground(colorDim)
	styleValue     = lipgloss.NewStyle().Foreground(colorWhite)
	styleLabel     = lipgloss.NewStyle().Foreground(colorGray)
	styleWarning   = lipgloss.NewStyle().Foreground(colorYellow)
	styleErrorCode = lipgloss.NewStyle().Bold(true).Foreground(colorRed)

	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconArrow   = "→"
)

// status is where human-readable progress goes. Exported data (scripts,
// JSON, SVG) is written to stdout so it stays pipeable.
var status io.Writer = os.Stderr

func printSuccess(format string, args ...any) {
	fmt.Fprintln(status, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Fprintln(status, styleIconError.Render(iconError)+" "+fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(status, styleIconWarning.Render(iconWarning)+" "+styleWarning.Render(fmt.Sprintf(format, args...)))
}

// printFile prints an output location.
func printFile(path string) {
	fmt.Fprintln(status, "  "+styleDim.Render(iconArrow)+" "+styleValue.Render(path))
}

// printDiagnostics lists the failed lines of a report.
func printDiagnostics(rep command.Report) {
	for _, d := range rep.Diagnostics() {
		fmt.Fprintln(status, "  "+formatDiagnostic(d))
	}
}

// formatDiagnostic renders "line N: CODE message".
func formatDiagnostic(r command.LineResult) string {
	msg := r.Message
	if msg == "" {
		msg = r.Err.Error()
	}
	return fmt.Sprintf("%s %s %s",
		styleDim.Render(fmt.Sprintf("line %d:", r.Line)),
		styleErrorCode.Render(string(r.Code)),
		msg)
}

// summary renders "3 nodes · 2 edges · v7".
func summary(nodes, edges int, version uint64) string {
	parts := []string{
		plural(nodes, "node"),
		plural(edges, "edge"),
		fmt.Sprintf("v%d", version),
	}
	return styleDim.Render(strings.Join(parts, " · "))
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
