package styles

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var defaultStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#7D56F4"))

var errorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#F45E6E"))

var successStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#6EF4A1"))

var infoStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#6EC4F4"))

var mutedStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#8A8A8A"))

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#7D56F4")).
	Padding(0, 1)

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func styleFor(style string) lipgloss.Style {
	switch style {
	case "error":
		return errorStyle
	case "success":
		return successStyle
	case "info":
		return infoStyle
	case "muted":
		return mutedStyle
	default:
		return defaultStyle
	}
}

// SprintfS formats and colours text with one of the named styles: error,
// success, info, muted or default.
func SprintfS(style string, format string, a ...any) string {
	return styleFor(style).Render(fmt.Sprintf(format, a...))
}

func FprintS(w io.Writer, style string, format string, a ...any) {
	_, _ = fmt.Fprintln(w, SprintfS(style, format, a...))
}

func PrintFS(style string, format string, a ...any) {
	FprintS(os.Stdout, style, format, a...)
}

// Table renders rows under a styled header.
func Table(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Render()
}
