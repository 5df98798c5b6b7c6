package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"kubetestenv/pkg/logging"
)

// formatEntry renders a log entry as one line no wider than maxWidth cells.
// A maxWidth of zero disables truncation.
func formatEntry(e logging.LogEntry, maxWidth int) string {
	line := fmt.Sprintf("[%s] %s: %s", e.Level, e.Subsystem, e.Message)
	if e.Err != nil {
		line += ": " + e.Err.Error()
	}
	line = truncate(line, maxWidth)
	return styleFor(e.Level).Render(line)
}

// truncate shortens s to maxWidth cells, marking the cut with an ellipsis.
func truncate(s string, maxWidth int) string {
	if maxWidth <= 0 || runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth == 1 {
		return "…"
	}
	return runewidth.Truncate(s, maxWidth-1, "") + "…"
}

func styleFor(level logging.LogLevel) lipgloss.Style {
	switch level {
	case logging.LevelError:
		return logErrorStyle
	case logging.LevelWarn:
		return logWarnStyle
	case logging.LevelDebug:
		return logDebugStyle
	default:
		return logInfoStyle
	}
}
