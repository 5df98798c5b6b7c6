package tui

import "github.com/charmbracelet/lipgloss"

const (
	IconCheck = "✔"
	IconCross = "✘"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	logInfoStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#505050", Dark: "#A0A0A0"})
	logDebugStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#909090", Dark: "#606060"})
	logWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFD700"})
	logErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#C00000", Dark: "#FF5F5F"})

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#007000", Dark: "#5FFF87"})
	failureStyle = logErrorStyle
)
