// Package color decides whether terminal output is coloured and sets the
// background hint used by adaptive lipgloss colours.
//
// Colours are disabled when NO_COLOR is set or the output is not a terminal,
// so piped CLI output stays free of escape sequences.
package color

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// For mocking in tests
var (
	lookupEnv  = os.LookupEnv
	isTerminal = func(fd uintptr) bool {
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
)

// Initialize sets the dark background hint for adaptive colours.
func Initialize(isDarkMode bool) {
	lipgloss.SetHasDarkBackground(isDarkMode)
}

// Enabled reports whether coloured output should be written to f.
func Enabled(f *os.File) bool {
	if _, ok := lookupEnv("NO_COLOR"); ok {
		return false
	}
	if term, _ := lookupEnv("TERM"); strings.EqualFold(term, "dumb") {
		return false
	}
	return f != nil && isTerminal(f.Fd())
}

// Setup configures table colours for output written to f and applies the
// background hint from KUBETESTENV_THEME ("light" or "dark", default dark).
func Setup(f *os.File) bool {
	theme, _ := lookupEnv("KUBETESTENV_THEME")
	Initialize(!strings.EqualFold(theme, "light"))

	enabled := Enabled(f)
	if enabled {
		text.EnableColors()
	} else {
		text.DisableColors()
	}
	return enabled
}
