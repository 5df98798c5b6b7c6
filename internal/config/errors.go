package config

import "fmt"

// ConfigurationError reports invalid options or an invalid configuration file.
// Index is the offending list entry, or -1 when the error is not tied to one.
type ConfigurationError struct {
	Path  string
	Index int
	Msg   string
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Path == "":
		return "invalid configuration: " + e.Msg
	case e.Index >= 0:
		return fmt.Sprintf("invalid configuration in %s (entry %d): %s", e.Path, e.Index, e.Msg)
	default:
		return fmt.Sprintf("invalid configuration in %s: %s", e.Path, e.Msg)
	}
}
