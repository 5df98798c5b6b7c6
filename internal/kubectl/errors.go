package kubectl

import (
	"errors"
	"fmt"
	"strings"
)

// DecodeReason tells why structured output could not be obtained.
type DecodeReason int

const (
	// FormatUnsupported means kubectl rejected -o json for the subcommand.
	FormatUnsupported DecodeReason = iota
	// Unparseable means kubectl printed something that is not valid JSON.
	Unparseable
)

func (r DecodeReason) String() string {
	switch r {
	case FormatUnsupported:
		return "output format unsupported"
	case Unparseable:
		return "unparseable output"
	default:
		return "unknown"
	}
}

// DecodeError is returned when JSON mode was requested but no document could be decoded.
type DecodeError struct {
	Reason DecodeReason
	Args   []string
	// Output is stderr for FormatUnsupported and stdout for Unparseable.
	Output string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("kubectl %s: %s", strings.Join(e.Args, " "), e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsFormatUnsupported reports whether err is a DecodeError caused by kubectl
// not accepting an output format for the subcommand.
func IsFormatUnsupported(err error) bool {
	var de *DecodeError
	return errors.As(err, &de) && de.Reason == FormatUnsupported
}

// unsupportedFlagPatterns are the stderr fragments kubectl prints when -o is
// not a flag of the invoked subcommand.
var unsupportedFlagPatterns = []string{
	"unknown shorthand flag: 'o'",
	"unknown flag: --output",
}

func isUnsupportedFlag(stderr string) bool {
	for _, p := range unsupportedFlagPatterns {
		if strings.Contains(stderr, p) {
			return true
		}
	}
	return false
}
