package debuglog

import (
	"fmt"
	"strings"
)

// Format selects how echoed lines are written.
type Format string

const (
	// FormatText writes the received bytes unchanged.
	FormatText Format = "text"
	// FormatRepr writes each line as a quoted Go string literal, exposing
	// control characters and invalid UTF-8.
	FormatRepr Format = "repr"
	// FormatJSON writes one JSON object per line.
	FormatJSON Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatRepr, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want text, repr or json)", s)
}
