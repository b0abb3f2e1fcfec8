package subtitles

import "strings"

// Format selects the output document type.
type Format string

const (
	FormatVTT Format = "vtt"
	FormatSRT Format = "srt"
	FormatTXT Format = "txt"
)

// Formats lists the supported formats in CLI help order.
var Formats = []Format{FormatVTT, FormatSRT, FormatTXT}

// ParseFormat normalizes a user supplied format name.
func ParseFormat(value string) (Format, error) {
	normalized := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), ".")))
	switch normalized {
	case FormatVTT, FormatSRT, FormatTXT:
		return normalized, nil
	default:
		return "", &UnsupportedFormatError{Format: value}
	}
}

// Extension returns the file extension including the leading dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// Label returns the upper-case name used in user-facing messages.
func (f Format) Label() string {
	return strings.ToUpper(string(f))
}

// Timed reports whether the format carries cue timestamps.
func (f Format) Timed() bool {
	return f == FormatVTT || f == FormatSRT
}
