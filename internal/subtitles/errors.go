package subtitles

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat matches any *UnsupportedFormatError via errors.Is.
	ErrUnsupportedFormat = errors.New("unsupported subtitle format")
	// ErrMalformedSegment matches any *MalformedSegmentError via errors.Is.
	ErrMalformedSegment = errors.New("malformed segment")
)

// UnsupportedFormatError reports a format outside vtt, srt, and txt.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported subtitle format %q (expected vtt, srt, or txt)", e.Format)
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// MalformedSegmentError reports a segment whose timing cannot be rendered.
// Index is the zero-based position in the input sequence.
type MalformedSegmentError struct {
	Index  int
	Start  float64
	End    float64
	Reason string
}

func (e *MalformedSegmentError) Error() string {
	return fmt.Sprintf("segment %d: %s (start=%.3f end=%.3f)", e.Index, e.Reason, e.Start, e.End)
}

func (e *MalformedSegmentError) Is(target error) bool {
	return target == ErrMalformedSegment
}
