package subtitles

import "math"

// Segment is a contiguous unit of recognized speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Duration returns the segment length in seconds (never negative).
func (s Segment) Duration() float64 {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

// Cue is the rendered form of one segment. Lines holds the (possibly wrapped)
// text; Index is 1-based.
type Cue struct {
	Index int
	Start float64
	End   float64
	Lines []string
}

// checkSegments rejects segments the timed renderers cannot express. When
// clampInverted is set, end < start is tolerated and fixed up later instead.
func checkSegments(segments []Segment, clampInverted bool) error {
	for i, seg := range segments {
		switch {
		case !isFinite(seg.Start) || !isFinite(seg.End):
			return &MalformedSegmentError{Index: i, Start: seg.Start, End: seg.End, Reason: "non-finite timestamp"}
		case seg.Start < 0:
			return &MalformedSegmentError{Index: i, Start: seg.Start, End: seg.End, Reason: "negative start"}
		case seg.End < seg.Start && !clampInverted:
			return &MalformedSegmentError{Index: i, Start: seg.Start, End: seg.End, Reason: "end before start"}
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
