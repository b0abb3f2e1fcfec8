package transcribe

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"ytwhisper/internal/logging"
	"ytwhisper/internal/subtitles"
)

// Removal reasons reported by FilterHallucinations.
const (
	ReasonIsolatedPhrase = "isolated_hallucination"
	ReasonRepeatedPhrase = "repeated_hallucination"
	ReasonMusicSymbols   = "music_symbols"
)

const (
	isolationGapSeconds = 30.0
	repeatGapSeconds    = 10.0
	minRepeatRun        = 3
)

// Phrases Whisper emits over silence or music, in normalized form.
var hallucinationPhrases = map[string]bool{
	"thank you":                           true,
	"thank you for watching":              true,
	"thanks for watching":                 true,
	"please subscribe":                    true,
	"like and subscribe":                  true,
	"well be right back":                  true,
	"bye":                                 true,
	"bye bye":                             true,
	"see you next time":                   true,
	"see you later":                       true,
	"subtitles by the amaraorg community": true,
}

// Removal records one segment dropped by FilterHallucinations.
type Removal struct {
	Index   int
	Segment subtitles.Segment
	Reason  string
}

// FilterResult holds the surviving segments and what was removed.
type FilterResult struct {
	Segments []subtitles.Segment
	Removals []Removal
}

// FilterHallucinations drops segments that are almost certainly Whisper
// artifacts rather than speech: a known filler phrase surrounded by 30s of
// silence on both sides, runs of three or more identical segments each more
// than 10s apart, and isolated segments made only of music symbols. Segment
// order is preserved.
func FilterHallucinations(segments []subtitles.Segment) FilterResult {
	if len(segments) == 0 {
		return FilterResult{Segments: segments}
	}

	remove := make([]bool, len(segments))
	var removals []Removal
	markRepeated(segments, remove, &removals)

	for i, seg := range segments {
		if remove[i] {
			continue
		}
		isolated := gapBefore(segments, i) >= isolationGapSeconds && gapAfter(segments, i) >= isolationGapSeconds
		if !isolated {
			continue
		}
		switch {
		case hallucinationPhrases[normalizeText(seg.Text)]:
			remove[i] = true
			removals = append(removals, Removal{Index: i, Segment: seg, Reason: ReasonIsolatedPhrase})
		case isMusicOnly(seg.Text):
			remove[i] = true
			removals = append(removals, Removal{Index: i, Segment: seg, Reason: ReasonMusicSymbols})
		}
	}

	if len(removals) == 0 {
		return FilterResult{Segments: segments}
	}
	kept := make([]subtitles.Segment, 0, len(segments)-len(removals))
	for i, seg := range segments {
		if !remove[i] {
			kept = append(kept, seg)
		}
	}
	return FilterResult{Segments: kept, Removals: removals}
}

func markRepeated(segments []subtitles.Segment, remove []bool, removals *[]Removal) {
	i := 0
	for i < len(segments) {
		norm := normalizeText(segments[i].Text)
		if norm == "" {
			i++
			continue
		}
		runEnd := i + 1
		for runEnd < len(segments) {
			if normalizeText(segments[runEnd].Text) != norm {
				break
			}
			if segments[runEnd].Start-segments[runEnd-1].End <= repeatGapSeconds {
				break
			}
			runEnd++
		}
		if runEnd-i >= minRepeatRun {
			for j := i; j < runEnd; j++ {
				remove[j] = true
				*removals = append(*removals, Removal{Index: j, Segment: segments[j], Reason: ReasonRepeatedPhrase})
			}
		}
		i = runEnd
	}
}

// gapBefore measures from the previous segment's end, or from zero for the first.
func gapBefore(segments []subtitles.Segment, i int) float64 {
	if i == 0 {
		return segments[i].Start
	}
	return segments[i].Start - segments[i-1].End
}

// gapAfter is unbounded for the last segment.
func gapAfter(segments []subtitles.Segment, i int) float64 {
	if i >= len(segments)-1 {
		return 1e9
	}
	return segments[i+1].Start - segments[i].End
}

var textNormalizeRe = regexp.MustCompile(`[^a-z0-9\s]`)

func normalizeText(s string) string {
	s = strings.ToLower(s)
	s = textNormalizeRe.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// isMusicOnly reports whether text holds nothing but ¶, ♪, ♫, * and whitespace.
func isMusicOnly(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	for _, r := range text {
		switch {
		case r == '¶', r == '♪', r == '♫', r == '*':
		case unicode.IsSpace(r):
		default:
			return false
		}
	}
	return true
}

// LogRemovals summarizes a filter pass at info level and lists each removed
// segment at debug level.
func LogRemovals(ctx context.Context, logger *slog.Logger, result FilterResult) {
	if logger == nil || len(result.Removals) == 0 {
		return
	}
	reasons := make(map[string]int)
	for _, r := range result.Removals {
		reasons[r.Reason]++
	}
	attrs := []slog.Attr{
		logging.String(logging.FieldEventType, "hallucination_filter_applied"),
		logging.Int("segments_removed", len(result.Removals)),
		logging.Int("segments_remaining", len(result.Segments)),
	}
	for reason, count := range reasons {
		attrs = append(attrs, logging.Int("removed_"+reason, count))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "hallucination filter applied", attrs...)

	for _, r := range result.Removals {
		logger.Debug("hallucination filter removed segment",
			logging.Int("segment_index", r.Index),
			logging.String("text", r.Segment.Text),
			logging.String("reason", r.Reason),
			logging.Float64("start", r.Segment.Start),
			logging.Float64("end", r.Segment.End),
		)
	}
}
