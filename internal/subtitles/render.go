package subtitles

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	vttHeader    = "WEBVTT\n\n"
	timingArrow  = " --> "
	arrowInText  = "-->"
	arrowEscaped = "->"
)

// RenderOptions tunes cue rendering.
type RenderOptions struct {
	// MaxLineLength enables pyramid wrapping when positive.
	MaxLineLength int
	// ClampInverted renders end < start segments with end = start instead of
	// rejecting them with a MalformedSegmentError.
	ClampInverted bool
}

// Render streams segments to w in the requested format. Each cue is written
// before the next segment is processed. Unsupported formats and malformed
// segments are reported before anything is written.
func Render(w io.Writer, segments []Segment, format Format, opts RenderOptions) error {
	if w == nil {
		return fmt.Errorf("render: nil writer")
	}
	switch format {
	case FormatTXT:
		return renderText(w, segments)
	case FormatVTT, FormatSRT:
	default:
		return &UnsupportedFormatError{Format: string(format)}
	}
	if err := checkSegments(segments, opts.ClampInverted); err != nil {
		return err
	}

	if format == FormatVTT {
		if _, err := io.WriteString(w, vttHeader); err != nil {
			return fmt.Errorf("render: write header: %w", err)
		}
	}
	var buf strings.Builder
	for i, seg := range segments {
		cue := buildCue(i, seg, opts)
		buf.Reset()
		writeCue(&buf, cue, format)
		if _, err := io.WriteString(w, buf.String()); err != nil {
			return fmt.Errorf("render: write cue %d: %w", cue.Index, err)
		}
	}
	return nil
}

// RenderString renders the whole document into memory.
func RenderString(segments []Segment, format Format, opts RenderOptions) (string, error) {
	var sb strings.Builder
	if err := Render(&sb, segments, format, opts); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// BuildCues converts segments into cues without serializing them.
func BuildCues(segments []Segment, opts RenderOptions) ([]Cue, error) {
	if err := checkSegments(segments, opts.ClampInverted); err != nil {
		return nil, err
	}
	cues := make([]Cue, 0, len(segments))
	for i, seg := range segments {
		cues = append(cues, buildCue(i, seg, opts))
	}
	return cues, nil
}

func buildCue(i int, seg Segment, opts RenderOptions) Cue {
	end := seg.End
	if end < seg.Start {
		end = seg.Start
	}
	text := strings.ReplaceAll(strings.TrimSpace(seg.Text), arrowInText, arrowEscaped)
	return Cue{
		Index: i + 1,
		Start: seg.Start,
		End:   end,
		Lines: WrapLines(text, opts.MaxLineLength),
	}
}

func writeCue(sb *strings.Builder, cue Cue, format Format) {
	style := styleFor(format)
	if format == FormatSRT {
		sb.WriteString(strconv.Itoa(cue.Index))
		sb.WriteByte('\n')
	}
	sb.WriteString(FormatTimestamp(cue.Start, style))
	sb.WriteString(timingArrow)
	sb.WriteString(FormatTimestamp(cue.End, style))
	sb.WriteByte('\n')
	for _, line := range cue.Lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
}

func renderText(w io.Writer, segments []Segment) error {
	for i, seg := range segments {
		if _, err := io.WriteString(w, strings.TrimSpace(seg.Text)+"\n"); err != nil {
			return fmt.Errorf("render: write line %d: %w", i+1, err)
		}
	}
	return nil
}
