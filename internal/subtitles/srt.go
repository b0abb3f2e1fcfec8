package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Summary describes a rendered subtitle document.
type Summary struct {
	Cues  int
	First float64
	Last  float64
}

// Inspect scans a rendered document. For timed formats each timing line is a
// cue and First/Last track the earliest start and latest end; for plain text
// every non-empty line counts as a cue.
func Inspect(r io.Reader, format Format) (Summary, error) {
	var summary Summary
	first := math.Inf(1)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !format.Timed() {
			if strings.TrimSpace(line) != "" {
				summary.Cues++
			}
			continue
		}
		if !strings.Contains(line, arrowInText) {
			continue
		}
		parts := strings.Split(line, arrowInText)
		if len(parts) != 2 {
			continue
		}
		start, errStart := ParseTimestamp(parts[0])
		end, errEnd := ParseTimestamp(parts[1])
		if errStart != nil || errEnd != nil {
			continue
		}
		summary.Cues++
		if start < first {
			first = start
		}
		if end > summary.Last {
			summary.Last = end
		}
	}
	if err := scanner.Err(); err != nil {
		return Summary{}, fmt.Errorf("scan subtitles: %w", err)
	}
	if summary.Cues > 0 && !math.IsInf(first, 1) {
		summary.First = first
	}
	return summary, nil
}

// ParseTimestamp parses HH:MM:SS,mmm or HH:MM:SS.mmm into seconds.
func ParseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	// Normalize comma to period so both styles parse the same way.
	value = strings.ReplaceAll(value, ",", ".")
	timeParts := strings.Split(value, ".")
	if len(timeParts) != 2 || len(timeParts[1]) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, nil
}

// ValidateFile checks a written document for format issues. It returns a list
// of issue codes; an empty slice means validation passed.
func ValidateFile(path string, format Format, expectedCues int) []string {
	var issues []string

	file, err := os.Open(path)
	if err != nil {
		return append(issues, fmt.Sprintf("read_error: %v", err))
	}
	defer file.Close()

	summary, err := Inspect(file, format)
	if err != nil {
		return append(issues, fmt.Sprintf("read_error: %v", err))
	}
	if summary.Cues == 0 && expectedCues > 0 {
		return append(issues, "empty_subtitle_file")
	}
	// Plain text can legitimately drop blank segments, so only timed formats
	// must match one cue per segment.
	if format.Timed() && summary.Cues != expectedCues {
		issues = append(issues, fmt.Sprintf("cue_count_mismatch: want=%d got=%d", expectedCues, summary.Cues))
	}
	return issues
}
