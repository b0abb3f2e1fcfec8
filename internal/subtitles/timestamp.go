package subtitles

import (
	"fmt"
	"math"
)

// Style selects the fractional separator of a timestamp.
type Style int

const (
	// StyleVTT renders HH:MM:SS.mmm.
	StyleVTT Style = iota
	// StyleSRT renders HH:MM:SS,mmm.
	StyleSRT
)

const (
	millisPerSecond = 1000
	millisPerMinute = 60 * millisPerSecond
	millisPerHour   = 60 * millisPerMinute
)

// maxSeconds keeps the millisecond count well inside int64.
const maxSeconds = 1e15

// FormatTimestamp renders an offset in seconds, rounded to the nearest
// millisecond. The hour field grows past two digits as needed. Negative,
// NaN, and infinite inputs are clamped to zero; absurdly large offsets
// saturate instead of overflowing.
func FormatTimestamp(seconds float64, style Style) string {
	total := toMillis(seconds)
	hours := total / millisPerHour
	total -= hours * millisPerHour
	minutes := total / millisPerMinute
	total -= minutes * millisPerMinute
	secs := total / millisPerSecond
	millis := total - secs*millisPerSecond
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", hours, minutes, secs, style.separator(), millis)
}

func (s Style) separator() rune {
	if s == StyleSRT {
		return ','
	}
	return '.'
}

func styleFor(format Format) Style {
	if format == FormatSRT {
		return StyleSRT
	}
	return StyleVTT
}

func toMillis(seconds float64) int64 {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return 0
	}
	if seconds >= maxSeconds {
		return int64(maxSeconds * millisPerSecond)
	}
	return int64(math.Round(seconds * millisPerSecond))
}
