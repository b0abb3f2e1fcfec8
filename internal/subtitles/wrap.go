package subtitles

import (
	"strings"
	"unicode/utf8"
)

// WrapLines breaks text into a bottom-heavy pyramid of lines no longer than
// maxLineLength runes. It uses the fewest lines the limit allows and pushes
// words toward the later lines, so the first line is the shortest. A word
// longer than the limit stays whole on its own line. When maxLineLength <= 0
// or the trimmed text already fits, the trimmed text is returned as-is.
func WrapLines(text string, maxLineLength int) []string {
	trimmed := strings.TrimSpace(text)
	if maxLineLength <= 0 || utf8.RuneCountInString(trimmed) <= maxLineLength {
		return []string{trimmed}
	}
	words := strings.Fields(trimmed)
	if len(words) < 2 {
		return []string{trimmed}
	}
	widths := make([]int, len(words))
	for i, word := range words {
		widths[i] = utf8.RuneCountInString(word)
	}

	spans := packFromEnd(widths, maxLineLength)
	if balanced, ok := balanceSpans(widths, maxLineLength, len(spans)); ok && bottomHeavy(widths, balanced) {
		spans = balanced
	}

	lines := make([]string, len(spans))
	for i, sp := range spans {
		lines[i] = strings.Join(words[sp.start:sp.end], " ")
	}
	return lines
}

// span is a half-open range of word indices forming one line.
type span struct {
	start, end int
}

func spanWidth(widths []int, sp span) int {
	width := sp.end - sp.start - 1
	for i := sp.start; i < sp.end; i++ {
		width += widths[i]
	}
	return width
}

// packFromEnd fills lines greedily starting from the last word. The result has
// the minimum line count, every multi-word line fits the limit, and leftover
// slack lands on the first line.
func packFromEnd(widths []int, limit int) []span {
	var spans []span
	end := len(widths)
	for end > 0 {
		start := end - 1
		width := widths[start]
		for start > 0 && width+1+widths[start-1] <= limit {
			start--
			width += 1 + widths[start]
		}
		spans = append(spans, span{start: start, end: end})
		end = start
	}
	for i, j := 0, len(spans)-1; i < j; i, j = i+1, j-1 {
		spans[i], spans[j] = spans[j], spans[i]
	}
	return spans
}

// balanceSpans spreads words over exactly count lines, filling each line from
// the bottom up to the average width of what remains (rounded up) so later
// lines end up at least as full as earlier ones. It reports false when the
// first line would overflow, in which case the greedy packing is kept.
func balanceSpans(widths []int, limit, count int) ([]span, bool) {
	if count < 2 {
		return nil, false
	}
	spans := make([]span, count)
	end := len(widths)
	for line := count - 1; line > 0; line-- {
		remaining := spanWidth(widths, span{start: 0, end: end})
		target := ceilDiv(remaining-line, line+1)
		start := end - 1
		width := widths[start]
		for start > line && width < target && width+1+widths[start-1] <= limit {
			start--
			width += 1 + widths[start]
		}
		spans[line] = span{start: start, end: end}
		end = start
	}
	spans[0] = span{start: 0, end: end}
	if end > 1 && spanWidth(widths, spans[0]) > limit {
		return nil, false
	}
	return spans, true
}

// bottomHeavy reports whether the first line is no wider than the last.
func bottomHeavy(widths []int, spans []span) bool {
	return spanWidth(widths, spans[0]) <= spanWidth(widths, spans[len(spans)-1])
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
