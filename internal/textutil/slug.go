package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxSlugLength keeps generated names well below common filesystem limits.
const maxSlugLength = 120

// Slugify converts a title to lowercase ASCII words separated by single
// hyphens. Characters without an ASCII decomposition are dropped. Returns ""
// when nothing usable remains.
func Slugify(title string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r > unicode.MaxASCII:
			continue
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			pendingDash = true
		}
	}

	slug := strings.Trim(b.String(), "-_")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-_")
	}
	return slug
}

// FileStem returns Slugify(title), or fallback slugified when the title yields
// nothing, or "transcript" when both are empty.
func FileStem(title, fallback string) string {
	if slug := Slugify(title); slug != "" {
		return slug
	}
	if slug := Slugify(fallback); slug != "" {
		return slug
	}
	return "transcript"
}
