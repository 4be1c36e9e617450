package resolver

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ChannelSlug builds the channel directory name: a four-digit ordinal prefix
// followed by a filesystem-safe rendering of the reference.
func ChannelSlug(ref string, ordinal int) string {
	return fmt.Sprintf("%04d_%s", ordinal, slugify(ref))
}

func slugify(value string) string {
	folded, _, err := transform.String(foldMarks, value)
	if err != nil {
		folded = value
	}
	cleaned := strings.Builder{}
	prevDash := false
	for _, r := range strings.Trim(strings.TrimSpace(folded), "/") {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			cleaned.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				cleaned.WriteRune('-')
				prevDash = true
			}
		}
	}
	slug := strings.Trim(cleaned.String(), "-")
	if slug == "" {
		return "channel"
	}
	return slug
}
