// Package normalize strips markup, entities, and control characters from
// arbitrary HTML or markdown, producing clean prose for LLM prompts.
package normalize

import (
	"html"
	"regexp"
	"strings"
)

// maxDecodeRounds bounds repeated entity decoding for double- and
// triple-encoded input.
const maxDecodeRounds = 3

var (
	commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)
	scriptRe  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe   = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagRe     = regexp.MustCompile(`<[^>]+>`)
	spaceRe   = regexp.MustCompile(`[\s\x{00a0}]+`)
)

// mojibake repairs common UTF-8-read-as-Latin-1 sequences. Applied after
// entity decoding so mis-encoded entities are caught too.
var mojibake = strings.NewReplacer(
	"â€™", "'",
	"â€˜", "'",
	"â€œ", `"`,
	"â€", `"`,
	"â€“", "–",
	"â€”", "—",
	"â€¦", "…",
	"Ã©", "é",
	"Ã¨", "è",
	"Ã¼", "ü",
	"Â", "",
)

// invisible removes zero-width and bidi control characters that survive tag
// stripping and break downstream tokenization.
var invisible = strings.NewReplacer(
	"​", "", // zero-width space
	"‌", "", // zero-width non-joiner
	"‍", "", // zero-width joiner
	"‎", "", // left-to-right mark
	"‏", "", // right-to-left mark
	"‪", "", // left-to-right embedding
	"‫", "", // right-to-left embedding
	"‬", "", // pop directional formatting
	"‭", "", // left-to-right override
	"‮", "", // right-to-left override
	"\uFEFF", "", // byte order mark
)

// Normalize converts raw markup or text into clean single-line prose. It is
// idempotent and never fails: malformed input degrades to pattern-based
// stripping of whatever looks like a tag.
func Normalize(s string) string {
	// Decode entities until a round produces no change.
	for range maxDecodeRounds {
		decoded := html.UnescapeString(s)
		if decoded == s {
			break
		}
		s = decoded
	}

	s = commentRe.ReplaceAllString(s, " ")
	s = scriptRe.ReplaceAllString(s, " ")
	s = styleRe.ReplaceAllString(s, " ")
	s = tagRe.ReplaceAllString(s, " ")

	s = invisible.Replace(s)
	s = mojibake.Replace(s)

	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// Truncate caps s at limit runes, appending an ellipsis marker when content
// was dropped.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}
