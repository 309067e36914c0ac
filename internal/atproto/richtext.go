package atproto

import (
	"regexp"
)

// urlPattern matches bare or schemed URLs, including host-only forms like
// "example.com/page". Offsets from the matcher are byte offsets, which is
// what the richtext facet lexicon expects.
var urlPattern = regexp.MustCompile(`(?:[\w+]+://)?(?:[\w-]+\.)*[\w-]+[.:]\w+/?(?:[/?=&#.]?[\w-]+)+/?`)

// LinkSpan locates one URL within a post's text.
type LinkSpan struct {
	Text      string
	ByteStart int
	ByteEnd   int
}

// ExtractLinkSpans returns the URLs found in text with their byte positions.
func ExtractLinkSpans(text string) []LinkSpan {
	matches := urlPattern.FindAllStringIndex(text, -1)
	spans := make([]LinkSpan, 0, len(matches))
	for _, m := range matches {
		spans = append(spans, LinkSpan{
			Text:      text[m[0]:m[1]],
			ByteStart: m[0],
			ByteEnd:   m[1],
		})
	}
	return spans
}
