// Package links pulls web links out of message bodies so the reader can
// list verification and unsubscribe URLs separately.
package links

import (
	"regexp"
	"strings"
)

// urlPattern matches http and https URLs up to whitespace or a closing
// bracket or quote.
var urlPattern = regexp.MustCompile(`https?://[^\s<>"'()\[\]]+`)

// trailing is punctuation that usually ends a sentence rather than a URL.
const trailing = ".,;:!?"

// Extract returns the URLs found in text, deduplicated and in order of
// first occurrence.
func Extract(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var result []string
	for _, m := range matches {
		m = strings.TrimRight(m, trailing)
		if seen[m] {
			continue
		}
		seen[m] = true
		result = append(result, m)
	}
	return result
}

// FromBodies extracts links from the text body and the hrefs of the HTML
// body. Links from text come first.
func FromBodies(text, html string) []string {
	return Extract(text + " " + html)
}
