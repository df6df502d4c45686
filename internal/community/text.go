package community

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var footnote = regexp.MustCompile(`\[(?:\d+|[a-z]|note \d+|citation needed)\]`)

// cleanText folds compatibility characters (non-breaking spaces, ligatures)
// and strips reference markers such as "[12]".
func cleanText(raw string) string {
	s := norm.NFKC.String(raw)
	s = footnote.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}
