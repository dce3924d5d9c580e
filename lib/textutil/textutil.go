package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName folds a subject name into a comparison form, lowercased
// with all whitespace removed, so "Embracer Group AB" matches
// "embracer group ab" and "EmbracerGroupAB" alike.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.TrimSpace(name)
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// MatchName reports whether the name matches any of the matchers. Both
// sides are normalized; exact compares whole names while substring match
// is used for tracking lists that carry partial company names.
func MatchName(name string, matchers []string, substring bool) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		m = NormalizeName(m)
		if m == "" {
			continue
		}
		if substring && strings.Contains(name, m) {
			return true
		}
		if name == m {
			return true
		}
	}
	return false
}
