package htmlutil

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// CleanText normalizes scraped text. Table cells come with nbsp padding,
// stray control characters and uneven inner whitespace depending on how the
// upstream page was rendered.
func CleanText(text string) string {
	var out strings.Builder
	lastSpace := false
	for _, c := range text {
		if unicode.IsSpace(c) {
			if !lastSpace {
				out.WriteRune(' ')
			}
			lastSpace = true
			continue
		}
		lastSpace = false
		if unicode.IsPrint(c) {
			out.WriteRune(c)
		}
	}
	return strings.TrimSpace(out.String())
}

// CellText extracts and cleans the text content of a selection.
func CellText(sel *goquery.Selection) string {
	return CleanText(sel.Text())
}
