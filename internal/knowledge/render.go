package knowledge

import (
	"html"
	"regexp"
	"strings"
)

var (
	strongRe = regexp.MustCompile(`\*\*(.+?)\*\*`)
	emRe     = regexp.MustCompile(`\*([^*\n]+?)\*`)
)

// RenderHTML turns stored markup into HTML for display surfaces:
// **x** is strong, *x* is em, newlines are <br>. Text is escaped first.
func RenderHTML(text string) string {
	out := html.EscapeString(text)
	out = strongRe.ReplaceAllString(out, "<strong>$1</strong>")
	out = emRe.ReplaceAllString(out, "<em>$1</em>")
	return strings.ReplaceAll(out, "\n", "<br>")
}
