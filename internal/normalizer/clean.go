package normalizer

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

// CleanHTML strips markup, decodes entities, collapses whitespace and
// trims. Idempotent on already-clean text.
func CleanHTML(text string) string {
	if text == "" {
		return ""
	}

	var stripped string
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err == nil {
		stripped = doc.Text()
	} else {
		stripped = entityReplacer.Replace(tagPattern.ReplaceAllString(text, ""))
	}

	// The HTML parser decodes &nbsp; to U+00A0, which \s does not match.
	stripped = strings.ReplaceAll(stripped, "\u00a0", " ")
	stripped = whitespacePattern.ReplaceAllString(stripped, " ")
	return strings.TrimSpace(stripped)
}
