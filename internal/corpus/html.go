package corpus

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const blockSelector = "p, li, h1, h2, h3, h4, h5, h6, blockquote, td, pre"

// looksLikeHTML is a cheap check for scraped bodies that still carry markup.
func looksLikeHTML(s string) bool {
	return strings.Contains(s, "</") || strings.Contains(s, "<br") || strings.Contains(s, "<p>")
}

// htmlToText strips markup and returns the plain text together with one
// paragraph per leaf block element.
func htmlToText(s string) (string, []string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return normalizeSpace(s), nil
	}
	doc.Find("script, style, noscript, nav, footer").Remove()

	var paragraphs []string
	doc.Find(blockSelector).Each(func(_ int, sel *goquery.Selection) {
		if sel.Find(blockSelector).Length() > 0 {
			return
		}
		if t := normalizeSpace(sel.Text()); t != "" {
			paragraphs = append(paragraphs, t)
		}
	})
	if len(paragraphs) == 0 {
		if t := normalizeSpace(doc.Text()); t != "" {
			paragraphs = []string{t}
		}
	}
	return strings.Join(paragraphs, "\n\n"), paragraphs
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// splitParagraphs breaks plain text on blank lines.
func splitParagraphs(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(s, "\n\n") {
		if p = normalizeSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
