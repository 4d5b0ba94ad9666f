// Package pageindex indexes the rendered HTML of a page for semantic
// retrieval: the markup is cleaned, split into overlapping chunks, embedded in
// adaptive concurrent batches and stored in an in-memory vector collection
// keyed by page.
package pageindex

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CleanHTML drops scripts, styles, inline SVG and comments, and returns the
// inner markup of the body with blank lines removed.
func CleanHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find("script, style, noscript, svg, template, link, meta").Remove()
	doc.Find("*").Contents().FilterFunction(func(_ int, s *goquery.Selection) bool {
		return goquery.NodeName(s) == "#comment"
	}).Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	out, err := root.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render html: %w", err)
	}

	lines := strings.Split(out, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n"), nil
}
