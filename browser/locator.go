package browser

import (
	"regexp"
	"strconv"
	"strings"
)

// LocatorKind is the selector engine a locator is evaluated with.
type LocatorKind string

const (
	LocatorCSS   LocatorKind = "css"
	LocatorXPath LocatorKind = "xpath"
	LocatorText  LocatorKind = "text"
)

// Locator is a parsed locator string.
//
// Accepted forms:
//
//	button.primary                 CSS
//	css=form > input[name=email]   CSS, explicit
//	button:has-text("Sign in")     CSS filtered by contained text
//	xpath=//a[@href="/home"]       XPath, also any string starting with // or (//
//	text=Sign in                   innermost element containing the text
//	text="Sign in"                 innermost element whose text equals the text
type Locator struct {
	Kind    LocatorKind `json:"kind"`
	Expr    string      `json:"expr"`
	Exact   bool        `json:"exact"`
	HasText []string    `json:"hasText,omitempty"`
}

var hasTextPattern = regexp.MustCompile(`:has-text\(\s*("(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*')\s*\)`)

// ParseLocator parses a locator string.
func ParseLocator(s string) (Locator, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Locator{}, ErrEmptyLocator
	}

	switch {
	case strings.HasPrefix(s, "xpath="):
		return Locator{Kind: LocatorXPath, Expr: strings.TrimSpace(s[len("xpath="):])}, nil
	case strings.HasPrefix(s, "//"), strings.HasPrefix(s, "(//"):
		return Locator{Kind: LocatorXPath, Expr: s}, nil
	case strings.HasPrefix(s, "text="):
		text, quoted := unquote(strings.TrimSpace(s[len("text="):]))
		return Locator{Kind: LocatorText, Expr: text, Exact: quoted}, nil
	case strings.HasPrefix(s, "css="):
		s = strings.TrimSpace(s[len("css="):])
	}

	loc := Locator{Kind: LocatorCSS}
	for _, m := range hasTextPattern.FindAllStringSubmatch(s, -1) {
		text, _ := unquote(m[1])
		loc.HasText = append(loc.HasText, text)
	}
	expr := strings.TrimSpace(hasTextPattern.ReplaceAllString(s, ""))
	if expr == "" {
		expr = "*"
	}
	loc.Expr = expr
	return loc, nil
}

// unquote strips one layer of matching single or double quotes.
func unquote(s string) (string, bool) {
	if len(s) < 2 {
		return s, false
	}
	first, last := s[0], s[len(s)-1]
	if first != last || (first != '"' && first != '\'') {
		return s, false
	}
	if first == '"' {
		if v, err := strconv.Unquote(s); err == nil {
			return v, true
		}
	}
	inner := s[1 : len(s)-1]
	return strings.ReplaceAll(inner, `\`+string(first), string(first)), true
}
