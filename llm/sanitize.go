package llm

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	excessNewlines = regexp.MustCompile(`\n{3,}`)
	inlineSpace    = regexp.MustCompile(`[ \t]+`)
	promptTags     = regexp.MustCompile(`(?i)</?\s*(target|page_elements|html_chunks|question|errors|scenario|instruction|value|history)\s*>`)
)

// SanitizeText prepares author-provided text (step descriptions, values,
// questions) for embedding in a prompt. Control characters are dropped,
// whitespace is normalised and the tags used to delimit prompt sections are
// removed so the text cannot close its own section.
func SanitizeText(s string) string {
	s = strings.TrimSpace(s)
	s = removeControlCharacters(s, true)
	s = removeNonPrintable(s)
	s = promptTags.ReplaceAllString(s, "")
	s = excessNewlines.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(inlineSpace.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// removeControlCharacters removes control characters from a string.
// If preserveFormatting is true, newlines and tabs are kept.
func removeControlCharacters(s string, preserveFormatting bool) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			if preserveFormatting && (r == '\n' || r == '\t') {
				result.WriteRune(r)
			}
			continue
		}
		result.WriteRune(r)
	}
	return result.String()
}

func removeNonPrintable(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsPrint(r) || r == '\n' || r == '\t' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
