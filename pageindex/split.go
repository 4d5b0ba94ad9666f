package pageindex

import (
	"strings"
	"unicode/utf8"
)

// Splitter splits text recursively on a list of separators, coarsest first,
// merging neighbouring pieces into chunks of at most Size characters that
// overlap by up to Overlap characters.
type Splitter struct {
	Size       int
	Overlap    int
	Separators []string
}

// DefaultSplitter returns a 500 character splitter with a 50 character overlap.
func DefaultSplitter() Splitter {
	return Splitter{
		Size:       500,
		Overlap:    50,
		Separators: []string{"\n\n", "\n", " ", ""},
	}
}

// Split returns the chunks of text.
func (s Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	seps := s.Separators
	if len(seps) == 0 {
		seps = []string{""}
	}
	return s.split(text, seps)
}

func (s Splitter) split(text string, seps []string) []string {
	sep, rest := seps[len(seps)-1], []string(nil)
	for i, candidate := range seps {
		if candidate == "" {
			sep = ""
			break
		}
		if strings.Contains(text, candidate) {
			sep, rest = candidate, seps[i+1:]
			break
		}
	}

	var (
		final []string
		good  []string
	)
	for _, piece := range strings.Split(text, sep) {
		if piece == "" {
			continue
		}
		if runeLen(piece) < s.Size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good, sep)...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good, sep)...)
	}
	return final
}

func (s Splitter) merge(pieces []string, sep string) []string {
	sepLen := runeLen(sep)
	var (
		docs    []string
		current []string
		total   int
	)
	joined := func() {
		if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
			docs = append(docs, doc)
		}
	}

	for _, piece := range pieces {
		n := runeLen(piece)
		extra := 0
		if len(current) > 0 {
			extra = sepLen
		}
		if total+n+extra > s.Size && len(current) > 0 {
			joined()
			for total > s.Overlap || (total+n+extra > s.Size && total > 0) {
				drop := runeLen(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
				if len(current) == 0 {
					extra = 0
				}
			}
		}
		current = append(current, piece)
		if len(current) > 1 {
			total += n + sepLen
		} else {
			total += n
		}
	}
	joined()
	return docs
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
