package schedule

import (
	"strings"
	"unicode"
)

// Sanitizer strips decorative markers from cleaner names before they are
// stored: configured marker strings (emphasis glyphs like "*" or "_")
// plus emoji-style symbol runes, which the UI historically mixed into
// the cleaner column. Whitespace is collapsed and trimmed.
type Sanitizer struct {
	markers []string
}

// NewSanitizer builds a Sanitizer for the given marker strings.
func NewSanitizer(markers []string) *Sanitizer {
	return &Sanitizer{markers: markers}
}

// Clean returns the sanitized cleaner name. An all-decoration input
// comes back empty, which callers treat as "no assignment".
func (s *Sanitizer) Clean(name string) string {
	for _, m := range s.markers {
		if m == "" {
			continue
		}
		name = strings.ReplaceAll(name, m, "")
	}

	name = strings.Map(func(r rune) rune {
		if decorative(r) {
			return -1
		}
		return r
	}, name)

	return strings.Join(strings.Fields(name), " ")
}

// decorative reports whether the rune is cosmetic rather than part of a
// name: symbol categories (covers emoji like U+1F525), variation
// selectors, and the zero-width joiner used in emoji sequences.
func decorative(r rune) bool {
	if unicode.In(r, unicode.So, unicode.Sk, unicode.Sm) {
		return true
	}
	if r >= 0xFE00 && r <= 0xFE0F {
		return true
	}
	return r == 0x200D
}
