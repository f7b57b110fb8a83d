// Package sequence validates and normalizes user-submitted amino-acid
// sequences before they reach model selection and the folding backends.
package sequence

import (
	"strings"
	"unicode"
)

// Alphabet is the set of accepted residue codes: the twenty standard amino
// acids, the ambiguity codes B, Z and X, and the stop marker '*'.
const Alphabet = "ARNDCEQGHILKMFPSTWYVBZX*"

var allowed = func() [256]bool {
	var set [256]bool
	for i := 0; i < len(Alphabet); i++ {
		set[Alphabet[i]] = true
	}
	return set
}()

// Clean removes all whitespace from text and uppercases the remainder.
func Clean(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, text)
}

// IsValid reports whether text is a well-formed amino-acid sequence.
// Whitespace and case are ignored. A sequence that is empty after cleaning
// is not valid: it can never be folded.
func IsValid(text string) bool {
	return isCleanValid(Clean(text))
}

func isCleanValid(clean string) bool {
	if clean == "" {
		return false
	}
	for _, r := range clean {
		if r >= 256 || !allowed[r] {
			return false
		}
	}
	return true
}
