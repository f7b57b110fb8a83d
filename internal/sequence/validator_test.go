package sequence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"standard residues", "MKWVTFISLLLLFSSAYSR", true},
		{"lowercase", "mkwvtfisllllfssaysr", true},
		{"mixed case with whitespace", " MKW vtf\nISL\tLLL ", true},
		{"ambiguity codes and stop", "BZX*ACD", true},
		{"full alphabet", Alphabet, true},
		{"digits", "MKWV1", false},
		{"punctuation", "not-a-sequence!!", false},
		{"letter outside alphabet", "MKWVJ", false},
		{"letter O outside alphabet", "MOKW", false},
		{"letter U outside alphabet", "MUKW", false},
		{"non-ascii letter", "MKWÄ", false},
		{"empty string", "", false},
		{"whitespace only", " \n\t ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValid(tt.in))
		})
	}
}

func TestIsValid_EveryAlphabetLetterAnyCase(t *testing.T) {
	for _, r := range Alphabet {
		s := string(r)
		assert.True(t, IsValid(s), "upper %q", s)
		assert.True(t, IsValid(strings.ToLower(s)), "lower %q", s)
		assert.True(t, IsValid(" "+s+"\n"), "padded %q", s)
	}
}

func TestIsValid_EveryOtherLetterRejected(t *testing.T) {
	for r := 'A'; r <= 'Z'; r++ {
		if strings.ContainsRune(Alphabet, r) {
			continue
		}
		assert.False(t, IsValid("MKV"+string(r)), "letter %q should be rejected", r)
	}
}

func TestClean(t *testing.T) {
	assert.Equal(t, "MKWVTF", Clean(" mk\nWv\r\ntf "))
	assert.Equal(t, "", Clean("\t \n"))
}
