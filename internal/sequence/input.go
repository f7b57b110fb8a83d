package sequence

import (
	"bufio"
	"io"
	"strings"
)

// Chain is one candidate chain extracted from raw user input.
type Chain struct {
	// Label is the FASTA header text, empty in plain mode.
	Label string
	// Text is the raw chain body; it has not been validated.
	Text string
}

// Submission is raw user input split into candidate chains.
type Submission struct {
	// NameHint is a structure name suggested by the first FASTA header.
	NameHint string
	// Chains are the candidate chains in input order.
	Chains []Chain
}

// Texts returns the raw text of every chain, ready for Normalize.
func (s Submission) Texts() []string {
	out := make([]string, len(s.Chains))
	for i, c := range s.Chains {
		out[i] = c.Text
	}
	return out
}

// ParseInput splits raw submission text into candidate chains.
//
// If any line starts with '>', the input is read as FASTA: each header opens
// a chain and the following lines are concatenated into it. Text before the
// first header is ignored. Otherwise every blank-line separated paragraph is
// a candidate chain; prose paragraphs are left for Normalize to drop.
func ParseInput(r io.Reader) (Submission, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	fasta := false
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.HasPrefix(strings.TrimSpace(line), ">") {
			fasta = true
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return Submission{}, err
	}

	if fasta {
		return parseFasta(lines), nil
	}
	return parseParagraphs(lines), nil
}

func parseFasta(lines []string) Submission {
	var sub Submission
	var current *Chain
	var body strings.Builder

	flush := func() {
		if current != nil {
			current.Text = body.String()
			sub.Chains = append(sub.Chains, *current)
		}
		body.Reset()
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, ">") {
			flush()
			label := strings.TrimSpace(strings.TrimPrefix(trimmed, ">"))
			current = &Chain{Label: label}
			if sub.NameHint == "" {
				sub.NameHint = nameFromLabel(label)
			}
			continue
		}
		if current == nil || trimmed == "" {
			continue
		}
		body.WriteString(trimmed)
	}
	flush()

	return sub
}

func parseParagraphs(lines []string) Submission {
	var sub Submission
	var para []string

	flush := func() {
		if len(para) > 0 {
			sub.Chains = append(sub.Chains, Chain{Text: strings.Join(para, "\n")})
		}
		para = nil
	}

	for _, trimmed := range splitEmbedded(lines) {
		if trimmed == "" {
			flush()
			continue
		}
		// A prose line embedded in a paragraph of sequence lines becomes its
		// own candidate so it does not invalidate the sequence around it.
		if !IsValid(trimmed) && len(para) > 0 && IsValid(strings.Join(para, "")) {
			flush()
		}
		if IsValid(trimmed) && len(para) > 0 && !IsValid(strings.Join(para, "")) {
			flush()
		}
		para = append(para, trimmed)
	}
	flush()

	return sub
}

// minEmbeddedLength is the shortest trailing token that splitEmbedded treats
// as a sequence rather than an ordinary word.
const minEmbeddedLength = 20

// splitEmbedded trims lines and separates a trailing sequence from a prose
// prefix, as in "Predict the structure of this VHH-Fc: QVQLQESGG...".
func splitEmbedded(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || IsValid(trimmed) {
			out = append(out, trimmed)
			continue
		}
		fields := strings.Fields(trimmed)
		last := fields[len(fields)-1]
		if len(fields) > 1 && len(last) >= minEmbeddedLength && IsValid(last) {
			prefix := strings.TrimSpace(strings.TrimSuffix(trimmed, last))
			out = append(out, prefix, "", last, "")
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

// nameFromLabel derives a structure name from a FASTA header such as
// "Adalimumab Light chain:" or "sp|P02769|ALBU_BOVIN".
func nameFromLabel(label string) string {
	label = strings.TrimRight(label, ": ")
	if label == "" {
		return ""
	}
	if parts := strings.Split(label, "|"); len(parts) >= 3 {
		label = parts[2]
	}
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return ""
	}

	var b strings.Builder
	for _, r := range strings.ToLower(fields[0]) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}
