package boltz

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrNoSequences is returned when an input document would have no chains.
var ErrNoSequences = errors.New("no sequences to write")

// InputDocument is the Boltz YAML input schema for protein-only jobs.
type InputDocument struct {
	Version   int     `yaml:"version"`
	Sequences []Entry `yaml:"sequences"`
}

// Entry is one item in the sequences list.
type Entry struct {
	Protein *ProteinChain `yaml:"protein,omitempty"`
}

// ProteinChain is a single protein chain with its chain identifier.
type ProteinChain struct {
	ID       string `yaml:"id"`
	Sequence string `yaml:"sequence"`
}

// NewInputDocument builds a document with chains labelled A, B, C, ...
// in order.
func NewInputDocument(sequences []string) (InputDocument, error) {
	if len(sequences) == 0 {
		return InputDocument{}, ErrNoSequences
	}
	doc := InputDocument{Version: 1, Sequences: make([]Entry, 0, len(sequences))}
	for i, seq := range sequences {
		doc.Sequences = append(doc.Sequences, Entry{
			Protein: &ProteinChain{ID: ChainID(i), Sequence: seq},
		})
	}
	return doc, nil
}

// ChainID returns the chain label for the i-th chain: A..Z, then AA, AB, ...
func ChainID(i int) string {
	if i < 0 {
		return ""
	}
	id := ""
	for {
		id = string(rune('A'+i%26)) + id
		i = i/26 - 1
		if i < 0 {
			return id
		}
	}
}

// Encode writes the document as YAML.
func (d InputDocument) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode boltz input: %w", err)
	}
	return enc.Close()
}

// WriteInputFile writes the input document for sequences to path.
func WriteInputFile(path string, sequences []string) error {
	doc, err := NewInputDocument(sequences)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create boltz input: %w", err)
	}
	if err := doc.Encode(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close boltz input: %w", err)
	}
	return nil
}
