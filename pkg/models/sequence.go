package models

// SequenceRecord is the state of one submitted chain after validation.
// CleanSequence is non-empty if and only if IsValid is true.
type SequenceRecord struct {
	// RawText is the chain exactly as submitted.
	RawText string `json:"raw_text"`
	// IsValid reports whether RawText is a well-formed amino-acid sequence.
	IsValid bool `json:"is_valid"`
	// CleanSequence is the uppercase, whitespace-free form of a valid chain.
	CleanSequence string `json:"clean_sequence,omitempty"`
}

// PreprocessResult is the normalized structure handed to model selection
// and to every backend adapter. It must be treated as immutable once built.
type PreprocessResult struct {
	// StructureName identifies the structure; it names output artifacts.
	StructureName string `json:"structure_name"`
	// NumChains is the declared chain count. It may exceed len(CleanSequences)
	// because invalid chains are dropped.
	NumChains int `json:"num_chains"`
	// CleanSequences holds the valid chains in submission order.
	CleanSequences []string `json:"clean_sequences"`
	// Records is the per-chain audit trail, including dropped chains.
	Records []SequenceRecord `json:"-"`
}

// Dropped returns the number of submitted chains that failed validation.
func (p PreprocessResult) Dropped() int {
	n := 0
	for _, r := range p.Records {
		if !r.IsValid {
			n++
		}
	}
	return n
}

// Sequences returns a copy of CleanSequences that callers may retain.
func (p PreprocessResult) Sequences() []string {
	out := make([]string, len(p.CleanSequences))
	copy(out, p.CleanSequences)
	return out
}
