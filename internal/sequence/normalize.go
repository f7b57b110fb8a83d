package sequence

import (
	"encoding/json"
	"fmt"

	"github.com/ShayCichocki/foldcrew/pkg/models"
)

// Validate classifies a single raw chain.
func Validate(raw string) models.SequenceRecord {
	clean := Clean(raw)
	if !isCleanValid(clean) {
		return models.SequenceRecord{RawText: raw}
	}
	return models.SequenceRecord{RawText: raw, IsValid: true, CleanSequence: clean}
}

// Normalize validates every raw chain in order and keeps the cleaned form of
// the valid ones. Invalid chains are dropped without error; the result may
// therefore hold fewer sequences than numChains, or none at all.
func Normalize(structureName string, numChains int, raw []string) models.PreprocessResult {
	result := models.PreprocessResult{
		StructureName:  structureName,
		NumChains:      numChains,
		CleanSequences: make([]string, 0, len(raw)),
		Records:        make([]models.SequenceRecord, 0, len(raw)),
	}

	for _, r := range raw {
		rec := Validate(r)
		result.Records = append(result.Records, rec)
		if rec.IsValid {
			result.CleanSequences = append(result.CleanSequences, rec.CleanSequence)
		}
	}

	return result
}

// MarshalResult encodes the canonical form of a preprocess result.
// Only structure_name, num_chains and clean_sequences are included.
func MarshalResult(p models.PreprocessResult) ([]byte, error) {
	if p.CleanSequences == nil {
		p.CleanSequences = []string{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal preprocess result: %w", err)
	}
	return data, nil
}

// ParseResult decodes the canonical form produced by MarshalResult.
func ParseResult(data []byte) (models.PreprocessResult, error) {
	var p models.PreprocessResult
	if err := json.Unmarshal(data, &p); err != nil {
		return models.PreprocessResult{}, fmt.Errorf("parse preprocess result: %w", err)
	}
	if p.CleanSequences == nil {
		p.CleanSequences = []string{}
	}
	return p, nil
}
