package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/foldcrew/internal/selection"
	"github.com/ShayCichocki/foldcrew/pkg/models"
)

const systemPrompt = `You are an expert computational structural biologist. You choose which
protein structure prediction models to run for a submitted structure.

Available models:
- ESMFold: hosted single-sequence language-model predictor. Fast. Folds one chain only;
  for a multi-chain structure only the first chain is folded.
- Boltz: locally run diffusion model with MSA. Slower, needs a GPU. Folds single chains
  and multi-chain complexes together.

Choose any subset, including none. Prefer running both for a single chain so results can
be compared. Use only the exact model names listed above.`

const decisionFormat = `Return ONLY a JSON object with this exact structure (no other text):
{
  "selected_models": ["ESMFold", "Boltz"],
  "explanation": "one or two sentences on why"
}`

// maxPromptResidues caps how much of each chain is shown to the model.
const maxPromptResidues = 400

// BuildPrompt describes a preprocessed structure for a language model.
func BuildPrompt(pre models.PreprocessResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Structure name: %s\n", pre.StructureName)
	fmt.Fprintf(&b, "Declared chains: %d\n", pre.NumChains)
	fmt.Fprintf(&b, "Valid chains: %d\n", len(pre.CleanSequences))
	if d := pre.Dropped(); d > 0 {
		fmt.Fprintf(&b, "Dropped invalid chains: %d\n", d)
	}
	for i, seq := range pre.CleanSequences {
		shown := seq
		if len(shown) > maxPromptResidues {
			shown = shown[:maxPromptResidues] + "..."
		}
		fmt.Fprintf(&b, "\nChain %d (%d residues):\n%s\n", i+1, len(seq), shown)
	}
	b.WriteString("\n")
	b.WriteString(decisionFormat)
	return b.String()
}

// ParseDecision extracts the decision JSON object from a model reply.
func ParseDecision(response string) (selection.Decision, error) {
	jsonStart := strings.Index(response, "{")
	jsonEnd := strings.LastIndex(response, "}")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		return selection.Decision{}, fmt.Errorf("no valid JSON found in response: %s", truncate(response, 200))
	}

	jsonStr := response[jsonStart : jsonEnd+1]
	var d selection.Decision
	if err := json.Unmarshal([]byte(jsonStr), &d); err != nil {
		return selection.Decision{}, fmt.Errorf("parse JSON: %w (response: %s)", err, truncate(jsonStr, 200))
	}
	if d.SelectedModels == nil {
		d.SelectedModels = []string{}
	}
	return d, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
