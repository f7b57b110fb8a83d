package oracle

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/foldcrew/internal/selection"
	"github.com/ShayCichocki/foldcrew/pkg/models"
)

// RulesOracle picks backends from the chain count alone. A single chain
// goes to both backends, a complex only to Boltz, nothing to neither.
type RulesOracle struct{}

// Decide applies the chain count rules.
func (RulesOracle) Decide(_ context.Context, pre models.PreprocessResult) (selection.Decision, error) {
	n := len(pre.CleanSequences)
	switch {
	case n == 0:
		return selection.Decision{
			SelectedModels: []string{},
			Explanation:    "no valid sequences; nothing to fold",
		}, nil
	case n == 1:
		return selection.Decision{
			SelectedModels: []string{string(models.ModelESMFold), string(models.ModelBoltz)},
			Explanation:    "single chain: ESMFold for a fast prediction and Boltz for comparison",
		}, nil
	default:
		return selection.Decision{
			SelectedModels: []string{string(models.ModelBoltz)},
			Explanation:    fmt.Sprintf("%d chains: only Boltz predicts multi-chain complexes", n),
		}, nil
	}
}

// StaticOracle always returns the same model list.
type StaticOracle struct {
	models []string
}

// NewStaticOracle creates a StaticOracle for the given names.
func NewStaticOracle(names []string) StaticOracle {
	cp := make([]string, len(names))
	copy(cp, names)
	return StaticOracle{models: cp}
}

// Decide returns the configured list.
func (o StaticOracle) Decide(_ context.Context, _ models.PreprocessResult) (selection.Decision, error) {
	out := make([]string, len(o.models))
	copy(out, o.models)
	return selection.Decision{SelectedModels: out, Explanation: "models fixed by configuration"}, nil
}

var (
	_ selection.Oracle = RulesOracle{}
	_ selection.Oracle = StaticOracle{}
)
