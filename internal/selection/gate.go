// Package selection turns an oracle's model decision into the committed
// models.ModelSelection that gates every backend adapter, and holds the
// human approval suspension point between the two.
package selection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ShayCichocki/foldcrew/pkg/models"
)

// ErrUnknownModel is returned when a decision names a backend outside the
// known universe and the gate is in strict mode.
var ErrUnknownModel = errors.New("unknown model")

// Decision is the raw, unvalidated output of an oracle.
type Decision struct {
	SelectedModels []string `json:"selected_models"`
	Explanation    string   `json:"explanation"`
}

// Oracle decides which backends should fold a preprocessed structure.
// Implementations may be non-deterministic; the gate validates their output.
type Oracle interface {
	Decide(ctx context.Context, pre models.PreprocessResult) (Decision, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, pre models.PreprocessResult) (Decision, error)

// Decide calls f.
func (f OracleFunc) Decide(ctx context.Context, pre models.PreprocessResult) (Decision, error) {
	return f(ctx, pre)
}

// GateOptions configures a Gate.
type GateOptions struct {
	// DropUnknown drops unrecognized names with a warning instead of
	// failing the selection.
	DropUnknown bool
}

// Gate validates decisions against the known backend universe.
type Gate struct {
	opts   GateOptions
	logger *zap.Logger
}

// NewGate creates a gate.
func NewGate(opts GateOptions, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{opts: opts, logger: logger.Named("gate")}
}

// Select packages a decision into a ModelSelection. Names are canonicalized
// and de-duplicated in first-seen order. The gate makes no decision of its
// own; pre is used only to flag selections that cannot do useful work.
func (g *Gate) Select(pre models.PreprocessResult, d Decision) (models.ModelSelection, error) {
	selected, err := g.canonicalize(d.SelectedModels)
	if err != nil {
		return models.ModelSelection{}, err
	}
	sel := models.ModelSelection{SelectedModels: selected, Explanation: d.Explanation}

	if len(pre.CleanSequences) == 0 && len(selected) > 0 {
		g.logger.Warn("models selected for a structure with no valid sequences",
			zap.String("structure", pre.StructureName),
			zap.Strings("selected", sel.Names()))
	}
	if len(pre.CleanSequences) > 1 && sel.Includes(models.ModelESMFold) {
		g.logger.Warn("ESMFold selected for a multi-chain structure; only the first chain will be folded",
			zap.String("structure", pre.StructureName),
			zap.Int("chains", len(pre.CleanSequences)))
	}

	g.logger.Info("model selection committed",
		zap.String("structure", pre.StructureName),
		zap.Strings("selected", sel.Names()))
	return sel, nil
}

// Validate re-checks a selection that came back from an approver, which may
// have edited the model list.
func (g *Gate) Validate(sel models.ModelSelection) (models.ModelSelection, error) {
	names := make([]string, len(sel.SelectedModels))
	for i, m := range sel.SelectedModels {
		names[i] = string(m)
	}
	selected, err := g.canonicalize(names)
	if err != nil {
		return models.ModelSelection{}, err
	}
	return models.ModelSelection{SelectedModels: selected, Explanation: sel.Explanation}, nil
}

func (g *Gate) canonicalize(names []string) ([]models.ModelName, error) {
	selected := make([]models.ModelName, 0, len(names))
	seen := make(map[models.ModelName]bool, len(names))
	var unknown []string

	for _, name := range names {
		m, ok := models.ParseModelName(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		selected = append(selected, m)
	}

	if len(unknown) > 0 {
		if !g.opts.DropUnknown {
			return nil, fmt.Errorf("%w: %s", ErrUnknownModel, quoteAll(unknown))
		}
		g.logger.Warn("dropping unknown models from selection", zap.Strings("unknown", unknown))
	}
	return selected, nil
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(quoted, ", ")
}
