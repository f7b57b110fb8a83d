// Package pipeline runs one structure through preprocessing, model
// selection, approval and the folding backends.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/foldcrew/internal/backend"
	"github.com/ShayCichocki/foldcrew/internal/metrics"
	"github.com/ShayCichocki/foldcrew/internal/oracle"
	"github.com/ShayCichocki/foldcrew/internal/selection"
	"github.com/ShayCichocki/foldcrew/internal/sequence"
	"github.com/ShayCichocki/foldcrew/internal/state"
	"github.com/ShayCichocki/foldcrew/internal/workspace"
	"github.com/ShayCichocki/foldcrew/pkg/models"
)

// Ledger is the subset of the run ledger the pipeline writes to.
type Ledger interface {
	state.RunStore
	state.AttemptStore
}

// Request is raw input for one structure.
type Request struct {
	StructureName string
	// NumChains is the declared chain count, recorded as given.
	NumChains int
	// Sequences are the raw chain texts; invalid ones are dropped.
	Sequences []string
}

// Report is the structured outcome of a run.
type Report struct {
	RunID        string                  `json:"run_id"`
	Status       models.RunStatus        `json:"status"`
	Preprocess   models.PreprocessResult `json:"preprocess"`
	Selection    models.ModelSelection   `json:"selection"`
	Results      []models.FoldResult     `json:"results"`
	ManifestPath string                  `json:"manifest_path,omitempty"`
	StartedAt    time.Time               `json:"started_at"`
	FinishedAt   time.Time               `json:"finished_at"`
}

// Result returns the result for backend m.
func (r *Report) Result(m models.ModelName) (models.FoldResult, bool) {
	for _, res := range r.Results {
		if res.ModelName == m {
			return res, true
		}
	}
	return models.FoldResult{}, false
}

// Config holds the wiring of a pipeline.
type Config struct {
	Layout   workspace.Layout
	RunIDs   *workspace.RunIDGenerator
	Oracle   selection.Oracle
	// OracleName is stored on the ledger row. Defaults to "custom".
	OracleName string
	Gate       *selection.Gate
	// Approver defaults to selection.AutoApprover.
	Approver        selection.Approver
	ApprovalTimeout time.Duration
	Backends        []backend.Backend
	// Ledger and Metrics are optional.
	Ledger  Ledger
	Metrics *metrics.Metrics
}

// Pipeline orchestrates runs.
type Pipeline struct {
	layout     workspace.Layout
	runIDs     *workspace.RunIDGenerator
	oracle     selection.Oracle
	oracleName string
	gate       *selection.Gate
	approver   selection.Approver
	backends   []backend.Backend
	ledger     Ledger
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// New validates cfg and builds a pipeline.
func New(cfg Config, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Oracle == nil {
		return nil, errors.New("pipeline requires an oracle")
	}
	if len(cfg.Backends) == 0 {
		return nil, errors.New("pipeline requires at least one backend")
	}
	seen := make(map[models.ModelName]bool, len(cfg.Backends))
	for _, b := range cfg.Backends {
		if seen[b.Model()] {
			return nil, fmt.Errorf("duplicate backend %s", b.Model())
		}
		seen[b.Model()] = true
	}

	p := &Pipeline{
		layout:     cfg.Layout,
		runIDs:     cfg.RunIDs,
		oracle:     cfg.Oracle,
		oracleName: cfg.OracleName,
		gate:       cfg.Gate,
		approver:   cfg.Approver,
		backends:   cfg.Backends,
		ledger:     cfg.Ledger,
		metrics:    cfg.Metrics,
		logger:     logger.Named("pipeline"),
	}
	if p.layout == (workspace.Layout{}) {
		p.layout = workspace.DefaultLayout()
	}
	if p.runIDs == nil {
		p.runIDs = workspace.NewRunIDGenerator(true)
	}
	if p.oracleName == "" {
		p.oracleName = "custom"
	}
	if p.gate == nil {
		p.gate = selection.NewGate(selection.GateOptions{}, logger)
	}
	if p.approver == nil {
		p.approver = selection.AutoApprover{}
	}
	p.approver = selection.WithTimeout(p.approver, cfg.ApprovalTimeout)
	return p, nil
}

// Run executes one structure end to end. A rejected selection is not an
// error; the report carries RunStatusRejected and every backend unselected.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Report, error) {
	rc := workspace.NewRunContext(p.runIDs.NewRunID(), p.layout)
	pre := sequence.Normalize(req.StructureName, req.NumChains, req.Sequences)

	report := &Report{
		RunID:      rc.RunID,
		Status:     models.RunStatusRunning,
		Preprocess: pre,
		StartedAt:  time.Now(),
	}
	log := p.logger.With(zap.String("run_id", rc.RunID), zap.String("structure", pre.StructureName))
	log.Info("run started",
		zap.Int("declared_chains", pre.NumChains),
		zap.Int("clean_chains", len(pre.CleanSequences)))

	if dropped := pre.Dropped(); dropped > 0 {
		log.Warn("dropped invalid sequences", zap.Int("dropped", dropped))
		p.metrics.ObserveDropped(dropped)
	}

	if p.ledger != nil {
		if err := p.ledger.CreateRun(ctx, state.NewRun(rc.RunID, p.oracleName, pre)); err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
	}

	sel, err := p.selectModels(ctx, rc, pre, log)
	if errors.Is(err, selection.ErrRejected) {
		log.Warn("model selection rejected", zap.Error(err))
		report.Results = p.unselected()
		return p.finish(ctx, rc, report, models.RunStatusRejected, err, log)
	}
	if err != nil {
		return p.fail(ctx, rc, report, err, log)
	}
	report.Selection = sel

	results, err := p.fold(ctx, rc, sel, pre, log)
	report.Results = results
	if err != nil {
		return p.fail(ctx, rc, report, err, log)
	}
	if err := ctx.Err(); err != nil {
		return p.fail(ctx, rc, report, fmt.Errorf("run canceled: %w", err), log)
	}
	return p.finish(ctx, rc, report, models.RunStatusCompleted, nil, log)
}

// selectModels asks the oracle, gates the decision, waits for approval and
// re-validates whatever the approver returned.
func (p *Pipeline) selectModels(ctx context.Context, rc workspace.RunContext, pre models.PreprocessResult, log *zap.Logger) (models.ModelSelection, error) {
	var tokensIn, tokensOut int64
	tracked, hasTracker := p.oracle.(interface{ Tracker() *oracle.TokenTracker })
	if hasTracker {
		tokensIn, tokensOut = tracked.Tracker().Total()
	}

	decision, err := p.oracle.Decide(ctx, pre)
	if hasTracker {
		in, out := tracked.Tracker().Total()
		p.metrics.ObserveTokens(in-tokensIn, out-tokensOut)
	}
	if err != nil {
		return models.ModelSelection{}, fmt.Errorf("decide models: %w", err)
	}

	proposed, err := p.gate.Select(pre, decision)
	if err != nil {
		return models.ModelSelection{}, fmt.Errorf("gate selection: %w", err)
	}

	approved, err := p.approver.Approve(ctx, selection.ApprovalRequest{
		RunID:      rc.RunID,
		Preprocess: pre,
		Selection:  proposed.Clone(),
		ControlDir: rc.ControlDir(),
	})
	if err != nil {
		return models.ModelSelection{}, err
	}

	sel, err := p.gate.Validate(approved)
	if err != nil {
		return models.ModelSelection{}, fmt.Errorf("gate approved selection: %w", err)
	}
	if !sameModels(proposed, sel) {
		log.Info("selection edited during approval",
			zap.Strings("proposed", proposed.Names()),
			zap.Strings("approved", sel.Names()))
	}

	if p.ledger != nil {
		if err := p.ledger.SetSelection(ctx, rc.RunID, sel); err != nil {
			return models.ModelSelection{}, fmt.Errorf("record selection: %w", err)
		}
	}
	return sel, nil
}

// fold runs every backend concurrently, each on its own snapshot of the
// selection and preprocess result. A filesystem error from any adapter
// cancels the others and is returned.
func (p *Pipeline) fold(ctx context.Context, rc workspace.RunContext, sel models.ModelSelection, pre models.PreprocessResult, log *zap.Logger) ([]models.FoldResult, error) {
	results := make([]models.FoldResult, len(p.backends))
	durations := make([]time.Duration, len(p.backends))
	done := make([]bool, len(p.backends))

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range p.backends {
		selSnap, preSnap := sel.Clone(), snapshot(pre)
		g.Go(func() error {
			start := time.Now()
			res, err := b.Fold(gctx, rc, selSnap, preSnap)
			durations[i] = time.Since(start)
			if err != nil {
				return fmt.Errorf("%s: %w", b.Model(), err)
			}
			results[i] = res
			done[i] = true
			return nil
		})
	}
	err := g.Wait()

	for i, b := range p.backends {
		if !done[i] {
			results[i] = models.Failed(b.Model())
			if !sel.Includes(b.Model()) {
				results[i] = models.NotSelected(b.Model())
			}
			continue
		}
		res := results[i]
		log.Info("backend finished",
			zap.String("backend", string(res.ModelName)),
			zap.String("outcome", res.Outcome()),
			zap.String("output", res.OutputFilePath),
			zap.Duration("duration", durations[i]))
		p.metrics.ObserveFold(res, durations[i])
		if p.ledger != nil {
			if _, lerr := p.ledger.RecordAttempt(context.WithoutCancel(ctx), rc.RunID, res, durations[i]); lerr != nil {
				log.Warn("failed to record attempt", zap.String("backend", string(res.ModelName)), zap.Error(lerr))
			}
		}
	}
	if err != nil {
		return results, fmt.Errorf("fold: %w", err)
	}
	return results, nil
}

func (p *Pipeline) fail(ctx context.Context, rc workspace.RunContext, report *Report, runErr error, log *zap.Logger) (*Report, error) {
	log.Error("run failed", zap.Error(runErr))
	if _, err := p.finish(ctx, rc, report, models.RunStatusFailed, runErr, log); err != nil {
		log.Warn("failed to finalize failed run", zap.Error(err))
	}
	return nil, runErr
}

// finish writes the manifest and closes the ledger row. It runs detached
// from ctx so an interrupted run is still recorded.
func (p *Pipeline) finish(ctx context.Context, rc workspace.RunContext, report *Report, status models.RunStatus, runErr error, log *zap.Logger) (*Report, error) {
	ctx = context.WithoutCancel(ctx)
	report.Status = status
	report.FinishedAt = time.Now()

	path, err := WriteManifest(rc, NewManifest(report, p.oracleName, runErr))
	if err != nil {
		return nil, err
	}
	report.ManifestPath = path

	if p.ledger != nil {
		if err := p.ledger.FinishRun(ctx, rc.RunID, status, runErr); err != nil {
			return nil, fmt.Errorf("finish run: %w", err)
		}
	}
	p.metrics.ObserveRun(status)

	log.Info("run finished",
		zap.String("status", string(status)),
		zap.String("manifest", path),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

func (p *Pipeline) unselected() []models.FoldResult {
	out := make([]models.FoldResult, len(p.backends))
	for i, b := range p.backends {
		out[i] = models.NotSelected(b.Model())
	}
	return out
}

func snapshot(pre models.PreprocessResult) models.PreprocessResult {
	cp := pre
	cp.CleanSequences = pre.Sequences()
	cp.Records = append([]models.SequenceRecord(nil), pre.Records...)
	return cp
}

func sameModels(a, b models.ModelSelection) bool {
	if len(a.SelectedModels) != len(b.SelectedModels) {
		return false
	}
	for i := range a.SelectedModels {
		if a.SelectedModels[i] != b.SelectedModels[i] {
			return false
		}
	}
	return true
}
