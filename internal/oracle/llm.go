package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/foldcrew/internal/selection"
	"github.com/ShayCichocki/foldcrew/pkg/models"
)

// Completer is a text-in, text-out language model call.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Model() string
	Tracker() *TokenTracker
}

// LLMOracle asks a language model for a decision.
type LLMOracle struct {
	client  Completer
	timeout time.Duration
	logger  *zap.Logger
}

// NewLLMOracle creates an oracle backed by client.
func NewLLMOracle(client Completer, timeout time.Duration, logger *zap.Logger) *LLMOracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &LLMOracle{client: client, timeout: timeout, logger: logger.Named("oracle")}
}

// Decide sends the structure description and parses the JSON reply. The
// decision is not validated here; that is the gate's job.
func (o *LLMOracle) Decide(ctx context.Context, pre models.PreprocessResult) (selection.Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	o.logger.Info("requesting model selection",
		zap.String("model", o.client.Model()),
		zap.String("structure", pre.StructureName),
		zap.Int("chains", len(pre.CleanSequences)))

	text, err := o.client.Complete(ctx, systemPrompt, BuildPrompt(pre))
	if err != nil {
		return selection.Decision{}, fmt.Errorf("oracle call: %w", err)
	}

	d, err := ParseDecision(text)
	if err != nil {
		return selection.Decision{}, fmt.Errorf("oracle reply: %w", err)
	}

	in, out := o.client.Tracker().Total()
	o.logger.Debug("model selection received",
		zap.Strings("selected", d.SelectedModels),
		zap.Int64("input_tokens", in),
		zap.Int64("output_tokens", out))
	return d, nil
}

// Tracker returns the token usage of the underlying client.
func (o *LLMOracle) Tracker() *TokenTracker {
	return o.client.Tracker()
}

// TokenTracker tracks token usage across API calls.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// NewTokenTracker creates a new token tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records token usage from an API call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the total input and output tokens tracked.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of API calls made.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

var _ selection.Oracle = (*LLMOracle)(nil)
