// Package backend defines the contract shared by the folding backend
// adapters and the diagnostics side channel they report failures through.
//
// Adapters always return a models.FoldResult for transport and subprocess
// failures. Only workspace (filesystem) failures are returned as errors.
// Raw failure detail never goes into the result; it is sent to a Recorder.
package backend

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ShayCichocki/foldcrew/internal/logging"
	"github.com/ShayCichocki/foldcrew/internal/workspace"
	"github.com/ShayCichocki/foldcrew/pkg/models"
)

// Backend is a folding backend the pipeline can dispatch a run to.
type Backend interface {
	// Model returns the backend's name in the selection universe.
	Model() models.ModelName
	// Fold runs the backend for a preprocessed structure. The selection is
	// checked first; an unselected backend performs no I/O.
	Fold(ctx context.Context, rc workspace.RunContext, sel models.ModelSelection, pre models.PreprocessResult) (models.FoldResult, error)
}

// Stage names the step of an adapter call that produced a diagnostic.
type Stage string

const (
	StageInput     Stage = "input"
	StageTransport Stage = "transport"
	StageResponse  Stage = "response"
	StageProcess   Stage = "process"
)

// Diagnostic is the raw detail behind a failed backend attempt.
type Diagnostic struct {
	RunID      string
	Model      models.ModelName
	Stage      Stage
	Message    string
	StatusCode int
	ExitCode   int
	Detail     string
}

// Recorder receives diagnostics from adapters.
type Recorder interface {
	RecordDiagnostic(ctx context.Context, d Diagnostic)
}

// LogRecorder writes diagnostics as structured log entries.
type LogRecorder struct {
	logger *zap.Logger
}

// NewLogRecorder creates a recorder that logs at warn level.
func NewLogRecorder(logger *zap.Logger) *LogRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogRecorder{logger: logger.Named("diagnostics")}
}

// RecordDiagnostic logs the diagnostic.
func (r *LogRecorder) RecordDiagnostic(_ context.Context, d Diagnostic) {
	fields := []zap.Field{
		zap.String("run_id", d.RunID),
		zap.String("backend", string(d.Model)),
		zap.String("stage", string(d.Stage)),
	}
	if d.StatusCode != 0 {
		fields = append(fields, zap.Int("status_code", d.StatusCode))
	}
	if d.Stage == StageProcess {
		fields = append(fields, zap.Int("exit_code", d.ExitCode))
	}
	if d.Detail != "" {
		fields = append(fields, zap.String("detail", logging.Truncate(d.Detail, 4096)))
	}
	r.logger.Warn(d.Message, fields...)
}

// MultiRecorder fans a diagnostic out to several recorders.
type MultiRecorder []Recorder

// RecordDiagnostic forwards to every non-nil recorder.
func (m MultiRecorder) RecordDiagnostic(ctx context.Context, d Diagnostic) {
	for _, r := range m {
		if r != nil {
			r.RecordDiagnostic(ctx, d)
		}
	}
}

// MemoryRecorder keeps diagnostics in memory.
type MemoryRecorder struct {
	mu    sync.Mutex
	items []Diagnostic
}

// RecordDiagnostic appends the diagnostic.
func (m *MemoryRecorder) RecordDiagnostic(_ context.Context, d Diagnostic) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, d)
}

// Diagnostics returns a copy of everything recorded so far.
func (m *MemoryRecorder) Diagnostics() []Diagnostic {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Diagnostic, len(m.items))
	copy(out, m.items)
	return out
}

var (
	_ Recorder = (*LogRecorder)(nil)
	_ Recorder = MultiRecorder(nil)
	_ Recorder = (*MemoryRecorder)(nil)
)
