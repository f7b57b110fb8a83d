package state

import (
	"context"

	"go.uber.org/zap"

	"github.com/ShayCichocki/foldcrew/internal/backend"
)

// Recorder stores adapter diagnostics in the ledger. Insert failures are
// logged and otherwise ignored so a ledger problem never fails a run.
type Recorder struct {
	db     *DB
	logger *zap.Logger
}

// NewRecorder creates a ledger-backed diagnostics recorder.
func NewRecorder(db *DB, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{db: db, logger: logger.Named("ledger")}
}

// RecordDiagnostic inserts the diagnostic.
func (r *Recorder) RecordDiagnostic(ctx context.Context, d backend.Diagnostic) {
	if err := r.db.InsertDiagnostic(ctx, d); err != nil {
		r.logger.Warn("failed to store diagnostic", zap.String("run_id", d.RunID), zap.Error(err))
	}
}

var _ backend.Recorder = (*Recorder)(nil)
