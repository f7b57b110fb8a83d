package state

import (
	"context"
	"io"
	"time"

	"github.com/ShayCichocki/foldcrew/internal/backend"
	"github.com/ShayCichocki/foldcrew/pkg/models"
)

// RunStore handles run persistence.
type RunStore interface {
	CreateRun(ctx context.Context, r *Run) error
	SetSelection(ctx context.Context, runID string, sel models.ModelSelection) error
	FinishRun(ctx context.Context, runID string, status models.RunStatus, runErr error) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// AttemptStore handles backend attempt persistence.
type AttemptStore interface {
	RecordAttempt(ctx context.Context, runID string, res models.FoldResult, d time.Duration) (*Attempt, error)
	ListAttempts(ctx context.Context, runID string) ([]Attempt, error)
}

// DiagnosticStore handles adapter diagnostic persistence.
type DiagnosticStore interface {
	InsertDiagnostic(ctx context.Context, d backend.Diagnostic) error
	ListDiagnostics(ctx context.Context, runID string) ([]DiagnosticRecord, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	Migrate() error
}

// Ledger is the full run ledger the pipeline and CLI depend on.
type Ledger interface {
	io.Closer
	Migrator
	RunStore
	AttemptStore
	DiagnosticStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Ledger          = (*DB)(nil)
	_ Migrator        = (*DB)(nil)
	_ RunStore        = (*DB)(nil)
	_ AttemptStore    = (*DB)(nil)
	_ DiagnosticStore = (*DB)(nil)
)
