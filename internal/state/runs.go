package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/foldcrew/internal/backend"
	"github.com/ShayCichocki/foldcrew/pkg/models"
)

// Run is one pipeline invocation.
type Run struct {
	ID             string           `json:"id"`
	StructureName  string           `json:"structure_name"`
	NumChains      int              `json:"num_chains"`
	CleanChains    int              `json:"clean_chains"`
	DroppedChains  int              `json:"dropped_chains"`
	SelectedModels []string         `json:"selected_models"`
	Explanation    string           `json:"explanation"`
	Oracle         string           `json:"oracle"`
	Status         models.RunStatus `json:"status"`
	Error          string           `json:"error,omitempty"`
	PID            int              `json:"pid"`
	StartedAt      time.Time        `json:"started_at"`
	FinishedAt     *time.Time       `json:"finished_at,omitempty"`
}

// Attempt is the recorded outcome of one backend adapter call.
type Attempt struct {
	ID         string        `json:"id"`
	RunID      string        `json:"run_id"`
	Model      string        `json:"model"`
	Selected   bool          `json:"selected"`
	Success    bool          `json:"success"`
	OutputPath string        `json:"output_path,omitempty"`
	Duration   time.Duration `json:"duration"`
	CreatedAt  time.Time     `json:"created_at"`
}

// DiagnosticRecord is a stored backend.Diagnostic.
type DiagnosticRecord struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Model      string    `json:"model"`
	Stage      string    `json:"stage"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code,omitempty"`
	ExitCode   int       `json:"exit_code,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewRun builds the ledger row for a run that has just been preprocessed.
func NewRun(runID, oracle string, pre models.PreprocessResult) *Run {
	return &Run{
		ID:            runID,
		StructureName: pre.StructureName,
		NumChains:     pre.NumChains,
		CleanChains:   len(pre.CleanSequences),
		DroppedChains: pre.Dropped(),
		Oracle:        oracle,
		Status:        models.RunStatusRunning,
		PID:           os.Getpid(),
		StartedAt:     time.Now(),
	}
}

// Run CRUD operations

// CreateRun inserts a run.
func (db *DB) CreateRun(ctx context.Context, r *Run) error {
	selected, err := json.Marshal(r.SelectedModels)
	if err != nil {
		return fmt.Errorf("marshal selected models: %w", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO runs (id, structure_name, num_chains, clean_chains, dropped_chains,
			selected_models, explanation, oracle, status, pid, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.StructureName, r.NumChains, r.CleanChains, r.DroppedChains,
		string(selected), r.Explanation, r.Oracle, string(r.Status), r.PID, formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// SetSelection stores the committed model selection of a run.
func (db *DB) SetSelection(ctx context.Context, runID string, sel models.ModelSelection) error {
	selected, err := json.Marshal(sel.Names())
	if err != nil {
		return fmt.Errorf("marshal selected models: %w", err)
	}
	res, err := db.Exec(ctx, `UPDATE runs SET selected_models = ?, explanation = ? WHERE id = ?`,
		string(selected), sel.Explanation, runID)
	if err != nil {
		return fmt.Errorf("set selection: %w", err)
	}
	return requireRow(res, "set selection", runID)
}

// FinishRun records the terminal status of a run.
func (db *DB) FinishRun(ctx context.Context, runID string, status models.RunStatus, runErr error) error {
	var msg sql.NullString
	if runErr != nil {
		msg = sql.NullString{String: runErr.Error(), Valid: true}
	}
	res, err := db.Exec(ctx, `UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), msg, formatTime(time.Now()), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return requireRow(res, "finish run", runID)
}

const runColumns = `id, structure_name, num_chains, clean_chains, dropped_chains,
	selected_models, explanation, oracle, status, error, pid, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var selected, explanation, oracle, runErr, finishedAt sql.NullString
	var pid sql.NullInt64
	var startedAt string
	err := row.Scan(&r.ID, &r.StructureName, &r.NumChains, &r.CleanChains, &r.DroppedChains,
		&selected, &explanation, &oracle, &r.Status, &runErr, &pid, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	if selected.Valid && selected.String != "" {
		if err := json.Unmarshal([]byte(selected.String), &r.SelectedModels); err != nil {
			return nil, fmt.Errorf("unmarshal selected models: %w", err)
		}
	}
	r.Explanation = explanation.String
	r.Oracle = oracle.String
	r.Error = runErr.String
	r.PID = int(pid.Int64)
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}

// GetRun retrieves a run by ID. It returns ErrNotFound if there is none.
func (db *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	row := db.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. A non-positive limit
// returns every run.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// Attempt operations

// RecordAttempt stores the outcome of a backend call.
func (db *DB) RecordAttempt(ctx context.Context, runID string, res models.FoldResult, d time.Duration) (*Attempt, error) {
	a := &Attempt{
		ID:         uuid.New().String(),
		RunID:      runID,
		Model:      string(res.ModelName),
		Selected:   res.ModelIsSelected,
		Success:    res.Success,
		OutputPath: res.OutputFilePath,
		Duration:   d,
		CreatedAt:  time.Now(),
	}
	_, err := db.Exec(ctx, `
		INSERT INTO fold_attempts (id, run_id, model, selected, success, output_path, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.RunID, a.Model, a.Selected, a.Success, a.OutputPath, d.Milliseconds(), formatTime(a.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("record attempt: %w", err)
	}
	return a, nil
}

// ListAttempts returns the attempts of a run in the order they were recorded.
func (db *DB) ListAttempts(ctx context.Context, runID string) ([]Attempt, error) {
	rows, err := db.Query(ctx, `
		SELECT id, run_id, model, selected, success, output_path, duration_ms, created_at
		FROM fold_attempts WHERE run_id = ? ORDER BY created_at ASC, model ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var outputPath sql.NullString
		var durationMS int64
		var createdAt string
		if err := rows.Scan(&a.ID, &a.RunID, &a.Model, &a.Selected, &a.Success, &outputPath, &durationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.OutputPath = outputPath.String
		a.Duration = time.Duration(durationMS) * time.Millisecond
		a.CreatedAt, _ = parseTime(createdAt)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Diagnostic operations

// InsertDiagnostic stores a backend diagnostic.
func (db *DB) InsertDiagnostic(ctx context.Context, d backend.Diagnostic) error {
	_, err := db.Exec(ctx, `
		INSERT INTO diagnostics (run_id, model, stage, message, status_code, exit_code, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, d.RunID, string(d.Model), string(d.Stage), d.Message, d.StatusCode, d.ExitCode, d.Detail, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("insert diagnostic: %w", err)
	}
	return nil
}

// ListDiagnostics returns the diagnostics of a run, oldest first.
func (db *DB) ListDiagnostics(ctx context.Context, runID string) ([]DiagnosticRecord, error) {
	rows, err := db.Query(ctx, `
		SELECT id, run_id, model, stage, message, status_code, exit_code, detail, created_at
		FROM diagnostics WHERE run_id = ? ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list diagnostics: %w", err)
	}
	defer rows.Close()

	var out []DiagnosticRecord
	for rows.Next() {
		var d DiagnosticRecord
		var detail sql.NullString
		var createdAt string
		if err := rows.Scan(&d.ID, &d.RunID, &d.Model, &d.Stage, &d.Message, &d.StatusCode, &d.ExitCode, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		d.Detail = detail.String
		d.CreatedAt, _ = parseTime(createdAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: get rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", op, id, ErrNotFound)
	}
	return nil
}
