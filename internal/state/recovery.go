package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/ShayCichocki/foldcrew/pkg/models"
)

// InterruptedRunError is stored on runs that were found still marked
// running after their process had exited.
const InterruptedRunError = "interrupted: process exited before the run finished"

// MarkInterrupted finds runs left in the running state by a process that is
// no longer alive and marks them failed. It returns the affected run ids.
func (db *DB) MarkInterrupted(ctx context.Context) ([]string, error) {
	rows, err := db.Query(ctx, `SELECT id, pid FROM runs WHERE status = ?`, string(models.RunStatusRunning))
	if err != nil {
		return nil, fmt.Errorf("list running runs: %w", err)
	}

	type candidate struct {
		id  string
		pid int
	}
	var candidates []candidate
	for rows.Next() {
		var id string
		var pid sql.NullInt64
		if err := rows.Scan(&id, &pid); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		candidates = append(candidates, candidate{id: id, pid: int(pid.Int64)})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list running runs: %w", err)
	}

	var marked []string
	for _, c := range candidates {
		if c.pid == os.Getpid() || isProcessAlive(c.pid) {
			continue
		}
		if err := db.FinishRun(ctx, c.id, models.RunStatusFailed, errors.New(InterruptedRunError)); err != nil {
			return marked, err
		}
		marked = append(marked, c.id)
	}
	return marked, nil
}

// isProcessAlive checks if a process with the given PID is still running.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Send signal 0 to check if process exists
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
