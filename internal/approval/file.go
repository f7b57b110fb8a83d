// Package approval provides the human-facing selection approvers: a
// file-drop approver for headless runs and an interactive terminal prompt.
package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ShayCichocki/foldcrew/internal/selection"
	"github.com/ShayCichocki/foldcrew/pkg/models"
)

// Control file names inside an approval control directory.
const (
	RequestFile = "selection.json"
	ApproveFile = "approve"
	RejectFile  = "reject"
)

const (
	defaultPollInterval = 2 * time.Second
	// settleDelay lets a writer finish before the control file is read.
	settleDelay = 100 * time.Millisecond
)

// Request is the snapshot written to selection.json for the reviewer.
type Request struct {
	RunID          string   `json:"run_id"`
	StructureName  string   `json:"structure_name"`
	NumChains      int      `json:"num_chains"`
	CleanSequences []string `json:"clean_sequences"`
	SelectedModels []string `json:"selected_models"`
	Explanation    string   `json:"explanation"`
	KnownModels    []string `json:"known_models"`
	CreatedAt      string   `json:"created_at"`
}

// FileApprover waits for an approve or reject file to appear in the run's
// control directory. The approve file may list replacement models,
// separated by commas or newlines; an empty file approves unchanged. The
// reject file's content is used as the rejection reason.
type FileApprover struct {
	logger       *zap.Logger
	pollInterval time.Duration
}

// NewFileApprover creates a FileApprover.
func NewFileApprover(logger *zap.Logger) *FileApprover {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileApprover{logger: logger.Named("approval"), pollInterval: defaultPollInterval}
}

// Approve writes the request file and blocks for a decision.
func (a *FileApprover) Approve(ctx context.Context, req selection.ApprovalRequest) (models.ModelSelection, error) {
	dir := req.ControlDir
	if dir == "" {
		return models.ModelSelection{}, fmt.Errorf("file approval: no control directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return models.ModelSelection{}, fmt.Errorf("create control directory: %w", err)
	}
	// stale decisions from an earlier attempt must not apply
	os.Remove(filepath.Join(dir, ApproveFile))
	os.Remove(filepath.Join(dir, RejectFile))

	if err := writeRequest(filepath.Join(dir, RequestFile), req); err != nil {
		return models.ModelSelection{}, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		a.logger.Warn("file watcher unavailable, polling", zap.Error(err))
		watcher = nil
	} else {
		defer watcher.Close()
		if err := watcher.Add(dir); err != nil {
			a.logger.Warn("watch control directory failed, polling", zap.Error(err))
		}
	}

	a.logger.Info("waiting for approval",
		zap.String("run_id", req.RunID),
		zap.String("approve", filepath.Join(dir, ApproveFile)),
		zap.String("reject", filepath.Join(dir, RejectFile)))

	var events <-chan fsnotify.Event
	var errs <-chan error
	if watcher != nil {
		events = watcher.Events
		errs = watcher.Errors
	}

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		if resp, ok := checkDecision(dir, req.RunID); ok {
			a.logger.Info("approval decision received",
				zap.String("run_id", req.RunID),
				zap.Bool("approved", resp.Approved))
			return resp.Apply(req.Selection)
		}

		select {
		case <-ctx.Done():
			return models.ModelSelection{}, ctx.Err()
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			base := filepath.Base(event.Name)
			if (base == ApproveFile || base == RejectFile) && event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				select {
				case <-time.After(settleDelay):
				case <-ctx.Done():
					return models.ModelSelection{}, ctx.Err()
				}
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			a.logger.Debug("watcher error", zap.Error(err))
		case <-ticker.C:
		}
	}
}

func writeRequest(path string, req selection.ApprovalRequest) error {
	known := models.KnownModels()
	names := make([]string, len(known))
	for i, m := range known {
		names[i] = string(m)
	}
	snapshot := Request{
		RunID:          req.RunID,
		StructureName:  req.Preprocess.StructureName,
		NumChains:      req.Preprocess.NumChains,
		CleanSequences: req.Preprocess.Sequences(),
		SelectedModels: req.Selection.Names(),
		Explanation:    req.Selection.Explanation,
		KnownModels:    names,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal approval request: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write approval request: %w", err)
	}
	return nil
}

// checkDecision looks for a reject file first, then an approve file.
func checkDecision(dir, runID string) (selection.ApprovalResponse, bool) {
	if data, err := os.ReadFile(filepath.Join(dir, RejectFile)); err == nil {
		reason := strings.TrimSpace(string(data))
		if reason == "" {
			reason = "rejected via control file"
		}
		return selection.ApprovalResponse{RunID: runID, Approved: false, Reason: reason}, true
	}
	if data, err := os.ReadFile(filepath.Join(dir, ApproveFile)); err == nil {
		return selection.ApprovalResponse{RunID: runID, Approved: true, Models: ParseModelList(string(data))}, true
	}
	return selection.ApprovalResponse{}, false
}

// ParseModelList splits a comma or newline separated list of model names.
// Blank entries and lines starting with '#' are ignored. It returns nil when
// no names remain, meaning "keep the proposed selection".
func ParseModelList(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, part := range strings.Split(line, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

var _ selection.Approver = (*FileApprover)(nil)
