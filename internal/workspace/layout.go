package workspace

import (
	"path/filepath"

	"github.com/ShayCichocki/foldcrew/pkg/models"
)

// Layout holds the fixed base directories that per-run directories live under.
type Layout struct {
	// InputRoot is the base for staged backend inputs.
	InputRoot string
	// OutputRoot is the base for backend outputs and run manifests.
	OutputRoot string
}

// DefaultLayout returns the layout rooted at ./input and ./output.
func DefaultLayout() Layout {
	return Layout{InputRoot: "input", OutputRoot: "output"}
}

// RunContext is the identity of one pipeline run and the directories it owns.
type RunContext struct {
	RunID  string
	Layout Layout
}

// NewRunContext binds a run id to a layout.
func NewRunContext(runID string, layout Layout) RunContext {
	return RunContext{RunID: runID, Layout: layout}
}

// InputDir returns input/<backend>/<run_id>.
func (rc RunContext) InputDir(m models.ModelName) string {
	return filepath.Join(rc.Layout.InputRoot, m.Slug(), rc.RunID)
}

// OutputDir returns output/<backend>/<run_id>.
func (rc RunContext) OutputDir(m models.ModelName) string {
	return filepath.Join(rc.Layout.OutputRoot, m.Slug(), rc.RunID)
}

// ManifestDir returns output/runs/<run_id>, where the run manifest is written.
func (rc RunContext) ManifestDir() string {
	return filepath.Join(rc.Layout.OutputRoot, "runs", rc.RunID)
}

// ControlDir returns the directory watched for file-based approvals.
func (rc RunContext) ControlDir() string {
	return filepath.Join(rc.ManifestDir(), "control")
}
