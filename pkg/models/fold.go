package models

// FoldResult is the canonical outcome of one backend adapter call.
// Diagnostic detail is deliberately absent; adapters report it separately.
type FoldResult struct {
	// ModelName is the backend that produced this result.
	ModelName ModelName `json:"model_name"`
	// ModelIsSelected reports whether the selection included this backend.
	ModelIsSelected bool `json:"model_is_selected"`
	// Success reports whether the backend produced an artifact.
	Success bool `json:"success"`
	// OutputFilePath is the artifact location (a file or a directory),
	// set only when Success is true.
	OutputFilePath string `json:"output_file_path,omitempty"`
}

// NotSelected returns the result for a backend the selection excluded.
func NotSelected(m ModelName) FoldResult {
	return FoldResult{ModelName: m}
}

// Failed returns the result for a selected backend that did not succeed.
func Failed(m ModelName) FoldResult {
	return FoldResult{ModelName: m, ModelIsSelected: true}
}

// Succeeded returns the result for a backend that wrote an artifact at path.
func Succeeded(m ModelName, path string) FoldResult {
	return FoldResult{ModelName: m, ModelIsSelected: true, Success: true, OutputFilePath: path}
}

// Outcome classifies the result for metrics and summaries.
func (r FoldResult) Outcome() string {
	switch {
	case !r.ModelIsSelected:
		return "skipped"
	case r.Success:
		return "success"
	default:
		return "failure"
	}
}

// RunStatus represents the lifecycle state of a pipeline run.
type RunStatus string

const (
	// RunStatusRunning indicates the run is in progress.
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted indicates every selected backend returned a result.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed indicates the run aborted with a fatal error.
	RunStatusFailed RunStatus = "failed"
	// RunStatusRejected indicates the model selection was not approved.
	RunStatusRejected RunStatus = "rejected"
)

// Valid returns true if the status is a known value.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusRunning, RunStatusCompleted, RunStatusFailed, RunStatusRejected:
		return true
	default:
		return false
	}
}
