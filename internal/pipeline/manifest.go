package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/foldcrew/internal/workspace"
	"github.com/ShayCichocki/foldcrew/pkg/models"
)

// ManifestFile is the manifest name inside the run's manifest directory.
const ManifestFile = "manifest.yaml"

// Manifest is the on-disk record of a run, written next to its outputs.
type Manifest struct {
	RunID          string           `yaml:"run_id"`
	Status         models.RunStatus `yaml:"status"`
	Error          string           `yaml:"error,omitempty"`
	StructureName  string           `yaml:"structure_name"`
	NumChains      int              `yaml:"num_chains"`
	CleanSequences []string         `yaml:"clean_sequences"`
	DroppedChains  int              `yaml:"dropped_chains"`
	Oracle         string           `yaml:"oracle"`
	SelectedModels []string         `yaml:"selected_models"`
	Explanation    string           `yaml:"explanation,omitempty"`
	Results        []ManifestResult `yaml:"results"`
	StartedAt      time.Time        `yaml:"started_at"`
	FinishedAt     time.Time        `yaml:"finished_at"`
}

// ManifestResult is one backend's entry in the manifest.
type ManifestResult struct {
	Model      models.ModelName `yaml:"model"`
	Selected   bool             `yaml:"selected"`
	Success    bool             `yaml:"success"`
	OutputPath string           `yaml:"output_path,omitempty"`
}

// NewManifest builds the manifest for a finished report.
func NewManifest(r *Report, oracleName string, runErr error) Manifest {
	m := Manifest{
		RunID:          r.RunID,
		Status:         r.Status,
		StructureName:  r.Preprocess.StructureName,
		NumChains:      r.Preprocess.NumChains,
		CleanSequences: r.Preprocess.Sequences(),
		DroppedChains:  r.Preprocess.Dropped(),
		Oracle:         oracleName,
		SelectedModels: r.Selection.Names(),
		Explanation:    r.Selection.Explanation,
		Results:        make([]ManifestResult, 0, len(r.Results)),
		StartedAt:      r.StartedAt.UTC(),
		FinishedAt:     r.FinishedAt.UTC(),
	}
	if runErr != nil {
		m.Error = runErr.Error()
	}
	for _, res := range r.Results {
		m.Results = append(m.Results, ManifestResult{
			Model:      res.ModelName,
			Selected:   res.ModelIsSelected,
			Success:    res.Success,
			OutputPath: res.OutputFilePath,
		})
	}
	return m
}

// WriteManifest writes m to <output_root>/runs/<run_id>/manifest.yaml and
// returns the path. The directory is not reset; it may hold approval files.
func WriteManifest(rc workspace.RunContext, m Manifest) (string, error) {
	dir := rc.ManifestDir()
	if err := workspace.StageDirectory(dir, false); err != nil {
		return "", fmt.Errorf("stage manifest dir: %w", err)
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}

	path := filepath.Join(dir, ManifestFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}
