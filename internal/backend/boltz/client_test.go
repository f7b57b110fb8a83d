package boltz

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/foldcrew/internal/backend"
	"github.com/ShayCichocki/foldcrew/internal/exec"
	"github.com/ShayCichocki/foldcrew/internal/workspace"
	"github.com/ShayCichocki/foldcrew/pkg/models"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	mu     sync.Mutex
	calls  []call
	result exec.Result
	err    error
	// inputSeen captures the YAML input file at the moment boltz is launched.
	inputSeen []byte
}

func (f *fakeRunner) Run(_ context.Context, _ string, name string, args ...string) (exec.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{name: name, args: args})
	if len(args) > 1 {
		f.inputSeen, _ = os.ReadFile(args[1])
	}
	return f.result, f.err
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	return "/usr/bin/" + name, nil
}

func newRunContext(t *testing.T) workspace.RunContext {
	t.Helper()
	root := t.TempDir()
	return workspace.NewRunContext("run-date-240101-time-1200", workspace.Layout{
		InputRoot:  filepath.Join(root, "input"),
		OutputRoot: filepath.Join(root, "output"),
	})
}

func selectBoltz() models.ModelSelection {
	return models.ModelSelection{SelectedModels: []models.ModelName{models.ModelBoltz}}
}

func TestPredict_Success(t *testing.T) {
	runner := &fakeRunner{result: exec.Result{
		Stdout: []byte("Predicting...\nNumber of failed examples: 0\n"),
	}}
	rec := &backend.MemoryRecorder{}
	c := New(DefaultConfig(), runner, nil, rec)
	rc := newRunContext(t)

	res, err := c.Predict(context.Background(), rc, selectBoltz(), "dimer", []string{"MKT", "GGG"})
	require.NoError(t, err)

	assert.Equal(t, models.Succeeded(models.ModelBoltz, rc.OutputDir(models.ModelBoltz)), res)
	assert.Empty(t, rec.Diagnostics())

	require.Len(t, runner.calls, 1)
	inputPath := filepath.Join(rc.InputDir(models.ModelBoltz), "dimer.yaml")
	assert.Equal(t, "boltz", runner.calls[0].name)
	assert.Equal(t, []string{
		"predict", inputPath,
		"--out_dir", rc.OutputDir(models.ModelBoltz),
		"--devices", "1",
		"--output_format", "pdb",
		"--use_msa_server",
	}, runner.calls[0].args)

	var doc InputDocument
	require.NoError(t, yaml.Unmarshal(runner.inputSeen, &doc))
	assert.Equal(t, 1, doc.Version)
	require.Len(t, doc.Sequences, 2)
	assert.Equal(t, ProteinChain{ID: "A", Sequence: "MKT"}, *doc.Sequences[0].Protein)
	assert.Equal(t, ProteinChain{ID: "B", Sequence: "GGG"}, *doc.Sequences[1].Protein)
}

func TestPredict_Failures(t *testing.T) {
	tests := []struct {
		name     string
		result   exec.Result
		err      error
		exitCode int
	}{
		{
			name:     "non-zero exit without marker",
			result:   exec.Result{Stdout: []byte("CUDA out of memory\n"), ExitCode: 1},
			exitCode: 1,
		},
		{
			name:     "zero exit without marker",
			result:   exec.Result{Stdout: []byte("Number of failed examples: 1\n")},
			exitCode: 0,
		},
		{
			name:     "marker with non-zero exit",
			result:   exec.Result{Stdout: []byte("Number of failed examples: 0\n"), ExitCode: 2},
			exitCode: 2,
		},
		{
			name:     "launch failure",
			result:   exec.Result{ExitCode: -1},
			err:      errors.New("exec: \"boltz\": executable file not found in $PATH"),
			exitCode: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{result: tt.result, err: tt.err}
			rec := &backend.MemoryRecorder{}
			c := New(DefaultConfig(), runner, nil, rec)
			rc := newRunContext(t)

			res, err := c.Predict(context.Background(), rc, selectBoltz(), "mono", []string{"MKT"})
			require.NoError(t, err)
			assert.Equal(t, models.Failed(models.ModelBoltz), res)
			assert.Empty(t, res.OutputFilePath)

			diags := rec.Diagnostics()
			require.Len(t, diags, 1)
			assert.Equal(t, backend.StageProcess, diags[0].Stage)
			assert.Equal(t, tt.exitCode, diags[0].ExitCode)
			assert.Equal(t, models.ModelBoltz, diags[0].Model)
		})
	}
}

func TestPredict_NotSelectedDoesNoIO(t *testing.T) {
	runner := &fakeRunner{}
	c := New(DefaultConfig(), runner, nil, nil)
	rc := newRunContext(t)

	sel := models.ModelSelection{SelectedModels: []models.ModelName{models.ModelESMFold}}
	res, err := c.Predict(context.Background(), rc, sel, "mono", []string{"MKT"})
	require.NoError(t, err)

	assert.Equal(t, models.NotSelected(models.ModelBoltz), res)
	assert.Empty(t, runner.calls)
	_, statErr := os.Stat(rc.InputDir(models.ModelBoltz))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(rc.OutputDir(models.ModelBoltz))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPredict_EmptySequencesSkipsLaunch(t *testing.T) {
	runner := &fakeRunner{}
	rec := &backend.MemoryRecorder{}
	c := New(DefaultConfig(), runner, nil, rec)

	res, err := c.Predict(context.Background(), newRunContext(t), selectBoltz(), "mono", nil)
	require.NoError(t, err)
	assert.Equal(t, models.Failed(models.ModelBoltz), res)
	assert.Empty(t, runner.calls)
	require.Len(t, rec.Diagnostics(), 1)
	assert.Equal(t, backend.StageInput, rec.Diagnostics()[0].Stage)
}

func TestArgs_Configurable(t *testing.T) {
	c := New(Config{Executable: "/opt/boltz/bin/boltz", Devices: 4, OutputFormat: "mmcif", NoMSAServer: true}, &fakeRunner{}, nil, nil)
	assert.Equal(t, []string{
		"predict", "in.yaml",
		"--out_dir", "out",
		"--devices", "4",
		"--output_format", "mmcif",
	}, c.Args("in.yaml", "out"))
}

func TestArgs_ZeroConfigUsesMSAServer(t *testing.T) {
	c := New(Config{}, &fakeRunner{}, nil, nil)
	assert.Equal(t, []string{
		"predict", "in.yaml",
		"--out_dir", "out",
		"--devices", "1",
		"--output_format", "pdb",
		"--use_msa_server",
	}, c.Args("in.yaml", "out"))
}

func TestPredict_TimeoutKeepsCapturedOutput(t *testing.T) {
	runner := &fakeRunner{
		result: exec.Result{
			Stdout:   []byte("Running MSA generation\n"),
			Stderr:   []byte("CUDA warning: stalled\n"),
			ExitCode: -1,
		},
		err: fmt.Errorf("run boltz: %w", context.DeadlineExceeded),
	}
	rec := &backend.MemoryRecorder{}
	c := New(DefaultConfig(), runner, nil, rec)

	res, err := c.Predict(context.Background(), newRunContext(t), selectBoltz(), "mono", []string{"MKT"})
	require.NoError(t, err)
	assert.Equal(t, models.Failed(models.ModelBoltz), res)

	diags := rec.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, -1, diags[0].ExitCode)
	assert.Contains(t, diags[0].Detail, "context deadline exceeded")
	assert.Contains(t, diags[0].Detail, "Running MSA generation")
	assert.Contains(t, diags[0].Detail, "CUDA warning: stalled")
}

func TestFold_PassesAllChains(t *testing.T) {
	runner := &fakeRunner{result: exec.Result{Stdout: []byte(DefaultSuccessMarker)}}
	c := New(DefaultConfig(), runner, nil, nil)
	pre := models.PreprocessResult{
		StructureName:  "trimer",
		NumChains:      3,
		CleanSequences: []string{"AAA", "CCC", "DDD"},
	}

	res, err := c.Fold(context.Background(), newRunContext(t), selectBoltz(), pre)
	require.NoError(t, err)
	assert.True(t, res.Success)

	var doc InputDocument
	require.NoError(t, yaml.Unmarshal(runner.inputSeen, &doc))
	assert.Len(t, doc.Sequences, 3)
	assert.Equal(t, "C", doc.Sequences[2].Protein.ID)
	assert.Equal(t, models.ModelBoltz, c.Model())
}
