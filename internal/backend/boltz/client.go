// Package boltz is the adapter for the locally installed Boltz
// multi-chain structure predictor. It writes a YAML input document and
// runs the boltz CLI as a subprocess.
package boltz

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/foldcrew/internal/backend"
	"github.com/ShayCichocki/foldcrew/internal/exec"
	"github.com/ShayCichocki/foldcrew/internal/workspace"
	"github.com/ShayCichocki/foldcrew/pkg/models"
)

const (
	// DefaultExecutable is the boltz CLI name looked up on PATH.
	DefaultExecutable = "boltz"
	// DefaultSuccessMarker is printed by boltz when every example folded.
	DefaultSuccessMarker = "Number of failed examples: 0"
	// DefaultTimeout bounds a single prediction.
	DefaultTimeout = 2 * time.Hour
)

// Config holds the adapter's injected settings.
type Config struct {
	Executable    string
	Devices       int
	OutputFormat  string
	// NoMSAServer drops --use_msa_server. boltz then needs precomputed MSAs.
	NoMSAServer   bool
	SuccessMarker string
	Timeout       time.Duration
}

// DefaultConfig returns the settings the boltz CLI is normally run with.
func DefaultConfig() Config {
	return Config{
		Executable:    DefaultExecutable,
		Devices:       1,
		OutputFormat:  "pdb",
		SuccessMarker: DefaultSuccessMarker,
		Timeout:       DefaultTimeout,
	}
}

// Client runs boltz predictions.
type Client struct {
	cfg      Config
	runner   exec.CommandRunner
	logger   *zap.Logger
	recorder backend.Recorder
}

// New creates a Boltz adapter. Zero config fields take their defaults.
func New(cfg Config, runner exec.CommandRunner, logger *zap.Logger, recorder backend.Recorder) *Client {
	def := DefaultConfig()
	if cfg.Executable == "" {
		cfg.Executable = def.Executable
	}
	if cfg.Devices <= 0 {
		cfg.Devices = def.Devices
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = def.OutputFormat
	}
	if cfg.SuccessMarker == "" {
		cfg.SuccessMarker = def.SuccessMarker
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if runner == nil {
		runner = exec.NewRunner()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = backend.NewLogRecorder(logger)
	}
	return &Client{
		cfg:      cfg,
		runner:   runner,
		logger:   logger.Named("boltz"),
		recorder: recorder,
	}
}

// Model returns models.ModelBoltz.
func (c *Client) Model() models.ModelName {
	return models.ModelBoltz
}

// Fold predicts the structure from every clean sequence of the structure.
func (c *Client) Fold(ctx context.Context, rc workspace.RunContext, sel models.ModelSelection, pre models.PreprocessResult) (models.FoldResult, error) {
	return c.Predict(ctx, rc, sel, pre.StructureName, pre.CleanSequences)
}

// Args returns the boltz command line arguments for an input file and
// output directory.
func (c *Client) Args(inputPath, outDir string) []string {
	args := []string{
		"predict", inputPath,
		"--out_dir", outDir,
		"--devices", strconv.Itoa(c.cfg.Devices),
		"--output_format", c.cfg.OutputFormat,
	}
	if !c.cfg.NoMSAServer {
		args = append(args, "--use_msa_server")
	}
	return args
}

// Predict folds all chains of a structure together. On success the result
// path is the output directory, since boltz writes several files.
//
// If Boltz is not in the selection it returns immediately with no I/O.
// Subprocess failures yield an unsuccessful result; only staging and input
// file failures are errors.
func (c *Client) Predict(ctx context.Context, rc workspace.RunContext, sel models.ModelSelection, structureName string, sequences []string) (models.FoldResult, error) {
	if !sel.Includes(models.ModelBoltz) {
		return models.NotSelected(models.ModelBoltz), nil
	}

	outDir := rc.OutputDir(models.ModelBoltz)
	if err := workspace.StageDirectory(outDir, true); err != nil {
		return models.Failed(models.ModelBoltz), fmt.Errorf("stage boltz output: %w", err)
	}
	inDir := rc.InputDir(models.ModelBoltz)
	if err := workspace.StageDirectory(inDir, true); err != nil {
		return models.Failed(models.ModelBoltz), fmt.Errorf("stage boltz input: %w", err)
	}
	c.logger.Debug("prepared directories", zap.String("input", inDir), zap.String("output", outDir))

	if len(sequences) == 0 {
		c.fail(ctx, rc, backend.StageInput, "no sequences to fold", 0, "")
		return models.Failed(models.ModelBoltz), nil
	}

	inputPath := filepath.Join(inDir, workspace.SafeName(structureName)+".yaml")
	if err := WriteInputFile(inputPath, sequences); err != nil {
		return models.Failed(models.ModelBoltz), fmt.Errorf("write boltz input: %w", err)
	}

	args := c.Args(inputPath, outDir)
	c.logger.Info("running boltz prediction",
		zap.String("run_id", rc.RunID),
		zap.String("structure", structureName),
		zap.Int("chains", len(sequences)),
		zap.String("command", c.cfg.Executable+" "+strings.Join(args, " ")))

	runCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	res, err := c.runner.Run(runCtx, "", c.cfg.Executable, args...)
	if err != nil {
		c.fail(ctx, rc, backend.StageProcess, "boltz did not run to completion", res.ExitCode,
			err.Error()+"\n"+string(res.Stdout)+string(res.Stderr))
		return models.Failed(models.ModelBoltz), nil
	}

	stdout := string(res.Stdout)
	if res.ExitCode != 0 || !strings.Contains(stdout, c.cfg.SuccessMarker) {
		c.fail(ctx, rc, backend.StageProcess,
			fmt.Sprintf("boltz prediction failed (exit code %d)", res.ExitCode),
			res.ExitCode, stdout+string(res.Stderr))
		return models.Failed(models.ModelBoltz), nil
	}

	c.logger.Info("boltz prediction succeeded", zap.String("run_id", rc.RunID), zap.String("dir", outDir))
	return models.Succeeded(models.ModelBoltz, outDir), nil
}

func (c *Client) fail(ctx context.Context, rc workspace.RunContext, stage backend.Stage, msg string, exitCode int, detail string) {
	c.recorder.RecordDiagnostic(context.WithoutCancel(ctx), backend.Diagnostic{
		RunID:    rc.RunID,
		Model:    models.ModelBoltz,
		Stage:    stage,
		Message:  msg,
		ExitCode: exitCode,
		Detail:   detail,
	})
}

var _ backend.Backend = (*Client)(nil)
