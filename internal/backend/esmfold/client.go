// Package esmfold is the hosted inference adapter for the ESMFold
// single-sequence structure predictor.
package esmfold

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/foldcrew/internal/backend"
	"github.com/ShayCichocki/foldcrew/internal/workspace"
	"github.com/ShayCichocki/foldcrew/pkg/models"
)

// DefaultEndpoint is the NVIDIA NIM hosted ESMFold endpoint.
const DefaultEndpoint = "https://health.api.nvidia.com/v1/biology/nvidia/esmfold"

// DefaultTimeout bounds a single prediction request.
const DefaultTimeout = 5 * time.Minute

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 64 << 20

// Config holds the adapter's injected settings.
type Config struct {
	// Endpoint is the prediction URL. Defaults to DefaultEndpoint.
	Endpoint string
	// APIKey is the bearer token sent with every request.
	APIKey string
	// Timeout bounds each request. Defaults to DefaultTimeout.
	Timeout time.Duration
	// HTTPClient is the transport. Defaults to a new http.Client.
	HTTPClient *http.Client
}

// Client calls the hosted ESMFold endpoint.
type Client struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	http     *http.Client
	logger   *zap.Logger
	recorder backend.Recorder
}

// New creates an ESMFold adapter.
func New(cfg Config, logger *zap.Logger, recorder backend.Recorder) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = backend.NewLogRecorder(logger)
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		timeout:  cfg.Timeout,
		http:     cfg.HTTPClient,
		logger:   logger.Named("esmfold"),
		recorder: recorder,
	}
}

// Model returns models.ModelESMFold.
func (c *Client) Model() models.ModelName {
	return models.ModelESMFold
}

// Fold predicts the first clean sequence of the structure. ESMFold folds a
// single chain; any further chains are ignored with a warning.
func (c *Client) Fold(ctx context.Context, rc workspace.RunContext, sel models.ModelSelection, pre models.PreprocessResult) (models.FoldResult, error) {
	var seq string
	if len(pre.CleanSequences) > 0 {
		seq = pre.CleanSequences[0]
	}
	if sel.Includes(models.ModelESMFold) && len(pre.CleanSequences) > 1 {
		c.logger.Warn("esmfold folds a single chain; extra chains ignored",
			zap.String("run_id", rc.RunID),
			zap.Int("chains", len(pre.CleanSequences)))
	}
	return c.Predict(ctx, rc, sel, pre.StructureName, seq)
}

type predictRequest struct {
	Sequence string `json:"sequence"`
}

type predictResponse struct {
	PDBs []string `json:"pdbs"`
}

// Predict folds one sequence and writes the structure to
// <output>/esmfold/<run_id>/<structure_name>.pdb.
//
// If ESMFold is not in the selection it returns immediately with no I/O.
// Request and response failures yield an unsuccessful result; only failures
// to stage the output directory or write the structure file are errors.
func (c *Client) Predict(ctx context.Context, rc workspace.RunContext, sel models.ModelSelection, structureName, sequence string) (models.FoldResult, error) {
	if !sel.Includes(models.ModelESMFold) {
		return models.NotSelected(models.ModelESMFold), nil
	}

	outDir := rc.OutputDir(models.ModelESMFold)
	if err := workspace.StageDirectory(outDir, true); err != nil {
		return models.Failed(models.ModelESMFold), fmt.Errorf("stage esmfold output: %w", err)
	}
	c.logger.Debug("prepared output directory", zap.String("dir", outDir))

	if sequence == "" {
		c.fail(ctx, rc, backend.StageInput, "no sequence to fold", 0, "")
		return models.Failed(models.ModelESMFold), nil
	}
	if c.apiKey == "" {
		c.fail(ctx, rc, backend.StageInput, "no ESMFold API key configured", 0, "")
		return models.Failed(models.ModelESMFold), nil
	}

	c.logger.Info("predicting structure",
		zap.String("run_id", rc.RunID),
		zap.String("structure", structureName),
		zap.Int("length", len(sequence)))

	pdb, ok := c.request(ctx, rc, sequence)
	if !ok {
		return models.Failed(models.ModelESMFold), nil
	}

	path := filepath.Join(outDir, workspace.SafeName(structureName)+".pdb")
	if err := os.WriteFile(path, []byte(pdb), 0644); err != nil {
		return models.Failed(models.ModelESMFold), fmt.Errorf("write structure file: %w", err)
	}

	c.logger.Info("esmfold request successful", zap.String("run_id", rc.RunID), zap.String("path", path))
	return models.Succeeded(models.ModelESMFold, path), nil
}

// request performs the HTTP round trip and returns the first structure.
func (c *Client) request(ctx context.Context, rc workspace.RunContext, sequence string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(predictRequest{Sequence: sequence}); err != nil {
		c.fail(ctx, rc, backend.StageInput, "encode request", 0, err.Error())
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, buf)
	if err != nil {
		c.fail(ctx, rc, backend.StageTransport, "build request", 0, err.Error())
		return "", false
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		c.fail(ctx, rc, backend.StageTransport, "esmfold request failed", 0, err.Error())
		return "", false
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		c.fail(ctx, rc, backend.StageTransport, "read esmfold response", res.StatusCode, err.Error())
		return "", false
	}

	if res.StatusCode != http.StatusOK {
		c.fail(ctx, rc, backend.StageResponse,
			fmt.Sprintf("esmfold request failed with status code %d", res.StatusCode),
			res.StatusCode, string(body))
		return "", false
	}

	var parsed predictResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.fail(ctx, rc, backend.StageResponse, "malformed esmfold response", res.StatusCode, err.Error())
		return "", false
	}
	if len(parsed.PDBs) == 0 || parsed.PDBs[0] == "" {
		c.fail(ctx, rc, backend.StageResponse, "esmfold response contained no structures", res.StatusCode, string(body))
		return "", false
	}

	return parsed.PDBs[0], true
}

func (c *Client) fail(ctx context.Context, rc workspace.RunContext, stage backend.Stage, msg string, status int, detail string) {
	c.recorder.RecordDiagnostic(context.WithoutCancel(ctx), backend.Diagnostic{
		RunID:      rc.RunID,
		Model:      models.ModelESMFold,
		Stage:      stage,
		Message:    msg,
		StatusCode: status,
		Detail:     detail,
	})
}

var _ backend.Backend = (*Client)(nil)
