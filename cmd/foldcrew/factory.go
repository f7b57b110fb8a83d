package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ShayCichocki/foldcrew/internal/approval"
	"github.com/ShayCichocki/foldcrew/internal/backend"
	"github.com/ShayCichocki/foldcrew/internal/backend/boltz"
	"github.com/ShayCichocki/foldcrew/internal/backend/esmfold"
	"github.com/ShayCichocki/foldcrew/internal/config"
	"github.com/ShayCichocki/foldcrew/internal/exec"
	"github.com/ShayCichocki/foldcrew/internal/oracle"
	"github.com/ShayCichocki/foldcrew/internal/selection"
	"github.com/ShayCichocki/foldcrew/internal/state"
	"github.com/ShayCichocki/foldcrew/internal/workspace"
)

// ledgerPath returns the configured ledger file. Without one it uses the
// workspace ledger when 'foldcrew init' has run here, else the per-user one.
func ledgerPath(cfg *config.Config) (string, error) {
	if cfg.State.Path != "" {
		return cfg.State.Path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	if _, err := os.Stat(filepath.Dir(state.DefaultPath(cwd))); err == nil {
		return state.DefaultPath(cwd), nil
	}
	return state.GlobalPath(), nil
}

func openLedger(cfg *config.Config) (*state.DB, error) {
	path, err := ledgerPath(cfg)
	if err != nil {
		return nil, err
	}
	db, err := state.OpenMigrated(path)
	if err != nil {
		return nil, fmt.Errorf("open run ledger: %w", err)
	}
	return db, nil
}

func layoutFromConfig(cfg *config.Config) workspace.Layout {
	return workspace.Layout{
		InputRoot:  cfg.Workspace.InputRoot,
		OutputRoot: cfg.Workspace.OutputRoot,
	}
}

// createOracle builds the selection oracle from config.
func createOracle(cfg *config.Config, logger *zap.Logger) (selection.Oracle, error) {
	return oracle.New(oracle.Config{
		Provider:        cfg.Oracle.Provider,
		Model:           cfg.Oracle.Model,
		StaticModels:    cfg.Oracle.StaticModels,
		AnthropicAPIKey:  cfg.Anthropic.APIKey,
		AnthropicBaseURL: cfg.Anthropic.BaseURL,
		OpenAIAPIKey:     cfg.OpenAI.APIKey,
		OpenAIBaseURL:    cfg.OpenAI.BaseURL,
		AWSRegion:        cfg.Oracle.AWSRegion,
		AWSProfile:       cfg.Oracle.AWSProfile,
		Timeout:          cfg.Oracle.Timeout,
	}, logger)
}

// createApprover builds the approver for mode: auto, prompt or file.
func createApprover(mode string, logger *zap.Logger) (selection.Approver, error) {
	switch strings.ToLower(mode) {
	case "", "auto":
		return selection.AutoApprover{}, nil
	case "prompt":
		return approval.NewPromptApprover(os.Stdin, os.Stderr), nil
	case "file":
		return approval.NewFileApprover(logger), nil
	default:
		return nil, fmt.Errorf("invalid approval mode %q: must be auto, prompt, or file", mode)
	}
}

// createBackends builds the folding backends in report order.
func createBackends(cfg *config.Config, logger *zap.Logger, recorder backend.Recorder) []backend.Backend {
	esm := esmfold.New(esmfold.Config{
		Endpoint: cfg.ESMFold.Endpoint,
		APIKey:   cfg.ESMFold.APIKey,
		Timeout:  cfg.ESMFold.Timeout,
	}, logger, recorder)

	bz := boltz.New(boltz.Config{
		Executable:    cfg.Boltz.Executable,
		Devices:       cfg.Boltz.Devices,
		OutputFormat:  cfg.Boltz.OutputFormat,
		NoMSAServer:   !cfg.Boltz.UseMSAServer,
		SuccessMarker: cfg.Boltz.SuccessMarker,
		Timeout:       cfg.Boltz.Timeout,
	}, exec.NewRunner(), logger, recorder)

	return []backend.Backend{esm, bz}
}
