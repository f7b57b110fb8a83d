package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/foldcrew/internal/backend"
	"github.com/ShayCichocki/foldcrew/internal/config"
	"github.com/ShayCichocki/foldcrew/internal/metrics"
	"github.com/ShayCichocki/foldcrew/internal/oracle"
	"github.com/ShayCichocki/foldcrew/internal/pipeline"
	"github.com/ShayCichocki/foldcrew/internal/selection"
	"github.com/ShayCichocki/foldcrew/internal/sequence"
	"github.com/ShayCichocki/foldcrew/internal/state"
	"github.com/ShayCichocki/foldcrew/internal/workspace"
	"github.com/ShayCichocki/foldcrew/pkg/models"
)

var (
	runName        string
	runChains      int
	runModels      string
	runOracle      string
	runApprove     string
	runMetricsAddr string
	runDropUnknown bool
	runJSON        bool
)

var runCmd = &cobra.Command{
	Use:   "run [file|-]",
	Short: "Predict structures for a sequence submission",
	Long: `Run the full prediction pipeline on a submission.

The submission is FASTA (one chain per '>' header) or plain text with
one chain per blank-line separated paragraph. Use '-' or omit the
argument to read stdin. Chains that are not amino-acid sequences are
dropped and reported.

Model selection (--oracle, default from oracle.provider):
  - rules:     ESMFold and Boltz for one chain, Boltz only for complexes
  - static:    the fixed list in oracle.static_models (or --models)
  - anthropic: ask Claude via the Anthropic API
  - bedrock:   ask Claude via AWS Bedrock
  - openai:    ask an OpenAI-compatible chat model

Approval (--approve, default from selection.approval):
  - auto:   run the oracle's selection as is
  - prompt: review and edit the selection in the terminal
  - file:   write <output_root>/runs/<run_id>/control/selection.json and
            wait for an 'approve' or 'reject' file next to it

Examples:
  foldcrew run ubiquitin.fasta
  cat chains.txt | foldcrew run --name insulin --chains 2
  foldcrew run antibody.fasta --models boltz --approve prompt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVar(&runName, "name", "", "Structure name (default: first FASTA header or file name)")
	runCmd.Flags().IntVar(&runChains, "chains", 0, "Declared chain count (default: number of submitted chains)")
	runCmd.Flags().StringVar(&runModels, "models", "", "Comma-separated models to run; implies --oracle static")
	runCmd.Flags().StringVar(&runOracle, "oracle", "", "Selection oracle: rules, static, anthropic, bedrock, or openai")
	runCmd.Flags().StringVar(&runApprove, "approve", "", "Approval mode: auto, prompt, or file")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	runCmd.Flags().BoolVar(&runDropUnknown, "drop-unknown", false, "Drop unknown model names instead of failing")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the run report as JSON")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	source := "-"
	if len(args) > 0 {
		source = args[0]
	}
	req, err := readRequest(source, cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer ledger.Close()

	if interrupted, err := ledger.MarkInterrupted(ctx); err != nil {
		logger.Warn("failed to check for interrupted runs", zap.Error(err))
	} else if len(interrupted) > 0 {
		logger.Warn("marked runs from dead processes as failed", zap.Strings("runs", interrupted))
	}

	if _, err := config.NIMKey.Lookup(cfg); err != nil {
		logger.Warn("ESMFold will fail without an API key", zap.String("env", config.NIMKey.EnvVar))
	}

	sel, err := createOracle(cfg, logger)
	if err != nil {
		return err
	}
	approver, err := createApprover(cfg.Selection.Approval, logger)
	if err != nil {
		return err
	}

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	recorder := backend.MultiRecorder{
		backend.NewLogRecorder(logger),
		state.NewRecorder(ledger, logger),
	}
	p, err := pipeline.New(pipeline.Config{
		Layout:          layoutFromConfig(cfg),
		RunIDs:          workspace.NewRunIDGenerator(cfg.RunID.UniqueSuffix),
		Oracle:          sel,
		OracleName:      strings.ToLower(cfg.Oracle.Provider),
		Gate:            selection.NewGate(selection.GateOptions{DropUnknown: cfg.Selection.DropUnknown}, logger),
		Approver:        approver,
		ApprovalTimeout: cfg.Selection.ApprovalTimeout,
		Backends:        createBackends(cfg, logger, recorder),
		Ledger:          ledger,
		Metrics:         m,
	}, logger)
	if err != nil {
		return err
	}

	report, err := p.Run(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s run failed: %v\n", color.RedString("✗"), err)
		return err
	}

	if runJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(cmd.OutOrStdout(), report)
	return nil
}

// applyRunFlags overlays explicitly set flags on the loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if runModels != "" {
		cfg.Oracle.Provider = oracle.ProviderStatic
		cfg.Oracle.StaticModels = splitList(runModels)
	}
	if runOracle != "" {
		cfg.Oracle.Provider = runOracle
	}
	if runApprove != "" {
		cfg.Selection.Approval = runApprove
	}
	if runMetricsAddr != "" {
		cfg.Metrics.Addr = runMetricsAddr
	}
	if cmd.Flags().Changed("drop-unknown") {
		cfg.Selection.DropUnknown = runDropUnknown
	}
}

// readRequest parses a submission from a file or, for "-", from stdin. The
// declared chain count is --chains, or the number of submitted chains.
func readRequest(source string, stdin io.Reader) (pipeline.Request, error) {
	var r io.Reader = stdin
	if source != "-" {
		f, err := os.Open(source)
		if err != nil {
			return pipeline.Request{}, fmt.Errorf("open submission: %w", err)
		}
		defer f.Close()
		r = f
	}

	sub, err := sequence.ParseInput(r)
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("read submission: %w", err)
	}
	if len(sub.Chains) == 0 {
		return pipeline.Request{}, errors.New("submission contains no chains")
	}

	numChains := runChains
	if numChains == 0 {
		numChains = len(sub.Chains)
	}
	return pipeline.Request{
		StructureName: structureName(runName, sub, source),
		NumChains:     numChains,
		Sequences:     sub.Texts(),
	}, nil
}

// structureName picks the flag, then the FASTA header hint, then the file
// name.
func structureName(flag string, sub sequence.Submission, source string) string {
	if flag != "" {
		return flag
	}
	if sub.NameHint != "" {
		return sub.NameHint
	}
	if source != "-" {
		base := filepath.Base(source)
		if name := strings.TrimSuffix(base, filepath.Ext(base)); name != "" {
			return name
		}
	}
	return "structure"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printReport(w io.Writer, r *pipeline.Report) {
	statusColor := color.New(color.FgGreen)
	switch r.Status {
	case models.RunStatusRejected:
		statusColor = color.New(color.FgYellow)
	case models.RunStatusFailed:
		statusColor = color.New(color.FgRed)
	}

	fmt.Fprintf(w, "Run %s: %s\n", r.RunID, statusColor.Sprint(r.Status))
	fmt.Fprintf(w, "  Structure: %s (%d of %d chains valid)\n",
		r.Preprocess.StructureName, len(r.Preprocess.CleanSequences), r.Preprocess.NumChains)
	if n := r.Preprocess.Dropped(); n > 0 {
		fmt.Fprintf(w, "  Dropped: %d invalid chain(s)\n", n)
	}
	if r.Status != models.RunStatusRejected {
		selected := strings.Join(r.Selection.Names(), ", ")
		if selected == "" {
			selected = "(none)"
		}
		fmt.Fprintf(w, "  Selected: %s\n", selected)
		if r.Selection.Explanation != "" {
			fmt.Fprintf(w, "  Reason: %s\n", r.Selection.Explanation)
		}
	}
	fmt.Fprintf(w, "  Elapsed: %s\n", formatDuration(r.FinishedAt.Sub(r.StartedAt)))
	fmt.Fprintln(w)

	for _, res := range r.Results {
		switch res.Outcome() {
		case "success":
			fmt.Fprintf(w, "%s %-8s %s\n", color.GreenString("✓"), res.ModelName, res.OutputFilePath)
		case "failure":
			fmt.Fprintf(w, "%s %-8s failed (foldcrew runs show %s)\n", color.RedString("✗"), res.ModelName, r.RunID)
		default:
			fmt.Fprintf(w, "%s %-8s not selected\n", color.New(color.Faint).Sprint("–"), res.ModelName)
		}
	}
	if r.ManifestPath != "" {
		fmt.Fprintf(w, "\nManifest: %s\n", r.ManifestPath)
	}
}
