package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/foldcrew/internal/config"
	"github.com/ShayCichocki/foldcrew/internal/exec"
	"github.com/ShayCichocki/foldcrew/internal/workspace"
)

var (
	initForce      bool
	initWithConfig bool
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a foldcrew workspace",
	Long: `Initialize a directory for use with foldcrew.

This command sets up everything needed to run predictions:
  - Checks prerequisites (boltz CLI, API keys)
  - Creates the input/ and output/ roots and the .foldcrew directory
  - Creates the run ledger
  - Optionally writes a .foldcrew.yaml template

The directory argument is optional and defaults to the current directory.

Examples:
  foldcrew init                 # Initialize current directory
  foldcrew init ./structures    # Initialize specific directory
  foldcrew init --with-config   # Also write .foldcrew.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
	initCmd.Flags().BoolVar(&initWithConfig, "with-config", false, "Create a .foldcrew.yaml template")
}

func runInit(cmd *cobra.Command, args []string) error {
	// Resolve target directory
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}
	if err := os.Chdir(absPath); err != nil {
		return fmt.Errorf("changing to directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing foldcrew in %s...\n\n", absPath)

	stateDir := filepath.Join(absPath, ".foldcrew")
	if _, err := os.Stat(stateDir); err == nil && !initForce {
		fmt.Printf("Directory already initialized. Use --force to reinitialize.\n")
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Prerequisites are reported, not enforced.
	if path, err := exec.NewRunner().LookPath(cfg.Boltz.Executable); err != nil {
		printStatus("⚠", fmt.Sprintf("%s not found on PATH (Boltz runs will fail)", cfg.Boltz.Executable), color.FgYellow)
	} else {
		printStatus("✓", "Boltz CLI found at "+path, color.FgGreen)
	}

	missing := []config.Credential{}
	for _, cred := range config.Credentials() {
		if cred.Source(cfg) == config.KeySourceNone {
			missing = append(missing, cred)
			printStatus("⚠", cred.EnvVar+" not set (you can set it later)", color.FgYellow)
		} else {
			printStatus("✓", cred.EnvVar+" is set", color.FgGreen)
		}
	}

	// Create directory structure
	layout := layoutFromConfig(cfg)
	for _, dir := range []string{stateDir, filepath.Join(stateDir, "logs"), layout.InputRoot, layout.OutputRoot} {
		if err := workspace.StageDirectory(dir, false); err != nil {
			return err
		}
	}
	printStatus("✓", "Created input, output and .foldcrew directories", color.FgGreen)

	db, err := openLedger(cfg)
	if err != nil {
		return fmt.Errorf("creating run ledger: %w", err)
	}
	db.Close()
	printStatus("✓", "Created run ledger", color.FgGreen)

	if err := updateGitignore(absPath, layout); err != nil {
		return fmt.Errorf("updating .gitignore: %w", err)
	}
	printStatus("✓", "Updated .gitignore with foldcrew entries", color.FgGreen)

	if initWithConfig {
		if err := createProjectConfig(absPath); err != nil {
			return fmt.Errorf("creating project config: %w", err)
		}
		printStatus("✓", "Created "+config.ProjectConfigName+" template", color.FgGreen)
	}

	fmt.Printf("\n%s foldcrew initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	if len(missing) > 0 {
		fmt.Println("  1. Set your API keys (or add them to .env):")
		for _, cred := range missing {
			fmt.Printf("     export %s=your-key-here\n", cred.EnvVar)
		}
		fmt.Println()
	}
	fmt.Println("  2. Run a prediction:")
	fmt.Println("     foldcrew run chains.fasta")
	fmt.Println()
	fmt.Println("  3. Learn more:")
	fmt.Println("     foldcrew --help")

	return nil
}

// updateGitignore adds foldcrew entries to .gitignore if not present
func updateGitignore(repoPath string, layout workspace.Layout) error {
	gitignorePath := filepath.Join(repoPath, ".gitignore")

	var existingContent string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existingContent = string(data)
	}

	entries := []string{
		".foldcrew/",
		".env",
		filepath.ToSlash(layout.InputRoot) + "/",
		filepath.ToSlash(layout.OutputRoot) + "/",
	}

	var missing []string
	for _, entry := range entries {
		if !strings.Contains(existingContent, entry) {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var newContent strings.Builder
	newContent.WriteString(existingContent)
	if len(existingContent) > 0 && !strings.HasSuffix(existingContent, "\n") {
		newContent.WriteString("\n")
	}
	newContent.WriteString("\n# foldcrew\n")
	for _, entry := range missing {
		newContent.WriteString(entry + "\n")
	}

	return os.WriteFile(gitignorePath, []byte(newContent.String()), 0644)
}

// createProjectConfig creates the .foldcrew.yaml template
func createProjectConfig(repoPath string) error {
	configPath := filepath.Join(repoPath, config.ProjectConfigName)

	if _, err := os.Stat(configPath); err == nil {
		return nil // Already exists, don't overwrite
	}

	template := `# foldcrew project configuration
# This file overrides defaults from ~/.config/foldcrew/config.yaml

# workspace:
#   input_root: input
#   output_root: output

# esmfold:
#   api_key: ${NVIDIA_NIM_API_KEY}
#   timeout: 5m

# boltz:
#   executable: boltz
#   devices: 1
#   use_msa_server: true
#   timeout: 2h

# oracle:
#   provider: rules   # rules, static, anthropic, bedrock, openai
#   static_models: [Boltz]

# selection:
#   drop_unknown: false
#   approval: auto    # auto, prompt, file
#   approval_timeout: 30m
`

	return os.WriteFile(configPath, []byte(template), 0644)
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
