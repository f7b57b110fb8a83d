package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/foldcrew/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify foldcrew configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Keys use dot notation, e.g. boltz.devices or selection.approval.
List values (oracle.static_models) are comma-separated.

Configuration is stored at ~/.config/foldcrew/config.yaml
Project-specific overrides can be placed in .foldcrew.yaml
Credentials may also come from NVIDIA_NIM_API_KEY, ANTHROPIC_API_KEY
and OPENAI_API_KEY, or a .env file in the current directory.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cmd.OutOrStdout(), cfg)
			return nil
		case 1:
			return displayConfigKey(cmd.OutOrStdout(), cfg, args[0])
		default:
			return setConfigKey(cmd.OutOrStdout(), cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(w io.Writer, cfg *config.Config) {
	for _, key := range config.Keys() {
		value, _ := cfg.GetValue(key)
		if config.IsSecret(key) {
			value = config.MaskAPIKey(value)
		}
		fmt.Fprintf(w, "%s: %s\n", key, value)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "credentials:")
	for _, cred := range config.Credentials() {
		fmt.Fprintf(w, "  %s (%s): %s\n", cred.Name, cred.EnvVar, cred.Source(cfg))
	}
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(w io.Writer, cfg *config.Config, key string) error {
	value, err := cfg.GetValue(key)
	if err != nil {
		return err
	}
	if config.IsSecret(key) {
		value = config.MaskAPIKey(value)
	}
	fmt.Fprintln(w, value)
	return nil
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(w io.Writer, cfg *config.Config, key, value string) error {
	if err := cfg.SetValue(key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	if config.IsSecret(key) {
		value = config.MaskAPIKey(value)
	}
	fmt.Fprintf(w, "Set %s = %s\n", key, value)
	return nil
}
