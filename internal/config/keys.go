package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when a required credential is not configured.
var ErrNoAPIKey = errors.New("no API key configured")

// Credential names a secret and the environment variable that overrides it.
type Credential struct {
	Name   string
	EnvVar string
	get    func(*Config) string
}

var (
	// NIMKey authorizes calls to the hosted ESMFold endpoint.
	NIMKey = Credential{Name: "NVIDIA NIM", EnvVar: "NVIDIA_NIM_API_KEY", get: func(c *Config) string { return c.ESMFold.APIKey }}
	// AnthropicKey authorizes the anthropic oracle provider.
	AnthropicKey = Credential{Name: "Anthropic", EnvVar: "ANTHROPIC_API_KEY", get: func(c *Config) string { return c.Anthropic.APIKey }}
	// OpenAIKey authorizes the openai oracle provider.
	OpenAIKey = Credential{Name: "OpenAI", EnvVar: "OPENAI_API_KEY", get: func(c *Config) string { return c.OpenAI.APIKey }}
)

// Credentials lists every credential foldcrew knows about.
func Credentials() []Credential {
	return []Credential{NIMKey, AnthropicKey, OpenAIKey}
}

// Lookup returns the credential value.
// It checks in order: environment variable, config file.
func (k Credential) Lookup(cfg *Config) (string, error) {
	if key := os.Getenv(k.EnvVar); key != "" {
		return key, nil
	}

	if cfg != nil {
		// Expand any remaining env var references
		key := os.ExpandEnv(k.get(cfg))
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, nil
		}
	}

	return "", fmt.Errorf("%w: set %s", ErrNoAPIKey, k.EnvVar)
}

// Source returns where the credential was loaded from.
func (k Credential) Source(cfg *Config) KeySource {
	if os.Getenv(k.EnvVar) != "" {
		return KeySourceEnv
	}

	if cfg != nil {
		key := os.ExpandEnv(k.get(cfg))
		if key != "" && !strings.HasPrefix(key, "${") {
			return KeySourceConfig
		}
	}

	return KeySourceNone
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)
