package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{"NVIDIA_NIM_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "OPENAI_BASE_URL", "ANTHROPIC_BASE_URL"} {
		t.Setenv(env, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Workspace.InputRoot != "input" || cfg.Workspace.OutputRoot != "output" {
		t.Errorf("unexpected workspace roots: %+v", cfg.Workspace)
	}

	if !cfg.RunID.UniqueSuffix {
		t.Error("expected run_id.unique_suffix to be true")
	}

	if cfg.ESMFold.Timeout != 5*time.Minute {
		t.Errorf("expected esmfold timeout 5m, got %v", cfg.ESMFold.Timeout)
	}

	if cfg.Boltz.Executable != "boltz" {
		t.Errorf("expected boltz executable 'boltz', got %q", cfg.Boltz.Executable)
	}

	if cfg.Boltz.Devices != 1 {
		t.Errorf("expected boltz devices 1, got %d", cfg.Boltz.Devices)
	}

	if !cfg.Boltz.UseMSAServer {
		t.Error("expected boltz.use_msa_server to be true")
	}

	if cfg.Boltz.SuccessMarker != "Number of failed examples: 0" {
		t.Errorf("unexpected success marker %q", cfg.Boltz.SuccessMarker)
	}

	if cfg.Oracle.Provider != "rules" {
		t.Errorf("expected oracle provider 'rules', got %q", cfg.Oracle.Provider)
	}

	if cfg.Selection.Approval != "auto" {
		t.Errorf("expected approval 'auto', got %q", cfg.Selection.Approval)
	}

	if cfg.Selection.DropUnknown {
		t.Error("expected selection.drop_unknown to be false")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	clearCredentialEnv(t)

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
workspace:
  output_root: /data/out
esmfold:
  api_key: nvapi-file-key
  timeout: 90s
boltz:
  devices: 2
  use_msa_server: false
oracle:
  provider: static
  static_models: [boltz]
selection:
  drop_unknown: true
  approval: file
log:
  format: json
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Workspace.OutputRoot != "/data/out" {
		t.Errorf("expected output_root '/data/out', got %q", cfg.Workspace.OutputRoot)
	}

	if cfg.Workspace.InputRoot != "input" {
		t.Errorf("expected default input_root, got %q", cfg.Workspace.InputRoot)
	}

	if cfg.ESMFold.APIKey != "nvapi-file-key" {
		t.Errorf("expected api_key 'nvapi-file-key', got %q", cfg.ESMFold.APIKey)
	}

	if cfg.ESMFold.Timeout != 90*time.Second {
		t.Errorf("expected esmfold timeout 90s, got %v", cfg.ESMFold.Timeout)
	}

	if cfg.Boltz.Devices != 2 {
		t.Errorf("expected devices 2, got %d", cfg.Boltz.Devices)
	}

	if cfg.Boltz.UseMSAServer {
		t.Error("expected boltz.use_msa_server to be false")
	}

	if cfg.Boltz.Timeout != 2*time.Hour {
		t.Errorf("expected default boltz timeout 2h, got %v", cfg.Boltz.Timeout)
	}

	if !reflect.DeepEqual(cfg.Oracle.StaticModels, []string{"boltz"}) {
		t.Errorf("expected static_models [boltz], got %v", cfg.Oracle.StaticModels)
	}

	if !cfg.Selection.DropUnknown || cfg.Selection.Approval != "file" {
		t.Errorf("unexpected selection config: %+v", cfg.Selection)
	}
}

func TestLoadFromPathEnvOverride(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("NVIDIA_NIM_API_KEY", "nvapi-env-key")
	t.Setenv("FOLDCREW_BOLTZ_EXECUTABLE", "/opt/boltz/bin/boltz")

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("esmfold:\n  api_key: nvapi-file-key\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.ESMFold.APIKey != "nvapi-env-key" {
		t.Errorf("expected env api key, got %q", cfg.ESMFold.APIKey)
	}

	if cfg.Boltz.Executable != "/opt/boltz/bin/boltz" {
		t.Errorf("expected env executable, got %q", cfg.Boltz.Executable)
	}
}

func TestLoadFromPathBaseURLsStaySeparate(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("OPENAI_BASE_URL", "http://localhost:11434/v1")

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("oracle:\n  provider: anthropic\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.OpenAI.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("expected openai base url from env, got %q", cfg.OpenAI.BaseURL)
	}
	if cfg.Anthropic.BaseURL != "" {
		t.Errorf("expected empty anthropic base url, got %q", cfg.Anthropic.BaseURL)
	}
}

func TestLoadFromPathInvalid(t *testing.T) {
	clearCredentialEnv(t)

	tests := []struct {
		name    string
		content string
	}{
		{"bad provider", "oracle:\n  provider: crystal-ball\n"},
		{"bad approval", "selection:\n  approval: maybe\n"},
		{"bad log format", "log:\n  format: xml\n"},
		{"zero devices", "boltz:\n  devices: 0\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tc.content), 0644); err != nil {
				t.Fatalf("failed to write config file: %v", err)
			}
			if _, err := LoadFromPath(configPath); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadProjectConfig(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ProjectConfigName), []byte("boltz:\n  devices: 4\n"), 0644); err != nil {
		t.Fatalf("failed to write project config: %v", err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("failed to create nested dir: %v", err)
	}
	t.Chdir(nested)

	if got := GetProjectConfigPath(); filepath.Base(got) != ProjectConfigName {
		t.Errorf("expected project config to be found, got %q", got)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Boltz.Devices != 4 {
		t.Errorf("expected project devices 4, got %d", cfg.Boltz.Devices)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("FOLDCREW_DOTENV_TEST=from-dotenv\n"), 0644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	t.Setenv("FOLDCREW_DOTENV_TEST", "")
	os.Unsetenv("FOLDCREW_DOTENV_TEST")

	if err := LoadDotEnv(envPath); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("FOLDCREW_DOTENV_TEST"); got != "from-dotenv" {
		t.Errorf("expected 'from-dotenv', got %q", got)
	}

	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing .env should not be an error: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearCredentialEnv(t)

	path := filepath.Join(t.TempDir(), "foldcrew", "config.yaml")
	cfg := Default()
	cfg.Boltz.Devices = 3
	cfg.ESMFold.Timeout = 45 * time.Second
	cfg.Oracle.Provider = "static"
	cfg.Oracle.StaticModels = []string{"esmfold", "boltz"}

	if err := SaveToPath(cfg, path); err != nil {
		t.Fatalf("SaveToPath failed: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.Boltz.Devices != 3 || loaded.ESMFold.Timeout != 45*time.Second {
		t.Errorf("unexpected round trip: devices=%d timeout=%v", loaded.Boltz.Devices, loaded.ESMFold.Timeout)
	}
	if !reflect.DeepEqual(loaded.Oracle.StaticModels, []string{"esmfold", "boltz"}) {
		t.Errorf("unexpected static models %v", loaded.Oracle.StaticModels)
	}
}

func TestGetSetValue(t *testing.T) {
	cfg := Default()

	if err := cfg.SetValue("boltz.devices", "8"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	if cfg.Boltz.Devices != 8 {
		t.Errorf("expected devices 8, got %d", cfg.Boltz.Devices)
	}

	if err := cfg.SetValue("selection.approval_timeout", "10m"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	if got, _ := cfg.GetValue("selection.approval_timeout"); got != "10m0s" {
		t.Errorf("expected '10m0s', got %q", got)
	}

	if err := cfg.SetValue("oracle.static_models", "esmfold, boltz,"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	if got, _ := cfg.GetValue("oracle.static_models"); got != "esmfold,boltz" {
		t.Errorf("expected 'esmfold,boltz', got %q", got)
	}

	if err := cfg.SetValue("boltz.devices", "many"); err == nil {
		t.Error("expected parse error for non-integer devices")
	}

	if _, err := cfg.GetValue("nope.nothing"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("expected ErrUnknownKey, got %v", err)
	}

	if !IsSecret("esmfold.api_key") || IsSecret("esmfold.endpoint") {
		t.Error("unexpected secret classification")
	}

	keys := Keys()
	if len(keys) != len(fields) {
		t.Errorf("expected %d keys, got %d", len(fields), len(keys))
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")

	result := expandEnv("${TEST_VAR}")
	if result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}

	result = expandEnv("prefix-${TEST_VAR}-suffix")
	if result != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	dir := getUserConfigDir()
	expected := "/custom/config/foldcrew"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}
