package config

import (
	"os"
	"path/filepath"
	"testing"
)

// chdirTemp moves the test into a fresh directory so Load() sees (or does
// not see) exactly the config.yaml the test laid down.
func chdirTemp(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})
	return tmpDir
}

func clearOracleEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENVIRONMENT", "ORACLE_PROVIDER", "ORACLE_ENDPOINT", "ORACLE_MODEL",
		"ORACLE_API_KEY", "ORACLE_MAX_TOKENS", "KICAD_SYMBOLS_DIR",
		"DRAFTSMITH_OUT_DIR", "DRAFTSMITH_MAX_ITERATIONS",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	clearOracleEnv(t)

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}
	if cfg.Oracle.Provider != "openai" {
		t.Errorf("expected default provider openai, got %s", cfg.Oracle.Provider)
	}
	if cfg.Oracle.Model != "gpt-4o" {
		t.Errorf("expected default model gpt-4o, got %s", cfg.Oracle.Model)
	}
	if cfg.Oracle.MaxTokens != 7000 {
		t.Errorf("expected default max tokens 7000, got %d", cfg.Oracle.MaxTokens)
	}
	if cfg.Generate.OutDir != "output" {
		t.Errorf("expected default out dir 'output', got %s", cfg.Generate.OutDir)
	}
	if cfg.Generate.MaxIterations != 3 {
		t.Errorf("expected default max iterations 3, got %d", cfg.Generate.MaxIterations)
	}
}

func TestLoad_YAMLWithEnvOverride(t *testing.T) {
	tmpDir := chdirTemp(t)
	clearOracleEnv(t)

	yamlContent := `
env: "test"
oracle:
  provider: "openai"
  model: "gpt-4o-mini"
  max_tokens: 5000
generate:
  out_dir: "build"
  max_iterations: 5
`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Env vars override YAML values.
	t.Setenv("ORACLE_MODEL", "gpt-4o")
	t.Setenv("ORACLE_API_KEY", "secret-key")

	cfg, err := Load("v")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Oracle.Model != "gpt-4o" {
		t.Errorf("expected model gpt-4o (from env), got %s", cfg.Oracle.Model)
	}
	if cfg.Oracle.MaxTokens != 5000 {
		t.Errorf("expected max tokens 5000 (from yaml), got %d", cfg.Oracle.MaxTokens)
	}
	if cfg.Oracle.APIKey != "secret-key" {
		t.Errorf("expected API key from env, got %q", cfg.Oracle.APIKey)
	}
	if cfg.Generate.OutDir != "build" {
		t.Errorf("expected out dir 'build', got %s", cfg.Generate.OutDir)
	}
}

func TestLoad_APIKeyNeverFromYAML(t *testing.T) {
	tmpDir := chdirTemp(t)
	clearOracleEnv(t)

	yamlContent := `
oracle:
  api_key: "leaked-from-yaml"
`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load("v")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Oracle.APIKey != "" {
		t.Errorf("API key must only come from env, got %q from yaml", cfg.Oracle.APIKey)
	}
}

func TestLoad_InvalidProvider(t *testing.T) {
	chdirTemp(t)
	clearOracleEnv(t)
	t.Setenv("ORACLE_PROVIDER", "carrier-pigeon")

	if _, err := Load("v"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestLoad_InvalidIterations(t *testing.T) {
	chdirTemp(t)
	clearOracleEnv(t)
	t.Setenv("DRAFTSMITH_MAX_ITERATIONS", "0")

	if _, err := Load("v"); err == nil {
		t.Error("expected error for zero max iterations")
	}
}
