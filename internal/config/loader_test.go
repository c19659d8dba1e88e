package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoader_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	dir := t.TempDir()
	chdir(t, dir)

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Planner.Model != "gemini-pro" {
		t.Errorf("Planner.Model = %q, want gemini-pro", cfg.Planner.Model)
	}
	if !cfg.Planner.DropUnknownSteps {
		t.Error("Planner.DropUnknownSteps should default to true")
	}
	if cfg.Jobs.MaxConcurrent != 5 {
		t.Errorf("Jobs.MaxConcurrent = %d, want 5", cfg.Jobs.MaxConcurrent)
	}
	if cfg.Jobs.Timeout != time.Hour {
		t.Errorf("Jobs.Timeout = %v, want 1h", cfg.Jobs.Timeout)
	}
	if cfg.Storage.MaxFileSize != 100*1024*1024 {
		t.Errorf("Storage.MaxFileSize = %d", cfg.Storage.MaxFileSize)
	}
	if len(cfg.Storage.AllowedFormats) != 6 {
		t.Errorf("Storage.AllowedFormats = %v", cfg.Storage.AllowedFormats)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoader_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("VISUALIX_SERVER_PORT", "9090")
	t.Setenv("VISUALIX_LOG_LEVEL", "debug")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GEMINI_MODEL", "gemini-1.5-flash")

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Planner.APIKey != "test-key" {
		t.Errorf("Planner.APIKey = %q, want test-key", cfg.Planner.APIKey)
	}
	if cfg.Planner.Model != "gemini-1.5-flash" {
		t.Errorf("Planner.Model = %q", cfg.Planner.Model)
	}
}

func TestLoader_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	content := `
server:
  port: 7000
jobs:
  max_concurrent: 2
  store: json
storage:
  allowed_formats: [".mp4"]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader().WithConfigFile(path)
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7000 || cfg.Jobs.MaxConcurrent != 2 || cfg.Jobs.Store != "json" {
		t.Errorf("file values not applied: %+v %+v", cfg.Server, cfg.Jobs)
	}
	if len(cfg.Storage.AllowedFormats) != 1 {
		t.Errorf("AllowedFormats = %v", cfg.Storage.AllowedFormats)
	}
	if loader.ConfigFileUsed() != path {
		t.Errorf("ConfigFileUsed() = %q", loader.ConfigFileUsed())
	}
}

func TestLoader_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLoader().WithConfigFile(path).Load(); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestWriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Defaults()
	cfg.Planner.APIKey = "AIza-secret"
	cfg.Server.Port = 8123

	if err := WriteFile(path, cfg); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "AIza-secret") {
		t.Error("API key must not be written to disk")
	}

	loaded, err := NewLoader().WithConfigFile(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Server.Port != 8123 {
		t.Errorf("Server.Port = %d, want 8123", loaded.Server.Port)
	}
	if loaded.Cleanup.Interval != time.Hour {
		t.Errorf("Cleanup.Interval = %v", loaded.Cleanup.Interval)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })
}
