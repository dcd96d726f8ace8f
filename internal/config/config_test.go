package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
version: 1
llm:
  provider: google
  fast_model: gemini-2.0-flash
  search_model: gemini-2.5-flash
store:
  backend: sqlite
  path: /tmp/checkpoints.db
verbose: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.FastModel != "gemini-2.0-flash" || cfg.LLM.SearchModel != "gemini-2.5-flash" {
		t.Fatalf("models = %+v", cfg.LLM)
	}
	if cfg.Store.Backend != StoreSQLite || cfg.Store.Path != "/tmp/checkpoints.db" {
		t.Fatalf("store = %+v", cfg.Store)
	}
	if !cfg.Verbose {
		t.Fatal("verbose not set")
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
  "version": 1,
  "store": {"backend": "file", "path": "/tmp/checkpoints"}
}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Backend != StoreFile {
		t.Fatalf("backend = %q", cfg.Store.Backend)
	}
	// Defaults fill in the rest.
	if cfg.LLM.Provider != "google" || cfg.LLM.APIKeyEnv != "GEMINI_API_KEY" {
		t.Fatalf("llm defaults = %+v", cfg.LLM)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "config.yaml", "version: 1\nmystery: true\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadRejectsPathlessDurableBackend(t *testing.T) {
	path := writeConfig(t, "config.yaml", "version: 1\nstore:\n  backend: file\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "requires a path") {
		t.Fatalf("expected path error, got %v", err)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, "config.yaml", "version: 1\nstore:\n  backend: redis\n  path: x\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Version != 1 || cfg.Store.Backend != StoreMemory {
		t.Fatalf("defaults = %+v", cfg)
	}
}
