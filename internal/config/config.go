// Package config loads the runtime configuration file. YAML is the primary
// format; JSON is accepted for generated configs. Unknown fields are errors.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type StoreBackend string

const (
	StoreMemory StoreBackend = "memory"
	StoreFile   StoreBackend = "file"
	StoreSQLite StoreBackend = "sqlite"
)

type LLMConfig struct {
	Provider  string `json:"provider,omitempty" yaml:"provider,omitempty"`
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// FastModel serves structured assessments and composition; SearchModel
	// serves the grounded research call.
	FastModel   string `json:"fast_model,omitempty" yaml:"fast_model,omitempty"`
	SearchModel string `json:"search_model,omitempty" yaml:"search_model,omitempty"`
}

type StoreConfig struct {
	Backend StoreBackend `json:"backend" yaml:"backend"`
	// Path is the checkpoint directory for the file backend or the database
	// file for the sqlite backend.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

type Config struct {
	Version int         `json:"version" yaml:"version"`
	LLM     LLMConfig   `json:"llm,omitempty" yaml:"llm,omitempty"`
	Store   StoreConfig `json:"store,omitempty" yaml:"store,omitempty"`
	Verbose bool        `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := decodeJSONStrict(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := decodeYAMLStrict(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func decodeJSONStrict(b []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return fmt.Errorf("json: multiple top-level values are not allowed")
		}
		return err
	}
	return nil
}

func decodeYAMLStrict(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return fmt.Errorf("yaml: multiple documents are not allowed")
		}
		return err
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if strings.TrimSpace(cfg.LLM.Provider) == "" {
		cfg.LLM.Provider = "google"
	}
	if strings.TrimSpace(cfg.LLM.APIKeyEnv) == "" {
		cfg.LLM.APIKeyEnv = "GEMINI_API_KEY"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreMemory
	}
}

func validate(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version %d", cfg.Version)
	}
	switch cfg.Store.Backend {
	case StoreMemory:
	case StoreFile, StoreSQLite:
		if strings.TrimSpace(cfg.Store.Path) == "" {
			return fmt.Errorf("store backend %q requires a path", cfg.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	return nil
}
