// Package config resolves the effective runtime configuration: hardcoded
// defaults, overridden by an optional on-disk YAML file, overridden by
// environment variables — the generalization of the teacher's
// dotenv-only config/config.go loader to the full Config surface spec.md
// §6 names.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nextlevelbuilder/myclaw/internal/persistence"
)

// ESLintCheck configures the async check gate's optional ESLint pass.
// Enabled is a pointer so a file or env override can explicitly disable
// it, distinct from simply not mentioning it (which leaves the inherited
// value alone).
type ESLintCheck struct {
	Enabled *bool `yaml:"enabled"`
}

// Checks groups the async check gate's per-linter settings.
type Checks struct {
	ESLint ESLintCheck `yaml:"eslint"`
}

// Runtime holds the turn engine's tunables.
type Runtime struct {
	ModelTimeoutMs    int    `yaml:"modelTimeoutMs"`
	ModelRetryCount   int    `yaml:"modelRetryCount"`
	MaxSteps          int    `yaml:"maxSteps"`
	ContextWindowSize int    `yaml:"contextWindowSize"`
	Checks            Checks `yaml:"checks"`
}

// Review holds the review settings: a per-extension command mapping,
// enabled only when Enabled is explicitly set true. The settings are
// loaded, merged and shown by /config; nothing in this module runs a
// review pass from them.
type Review struct {
	Enabled *bool             `yaml:"enabled"`
	Tools   map[string]string `yaml:"tools"`
}

// Config is the fully-resolved effective configuration for one run.
type Config struct {
	Provider   string  `yaml:"provider"`
	Model      string  `yaml:"model"`
	BaseURL    string  `yaml:"baseURL"`
	Workspace  string  `yaml:"workspace"`
	HomeDir    string  `yaml:"homeDir"`
	MemoryFile string  `yaml:"memoryFile"`
	Runtime    Runtime `yaml:"runtime"`
	Review     Review  `yaml:"review"`
}

// Defaults returns the hardcoded baseline config, matching spec.md §6's
// stated defaults.
func Defaults() Config {
	return Config{
		Provider: "mock",
		Model:    "gpt-4o-mini",
		BaseURL:  "https://api.openai.com/v1",
		Runtime: Runtime{
			ModelTimeoutMs:    45000,
			ModelRetryCount:   1,
			MaxSteps:          8,
			ContextWindowSize: 20,
			Checks:            Checks{ESLint: ESLintCheck{Enabled: boolPtr(true)}},
		},
	}
}

// ESLintEnabled reports the effective eslint-check setting, defaulting
// to true if somehow left unset.
func (c Config) ESLintEnabled() bool {
	return c.Runtime.Checks.ESLint.Enabled == nil || *c.Runtime.Checks.ESLint.Enabled
}

// ReviewEnabled reports the effective review-pass setting, defaulting to
// false if unset.
func (c Config) ReviewEnabled() bool {
	return c.Review.Enabled != nil && *c.Review.Enabled
}

func boolPtr(b bool) *bool { return &b }

// fileConfigName is the on-disk config file looked for under homeDir and,
// as a local override, the current working directory.
const fileConfigName = "config.yaml"

// Load resolves the effective config: defaults, overridden by
// <homeDir>/config.yaml (if present), overridden by a local ./config.yaml
// (if present), overridden by environment variables. Empty-string values
// are treated as unset at every layer, per spec.md §6's merge rule.
func Load(workspace string) (Config, error) {
	cfg := Defaults()
	cfg.Workspace = workspace

	homeDir, err := persistence.HomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home dir: %w", err)
	}
	cfg.HomeDir = homeDir
	cfg.MemoryFile = filepath.Join(homeDir, "memory.md")

	// <homeDir>/.env loads first, then the local .env. loadEnvFile never
	// clobbers an already-set variable, so for a key set in both files the
	// <homeDir>/.env value wins, and the process environment beats both.
	loadEnvFile(filepath.Join(homeDir, ".env"))
	loadEnvFile(filepath.Join(".", ".env"))

	if fileCfg, ok, err := loadFile(filepath.Join(homeDir, fileConfigName)); err != nil {
		return Config{}, err
	} else if ok {
		cfg = merge(cfg, fileCfg)
	}
	if fileCfg, ok, err := loadFile(fileConfigName); err != nil {
		return Config{}, err
	} else if ok {
		cfg = merge(cfg, fileCfg)
	}

	cfg = merge(cfg, fromEnv())
	return cfg, nil
}

func loadFile(path string) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, false, nil
		}
		return Config{}, false, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, false, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, true, nil
}

// fromEnv builds an overlay Config from environment variables. Unset
// fields are left at their zero value so merge treats them as unset.
func fromEnv() Config {
	var cfg Config
	cfg.Provider = os.Getenv("MYCLAW_PROVIDER")
	cfg.Model = os.Getenv("MYCLAW_MODEL")
	cfg.BaseURL = os.Getenv("MYCLAW_BASE_URL")
	cfg.Runtime.ModelTimeoutMs = envInt("MYCLAW_MODEL_TIMEOUT_MS")
	cfg.Runtime.ModelRetryCount = envInt("MYCLAW_MODEL_RETRY_COUNT")
	cfg.Runtime.MaxSteps = envInt("MYCLAW_MAX_STEPS")
	cfg.Runtime.ContextWindowSize = envInt("MYCLAW_CONTEXT_WINDOW_SIZE")
	if v, ok := envBool("MYCLAW_ESLINT_ENABLED"); ok {
		cfg.Runtime.Checks.ESLint.Enabled = &v
	}
	applyProviderEnv(&cfg, "openai", "OPENAI_MODEL", "OPENAI_BASE_URL")
	applyProviderEnv(&cfg, "anthropic", "ANTHROPIC_MODEL", "ANTHROPIC_BASE_URL")
	return cfg
}

// applyProviderEnv overlays a provider-specific model/baseURL pair onto cfg,
// per spec.md's resolved Open Question: config.model is the base, the
// provider-specific env var wins over it when set. Setting either var with
// MYCLAW_PROVIDER unset also selects that provider, so OPENAI_MODEL /
// OPENAI_BASE_URL alone are enough to route a run at OpenAI.
func applyProviderEnv(cfg *Config, provider, modelKey, baseURLKey string) {
	if v := os.Getenv(modelKey); v != "" {
		cfg.Model = v
		if cfg.Provider == "" {
			cfg.Provider = provider
		}
	}
	if v := os.Getenv(baseURLKey); v != "" {
		cfg.BaseURL = v
		if cfg.Provider == "" {
			cfg.Provider = provider
		}
	}
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// merge overlays non-empty/non-zero fields of override onto base.
// Pointer-typed bool fields (ESLint.Enabled, Review.Enabled) overlay
// whenever non-nil, so a file or env layer can explicitly disable
// something the layer below enabled.
func merge(base, override Config) Config {
	if override.Provider != "" {
		base.Provider = override.Provider
	}
	if override.Model != "" {
		base.Model = override.Model
	}
	if override.BaseURL != "" {
		base.BaseURL = override.BaseURL
	}
	if override.Workspace != "" {
		base.Workspace = override.Workspace
	}
	if override.HomeDir != "" {
		base.HomeDir = override.HomeDir
	}
	if override.MemoryFile != "" {
		base.MemoryFile = override.MemoryFile
	}
	if override.Runtime.ModelTimeoutMs != 0 {
		base.Runtime.ModelTimeoutMs = override.Runtime.ModelTimeoutMs
	}
	if override.Runtime.ModelRetryCount != 0 {
		base.Runtime.ModelRetryCount = override.Runtime.ModelRetryCount
	}
	if override.Runtime.MaxSteps != 0 {
		base.Runtime.MaxSteps = override.Runtime.MaxSteps
	}
	if override.Runtime.ContextWindowSize != 0 {
		base.Runtime.ContextWindowSize = override.Runtime.ContextWindowSize
	}
	if override.Runtime.Checks.ESLint.Enabled != nil {
		base.Runtime.Checks.ESLint.Enabled = override.Runtime.Checks.ESLint.Enabled
	}
	if override.Review.Enabled != nil {
		base.Review.Enabled = override.Review.Enabled
	}
	if len(override.Review.Tools) > 0 {
		base.Review.Tools = override.Review.Tools
	}
	return base
}

// loadEnvFile reads a dotenv-style file and sets environment variables
// not already present, kept verbatim in idiom from the teacher's
// config/config.go.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
