package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearMyclawEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"MYCLAW_PROVIDER", "MYCLAW_MODEL", "MYCLAW_BASE_URL",
		"MYCLAW_MODEL_TIMEOUT_MS", "MYCLAW_MODEL_RETRY_COUNT",
		"MYCLAW_MAX_STEPS", "MYCLAW_CONTEXT_WINDOW_SIZE",
		"MYCLAW_ESLINT_ENABLED", "MYCLAW_HOME",
		"OPENAI_MODEL", "OPENAI_BASE_URL", "ANTHROPIC_MODEL", "ANTHROPIC_BASE_URL",
	}
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadAppliesDefaultsWithNoFileOrEnv(t *testing.T) {
	clearMyclawEnv(t)
	t.Setenv("MYCLAW_HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, err := Load("/work/proj")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != "mock" || cfg.Model != "gpt-4o-mini" {
		t.Fatalf("expected defaults to apply, got %+v", cfg)
	}
	if cfg.Runtime.MaxSteps != 8 || cfg.Runtime.ContextWindowSize != 20 {
		t.Fatalf("expected default runtime tunables, got %+v", cfg.Runtime)
	}
	if !cfg.ESLintEnabled() {
		t.Fatal("expected eslint to default to enabled")
	}
	if cfg.Workspace != "/work/proj" {
		t.Fatalf("expected workspace to be set from argument, got %q", cfg.Workspace)
	}
}

func TestLoadFileOverlayBeatsDefaults(t *testing.T) {
	clearMyclawEnv(t)
	home := t.TempDir()
	t.Setenv("MYCLAW_HOME", home)
	cwd := t.TempDir()
	t.Chdir(cwd)

	yaml := "provider: anthropic\nmodel: claude-test\nruntime:\n  maxSteps: 5\n"
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := Load("/work")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != "anthropic" || cfg.Model != "claude-test" {
		t.Fatalf("expected file overlay to win over defaults, got %+v", cfg)
	}
	if cfg.Runtime.MaxSteps != 5 {
		t.Fatalf("expected maxSteps from file, got %d", cfg.Runtime.MaxSteps)
	}
}

func TestLoadEnvOverlayBeatsFile(t *testing.T) {
	clearMyclawEnv(t)
	home := t.TempDir()
	t.Setenv("MYCLAW_HOME", home)
	cwd := t.TempDir()
	t.Chdir(cwd)

	yaml := "provider: anthropic\nmodel: claude-test\n"
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Setenv("MYCLAW_PROVIDER", "openai")

	cfg, err := Load("/work")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != "openai" {
		t.Fatalf("expected env to win over file, got provider=%q", cfg.Provider)
	}
	if cfg.Model != "claude-test" {
		t.Fatalf("expected file's model to survive since env didn't override it, got %q", cfg.Model)
	}
}

func TestLoadOpenAIEnvVarsSelectProviderAndOverrideModel(t *testing.T) {
	clearMyclawEnv(t)
	t.Setenv("MYCLAW_HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_BASE_URL", "https://x/v1/")
	t.Setenv("OPENAI_MODEL", "gpt-test")

	cfg, err := Load("/work")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != "openai" {
		t.Fatalf("expected OPENAI_* vars to select the openai provider, got %q", cfg.Provider)
	}
	if cfg.Model != "gpt-test" {
		t.Fatalf("expected OPENAI_MODEL to override config.model, got %q", cfg.Model)
	}
	if cfg.BaseURL != "https://x/v1/" {
		t.Fatalf("expected OPENAI_BASE_URL to override config.baseURL, got %q", cfg.BaseURL)
	}
}

func TestLoadAnthropicModelOverridesConfigModel(t *testing.T) {
	clearMyclawEnv(t)
	home := t.TempDir()
	t.Setenv("MYCLAW_HOME", home)
	t.Chdir(t.TempDir())

	yaml := "provider: anthropic\nmodel: claude-base\n"
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Setenv("ANTHROPIC_MODEL", "claude-env")

	cfg, err := Load("/work")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != "anthropic" {
		t.Fatalf("expected config file's provider to survive, got %q", cfg.Provider)
	}
	if cfg.Model != "claude-env" {
		t.Fatalf("expected ANTHROPIC_MODEL to win over config.model, got %q", cfg.Model)
	}
}

func TestLoadEnvCanExplicitlyDisableESLint(t *testing.T) {
	clearMyclawEnv(t)
	t.Setenv("MYCLAW_HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("MYCLAW_ESLINT_ENABLED", "false")

	cfg, err := Load("/work")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ESLintEnabled() {
		t.Fatal("expected env override to disable eslint despite defaulting to enabled")
	}
}

func TestMergeTreatsEmptyStringAsUnset(t *testing.T) {
	base := Config{Provider: "mock", Model: "base-model"}
	override := Config{Provider: "", Model: "override-model"}

	got := merge(base, override)
	if got.Provider != "mock" {
		t.Fatalf("expected empty override field to leave base untouched, got %q", got.Provider)
	}
	if got.Model != "override-model" {
		t.Fatalf("expected non-empty override field to win, got %q", got.Model)
	}
}
