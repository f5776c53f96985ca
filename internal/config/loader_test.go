package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("CG_TEST_HOST", "db.internal")

	cases := []struct {
		in   string
		want string
	}{
		{"host: ${CG_TEST_HOST:localhost}", "host: db.internal"},
		{"port: ${CG_TEST_MISSING:5432}", "port: 5432"},
		{"key: ${CG_TEST_MISSING:}", "key: "},
		{"raw: ${CG_TEST_MISSING}", "raw: ${CG_TEST_MISSING}"},
	}
	for _, tc := range cases {
		if got := expandEnv(tc.in); got != tc.want {
			t.Errorf("expandEnv(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLoadFrom_DefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	base := `
llm:
  outline_provider: openai
  content_provider: claude
  providers:
    openai:
      type: openai
      model: gpt-4o-mini
    claude:
      type: anthropic
      model: ${CG_TEST_MODEL:claude-default}
generation:
  cost: 4
`
	writeFile(t, filepath.Join(dir, "config.yaml"), base)
	writeFile(t, filepath.Join(dir, "config.test.yaml"), "generation:\n  content:\n    max_retries: 5\n")
	t.Setenv("APP_ENV", "test")
	t.Setenv("CG_TEST_MODEL", "claude-x")

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Generation.Cost != 4 {
		t.Errorf("cost = %d, want 4", cfg.Generation.Cost)
	}
	if cfg.Generation.Content.MaxRetries != 5 {
		t.Errorf("content.max_retries = %d, want 5 from env file", cfg.Generation.Content.MaxRetries)
	}
	if cfg.Generation.Outline.MaxDelay != 8*time.Second {
		t.Errorf("outline.max_delay = %v, want default 8s", cfg.Generation.Outline.MaxDelay)
	}
	p, ok := cfg.LLM.Provider("claude")
	if !ok || p.Type != ProviderTypeAnthropic || p.Model != "claude-x" {
		t.Errorf("unexpected claude provider: %+v (found=%v)", p, ok)
	}
}

func TestValidate_RejectsUnknownProvider(t *testing.T) {
	cfg := &Config{
		LLM: LLMConfig{
			OutlineProvider: "openai",
			ContentProvider: "missing",
			Providers:       map[string]ProviderConfig{"openai": {Type: "gemini"}},
		},
		Generation: GenerationConfig{Cost: 0},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"generation.cost", "unknown provider \"missing\"", "type \"gemini\""} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
