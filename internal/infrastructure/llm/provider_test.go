package llm

import (
	"context"
	"testing"

	"content-gen-api/internal/config"
	"content-gen-api/internal/workflow/chain"
)

func testConfig(contentType string) *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			OutlineProvider: "openai",
			ContentProvider: "writer",
			Providers: map[string]config.ProviderConfig{
				"openai": {Type: config.ProviderTypeOpenAI, APIKey: "k", Model: "gpt-4o-mini"},
				"writer": {Type: contentType, APIKey: "k", Model: "claude-sonnet-4-5"},
			},
		},
	}
}

func TestNewContentProvider_SelectsByType(t *testing.T) {
	cfg := testConfig(config.ProviderTypeAnthropic)
	p, err := NewContentProvider(cfg, NewEinoFactory(cfg))
	if err != nil {
		t.Fatalf("NewContentProvider error: %v", err)
	}
	if _, ok := p.(*AnthropicContentProvider); !ok {
		t.Fatalf("provider = %T, want *AnthropicContentProvider", p)
	}

	cfg = testConfig(config.ProviderTypeOpenAI)
	p, err = NewContentProvider(cfg, NewEinoFactory(cfg))
	if err != nil {
		t.Fatalf("NewContentProvider error: %v", err)
	}
	if _, ok := p.(*chain.ContentChain); !ok {
		t.Fatalf("provider = %T, want *chain.ContentChain", p)
	}

	cfg = testConfig("grpc")
	if _, err := NewContentProvider(cfg, NewEinoFactory(cfg)); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}

func TestEinoFactory_RejectsNonOpenAIProvider(t *testing.T) {
	cfg := testConfig(config.ProviderTypeAnthropic)
	f := NewEinoFactory(cfg)
	if _, err := f.Get(context.Background(), "writer"); err == nil {
		t.Fatal("expected error for anthropic provider")
	}
	if _, err := f.Get(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
