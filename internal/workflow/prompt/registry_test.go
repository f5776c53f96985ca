package prompt

import (
	"context"
	"strings"
	"testing"
)

func TestRegistry_FormatOutlineFull(t *testing.T) {
	r := NewRegistry()
	msgs, err := r.Format(context.Background(), PromptOutlineFullV1, map[string]any{
		"topic":        "Remote onboarding for SaaS teams",
		"audience":     "marketers",
		"industry":     "saas",
		"tone":         "friendly",
		"word_count":   800,
		"format":       "guide",
		"language":     "en",
		"keywords":     "onboarding, remote",
		"geo":          "global",
		"media":        "none",
		"requirements": "- include statistics",
	})
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if !strings.Contains(msgs[0].Content, `"sections": [`) {
		t.Fatalf("system prompt lost literal braces: %s", msgs[0].Content)
	}
	if !strings.Contains(msgs[1].Content, "Remote onboarding for SaaS teams") || !strings.Contains(msgs[1].Content, "800") {
		t.Fatalf("user prompt not rendered: %s", msgs[1].Content)
	}
}

func TestRegistry_AllTemplatesLoad(t *testing.T) {
	r := NewRegistry()
	for _, id := range []PromptID{PromptOutlineFullV1, PromptOutlineSimplifiedV1, PromptContentV1} {
		if _, err := r.ChatTemplate(id); err != nil {
			t.Fatalf("ChatTemplate(%s) error: %v", id, err)
		}
	}
	if _, err := r.ChatTemplate("missing_v1"); err == nil {
		t.Fatal("expected error for unknown prompt id")
	}
}
