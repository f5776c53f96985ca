package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestFromContextCarriesRequestFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "debug", "json")

	ctx := WithContext(context.Background(), RequestIDKey, "req-1")
	ctx = WithContext(ctx, UserIDKey, "user-1")
	ctx = WithContext(ctx, ContentIDKey, "content-1")

	Error(ctx, "settlement failed", errors.New("boom"), "cost", 4)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	for key, want := range map[string]any{
		"request_id": "req-1",
		"user_id":    "user-1",
		"content_id": "content-1",
		"error":      "boom",
		"msg":        "settlement failed",
	} {
		if line[key] != want {
			t.Fatalf("%s = %v, want %v", key, line[key], want)
		}
	}
	if line["cost"] != float64(4) {
		t.Fatalf("cost = %v, want 4", line["cost"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug":   "DEBUG",
		"WARNING": "WARN",
		"error":   "ERROR",
		"bogus":   "INFO",
	}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
