package node

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"content-gen-api/pkg/retry"
)

func TestClassifyLLMError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want retry.Class
	}{
		{"unauthorized status", &ProviderError{Provider: "openai", StatusCode: 401, Err: errors.New("bad key")}, retry.Fatal},
		{"forbidden status", &ProviderError{Provider: "openai", StatusCode: 403, Err: errors.New("nope")}, retry.Fatal},
		{"rate limited", &ProviderError{Provider: "openai", StatusCode: 429, Err: errors.New("slow down")}, retry.FastFail},
		{"unavailable", &ProviderError{Provider: "anthropic", StatusCode: 503, Err: errors.New("down")}, retry.FastFail},
		{"anthropic overloaded", &ProviderError{Provider: "anthropic", StatusCode: 529, Err: errors.New("overloaded")}, retry.FastFail},
		{"server error", &ProviderError{Provider: "openai", StatusCode: 500, Err: errors.New("boom")}, retry.Retryable},
		{"request timeout", &ProviderError{Provider: "openai", StatusCode: 408, Err: errors.New("timeout")}, retry.Retryable},
		{"status in message", errors.New("error, status code: 429, message: Rate limit reached"), retry.FastFail},
		{"auth in message", errors.New("Incorrect API key provided"), retry.Fatal},
		{"overload in message", errors.New("the model is overloaded, try later"), retry.FastFail},
		{"malformed output", &MalformedOutputError{Reason: "unrecoverable json"}, retry.Retryable},
		{"malformed output naming auth", &MalformedOutputError{Reason: "sections[0].title: unauthorized readers, status 401"}, retry.Retryable},
		{"malformed output naming rate limit", fmt.Errorf("outline: %w", &MalformedOutputError{Reason: "rate limit exceeded section"}), retry.Retryable},
		{"malformed output naming overload", &MalformedOutputError{Reason: "server overloaded 503"}, retry.Retryable},
		{"network", errors.New("read tcp: connection reset by peer"), retry.Retryable},
		{"deadline", context.DeadlineExceeded, retry.Retryable},
		{"canceled", fmt.Errorf("call: %w", context.Canceled), retry.Fatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyLLMError(tt.err); got != tt.want {
				t.Fatalf("ClassifyLLMError(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsResponseFormatUnsupportedError(t *testing.T) {
	if !IsResponseFormatUnsupportedError(errors.New("Unknown parameter: 'response_format'")) {
		t.Fatal("expected response_format error to be detected")
	}
	if IsResponseFormatUnsupportedError(errors.New("connection reset")) {
		t.Fatal("unexpected detection")
	}
	if IsResponseFormatUnsupportedError(nil) {
		t.Fatal("nil must not be detected")
	}
}
