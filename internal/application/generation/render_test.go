package generation

import (
	"strings"
	"testing"
)

func TestRenderContent(t *testing.T) {
	md := "# Title\n\nSome **bold** text.\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"

	out, err := RenderContent(md, OutputFormatMarkdown)
	if err != nil || out != md {
		t.Fatalf("markdown passthrough = %q, %v", out, err)
	}

	html, err := RenderContent(md, OutputFormatHTML)
	if err != nil {
		t.Fatalf("RenderContent() error = %v", err)
	}
	for _, want := range []string{"<h1>Title</h1>", "<strong>bold</strong>", "<table>"} {
		if !strings.Contains(html, want) {
			t.Fatalf("html %q missing %q", html, want)
		}
	}
}

func TestCountWords(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"# Hello world", 2},
		{"- don't stop\n- state-of-the-art", 3},
		{"**Bold** _it_ `code` 2024", 4},
	}
	for _, tc := range cases {
		if got := CountWords(tc.in); got != tc.want {
			t.Fatalf("CountWords(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
