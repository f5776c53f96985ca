package generation

import (
	"reflect"
	"testing"
)

func TestFallbackOutline(t *testing.T) {
	cases := []struct {
		name         string
		wordCount    int
		keywords     []string
		wantSections int
	}{
		{"minimum", 300, nil, 3},
		{"mid", 1000, []string{"remote work"}, 4},
		{"capped", 5000, []string{"a", "b", "c"}, 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := &GenerationRequest{
				Topic: "Building resilient supply chains", Audience: "operations leads",
				Industry: "manufacturing", WordCount: tc.wordCount, Keywords: tc.keywords,
			}
			o := FallbackOutline(req)
			if err := o.Validate(); err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if len(o.Sections) != tc.wantSections {
				t.Fatalf("sections = %d, want %d", len(o.Sections), tc.wantSections)
			}
			if got := o.TotalWordCount(); got != tc.wordCount {
				t.Fatalf("TotalWordCount() = %d, want %d", got, tc.wordCount)
			}
			wantPrimary := req.Topic
			if len(tc.keywords) > 0 {
				wantPrimary = tc.keywords[0]
			}
			if string(o.SEOStrategy.PrimaryKeyword) != wantPrimary {
				t.Fatalf("PrimaryKeyword = %q, want %q", o.SEOStrategy.PrimaryKeyword, wantPrimary)
			}
			if !reflect.DeepEqual(o, FallbackOutline(req)) {
				t.Fatalf("fallback outline is not deterministic")
			}
		})
	}
}

func TestFallbackOutline_UnicodeKeyword(t *testing.T) {
	req := &GenerationRequest{Topic: "Éxito en ventas digitales", Audience: "vendedores", Industry: "retail", WordCount: 1500, Keywords: []string{"éxito"}}
	o := FallbackOutline(req)
	if got := string(o.Sections[1].Title); got != "Éxito Explained" {
		t.Fatalf("title = %q", got)
	}
}
