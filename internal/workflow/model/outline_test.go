package model

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeOutline_TolerantTypes(t *testing.T) {
	raw := []byte(`{
		"metadata": {"estimatedReadingTime": 6, "targetEmotion": "curious", "valueProposition": "save time"},
		"sections": [
			{"title": "Intro", "targetWordCount": "150", "keyPoints": "why it matters"},
			{"title": "Deep dive", "targetWordCount": 420.0, "keyPoints": ["a", "", "b"],
			 "subsections": [{"title": "Detail", "keyPoints": null}]}
		],
		"seoStrategy": {"primaryKeyword": "saas", "secondaryKeywords": ["crm"], "metaDescription": "m"},
		"conclusion": {"summary": "s", "callToAction": "try it"}
	}`)

	o, err := DecodeOutline(raw)
	if err != nil {
		t.Fatalf("DecodeOutline() error = %v", err)
	}
	if o.Metadata.EstimatedReadingTime != "6" {
		t.Errorf("reading time = %q", o.Metadata.EstimatedReadingTime)
	}
	if o.Sections[0].TargetWordCount != 150 || len(o.Sections[0].KeyPoints) != 1 {
		t.Errorf("section 0 = %+v", o.Sections[0])
	}
	if got := len(o.Sections[1].KeyPoints); got != 2 {
		t.Errorf("empty key points must be dropped, got %d", got)
	}
	if o.TotalWordCount() != 570 {
		t.Errorf("TotalWordCount() = %d", o.TotalWordCount())
	}
}

func TestDecodeOutline_RejectsWrongShape(t *testing.T) {
	cases := map[string]string{
		"no sections":     `{"metadata": {}, "sections": []}`,
		"untitled":        `{"sections": [{"title": "  "}]}`,
		"sections object": `{"sections": {"title": "x"}}`,
		"not an object":   `["a", "b"]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeOutline([]byte(raw)); !errors.Is(err, ErrInvalidOutline) {
				t.Fatalf("expected ErrInvalidOutline, got %v", err)
			}
		})
	}
}

func TestDecodeOutline_ErrorDoesNotEchoModelText(t *testing.T) {
	cases := map[string]string{
		"object title":   `{"sections": [{"title": {"note": "unauthorized readers status 401"}}]}`,
		"array count":    `{"sections": [{"title": "x", "targetWordCount": ["rate limit exceeded"]}]}`,
		"string count":   `{"sections": [{"title": "x", "targetWordCount": "status 401 unauthorized"}]}`,
		"object reading": `{"metadata": {"estimatedReadingTime": {"v": "service unavailable"}}, "sections": [{"title": "x"}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeOutline([]byte(raw))
			if err == nil {
				t.Fatalf("expected error")
			}
			msg := strings.ToLower(err.Error())
			for _, leaked := range []string{"unauthorized", "401", "rate limit", "unavailable"} {
				if strings.Contains(msg, leaked) {
					t.Fatalf("error %q echoes model text %q", err, leaked)
				}
			}
		})
	}
}
