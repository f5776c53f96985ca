// Package generation 编排长文生成流程：校验、准入、大纲、正文、结算
package generation

import (
	"fmt"
	"strings"

	wfmodel "content-gen-api/internal/workflow/model"
)

// OutputFormat 正文输出格式
type OutputFormat string

const (
	OutputFormatMarkdown OutputFormat = "markdown"
	OutputFormatHTML     OutputFormat = "html"
)

// GenerationRequest 校验通过的生成请求，只在一次请求内存在
type GenerationRequest struct {
	Topic       string   `json:"topic" binding:"required,min=10,max=200"`
	Audience    string   `json:"audience" binding:"required,min=2,max=100"`
	Industry    string   `json:"industry" binding:"required,min=2,max=100"`
	ContentTone string   `json:"contentTone" binding:"required,min=2,max=50"`
	WordCount   int      `json:"wordCount" binding:"required,min=300,max=5000"`
	Keywords    []string `json:"keywords,omitempty" binding:"omitempty,max=20,dive,required,max=50"`

	MediaURLs              []string `json:"mediaUrls,omitempty" binding:"omitempty,max=10,dive,required,max=2048"`
	MediaPlacementStrategy string   `json:"mediaPlacementStrategy,omitempty" binding:"omitempty,oneof=auto manual semantic"`
	StructureFormat        string   `json:"structureFormat,omitempty" binding:"omitempty,oneof=auto guide how-to listicle case-study comparison opinion"`

	IncludeStats      bool `json:"includeStats"`
	IncludeReferences bool `json:"includeReferences"`
	TOCRequired       bool `json:"tocRequired"`
	IncludeFAQ        bool `json:"includeFaq"`

	GeoScope      string `json:"geoScope,omitempty" binding:"omitempty,oneof=global national regional local"`
	TargetCountry string `json:"targetCountry,omitempty" binding:"omitempty,min=2,max=100"`
	TargetRegion  string `json:"targetRegion,omitempty" binding:"omitempty,min=2,max=100"`
	TargetCity    string `json:"targetCity,omitempty" binding:"omitempty,min=2,max=100"`

	OutputFormat OutputFormat `json:"outputFormat" binding:"omitempty,oneof=markdown html"`
	Language     string       `json:"language" binding:"omitempty,min=2,max=10"`
}

// Geo 本地化描述
func (r *GenerationRequest) Geo() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{r.TargetCity, r.TargetRegion, r.TargetCountry} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	loc := strings.Join(parts, ", ")
	switch {
	case r.GeoScope != "" && loc != "":
		return fmt.Sprintf("%s (%s)", loc, r.GeoScope)
	case r.GeoScope != "":
		return r.GeoScope
	default:
		return loc
	}
}

// Requirements 由布尔开关转换的写作要求
func (r *GenerationRequest) Requirements() []string {
	var out []string
	if r.IncludeStats {
		out = append(out, "Support key claims with recent statistics.")
	}
	if r.IncludeReferences {
		out = append(out, "Cite credible references for facts and figures.")
	}
	if r.TOCRequired {
		out = append(out, "Start with a table of contents.")
	}
	if r.IncludeFAQ {
		out = append(out, "End with a short FAQ section.")
	}
	if r.MediaPlacementStrategy != "" && len(r.MediaURLs) > 0 {
		out = append(out, fmt.Sprintf("Place the provided media using the %s strategy.", r.MediaPlacementStrategy))
	}
	return out
}

// Brief 提示词摘要
func (r *GenerationRequest) Brief() wfmodel.Brief {
	media := ""
	if len(r.MediaURLs) > 0 {
		media = strings.Join(r.MediaURLs, ", ")
	}
	return wfmodel.Brief{
		Topic:        r.Topic,
		Audience:     r.Audience,
		Industry:     r.Industry,
		Tone:         r.ContentTone,
		WordCount:    r.WordCount,
		Format:       r.StructureFormat,
		Language:     r.Language,
		Keywords:     r.Keywords,
		Geo:          r.Geo(),
		Media:        media,
		Requirements: r.Requirements(),
	}
}
