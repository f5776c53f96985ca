package model

import (
	"strings"
	"time"
)

// LLMUsageMeta 单次模型调用的元信息
type LLMUsageMeta struct {
	Workflow         string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
	GeneratedAt      time.Time
}

// Brief 渲染提示词所需的请求摘要
type Brief struct {
	Topic        string
	Audience     string
	Industry     string
	Tone         string
	WordCount    int
	Format       string
	Language     string
	Keywords     []string
	Geo          string
	Media        string
	Requirements []string
}

// Vars 转为模板变量
func (b Brief) Vars() map[string]any {
	return map[string]any{
		"topic":        b.Topic,
		"audience":     b.Audience,
		"industry":     orNone(b.Industry),
		"tone":         b.Tone,
		"word_count":   b.WordCount,
		"format":       orNone(b.Format),
		"language":     orNone(b.Language),
		"keywords":     orNone(strings.Join(b.Keywords, ", ")),
		"geo":          orNone(b.Geo),
		"media":        orNone(b.Media),
		"requirements": requirementLines(b.Requirements),
	}
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}

func requirementLines(items []string) string {
	if len(items) == 0 {
		return "- none"
	}
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(item)
	}
	return b.String()
}

// OutlineGenerateInput 大纲调用入参
type OutlineGenerateInput struct {
	Provider string
	Model    string
	// Simplified 使用精简提示词
	Simplified  bool
	Brief       Brief
	Temperature *float32
	TopP        *float32
	MaxTokens   *int
	// JSONMode 请求结构化（JSON 对象）输出
	JSONMode bool
}

// ContentGenerateInput 正文调用入参
type ContentGenerateInput struct {
	Provider string
	Model    string
	Brief    Brief
	// OutlineJSON 已序列化的大纲
	OutlineJSON      string
	Temperature      *float32
	MaxTokens        *int
	FrequencyPenalty *float32
	PresencePenalty  *float32
}

// GenerateOutput 模型调用结果
type GenerateOutput struct {
	Text string
	Meta LLMUsageMeta
}
