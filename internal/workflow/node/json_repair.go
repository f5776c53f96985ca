package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// RepairStage 结构化输出被成功解析时所处的修复阶段
type RepairStage string

const (
	StageDirect     RepairStage = "direct"
	StageTruncation RepairStage = "truncation"
	StageSyntax     RepairStage = "syntax"
)

const (
	// truncationMinLen 低于该长度的未闭合文本不按截断处理
	truncationMinLen = 64
	// truncationMaxCandidates 截断回退时最多尝试的边界数
	truncationMaxCandidates = 5
)

// ErrMalformedOutput 模型输出无法修复为合法 JSON
var ErrMalformedOutput = errors.New("malformed model output")

// MalformedOutputError 修复失败的详细信息
type MalformedOutputError struct {
	Reason  string
	Snippet string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformedOutput, e.Reason)
}

func (e *MalformedOutputError) Is(target error) bool {
	return target == ErrMalformedOutput
}

// OutputShape 实现 OutputShapeError
func (e *MalformedOutputError) OutputShape() {}

// ParseResult 结构化解析结果
type ParseResult struct {
	Value any
	// JSON 最终被成功解析的文本
	JSON  string
	Stage RepairStage
}

// Repaired 是否经过修复
func (r *ParseResult) Repaired() bool {
	return r != nil && r.Stage != StageDirect
}

// ParseStructured 将近似 JSON 的模型输出解析为结构化值。
// 依次尝试：去除代码块后直接解析、截断回退、jsonrepair 语法修复。
// 只修复语法，不补全语义内容；输入相同则输出相同。
func ParseStructured(raw string) (*ParseResult, error) {
	text := StripCodeFence(raw)
	if text == "" {
		return nil, &MalformedOutputError{Reason: "empty output"}
	}

	// 1. 直接解析
	if v, ok := tryParse(text); ok {
		return &ParseResult{Value: v, JSON: text, Stage: StageDirect}, nil
	}

	body := text
	if start := strings.IndexAny(text, "{["); start > 0 {
		body = text[start:]
	}

	// 2. 截断回退到最近的完整元素边界
	if len(body) >= truncationMinLen {
		for _, cand := range truncationCandidates(body) {
			if v, ok := tryParse(cand); ok {
				return &ParseResult{Value: v, JSON: cand, Stage: StageTruncation}, nil
			}
		}
	}

	// 3. 截取最大的花括号片段并做语法修复
	if fragment := largestBraceFragment(text); fragment != "" {
		if repaired, err := jsonrepair.JSONRepair(fragment); err == nil {
			if v, ok := tryParse(repaired); ok {
				return &ParseResult{Value: v, JSON: repaired, Stage: StageSyntax}, nil
			}
		}
	}

	return nil, &MalformedOutputError{Reason: "unrecoverable json", Snippet: snippet(text, 200)}
}

// StripCodeFence 去除包裹输出的 ``` 代码块标记
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// 去掉语言标记，如 ```json
		if lang := strings.TrimSpace(s[:nl]); !strings.ContainsAny(lang, "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func tryParse(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

// truncationCandidates 未闭合文本在各元素边界处截断并补齐括号后的候选，越靠后越优先
func truncationCandidates(s string) []string {
	type boundary struct {
		cut     int
		closers string
	}
	var (
		stack      []byte
		boundaries []boundary
		inString   bool
		escaped    bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == opener(c) {
				stack = stack[:len(stack)-1]
				boundaries = append(boundaries, boundary{cut: i + 1, closers: closersFor(stack)})
			}
		case ',':
			if len(stack) > 0 {
				boundaries = append(boundaries, boundary{cut: i, closers: closersFor(stack)})
			}
		}
	}
	if len(stack) == 0 && !inString {
		// 已闭合，不是截断
		return nil
	}

	out := make([]string, 0, truncationMaxCandidates)
	for i := len(boundaries) - 1; i >= 0 && len(out) < truncationMaxCandidates; i-- {
		b := boundaries[i]
		out = append(out, s[:b.cut]+b.closers)
	}
	return out
}

// largestBraceFragment 返回第一个 { 到最后一个 } 之间的文本；没有 } 时取到结尾
func largestBraceFragment(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	end := strings.LastIndexByte(s, '}')
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

func closersFor(stack []byte) string {
	var b strings.Builder
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(closer(stack[i]))
	}
	return b.String()
}

func opener(c byte) byte {
	if c == '}' {
		return '{'
	}
	return '['
}

func closer(c byte) byte {
	if c == '{' {
		return '}'
	}
	return ']'
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
