package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Outline 生成正文前的结构化大纲
type Outline struct {
	Metadata    OutlineMetadata `json:"metadata"`
	Sections    []Section       `json:"sections"`
	SEOStrategy SEOStrategy     `json:"seoStrategy"`
	Conclusion  Conclusion      `json:"conclusion"`
}

// OutlineMetadata 大纲元信息
type OutlineMetadata struct {
	EstimatedReadingTime FlexString `json:"estimatedReadingTime"`
	TargetEmotion        FlexString `json:"targetEmotion"`
	ValueProposition     FlexString `json:"valueProposition"`
}

// Section 大纲章节
type Section struct {
	Title           FlexString   `json:"title"`
	TargetWordCount FlexInt      `json:"targetWordCount"`
	KeyPoints       StringList   `json:"keyPoints"`
	HumanElement    FlexString   `json:"humanElement,omitempty"`
	Subsections     []Subsection `json:"subsections,omitempty"`
}

// Subsection 二级小节
type Subsection struct {
	Title     FlexString `json:"title"`
	KeyPoints StringList `json:"keyPoints,omitempty"`
}

// SEOStrategy SEO 策略
type SEOStrategy struct {
	PrimaryKeyword    FlexString `json:"primaryKeyword"`
	SecondaryKeywords StringList `json:"secondaryKeywords"`
	MetaDescription   FlexString `json:"metaDescription"`
}

// Conclusion 结论
type Conclusion struct {
	Summary      FlexString `json:"summary"`
	CallToAction FlexString `json:"callToAction"`
}

// ErrInvalidOutline 大纲结构不完整
var ErrInvalidOutline = errors.New("invalid outline")

// Validate 校验结构完整性：至少一个章节且每个章节有标题
func (o *Outline) Validate() error {
	if o == nil {
		return fmt.Errorf("%w: outline is nil", ErrInvalidOutline)
	}
	if len(o.Sections) == 0 {
		return fmt.Errorf("%w: no sections", ErrInvalidOutline)
	}
	for i, s := range o.Sections {
		if strings.TrimSpace(string(s.Title)) == "" {
			return fmt.Errorf("%w: section %d has no title", ErrInvalidOutline, i+1)
		}
		if s.TargetWordCount < 0 {
			return fmt.Errorf("%w: section %d has negative word count", ErrInvalidOutline, i+1)
		}
	}
	return nil
}

// TotalWordCount 各章节目标字数之和
func (o *Outline) TotalWordCount() int {
	total := 0
	for _, s := range o.Sections {
		total += int(s.TargetWordCount)
	}
	return total
}

// DecodeOutline 将 JSON 文本解码为大纲并校验
func DecodeOutline(raw []byte) (*Outline, error) {
	var o Outline
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutline, err)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return &o, nil
}

// FlexString 兼容模型输出的数字或字符串
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string, got %s", jsonKind(b))
	}
	*s = FlexString(n.String())
	return nil
}

// FlexInt 兼容模型输出的整数、浮点或数字字符串
type FlexInt int

func (n *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("expected number, got %s", jsonKind(b))
	}
	*n = FlexInt(int(f))
	return nil
}

// StringList 兼容单个字符串或字符串数组
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*l = nil
		return nil
	case len(b) > 0 && b[0] == '[':
		var items []FlexString
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			if v := strings.TrimSpace(string(it)); v != "" {
				out = append(out, v)
			}
		}
		*l = out
		return nil
	default:
		var v FlexString
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		if strings.TrimSpace(string(v)) == "" {
			*l = nil
			return nil
		}
		*l = StringList{string(v)}
		return nil
	}
}

// jsonKind 只描述值的类型，错误信息里不回显模型输出
func jsonKind(b []byte) string {
	if len(b) == 0 {
		return "empty value"
	}
	switch b[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	default:
		return "invalid value"
	}
}
