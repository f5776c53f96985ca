package generation

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

var markdownEngine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Typographer,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithXHTML(),
	),
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’-][\p{L}\p{N}]+)*`)

// RenderContent 按输出格式渲染 Markdown 正文
func RenderContent(markdown string, format OutputFormat) (string, error) {
	if format != OutputFormatHTML {
		return markdown, nil
	}
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

// CountWords 统计 Markdown 文本的词数，忽略标记符号
func CountWords(markdown string) int {
	return len(wordPattern.FindAllStringIndex(markdown, -1))
}
