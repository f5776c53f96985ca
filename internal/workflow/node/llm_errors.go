package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"content-gen-api/pkg/retry"
)

// ProviderError 携带 HTTP 状态码的上游模型错误
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// HTTPStatusCode 实现 httpStatusCoder
func (e *ProviderError) HTTPStatusCode() int { return e.StatusCode }

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// OutputShapeError 模型输出本身不合格（无法解析、结构不符、过短）。
// 这类错误的消息可能夹带模型文本，分类时不读取消息，始终可重试。
type OutputShapeError interface {
	error
	OutputShape()
}

var statusCodePattern = regexp.MustCompile(`(?i)status(?: code)?[:= ]+(\d{3})`)

// ClassifyLLMError 将模型调用错误划分为可重试、快速失败与致命三类。
// 鉴权失败致命；过载、限流、服务不可用快速失败；输出格式错误及其余错误可重试。
func ClassifyLLMError(err error) retry.Class {
	if err == nil {
		return retry.Retryable
	}
	if errors.Is(err, context.Canceled) {
		return retry.Fatal
	}
	var shape OutputShapeError
	if errors.As(err, &shape) {
		return retry.Retryable
	}

	switch status := statusCodeOf(err); {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return retry.Fatal
	case status == http.StatusTooManyRequests,
		status == http.StatusServiceUnavailable,
		status == 529:
		return retry.FastFail
	case status >= 400 && status < 500 && status != http.StatusRequestTimeout:
		// 其余 4xx 重试也不会变好，但仍允许降级到下一层
		return retry.FastFail
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "invalid api key", "incorrect api key", "unauthorized", "authentication", "permission denied", "forbidden"):
		return retry.Fatal
	case containsAny(msg, "overloaded", "rate limit", "rate_limit", "too many requests", "service unavailable", "unavailable", "capacity"):
		return retry.FastFail
	default:
		return retry.Retryable
	}
}

func statusCodeOf(err error) int {
	var coder httpStatusCoder
	if errors.As(err, &coder) {
		if code := coder.HTTPStatusCode(); code > 0 {
			return code
		}
	}
	if m := statusCodePattern.FindStringSubmatch(err.Error()); len(m) == 2 {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// IsResponseFormatUnsupportedError 判断上游是否不支持 response_format 参数
func IsResponseFormatUnsupportedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "response_format"):
		return true
	case strings.Contains(msg, "json_schema"):
		return true
	case strings.Contains(msg, "unknown parameter") && strings.Contains(msg, "response"):
		return true
	case strings.Contains(msg, "invalid") && strings.Contains(msg, "response"):
		return true
	case strings.Contains(msg, "response_schema"):
		return true
	default:
		return false
	}
}
