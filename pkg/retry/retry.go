// Package retry 提供带指数退避和错误分级的重试执行器
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Class 错误分级
type Class int

const (
	// Retryable 可重试的瞬时错误
	Retryable Class = iota
	// FastFail 不重试，交由上层降级（限流、过载）
	FastFail
	// Fatal 不重试，也不应降级（鉴权失败、调用方取消）
	Fatal
)

func (c Class) String() string {
	switch c {
	case Retryable:
		return "retryable"
	case FastFail:
		return "fast_fail"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classifier 错误分级函数
type Classifier func(error) Class

// AlwaysRetry 所有错误都视为可重试
func AlwaysRetry(error) Class { return Retryable }

// Policy 重试策略
type Policy struct {
	// MaxRetries 首次调用之后的最大重试次数
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Jitter 随机抖动比例，0.1 表示最多增加 10%
	Jitter float64
	// OnRetry 每次重试前回调，attempt 从 1 开始
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Error 重试终止时返回的错误
type Error struct {
	Class    Class
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ClassOf 返回错误的分级，非重试器产生的错误视为 Retryable
func ClassOf(err error) Class {
	var re *Error
	if errors.As(err, &re) {
		return re.Class
	}
	return Retryable
}

// Do 按策略执行 op，直到成功、遇到不可重试错误或次数耗尽
func Do[T any](ctx context.Context, p Policy, classify Classifier, op func(ctx context.Context) (T, error)) (T, error) {
	if classify == nil {
		classify = AlwaysRetry
	}
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	attempts := 0
	lastClass := Retryable
	operation := func() (T, error) {
		attempts++
		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		lastClass = classify(err)
		if ctx.Err() != nil {
			// 调用方已取消或超时，继续重试和降级都没有意义
			lastClass = Fatal
		}
		if lastClass != Retryable {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	retries := 0
	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(NewCappedBackOff(p.BaseDelay, p.MaxDelay, p.Jitter)),
		backoff.WithMaxTries(uint(maxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, d time.Duration) {
			retries++
			if p.OnRetry != nil {
				p.OnRetry(retries, d, err)
			}
		}),
	)
	if err == nil {
		return res, nil
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if !errors.Is(err, ctxErr) {
			err = errors.Join(err, ctxErr)
		}
		lastClass = Fatal
	}
	var zero T
	return zero, &Error{Class: lastClass, Attempts: attempts, Err: err}
}

// CappedBackOff 指数退避：min(base*2^n + jitter, max)
type CappedBackOff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
	Rand   func() float64

	attempt int
}

// NewCappedBackOff 创建指数退避
func NewCappedBackOff(base, max time.Duration, jitter float64) *CappedBackOff {
	return &CappedBackOff{Base: base, Max: max, Jitter: jitter, Rand: rand.Float64}
}

// NextBackOff 实现 backoff.BackOff
func (b *CappedBackOff) NextBackOff() time.Duration {
	d := b.delay(b.attempt)
	b.attempt++
	return d
}

// Reset 实现 backoff.BackOff
func (b *CappedBackOff) Reset() {
	b.attempt = 0
}

func (b *CappedBackOff) delay(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	exp := float64(b.Base) * math.Pow(2, float64(attempt))
	if b.Jitter > 0 && b.Rand != nil {
		exp += exp * b.Jitter * b.Rand()
	}
	if b.Max > 0 && exp > float64(b.Max) {
		return b.Max
	}
	if exp > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(exp)
}
