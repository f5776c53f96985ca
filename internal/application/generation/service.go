package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"content-gen-api/internal/application/quota"
	"content-gen-api/internal/domain/entity"
	"content-gen-api/internal/domain/repository"
	llmctx "content-gen-api/internal/domain/service"
	wfmodel "content-gen-api/internal/workflow/model"
	"content-gen-api/pkg/logger"
	"content-gen-api/pkg/metrics"
	"content-gen-api/pkg/retry"
	"content-gen-api/pkg/tracer"
)

const (
	failureWriteTimeout = 5 * time.Second
	// belowTargetRatio 实际字数低于目标的该比例时打上质量标记
	belowTargetRatio = 0.8

	FlagBelowTargetLength = "below_target_length"
	FlagOutlineRepaired   = "outline_repaired"
)

// ErrContentNotFound 记录不存在或不属于当前用户
var ErrContentNotFound = errors.New("content not found")

// GenerationFailedError 所有降级路径都失败后的终态错误
type GenerationFailedError struct {
	ContentID string
	Err       error
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("generation %s failed: %v", e.ContentID, e.Err)
}

func (e *GenerationFailedError) Unwrap() error { return e.Err }

// SettlementError 正文已生成但结算事务失败，不会重新生成
type SettlementError struct {
	ContentID string
	Err       error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settlement for %s failed: %v", e.ContentID, e.Err)
}

func (e *SettlementError) Unwrap() error { return e.Err }

// QuotaLedger 额度账本
type QuotaLedger interface {
	Cost() int
	CheckAdmission(ctx context.Context, userID string) (*quota.Admission, error)
	Settle(ctx context.Context, record *entity.GeneratedContent) (*quota.Settlement, error)
}

// ProviderNames 两个阶段使用的提供商
type ProviderNames struct {
	Outline string `json:"outline"`
	Content string `json:"content"`
}

// Metadata 生成记录的元数据
type Metadata struct {
	WordCount         int           `json:"wordCount"`
	TargetWordCount   int           `json:"targetWordCount"`
	OutlineDurationMs int64         `json:"outlineDurationMs"`
	ContentDurationMs int64         `json:"contentDurationMs"`
	TotalDurationMs   int64         `json:"totalDurationMs"`
	OutlineSource     OutlineSource `json:"outlineSource"`
	Fallback          bool          `json:"fallback"`
	LateFallback      bool          `json:"lateFallback"`
	ContentAttempts   int           `json:"contentAttempts"`
	QualityFlags      []string      `json:"qualityFlags"`
	Language          string        `json:"language"`
	OutputFormat      OutputFormat  `json:"outputFormat"`
	Providers         ProviderNames `json:"providers"`
}

// Denial 额度不足的结构化拒绝
type Denial struct {
	Message           string
	RequestsRemaining int
	PlanType          entity.PlanType
}

// Result 生成结果；Denial 非空表示被额度拒绝
type Result struct {
	ContentID         string
	Content           string
	Outline           *wfmodel.Outline
	Metadata          Metadata
	RequestsRemaining int
	Denial            *Denial
}

// Service 生成流水线
type Service struct {
	ledger    QuotaLedger
	contents  repository.GeneratedContentRepository
	outlines  *OutlineGenerator
	writer    *ContentGenerator
	events    llmctx.GenerationEventPublisher
	providers ProviderNames
	now       func() time.Time
}

// NewService 创建生成服务，events 可为 nil
func NewService(
	ledger QuotaLedger,
	contents repository.GeneratedContentRepository,
	outlines *OutlineGenerator,
	writer *ContentGenerator,
	events llmctx.GenerationEventPublisher,
) *Service {
	return &Service{
		ledger:   ledger,
		contents: contents,
		outlines: outlines,
		writer:   writer,
		events:   events,
		providers: ProviderNames{
			Outline: outlines.providerName,
			Content: writer.providerName,
		},
		now: time.Now,
	}
}

// pipelineRun 一次流水线运行的上下文
type pipelineRun struct {
	req       *GenerationRequest
	userID    string
	contentID string
	started   time.Time
	outline   *OutlineResult
	content   *ContentResult
	usage     []wfmodel.LLMUsageMeta
	late      bool
}

// Generate 执行完整流水线：校验 → 准入 → 大纲 → 正文 → 结算
func (s *Service) Generate(ctx context.Context, userID string, raw map[string]any) (*Result, error) {
	ctx, span := tracer.Start(ctx, "generation.Generate",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	started := s.now()
	req, err := Validate(raw)
	if err != nil {
		metrics.GenerationTotal.WithLabelValues("invalid", "").Inc()
		return nil, err
	}

	adm, err := s.ledger.CheckAdmission(ctx, userID)
	if err != nil {
		tracer.Fail(span, err)
		return nil, err
	}
	if !adm.Admitted {
		metrics.GenerationTotal.WithLabelValues("denied", "").Inc()
		return &Result{Denial: &Denial{
			Message:           adm.Message,
			RequestsRemaining: adm.Remaining,
			PlanType:          adm.PlanType,
		}}, nil
	}

	run := &pipelineRun{req: req, userID: userID, contentID: uuid.NewString(), started: started}
	ctx = logger.WithContext(ctx, logger.ContentIDKey, run.contentID)
	ctx = llmctx.WithUsageSubject(ctx, userID, run.contentID)
	span.SetAttributes(attribute.String("content.id", run.contentID))

	run.outline, err = s.outlines.Generate(ctx, req)
	if err != nil {
		tracer.Fail(span, err)
		return nil, s.fail(ctx, run, nil, err)
	}
	run.usage = append(run.usage, run.outline.Usage...)
	outline := run.outline.Outline
	span.SetAttributes(attribute.String("outline.source", string(run.outline.Source)))

	run.content, err = s.writer.Generate(ctx, outline, req)
	if run.content != nil {
		run.usage = append(run.usage, run.content.Usage...)
	}
	if err != nil && retry.ClassOf(err) != retry.Fatal {
		logger.Warn(ctx, "content generation exhausted, retrying with fallback outline",
			"outline_source", string(run.outline.Source),
			"error", err.Error(),
		)
		run.late = true
		outline = FallbackOutline(req)
		var second *ContentResult
		second, err = s.writer.GenerateOnce(ctx, outline, req)
		if second != nil {
			run.usage = append(run.usage, second.Usage...)
			if run.content != nil {
				second.Attempts += run.content.Attempts
				second.Duration += run.content.Duration
			}
			run.content = second
		}
	}
	if err != nil {
		tracer.Fail(span, err)
		return nil, s.fail(ctx, run, outline, err)
	}

	rendered, err := RenderContent(run.content.Text, req.OutputFormat)
	if err != nil {
		tracer.Fail(span, err)
		return nil, s.fail(ctx, run, outline, err)
	}

	meta := s.metadata(run)
	record, err := s.buildRecord(run, outline, meta, entity.ContentStatusCompleted, rendered, s.ledger.Cost(), "")
	if err != nil {
		tracer.Fail(span, err)
		return nil, s.fail(ctx, run, outline, err)
	}

	settlement, err := s.ledger.Settle(ctx, record)
	if err != nil {
		tracer.Fail(span, err)
		var insufficient *quota.InsufficientQuotaError
		if errors.As(err, &insufficient) {
			// 并发请求抢先扣减，结算是最终约束
			metrics.GenerationTotal.WithLabelValues("denied", string(run.outline.Source)).Inc()
			logger.Warn(ctx, "settlement rejected by quota", "cost", insufficient.Cost)
			return s.deniedAfterRace(ctx, userID)
		}
		logger.Error(ctx, "settlement failed", err)
		s.settleFailure(ctx, run, outline, err)
		return nil, &SettlementError{ContentID: run.contentID, Err: err}
	}

	elapsed := s.now().Sub(started)
	metrics.GenerationTotal.WithLabelValues(string(entity.ContentStatusCompleted), string(run.outline.Source)).Inc()
	metrics.GenerationDuration.WithLabelValues(string(entity.ContentStatusCompleted)).Observe(elapsed.Seconds())
	metrics.GenerationWordCount.Observe(float64(meta.WordCount))
	logger.Info(ctx, "generation completed",
		"outline_source", string(run.outline.Source),
		"fallback", meta.Fallback,
		"word_count", meta.WordCount,
		"remaining", settlement.Remaining,
		"duration_ms", elapsed.Milliseconds(),
	)
	s.publish(ctx, run, settlement.Record, meta.Fallback, settlement.Remaining)

	return &Result{
		ContentID:         run.contentID,
		Content:           rendered,
		Outline:           outline,
		Metadata:          meta,
		RequestsRemaining: settlement.Remaining,
	}, nil
}

func (s *Service) deniedAfterRace(ctx context.Context, userID string) (*Result, error) {
	adm, err := s.ledger.CheckAdmission(ctx, userID)
	if err != nil {
		return nil, err
	}
	msg := adm.Message
	if msg == "" {
		msg = "Your remaining requests were used by another generation. Please try again."
	}
	return &Result{Denial: &Denial{Message: msg, RequestsRemaining: adm.Remaining, PlanType: adm.PlanType}}, nil
}

// fail 终态失败：写入 failed 记录（不扣额度）并返回 GenerationFailedError
func (s *Service) fail(ctx context.Context, run *pipelineRun, outline *wfmodel.Outline, cause error) error {
	logger.Error(ctx, "generation failed", cause, "late_fallback", run.late)
	s.settleFailure(ctx, run, outline, cause)

	source := ""
	if run.outline != nil {
		source = string(run.outline.Source)
	}
	metrics.GenerationTotal.WithLabelValues(string(entity.ContentStatusFailed), source).Inc()
	metrics.GenerationDuration.WithLabelValues(string(entity.ContentStatusFailed)).Observe(s.now().Sub(run.started).Seconds())
	return &GenerationFailedError{ContentID: run.contentID, Err: cause}
}

// settleFailure 尽力写入 failed 记录，调用方断开时也执行
func (s *Service) settleFailure(ctx context.Context, run *pipelineRun, outline *wfmodel.Outline, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()

	meta := s.metadata(run)
	record, err := s.buildRecord(run, outline, meta, entity.ContentStatusFailed, "", 0, cause.Error())
	if err != nil {
		logger.Error(ctx, "failed to build failure record", err)
		return
	}
	settlement, err := s.ledger.Settle(ctx, record)
	if err != nil {
		logger.Error(ctx, "failed to persist failure record", err)
		return
	}
	s.publish(ctx, run, settlement.Record, true, settlement.Remaining)
}

func (s *Service) metadata(run *pipelineRun) Metadata {
	meta := Metadata{
		TargetWordCount: run.req.WordCount,
		TotalDurationMs: s.now().Sub(run.started).Milliseconds(),
		LateFallback:    run.late,
		QualityFlags:    []string{},
		Language:        run.req.Language,
		OutputFormat:    run.req.OutputFormat,
		Providers:       s.providers,
	}
	if run.outline != nil {
		meta.OutlineDurationMs = run.outline.Duration.Milliseconds()
		meta.OutlineSource = run.outline.Source
		meta.Fallback = run.outline.Source != OutlineSourceFull
		if run.outline.Repaired {
			meta.QualityFlags = append(meta.QualityFlags, FlagOutlineRepaired)
		}
	}
	if run.late {
		meta.Fallback = true
		meta.OutlineSource = OutlineSourceFallback
	}
	if run.content != nil {
		meta.ContentDurationMs = run.content.Duration.Milliseconds()
		meta.ContentAttempts = run.content.Attempts
		meta.WordCount = CountWords(run.content.Text)
		if float64(meta.WordCount) < float64(run.req.WordCount)*belowTargetRatio {
			meta.QualityFlags = append(meta.QualityFlags, FlagBelowTargetLength)
		}
	}
	return meta
}

func (s *Service) buildRecord(run *pipelineRun, outline *wfmodel.Outline, meta Metadata, status entity.ContentStatus, content string, cost int, errMsg string) (*entity.GeneratedContent, error) {
	request, err := json.Marshal(run.req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	metadata, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	record := &entity.GeneratedContent{
		ID:           run.contentID,
		UserID:       run.userID,
		Status:       status,
		Topic:        run.req.Topic,
		Request:      datatypes.JSON(request),
		Content:      content,
		Metadata:     datatypes.JSON(metadata),
		ErrorMessage: errMsg,
		Cost:         cost,
	}
	if outline != nil {
		raw, err := json.Marshal(outline)
		if err != nil {
			return nil, fmt.Errorf("failed to encode outline: %w", err)
		}
		record.Outline = datatypes.JSON(raw)
	}
	return record, nil
}

// publish 尽力发布生成事件
func (s *Service) publish(ctx context.Context, run *pipelineRun, record *entity.GeneratedContent, fallback bool, remaining int) {
	if s.events == nil {
		return
	}
	evt := &llmctx.GenerationEvent{
		ContentID:  record.ID,
		UserID:     record.UserID,
		Status:     string(record.Status),
		Fallback:   fallback,
		Cost:       record.Cost,
		Remaining:  remaining,
		Usage:      usageInputs(run),
		OccurredAt: s.now(),
	}
	if run.outline != nil {
		evt.OutlineSource = string(run.outline.Source)
	}
	if err := s.events.PublishGenerationEvent(ctx, evt); err != nil {
		logger.Warn(ctx, "failed to publish generation event", "error", err.Error())
	}
}

func usageInputs(run *pipelineRun) []llmctx.LLMUsageInput {
	out := make([]llmctx.LLMUsageInput, 0, len(run.usage))
	for i, u := range run.usage {
		out = append(out, llmctx.LLMUsageInput{
			EventID:          uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%d", run.contentID, i))).String(),
			UserID:           run.userID,
			ContentID:        run.contentID,
			Workflow:         u.Workflow,
			Provider:         u.Provider,
			Model:            u.Model,
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			DurationMs:       int(u.Duration.Milliseconds()),
		})
	}
	return out
}

// Get 返回当前用户的一条记录
func (s *Service) Get(ctx context.Context, userID, contentID string) (*entity.GeneratedContent, error) {
	if _, err := uuid.Parse(contentID); err != nil {
		return nil, ErrContentNotFound
	}
	record, err := s.contents.GetByID(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if record == nil || record.UserID != userID {
		return nil, ErrContentNotFound
	}
	return record, nil
}

// List 按时间倒序列出当前用户的记录
func (s *Service) List(ctx context.Context, userID string, page repository.Pagination) (*repository.PagedResult[*entity.GeneratedContent], error) {
	return s.contents.ListByUser(ctx, userID, page)
}
