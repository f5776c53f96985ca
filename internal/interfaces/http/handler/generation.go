// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"content-gen-api/internal/application/generation"
	"content-gen-api/internal/application/quota"
	"content-gen-api/internal/config"
	"content-gen-api/internal/domain/entity"
	"content-gen-api/internal/domain/repository"
	"content-gen-api/internal/interfaces/http/dto"
	apperrors "content-gen-api/pkg/errors"
	"content-gen-api/pkg/logger"
	"content-gen-api/pkg/retry"
)

// ContentService 生成流水线
type ContentService interface {
	Generate(ctx context.Context, userID string, raw map[string]any) (*generation.Result, error)
	Get(ctx context.Context, userID, contentID string) (*entity.GeneratedContent, error)
	List(ctx context.Context, userID string, page repository.Pagination) (*repository.PagedResult[*entity.GeneratedContent], error)
}

// QuotaReader 额度快照查询
type QuotaReader interface {
	Snapshot(ctx context.Context, userID string) (*quota.Snapshot, error)
}

// GenerationHandler 内容生成处理器
type GenerationHandler struct {
	svc     ContentService
	quota   QuotaReader
	timeout time.Duration
}

// NewGenerationHandler 创建内容生成处理器
func NewGenerationHandler(cfg *config.Config, svc *generation.Service, ledger *quota.Ledger) *GenerationHandler {
	return newGenerationHandler(svc, ledger, cfg.Server.HTTP.RequestTimeout)
}

func newGenerationHandler(svc ContentService, quotas QuotaReader, timeout time.Duration) *GenerationHandler {
	return &GenerationHandler{svc: svc, quota: quotas, timeout: timeout}
}

// Generate 生成长文
// @Summary 生成长文
// @Description 校验请求、检查额度后生成大纲与正文，成功时扣减额度
// @Tags Contents
// @Accept json
// @Produce json
// @Param body body object true "生成请求"
// @Success 200 {object} dto.Response[dto.GenerateResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/contents/generate [post]
func (h *GenerationHandler) Generate(c *gin.Context) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil || raw == nil {
		dto.AppError(c, apperrors.ErrInvalidParam.WithDetail("request body must be a JSON object"))
		return
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	res, err := h.svc.Generate(ctx, currentUserID(c), raw)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if res.Denial != nil {
		dto.Success(c, dto.ToDenialResponse(res.Denial))
		return
	}
	dto.Success(c, dto.ToGenerateResponse(res))
}

// GetContent 获取生成记录
// @Summary 获取生成记录
// @Tags Contents
// @Produce json
// @Param id path string true "记录 ID"
// @Success 200 {object} dto.Response[dto.ContentResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/contents/{id} [get]
func (h *GenerationHandler) GetContent(c *gin.Context) {
	record, err := h.svc.Get(c.Request.Context(), currentUserID(c), dto.BindContentID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	dto.Success(c, dto.ToContentResponse(record))
}

// ListContents 列出生成记录
// @Summary 列出生成记录
// @Tags Contents
// @Produce json
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Success 200 {object} dto.Response[[]dto.ContentListItem]
// @Router /v1/contents [get]
func (h *GenerationHandler) ListContents(c *gin.Context) {
	ctx := c.Request.Context()
	page := dto.BindPage(c)

	result, err := h.svc.List(ctx, currentUserID(c), page)
	if err != nil {
		logger.Error(ctx, "failed to list contents", err)
		dto.InternalError(c, "failed to list contents")
		return
	}
	dto.SuccessWithPage(c, dto.ToContentListItems(result.Items), dto.NewPageMeta(page.Page, page.PageSize, result.Total))
}

// GetUsage 查询额度
// @Summary 查询额度
// @Tags Contents
// @Produce json
// @Success 200 {object} dto.Response[dto.UsageResponse]
// @Router /v1/usage [get]
func (h *GenerationHandler) GetUsage(c *gin.Context) {
	snap, err := h.quota.Snapshot(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	dto.Success(c, dto.ToUsageResponse(snap))
}

// writeError 领域错误映射为 HTTP 响应，内部细节只写日志
func (h *GenerationHandler) writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	var (
		verr     *generation.ValidationError
		notFound *quota.UserNotFoundError
		denied   *quota.InsufficientQuotaError
		failed   *generation.GenerationFailedError
		settle   *generation.SettlementError
	)
	switch {
	case errors.As(err, &verr):
		dto.AppError(c, apperrors.ErrValidationFailed, verr.Issues...)
	case errors.As(err, &notFound):
		dto.AppError(c, apperrors.ErrUserNotFound)
	case errors.Is(err, generation.ErrContentNotFound):
		dto.AppError(c, apperrors.ErrContentNotFound)
	case errors.As(err, &denied):
		dto.AppError(c, apperrors.ErrQuotaExceeded)
	case errors.As(err, &settle):
		logger.Error(ctx, "settlement failed", err, "content_id", settle.ContentID)
		dto.AppError(c, apperrors.ErrSettlementFailed)
	case errors.As(err, &failed):
		logger.Error(ctx, "generation failed", err, "content_id", failed.ContentID)
		switch {
		case retry.ClassOf(failed.Err) == retry.Fatal:
			dto.AppError(c, apperrors.ErrProviderDenied)
		default:
			dto.AppError(c, apperrors.ErrGenerationFailed)
		}
	default:
		logger.Error(ctx, "request failed", err)
		dto.AppError(c, apperrors.ErrInternalError)
	}
}

// currentUserID 认证中间件写入的调用方身份
func currentUserID(c *gin.Context) string {
	return c.GetString("user_id")
}
