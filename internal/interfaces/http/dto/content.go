package dto

import (
	"encoding/json"
	"time"

	"content-gen-api/internal/application/generation"
	"content-gen-api/internal/application/quota"
	"content-gen-api/internal/domain/entity"
	wfmodel "content-gen-api/internal/workflow/model"
)

// GenerateResponse 生成成功响应
type GenerateResponse struct {
	ContentID         string              `json:"contentId"`
	Content           string              `json:"content"`
	Outline           *wfmodel.Outline    `json:"outline"`
	Metadata          generation.Metadata `json:"metadata"`
	RequestsRemaining int                 `json:"requestsRemaining"`
}

// DenialResponse 额度不足响应，不是错误
type DenialResponse struct {
	HasUsage          bool            `json:"hasUsage"`
	Message           string          `json:"message"`
	RequestsRemaining int             `json:"requestsRemaining"`
	PlanType          entity.PlanType `json:"planType"`
}

// ToGenerateResponse 转换生成结果
func ToGenerateResponse(res *generation.Result) *GenerateResponse {
	return &GenerateResponse{
		ContentID:         res.ContentID,
		Content:           res.Content,
		Outline:           res.Outline,
		Metadata:          res.Metadata,
		RequestsRemaining: res.RequestsRemaining,
	}
}

// ToDenialResponse 转换拒绝结果
func ToDenialResponse(d *generation.Denial) *DenialResponse {
	return &DenialResponse{
		HasUsage:          false,
		Message:           d.Message,
		RequestsRemaining: d.RequestsRemaining,
		PlanType:          d.PlanType,
	}
}

// ContentResponse 生成记录详情
type ContentResponse struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Topic        string          `json:"topic"`
	Request      json.RawMessage `json:"request,omitempty"`
	Outline      json.RawMessage `json:"outline,omitempty"`
	Content      string          `json:"content,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Cost         int             `json:"cost"`
	CreatedAt    string          `json:"createdAt"`
}

// ContentListItem 列表项，不含正文
type ContentListItem struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Topic     string          `json:"topic"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Cost      int             `json:"cost"`
	CreatedAt string          `json:"createdAt"`
}

// ToContentResponse 转换生成记录
func ToContentResponse(c *entity.GeneratedContent) *ContentResponse {
	return &ContentResponse{
		ID:           c.ID,
		Status:       string(c.Status),
		Topic:        c.Topic,
		Request:      rawJSON(c.Request),
		Outline:      rawJSON(c.Outline),
		Content:      c.Content,
		Metadata:     rawJSON(c.Metadata),
		ErrorMessage: c.ErrorMessage,
		Cost:         c.Cost,
		CreatedAt:    c.CreatedAt.Format(time.RFC3339),
	}
}

// ToContentListItems 转换记录列表
func ToContentListItems(items []*entity.GeneratedContent) []*ContentListItem {
	out := make([]*ContentListItem, 0, len(items))
	for _, c := range items {
		out = append(out, &ContentListItem{
			ID:        c.ID,
			Status:    string(c.Status),
			Topic:     c.Topic,
			Metadata:  rawJSON(c.Metadata),
			Cost:      c.Cost,
			CreatedAt: c.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}

// UsageResponse 额度快照
type UsageResponse struct {
	RequestsUsed  int             `json:"requestsUsed"`
	RequestsLimit int             `json:"requestsLimit"`
	FlexyRequests int             `json:"flexyRequests"`
	PlanType      entity.PlanType `json:"planType"`
	Remaining     int             `json:"remaining"`
}

// ToUsageResponse 转换额度快照
func ToUsageResponse(s *quota.Snapshot) *UsageResponse {
	return &UsageResponse{
		RequestsUsed:  s.RequestsUsed,
		RequestsLimit: s.RequestsLimit,
		FlexyRequests: s.FlexyRequests,
		PlanType:      s.PlanType,
		Remaining:     s.Remaining,
	}
}
