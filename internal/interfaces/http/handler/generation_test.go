package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"content-gen-api/internal/application/generation"
	"content-gen-api/internal/application/quota"
	"content-gen-api/internal/domain/entity"
	"content-gen-api/internal/domain/repository"
	wfmodel "content-gen-api/internal/workflow/model"
	wfnode "content-gen-api/internal/workflow/node"
	"content-gen-api/pkg/retry"
)

type stubService struct {
	result  *generation.Result
	err     error
	gotRaw  map[string]any
	gotUser string
	records []*entity.GeneratedContent
}

func (s *stubService) Generate(_ context.Context, userID string, raw map[string]any) (*generation.Result, error) {
	s.gotUser, s.gotRaw = userID, raw
	return s.result, s.err
}

func (s *stubService) Get(_ context.Context, userID, id string) (*entity.GeneratedContent, error) {
	for _, r := range s.records {
		if r.ID == id && r.UserID == userID {
			return r, nil
		}
	}
	return nil, generation.ErrContentNotFound
}

func (s *stubService) List(_ context.Context, _ string, page repository.Pagination) (*repository.PagedResult[*entity.GeneratedContent], error) {
	return repository.NewPagedResult(s.records, int64(len(s.records)), page), nil
}

type stubQuota struct {
	snap *quota.Snapshot
	err  error
}

func (q stubQuota) Snapshot(context.Context, string) (*quota.Snapshot, error) { return q.snap, q.err }

func newTestEngine(h *GenerationHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", "user-1")
		c.Next()
	})
	r.POST("/v1/contents/generate", h.Generate)
	r.GET("/v1/contents", h.ListContents)
	r.GET("/v1/contents/:id", h.GetContent)
	r.GET("/v1/usage", h.GetUsage)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env struct {
		Code  int            `json:"code"`
		Data  map[string]any `json:"data"`
		Error map[string]any `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	if env.Data != nil {
		return env.Data
	}
	return env.Error
}

func TestGenerate_Success(t *testing.T) {
	svc := &stubService{result: &generation.Result{
		ContentID:         "c-1",
		Content:           "# Hi",
		Outline:           &wfmodel.Outline{Sections: []wfmodel.Section{{Title: "Intro"}}},
		Metadata:          generation.Metadata{WordCount: 1, OutlineSource: generation.OutlineSourceFull},
		RequestsRemaining: 6,
	}}
	r := newTestEngine(newGenerationHandler(svc, stubQuota{}, 0))

	w := do(r, http.MethodPost, "/v1/contents/generate", `{"topic":"valid 10+ char topic","wordCount":800}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w)
	if data["contentId"] != "c-1" || data["requestsRemaining"] != float64(6) {
		t.Fatalf("data = %v", data)
	}
	if svc.gotUser != "user-1" || svc.gotRaw["wordCount"] != float64(800) {
		t.Fatalf("service got user=%q raw=%v", svc.gotUser, svc.gotRaw)
	}
}

func TestGenerate_DenialIsNotAnError(t *testing.T) {
	svc := &stubService{result: &generation.Result{Denial: &generation.Denial{
		Message: "upgrade", RequestsRemaining: 2, PlanType: entity.PlanTypeFree,
	}}}
	r := newTestEngine(newGenerationHandler(svc, stubQuota{}, 0))

	w := do(r, http.MethodPost, "/v1/contents/generate", `{}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	data := decodeData(t, w)
	if data["hasUsage"] != false || data["planType"] != "free" || data["requestsRemaining"] != float64(2) {
		t.Fatalf("data = %v", data)
	}
}

func TestGenerate_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		body string
		want int
	}{
		{"validation", &generation.ValidationError{Issues: []string{"topic is required"}}, `{}`, http.StatusBadRequest},
		{"user not found", &quota.UserNotFoundError{UserID: "user-1"}, `{}`, http.StatusNotFound},
		{"generation failed", &generation.GenerationFailedError{ContentID: "c", Err: errors.New("boom")}, `{}`, http.StatusInternalServerError},
		{"provider auth", &generation.GenerationFailedError{ContentID: "c", Err: &retry.Error{Class: retry.Fatal, Attempts: 1, Err: errors.New("boom")}}, `{}`, http.StatusBadGateway},
		{"malformed output", &generation.GenerationFailedError{ContentID: "c", Err: &retry.Error{Class: retry.Retryable, Attempts: 3, Err: &wfnode.MalformedOutputError{Reason: "unauthorized readers"}}}, `{}`, http.StatusInternalServerError},
		{"race denied", &quota.InsufficientQuotaError{UserID: "user-1", Cost: 4}, `{}`, http.StatusTooManyRequests},
		{"settlement", &generation.SettlementError{ContentID: "c", Err: errors.New("db down")}, `{}`, http.StatusInternalServerError},
		{"not json", nil, `[1,2]`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestEngine(newGenerationHandler(&stubService{err: tc.err}, stubQuota{}, 0))
			w := do(r, http.MethodPost, "/v1/contents/generate", tc.body)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tc.want, w.Body.String())
			}
			if strings.Contains(w.Body.String(), "db down") || strings.Contains(w.Body.String(), "boom") {
				t.Fatalf("internal error leaked: %s", w.Body.String())
			}
		})
	}
}

func TestGenerate_ValidationIssuesInBody(t *testing.T) {
	svc := &stubService{err: &generation.ValidationError{Issues: []string{"topic is required", "wordCount is required"}}}
	r := newTestEngine(newGenerationHandler(svc, stubQuota{}, 0))

	w := do(r, http.MethodPost, "/v1/contents/generate", `{}`)
	detail := decodeData(t, w)
	issues, _ := detail["issues"].([]any)
	if len(issues) != 2 {
		t.Fatalf("issues = %v", detail)
	}
}

func TestGetContent(t *testing.T) {
	svc := &stubService{records: []*entity.GeneratedContent{
		{ID: "c-1", UserID: "user-1", Status: entity.ContentStatusCompleted, Topic: "t", Cost: 4},
		{ID: "c-2", UserID: "user-2", Status: entity.ContentStatusCompleted},
	}}
	r := newTestEngine(newGenerationHandler(svc, stubQuota{}, 0))

	if w := do(r, http.MethodGet, "/v1/contents/c-1", ""); w.Code != http.StatusOK {
		t.Fatalf("own record status = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/v1/contents/c-2", ""); w.Code != http.StatusNotFound {
		t.Fatalf("foreign record status = %d, want 404", w.Code)
	}
}

func TestListContents(t *testing.T) {
	svc := &stubService{records: []*entity.GeneratedContent{
		{ID: "c-1", UserID: "user-1", Status: entity.ContentStatusCompleted},
	}}
	r := newTestEngine(newGenerationHandler(svc, stubQuota{}, 0))

	w := do(r, http.MethodGet, "/v1/contents?page=1&page_size=500", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var env struct {
		Data []map[string]any `json:"data"`
		Meta struct {
			PageSize int   `json:"page_size"`
			Total    int64 `json:"total"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(env.Data) != 1 || env.Meta.PageSize != 100 || env.Meta.Total != 1 {
		t.Fatalf("list = %+v", env)
	}
}

func TestGetUsage(t *testing.T) {
	q := stubQuota{snap: &quota.Snapshot{RequestsUsed: 4, RequestsLimit: 10, PlanType: entity.PlanTypeFree, Remaining: 6}}
	r := newTestEngine(newGenerationHandler(&stubService{}, q, 0))

	w := do(r, http.MethodGet, "/v1/usage", "")
	data := decodeData(t, w)
	if data["remaining"] != float64(6) || data["requestsLimit"] != float64(10) {
		t.Fatalf("usage = %v", data)
	}

	r = newTestEngine(newGenerationHandler(&stubService{}, stubQuota{err: &quota.UserNotFoundError{UserID: "user-1"}}, 0))
	if w := do(r, http.MethodGet, "/v1/usage", ""); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
