// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"content-gen-api/internal/config"
	"content-gen-api/internal/interfaces/http/handler"
	"content-gen-api/internal/interfaces/http/middleware"
)

// RouterHandlers 路由依赖的处理器
type RouterHandlers struct {
	Health     *handler.HealthHandler
	Generation *handler.GenerationHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers RouterHandlers
	auth     middleware.AuthConfig
	limiter  middleware.RateLimiter
}

// NewWithDeps 创建路由器，limiter 为 nil 时不限流
func NewWithDeps(cfg *config.Config, handlers RouterHandlers, auth middleware.AuthConfig, limiter middleware.RateLimiter) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:   gin.New(),
		cfg:      cfg,
		handlers: handlers,
		auth:     auth,
		limiter:  limiter,
	}
	r.setupMiddleware()
	r.setupRoutes()
	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置全局中间件
func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.CORS(r.cfg.Security.CORS))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	health := r.handlers.Health
	r.engine.GET("/health", health.Health)
	r.engine.GET("/ready", health.Ready)
	r.engine.GET("/live", health.Live)

	if r.cfg.Observability.Metrics.Enabled {
		path := r.cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, gin.WrapH(promhttp.Handler()))
	}

	gen := r.handlers.Generation
	v1 := r.engine.Group("/v1", middleware.Auth(r.auth))
	{
		contents := v1.Group("/contents")
		{
			rl := middleware.RateLimit(middleware.RateLimitConfig{
				Enabled:  r.cfg.Security.RateLimit.Enabled,
				Requests: r.cfg.Security.RateLimit.Requests,
				Window:   r.cfg.Security.RateLimit.Window,
			}, r.limiter)
			contents.POST("/generate", rl, gen.Generate)
			contents.GET("", gen.ListContents)
			contents.GET("/:id", gen.GetContent)
		}
		v1.GET("/usage", gen.GetUsage)
	}
}
