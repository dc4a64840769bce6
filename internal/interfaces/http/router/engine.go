package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/infrastructure/logger"
	"github.com/marketsync/backend/internal/infrastructure/telemetry"
	"github.com/marketsync/backend/internal/interfaces/http/handler"
	"github.com/marketsync/backend/internal/interfaces/http/middleware"
)

// Handlers groups the HTTP handlers mounted by NewEngine. A nil handler
// leaves its routes unregistered.
type Handlers struct {
	Connections *handler.ConnectionHandler
	Jobs        *handler.JobHandler
	Orders      *handler.OrderHandler
	Webhooks    *handler.WebhookHandler
	System      *handler.SystemHandler
}

// EngineConfig holds the cross-cutting HTTP settings
type EngineConfig struct {
	Logger         *zap.Logger
	Tokens         middleware.TokenValidator
	MeterProvider  *telemetry.MeterProvider
	Tracing        middleware.TracingConfig
	Profiling      middleware.ProfilingConfig
	Security       middleware.SecurityConfig
	MaxBodySize    int64
	TrustedProxies []string
	// WebhookLimiter throttles the public webhook endpoint per client IP
	WebhookLimiter *middleware.RateLimiter
}

// NewEngine builds the gin engine with the middleware chain and all routes
func NewEngine(cfg EngineConfig, h Handlers) (*gin.Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	middleware.SetupValidator()

	engine.Use(
		logger.Recovery(cfg.Logger),
		middleware.TracingWithConfig(cfg.Tracing),
		middleware.Profiling(cfg.Profiling),
		logger.GinMiddleware(cfg.Logger),
		middleware.SecureWithConfig(cfg.Security),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{MeterProvider: cfg.MeterProvider, Logger: cfg.Logger}),
	)
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}

	if h.System != nil {
		engine.GET("/health", h.System.Health)
	}

	if h.Webhooks != nil {
		hooks := engine.Group("/webhooks", middleware.SpanFinisher())
		if cfg.WebhookLimiter != nil {
			hooks.Use(middleware.RateLimit(cfg.WebhookLimiter))
		}
		hooks.POST("/storefront", h.Webhooks.Receive)
	}

	var apiMiddleware []gin.HandlerFunc
	if cfg.Tokens != nil {
		apiMiddleware = append(apiMiddleware, middleware.JWTAuthMiddleware(cfg.Tokens, cfg.Logger))
	}
	apiMiddleware = append(apiMiddleware, middleware.SpanFinisher())

	r := NewRouter(engine, WithAPIVersion("v1"), WithAPIMiddleware(apiMiddleware...))
	for _, g := range domainGroups(h) {
		r.Register(g)
	}
	r.Setup()
	return engine, nil
}

func domainGroups(h Handlers) []*DomainGroup {
	var groups []*DomainGroup

	if h.Connections != nil {
		conns := NewDomainGroup("connections", "/connections").
			GET("", h.Connections.List).
			POST("", h.Connections.Create).
			GET("/:id", h.Connections.Get).
			PUT("/:id", h.Connections.Update).
			DELETE("/:id", h.Connections.Delete)
		if h.Jobs != nil {
			conns.POST("/:id/jobs/:type", h.Jobs.RunForConnection)
		}
		groups = append(groups, conns)
	}

	if h.Jobs != nil {
		groups = append(groups, NewDomainGroup("jobs", "/jobs").
			GET("", h.Jobs.List).
			POST("/:type", h.Jobs.Run))
	}

	if h.Orders != nil {
		groups = append(groups, NewDomainGroup("orders", "/orders").
			POST("/:number/reimport", h.Orders.Reimport))
	}

	if h.System != nil {
		groups = append(groups, NewDomainGroup("system", "/system").
			GET("/info", h.System.GetSystemInfo))
	}
	return groups
}
