package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cjmcneal02/Biosec-Project/internal/enrichment"
	"github.com/cjmcneal02/Biosec-Project/internal/handler"
	"github.com/cjmcneal02/Biosec-Project/internal/health"
	"github.com/cjmcneal02/Biosec-Project/internal/ledger"
	"github.com/cjmcneal02/Biosec-Project/internal/service"
	"github.com/cjmcneal02/Biosec-Project/internal/store"
	"github.com/cjmcneal02/Biosec-Project/internal/webhooks"
)

// app holds the wired server components.
type app struct {
	router      *gin.Engine
	svc         *service.ThreatService
	recommender *enrichment.Recommender
	dispatcher  *webhooks.Dispatcher
	checker     *health.Checker
	closers     []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// aiCollaborators are the real (or stand-in) AI backends for one mode.
type aiCollaborators struct {
	analyzer  enrichment.Analyzer
	generator enrichment.Generator
	advisor   enrichment.Advisor
}

func newAI(cfg config, fb *enrichment.Fallback) (aiCollaborators, error) {
	switch cfg.AIMode {
	case aiModeOpenAI:
		oa, err := enrichment.NewOpenAIAnalyzer(enrichment.OpenAIConfig{
			APIKey:  cfg.OpenAIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
		if err != nil {
			return aiCollaborators{}, fmt.Errorf("openai analyzer: %w", err)
		}
		return aiCollaborators{analyzer: oa, generator: oa, advisor: oa}, nil
	case aiModeRemote:
		remote := enrichment.NewHTTPAnalyzer(cfg.RemoteURL, enrichment.WithTimeout(cfg.AITimeout))
		return aiCollaborators{analyzer: remote, generator: remote, advisor: remote}, nil
	default:
		return aiCollaborators{generator: fb}, nil
	}
}

func newApp(ctx context.Context, cfg config, logger *zap.Logger) (*app, error) {
	a := &app{}

	// ── Storage ──────────────────────────────────────────────────────────────
	repo, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	a.closers = append(a.closers, func() {
		if err := repo.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	})
	logger.Info("threat store ready", zap.String("driver", cfg.Store.Driver))

	// ── AI ───────────────────────────────────────────────────────────────────
	fb := enrichment.NewFallback(enrichment.WithDelay(cfg.FallbackDelay, cfg.FallbackContextDelay))
	ai, err := newAI(cfg, fb)
	if err != nil {
		a.close()
		return nil, err
	}

	pipeline := enrichment.NewPipeline(ai.analyzer, fb, logger)
	pipeline.SetFallbackRecorder(handler.RecordAIFallback)
	generator := enrichment.NewGeneratorWithFallback(ai.generator, fb, logger)
	generator.SetFallbackRecorder(handler.RecordAIFallback)
	a.recommender = enrichment.NewRecommender(ai.advisor, cfg.RecommendationTTL, logger)
	a.recommender.SetFallbackRecorder(handler.RecordAIFallback)
	logger.Info("AI mode", zap.String("mode", cfg.AIMode))

	// ── Audit ledger ─────────────────────────────────────────────────────────
	var audit ledger.Ledger
	switch cfg.LedgerDriver {
	case ledgerPostgres:
		pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect ledger postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		audit = ledger.NewPostgres(pool, logger)
	default:
		audit = ledger.NewMemory()
	}
	if err := audit.Verify(ctx); err != nil {
		logger.Warn("audit ledger integrity check FAILED", zap.Error(err))
	} else {
		n, _ := audit.Len(ctx)
		root, _ := audit.Root(ctx)
		logger.Info("audit ledger verified", zap.Int("entries", n), zap.String("root", root))
	}
	audit = handler.InstrumentLedger(audit)

	// ── Webhooks ─────────────────────────────────────────────────────────────
	a.dispatcher = webhooks.NewDispatcher(webhooks.Config{URLs: cfg.WebhookURLs, Secret: cfg.WebhookSecret}, logger)
	a.dispatcher.SetMetricsRecorder(handler.RecordWebhookDelivery)
	if len(cfg.WebhookURLs) > 0 {
		logger.Info("webhook alerts enabled", zap.Int("urls", len(cfg.WebhookURLs)))
	}

	// ── Service ──────────────────────────────────────────────────────────────
	a.svc = service.New(repo, pipeline, generator, a.recommender, logger)
	a.svc.SetLedger(audit)
	a.svc.SetWebhookDispatcher(a.dispatcher)
	a.svc.SetCriticalThreshold(cfg.CriticalThreshold)
	a.svc.SetAutoSeed(cfg.SeedOnStart)
	a.svc.SetCollectionRecorder(handler.SetThreatGauge)
	if err := a.svc.Init(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("load threats: %w", err)
	}

	// ── Dependency health ────────────────────────────────────────────────────
	a.checker = health.New(health.Config{
		CheckInterval: cfg.HealthInterval,
		FailThreshold: cfg.HealthFailThreshold,
	}, logger)
	a.checker.SetMetricsRecord(handler.RecordHealthCheck)
	a.checker.SetWebhookDispatch(a.dispatcher.Dispatch)
	a.checker.Register("store", func(ctx context.Context) error {
		_, err := repo.IsSeeded(ctx)
		return err
	})
	a.checker.Register("ledger", func(ctx context.Context) error {
		_, err := audit.Len(ctx)
		return err
	})
	if cfg.AIMode == aiModeRemote {
		a.checker.Register("ai_gateway", health.HTTPProbe(&http.Client{}, strings.TrimRight(cfg.RemoteURL, "/")+"/healthz"))
	}

	// The gateway serves whichever collaborators this instance uses so that
	// another deployment can run with ai.mode=remote against it.
	gateway := handler.NewAIHandler(orAnalyzer(ai.analyzer, fb), orGenerator(ai.generator, fb), orAdvisor(ai.advisor, fb), logger)

	a.router = newRouter(ctx, cfg, logger,
		handler.NewThreatHandler(a.svc, logger),
		handler.NewInsightsHandler(a.svc, logger),
		handler.NewLedgerHandler(audit, logger),
		handler.NewHealthHandler(a.checker),
		gateway,
	)
	return a, nil
}

func orAnalyzer(a enrichment.Analyzer, fb *enrichment.Fallback) enrichment.Analyzer {
	if a == nil {
		return fb
	}
	return a
}

func orGenerator(g enrichment.Generator, fb *enrichment.Fallback) enrichment.Generator {
	if g == nil {
		return fb
	}
	return g
}

func orAdvisor(a enrichment.Advisor, fb *enrichment.Fallback) enrichment.Advisor {
	if a == nil {
		return fb
	}
	return a
}

func newRouter(ctx context.Context, cfg config, logger *zap.Logger,
	threats *handler.ThreatHandler,
	dashboard *handler.InsightsHandler,
	audit *handler.LedgerHandler,
	probes *handler.HealthHandler,
	gateway *handler.AIHandler,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(cfg.CORSOrigins),
		MaxAge:           12 * time.Hour,
	}))

	router.Use(func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	// Request body size limit (1 MB)
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		c.Next()
	})

	router.Use(handler.PrometheusMiddleware())
	if cfg.RateLimitRPS > 0 {
		router.Use(handler.RateLimiter(ctx, cfg.RateLimitRPS, max(1, int(cfg.RateLimitRPS*2))))
	}
	router.Use(requestLogger(logger))

	probes.Register(router)
	router.GET("/metrics", handler.MetricsHandler())

	v1 := router.Group("/api/v1")
	threats.Register(v1)
	dashboard.Register(v1)
	audit.Register(v1)

	gateway.Register(router)
	return router
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
