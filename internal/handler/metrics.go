package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cjmcneal02/Biosec-Project/internal/insights"
	"github.com/cjmcneal02/Biosec-Project/internal/ledger"
	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

var (
	biosecThreats = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "biosec_threats",
		Help: "Threats in the collection by risk level.",
	}, []string{"level"})

	biosecRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "biosec_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	biosecRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "biosec_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	biosecAIFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "biosec_ai_fallbacks_total",
		Help: "Times the programmatic fallback replaced a failed AI call, by layer.",
	}, []string{"layer"})

	biosecLedgerEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "biosec_ledger_entries_total",
		Help: "Total audit ledger entries appended.",
	})

	biosecWebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "biosec_webhook_deliveries_total",
		Help: "Total webhook delivery attempts by success status.",
	}, []string{"status"})

	biosecHealthChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "biosec_health_checks_total",
		Help: "Dependency health checks by check name and result.",
	}, []string{"check", "status"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		biosecRequestsTotal.WithLabelValues(method, path, status).Inc()
		biosecRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordAIFallback counts one fallback for the given enrichment layer.
func RecordAIFallback(layer string) {
	biosecAIFallbacksTotal.WithLabelValues(layer).Inc()
}

// RecordWebhookDelivery records a webhook delivery attempt.
func RecordWebhookDelivery(success bool) {
	if success {
		biosecWebhookDeliveriesTotal.WithLabelValues("success").Inc()
	} else {
		biosecWebhookDeliveriesTotal.WithLabelValues("failure").Inc()
	}
}

// RecordHealthCheck records one dependency probe result.
func RecordHealthCheck(check string, success bool) {
	status := "failure"
	if success {
		status = "success"
	}
	biosecHealthChecksTotal.WithLabelValues(check, status).Inc()
}

// SetThreatGauge publishes the collection's risk distribution.
func SetThreatGauge(d insights.RiskDistribution) {
	biosecThreats.WithLabelValues(string(threat.LevelLow)).Set(float64(d.Low))
	biosecThreats.WithLabelValues(string(threat.LevelMedium)).Set(float64(d.Medium))
	biosecThreats.WithLabelValues(string(threat.LevelHigh)).Set(float64(d.High))
	biosecThreats.WithLabelValues(string(threat.LevelCritical)).Set(float64(d.Critical))
}

// InstrumentLedger counts successful appends on l.
func InstrumentLedger(l ledger.Ledger) ledger.Ledger {
	return countingLedger{l}
}

type countingLedger struct{ ledger.Ledger }

func (l countingLedger) Append(ctx context.Context, threatID string, action ledger.Action, actor string, payload any) (*ledger.Entry, error) {
	e, err := l.Ledger.Append(ctx, threatID, action, actor, payload)
	if err == nil {
		biosecLedgerEntriesTotal.Inc()
	}
	return e, err
}
