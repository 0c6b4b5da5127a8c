// Package health runs periodic dependency checks for biosecd and reports
// readiness.
package health

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	// StatusUnknown is reported before a check has run.
	StatusUnknown = "unknown"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Probe returns nil when the dependency is usable.
type Probe func(ctx context.Context) error

// WebhookDispatchFunc is an optional callback for dispatching degraded events.
type WebhookDispatchFunc func(ctx context.Context, eventType string, payload map[string]string)

// MetricsRecordFunc is an optional callback for recording check results.
type MetricsRecordFunc func(check string, success bool)

// CheckStatus is the latest state of one named check.
type CheckStatus struct {
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	FailCount   int       `json:"fail_count"`
	LastError   string    `json:"last_error,omitempty"`
	LastChecked time.Time `json:"last_checked,omitzero"`
}

type check struct {
	name  string
	probe Probe
	state CheckStatus
}

// Checker runs registered probes and tracks consecutive failures. A check
// becomes degraded after FailThreshold failures in a row and healthy again
// on its next success.
type Checker struct {
	mu        sync.Mutex
	checks    []*check
	cfg       Config
	onWebhook WebhookDispatchFunc
	onMetrics MetricsRecordFunc
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a new Checker.
func New(cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}
	return &Checker{cfg: cfg, logger: logger, now: time.Now}
}

// Register adds a named probe. Registering after Start is not supported.
func (h *Checker) Register(name string, p Probe) {
	h.checks = append(h.checks, &check{
		name:  name,
		probe: p,
		state: CheckStatus{Name: name, Status: StatusUnknown},
	})
}

// SetWebhookDispatch configures the webhook dispatch callback.
func (h *Checker) SetWebhookDispatch(fn WebhookDispatchFunc) {
	h.onWebhook = fn
}

// SetMetricsRecord configures the metrics recording callback.
func (h *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// Start runs CheckAll immediately and then every CheckInterval until ctx is
// done.
func (h *Checker) Start(ctx context.Context) {
	h.CheckAll(ctx)

	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.CheckAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CheckAll runs every probe concurrently, each bounded by ProbeTimeout.
func (h *Checker) CheckAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, c := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.run(ctx, c)
		}()
	}
	wg.Wait()
}

func (h *Checker) run(ctx context.Context, c *check) {
	probeCtx, cancel := context.WithTimeout(ctx, h.cfg.ProbeTimeout)
	err := c.probe(probeCtx)
	cancel()

	if h.onMetrics != nil {
		h.onMetrics(c.name, err == nil)
	}

	h.mu.Lock()
	prev := c.state
	c.state.LastChecked = h.now().UTC()
	if err == nil {
		c.state.FailCount = 0
		c.state.LastError = ""
		c.state.Status = StatusHealthy
	} else {
		c.state.FailCount++
		c.state.LastError = err.Error()
		if c.state.FailCount >= h.cfg.FailThreshold {
			c.state.Status = StatusDegraded
		}
	}
	curr := c.state
	h.mu.Unlock()

	switch {
	case err == nil && prev.Status == StatusDegraded:
		h.logger.Info("health: recovered", zap.String("check", c.name))
	case err != nil && curr.FailCount == h.cfg.FailThreshold:
		// Transition: healthy → degraded (exactly at threshold)
		h.logger.Warn("health: degraded",
			zap.String("check", c.name),
			zap.Int("fail_count", curr.FailCount),
			zap.Error(err),
		)
		if h.onWebhook != nil {
			h.onWebhook(ctx, "system.degraded", map[string]string{
				"check": c.name,
				"error": curr.LastError,
			})
		}
	case err != nil:
		h.logger.Debug("health: probe failed", zap.String("check", c.name), zap.Error(err))
	}
}

// Snapshot returns the state of every check, sorted by name.
func (h *Checker) Snapshot() []CheckStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]CheckStatus, 0, len(h.checks))
	for _, c := range h.checks {
		out = append(out, c.state)
	}
	slices.SortFunc(out, func(a, b CheckStatus) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// Ready reports whether no check is degraded.
func (h *Checker) Ready() bool {
	for _, s := range h.Snapshot() {
		if s.Status == StatusDegraded {
			return false
		}
	}
	return true
}

// HTTPProbe returns a probe that succeeds on any 2xx response from url,
// trying HEAD first and then GET.
func HTTPProbe(client *http.Client, url string) Probe {
	return func(ctx context.Context) error {
		if err := request(ctx, client, http.MethodHead, url); err == nil {
			return nil
		}
		return request(ctx, client, http.MethodGet, url)
	}
}

func request(ctx context.Context, client *http.Client, method, url string) error {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", method, url, resp.StatusCode)
	}
	return nil
}
