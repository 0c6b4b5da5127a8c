package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultRetryDelays are the waits before the second and third attempts.
var DefaultRetryDelays = []time.Duration{time.Second, 5 * time.Second}

// MetricsRecorder is an optional callback for delivery outcomes.
type MetricsRecorder func(success bool)

// Config lists the endpoints every event is sent to.
type Config struct {
	URLs   []string
	Secret string
}

// Dispatcher fans events out to every configured URL in the background.
type Dispatcher struct {
	urls       []string
	secret     string
	httpClient *http.Client
	delays     []time.Duration
	onMetrics  MetricsRecorder
	logger     *zap.Logger
	now        func() time.Time
	wg         sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient replaces the default 10s-timeout client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.httpClient = c }
}

// WithRetryDelays sets the waits between attempts; len(delays)+1 attempts
// are made.
func WithRetryDelays(delays ...time.Duration) Option {
	return func(d *Dispatcher) { d.delays = delays }
}

// NewDispatcher returns a Dispatcher for cfg. With no URLs Dispatch is a no-op.
func NewDispatcher(cfg Config, logger *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		urls:       append([]string(nil), cfg.URLs...),
		secret:     cfg.Secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		delays:     DefaultRetryDelays,
		logger:     logger,
		now:        time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// SetMetricsRecorder configures the metrics callback.
func (d *Dispatcher) SetMetricsRecorder(fn MetricsRecorder) {
	d.onMetrics = fn
}

// Dispatch sends the event to every URL without blocking the caller. The
// deliveries outlive ctx cancellation but keep its values.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType string, payload map[string]string) {
	if len(d.urls) == 0 {
		return
	}
	body, err := json.Marshal(Event{
		Type:      eventType,
		Timestamp: d.now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		d.logger.Error("webhook: marshal event", zap.Error(err))
		return
	}
	signature := Sign(body, d.secret)

	bg := context.WithoutCancel(ctx)
	for _, url := range d.urls {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliver(bg, url, eventType, body, signature)
		}()
	}
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, url, eventType string, body []byte, signature string) {
	attempts := len(d.delays) + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			time.Sleep(d.delays[attempt-2])
		}

		res := d.post(ctx, url, body, signature)
		res.EventType = eventType
		res.Attempt = attempt

		if d.onMetrics != nil {
			d.onMetrics(res.Success)
		}
		if res.Success {
			return
		}
		d.logger.Warn("webhook: delivery failed",
			zap.String("url", url),
			zap.String("event", eventType),
			zap.Int("attempt", attempt),
			zap.String("error", res.Error),
		)
	}
}

func (d *Dispatcher) post(ctx context.Context, url string, body []byte, signature string) Delivery {
	res := Delivery{URL: url}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		res.Error = err.Error()
		return res
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer resp.Body.Close()
	io.ReadAll(io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	res.StatusCode = resp.StatusCode
	res.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !res.Success {
		res.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return res
}

// Sign computes the HMAC-SHA256 signature header value for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
