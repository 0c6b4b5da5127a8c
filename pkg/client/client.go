package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cjmcneal02/Biosec-Project/internal/insights"
	"github.com/cjmcneal02/Biosec-Project/internal/ledger"
	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

const (
	apiPrefix       = "/api/v1"
	maxResponseSize = 4 << 20
)

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool { return statusIs(err, http.StatusNotFound) }

// IsConflict reports whether err is a 409 from the server: the threat is in
// the wrong analysis state for the requested operation.
func IsConflict(err error) bool { return statusIs(err, http.StatusConflict) }

func statusIs(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// ListOptions filters and orders ListThreats. Zero values mean no category
// filter and newest first.
type ListOptions struct {
	Category threat.Category
	Sort     string // "date" or "risk"
}

// RiskLevel is the presentation classification of a score.
type RiskLevel struct {
	Score int          `json:"score"`
	Level threat.Level `json:"level"`
	Color string       `json:"color"`
	Badge string       `json:"badge"`
}

// LedgerOverview is the response of GET /ledger.
type LedgerOverview struct {
	Entries int             `json:"entries"`
	Root    string          `json:"root"`
	Recent  []*ledger.Entry `json:"recent"`
}

// VerifyResult is the response of GET /ledger/verify.
type VerifyResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Client talks to a biosecd server.
type Client struct {
	base       string
	httpClient *http.Client
	userAgent  string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("nil http client")
		}
		c.httpClient = hc
		return nil
	}
}

// WithTimeout sets the per-request timeout. Analysis against a real model can
// take tens of seconds; the default is 60s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.httpClient.Timeout = d
		return nil
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) error {
		c.userAgent = ua
		return nil
	}
}

// New creates a Client for the server at base, e.g. "http://localhost:8080".
func New(base string, opts ...Option) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", base)
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		userAgent:  "biosec-go",
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error.
func MustNew(base string, opts ...Option) *Client {
	c, err := New(base, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

type threatResponse struct {
	Threat *threat.Threat `json:"threat"`
}

type threatsResponse struct {
	Threats []*threat.Threat `json:"threats"`
	Count   int              `json:"count"`
}

// SubmitThreat submits a new report; the server analyzes it before replying.
func (c *Client) SubmitThreat(ctx context.Context, in threat.Input) (*threat.Threat, error) {
	var resp threatResponse
	if err := c.call(ctx, http.MethodPost, "/threats", in, &resp); err != nil {
		return nil, err
	}
	return resp.Threat, nil
}

// ListThreats returns the collection filtered and ordered by opts.
func (c *Client) ListThreats(ctx context.Context, opts ListOptions) ([]*threat.Threat, error) {
	q := url.Values{}
	if opts.Category != "" {
		q.Set("category", string(opts.Category))
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	path := "/threats"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp threatsResponse
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Threats, nil
}

// GetThreat fetches one threat by id.
func (c *Client) GetThreat(ctx context.Context, id string) (*threat.Threat, error) {
	return c.threatCall(ctx, http.MethodGet, "/threats/"+url.PathEscape(id))
}

// DeleteThreat removes one threat.
func (c *Client) DeleteThreat(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/threats/"+url.PathEscape(id), nil, nil)
}

// AnalyzeThreat runs all layers on an unanalyzed threat.
func (c *Client) AnalyzeThreat(ctx context.Context, id string) (*threat.Threat, error) {
	return c.threatCall(ctx, http.MethodPost, "/threats/"+url.PathEscape(id)+"/analyze")
}

// RefreshThreat re-runs all layers on an analyzed threat.
func (c *Client) RefreshThreat(ctx context.Context, id string) (*threat.Threat, error) {
	return c.threatCall(ctx, http.MethodPost, "/threats/"+url.PathEscape(id)+"/refresh")
}

// GenerateSteps regenerates the mitigation plan from the existing assessment.
func (c *Client) GenerateSteps(ctx context.Context, id string) (*threat.Threat, error) {
	return c.threatCall(ctx, http.MethodPost, "/threats/"+url.PathEscape(id)+"/steps")
}

// GenerateThreats creates count unanalyzed threats. With replace the existing
// collection is discarded first. A count of 0 lets the server pick its default.
func (c *Client) GenerateThreats(ctx context.Context, count int, replace bool) ([]*threat.Threat, error) {
	body := map[string]any{"count": count, "replace": replace}
	var resp threatsResponse
	if err := c.call(ctx, http.MethodPost, "/threats/generate", body, &resp); err != nil {
		return nil, err
	}
	return resp.Threats, nil
}

// LoadSampleData replaces the collection with the built-in sample threats.
func (c *Client) LoadSampleData(ctx context.Context) ([]*threat.Threat, error) {
	var resp threatsResponse
	if err := c.call(ctx, http.MethodPost, "/threats/sample", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Threats, nil
}

// ClearThreats deletes every threat.
func (c *Client) ClearThreats(ctx context.Context) error {
	return c.call(ctx, http.MethodDelete, "/threats", nil, nil)
}

// Insights returns the aggregate dashboard summary.
func (c *Client) Insights(ctx context.Context) (*insights.GlobalInsights, error) {
	var resp insights.GlobalInsights
	if err := c.call(ctx, http.MethodGet, "/insights", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Trend returns one point per day for the last days days, oldest first.
func (c *Client) Trend(ctx context.Context, days int) ([]insights.TrendPoint, error) {
	path := "/insights/trend"
	if days > 0 {
		path += "?days=" + strconv.Itoa(days)
	}
	var resp struct {
		Points []insights.TrendPoint `json:"points"`
	}
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Points, nil
}

// Recommendation returns the dashboard recommendation text.
func (c *Client) Recommendation(ctx context.Context) (string, error) {
	var resp struct {
		Recommendation string `json:"recommendation"`
	}
	if err := c.call(ctx, http.MethodGet, "/insights/recommendation", nil, &resp); err != nil {
		return "", err
	}
	return resp.Recommendation, nil
}

// ClassifyRisk asks the server for the level and colours of a score.
func (c *Client) ClassifyRisk(ctx context.Context, score int) (*RiskLevel, error) {
	var resp RiskLevel
	if err := c.call(ctx, http.MethodGet, "/risk/"+strconv.Itoa(score), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LedgerOverview returns the audit chain length, root hash and the most
// recent limit entries.
func (c *Client) LedgerOverview(ctx context.Context, limit int) (*LedgerOverview, error) {
	var resp LedgerOverview
	if err := c.call(ctx, http.MethodGet, "/ledger?limit="+strconv.Itoa(limit), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyLedger asks the server to re-check the audit chain.
func (c *Client) VerifyLedger(ctx context.Context) (*VerifyResult, error) {
	var resp VerifyResult
	if err := c.call(ctx, http.MethodGet, "/ledger/verify", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LedgerEntry fetches the audit entry at idx.
func (c *Client) LedgerEntry(ctx context.Context, idx int) (*ledger.Entry, error) {
	var resp ledger.Entry
	if err := c.call(ctx, http.MethodGet, "/ledger/entries/"+strconv.Itoa(idx), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) threatCall(ctx context.Context, method, path string) (*threat.Threat, error) {
	var resp threatResponse
	if err := c.call(ctx, method, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Threat, nil
}

// call performs a JSON request against the API prefix. reqBody and respBody
// may be nil.
func (c *Client) call(ctx context.Context, method, path string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+apiPrefix+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if respBody != nil && len(data) > 0 {
		if err := json.Unmarshal(data, respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
