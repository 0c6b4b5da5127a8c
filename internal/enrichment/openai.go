package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/cjmcneal02/Biosec-Project/internal/insights"
	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = openai.GPT3Dot5Turbo

// ErrNoAPIKey is returned by NewOpenAIAnalyzer without an API key.
var ErrNoAPIKey = errors.New("OpenAI API key not configured")

// OpenAIConfig holds connection settings for OpenAIAnalyzer.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // optional, e.g. an OpenAI-compatible proxy
}

// OpenAIAnalyzer implements Analyzer, Generator and Advisor with chat
// completions. Responses are repaired field by field; a response that is
// not JSON at all is an error.
type OpenAIAnalyzer struct {
	client *openai.Client
	model  string
	now    func() time.Time
}

// NewOpenAIAnalyzer creates an analyzer from cfg.
func NewOpenAIAnalyzer(cfg OpenAIConfig) (*OpenAIAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIAnalyzer{
		client: openai.NewClientWithConfig(oc),
		model:  model,
		now:    time.Now,
	}, nil
}

type completionParams struct {
	system      string
	temperature float32
	maxTokens   int
}

var (
	assessParams = completionParams{
		system:      "You are a cybersecurity expert analyzing biotech threats. Always respond with valid JSON only, no additional text.",
		temperature: 0.3,
		maxTokens:   300,
	}
	mitigationParams = completionParams{
		system:      "You are a cybersecurity expert providing actionable mitigation strategies. Always respond with valid JSON only, no additional text.",
		temperature: 0.4,
		maxTokens:   500,
	}
	contextParams = completionParams{
		system:      "You are a threat intelligence analyst relating biotech incidents to the wider threat landscape. Always respond with valid JSON only, no additional text.",
		temperature: 0.5,
		maxTokens:   300,
	}
	generateParams = completionParams{
		system:      "You are a cybersecurity expert. Always respond with valid JSON only, no additional text or markdown formatting.",
		temperature: 0.8,
		maxTokens:   4000,
	}
	recommendParams = completionParams{
		system:      "You are a cybersecurity expert providing strategic threat intelligence recommendations. Always respond with valid JSON only, no additional text.",
		temperature: 0.5,
		maxTokens:   200,
	}
)

func (a *OpenAIAnalyzer) complete(ctx context.Context, prompt string, p completionParams) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Assess implements Analyzer.
func (a *OpenAIAnalyzer) Assess(ctx context.Context, in threat.Input) (threat.Assessment, error) {
	prompt := fmt.Sprintf(`You are a cybersecurity analyst specializing in biotech threat intelligence. Analyze the following threat and provide a risk assessment.

Threat Title: %s
Description: %s
Date Detected: %s
Source: %s

Please provide:
1. A risk score from 0-100 (as a number only)
2. One of these categories: %s
3. A brief 2-3 sentence summary of the threat
4. A confidence level from 0.7 to 1.0 (as a decimal number)

Respond in JSON format only:
{
  "risk": <number 0-100>,
  "category": "<category name>",
  "summary": "<brief summary>",
  "confidence": <number 0.7-1.0>
}`, in.Title, in.Description, in.Date, in.Source, quotedCategories())

	content, err := a.complete(ctx, prompt, assessParams)
	if err != nil {
		return threat.Assessment{}, err
	}
	raw, err := decodeModelJSON[map[string]any](content)
	if err != nil {
		return threat.Assessment{}, err
	}
	return AssessmentFromPayload(raw, a.now()), nil
}

// PlanMitigation implements Analyzer.
func (a *OpenAIAnalyzer) PlanMitigation(ctx context.Context, in threat.Input, l1 threat.Assessment) (threat.MitigationPlan, error) {
	prompt := fmt.Sprintf(`You are a cybersecurity expert providing actionable mitigation steps for a biotech threat.

Threat Details:
Title: %s
Description: %s
Category: %s
Risk Score: %d/100

Generate specific, actionable mitigation steps for this threat. Provide:
1. 3-5 specific mitigation steps (as a JSON array of strings)
2. Priority level: "Low", "Medium", "High", or "Critical" (based on risk score)
3. Estimated impact (one sentence)
4. Recommended actions (3-4 items as JSON array of strings)

Respond in JSON format only:
{
  "mitigations": ["step 1", "step 2", ...],
  "priority": "<Low|Medium|High|Critical>",
  "estimatedImpact": "<one sentence>",
  "recommendedActions": ["action 1", "action 2", ...]
}`, in.Title, in.Description, l1.Category, l1.Risk)

	content, err := a.complete(ctx, prompt, mitigationParams)
	if err != nil {
		return threat.MitigationPlan{}, err
	}
	raw, err := decodeModelJSON[map[string]any](content)
	if err != nil {
		return threat.MitigationPlan{}, err
	}
	return MitigationFromPayload(raw, l1, a.now()), nil
}

// Contextualize implements Analyzer.
func (a *OpenAIAnalyzer) Contextualize(ctx context.Context, in threat.Input, l1 threat.Assessment, l2 threat.MitigationPlan) (threat.ContextInsights, error) {
	prompt := fmt.Sprintf(`Relate the following biotech security threat to current industry trends.

Title: %s
Description: %s
Category: %s
Risk Score: %d/100
Priority: %s

Provide one or two sentences of contextual insight and, if you know of any, identifiers of related public threat reports.

Respond in JSON format only:
{
  "contextualInsights": "<insight>",
  "relatedThreats": ["id 1", "id 2", ...]
}`, in.Title, in.Description, l1.Category, l1.Risk, l2.Priority)

	content, err := a.complete(ctx, prompt, contextParams)
	if err != nil {
		return threat.ContextInsights{}, err
	}
	raw, err := decodeModelJSON[map[string]any](content)
	if err != nil {
		return threat.ContextInsights{}, err
	}
	return ContextFromPayload(raw, a.now()), nil
}

// GenerateThreats implements Generator.
func (a *OpenAIAnalyzer) GenerateThreats(ctx context.Context, count int) ([]threat.Input, error) {
	prompt := fmt.Sprintf(`You are a cybersecurity expert generating realistic biotech threat intelligence reports.

Generate exactly %d diverse, realistic biotech security threat scenarios. Each threat should be unique and cover different categories:
%s

For each threat, provide:
- title: A concise, realistic threat title (10-15 words)
- description: A detailed description of the threat (2-4 sentences)
- date: A date in YYYY-MM-DD format within the last 90 days
- source: A realistic source name (e.g., "Network Security Monitor", "Lab Security System", "SIEM Alert", "Employee Report", "Vendor Notification")

Respond with JSON only in this exact format:
{
  "threats": [
    {
      "title": "...",
      "description": "...",
      "date": "YYYY-MM-DD",
      "source": "..."
    },
    ...
  ]
}`, count, bulletCategories())

	content, err := a.complete(ctx, prompt, generateParams)
	if err != nil {
		return nil, err
	}
	resp, err := decodeModelJSON[struct {
		Threats []threat.Input `json:"threats"`
	}](content)
	if err != nil {
		return nil, err
	}
	if resp.Threats == nil {
		return nil, fmt.Errorf("invalid response format from OpenAI: missing threats array")
	}
	return RepairInputs(resp.Threats, count, a.now()), nil
}

// Recommend implements Advisor.
func (a *OpenAIAnalyzer) Recommend(ctx context.Context, threats []*threat.Threat, summary insights.GlobalInsights) (string, error) {
	if len(threats) == 0 {
		return RecommendationEmpty, nil
	}

	var lines []string
	for i, t := range threats {
		if i == 10 {
			break
		}
		cat, ok := t.Category()
		if !ok {
			cat = "Unanalyzed"
		}
		lines = append(lines, fmt.Sprintf("%d. %s - %s (Risk: %d/100)", i+1, t.Title, cat, t.Risk()))
	}

	prompt := fmt.Sprintf(`You are a cybersecurity expert analyzing the overall threat landscape for a biotech company.

Current Threat Landscape:
- Total Threats: %d
- Average Risk Score: %d/100
- Top Category: %s
- Risk Distribution: Low: %d, Medium: %d, High: %d, Critical: %d
- Recent Activity: %d in last 24h, %d in last 7 days

Recent Threats:
%s

Provide a concise, actionable recommendation (2-4 sentences) about the overall threat landscape and what should be prioritized. Focus on practical guidance for the security team.

Respond with JSON only:
{
  "recommendation": "<your recommendation text>"
}`,
		summary.TotalThreats, summary.AvgRisk, summary.TopCategory,
		summary.RiskDistribution.Low, summary.RiskDistribution.Medium,
		summary.RiskDistribution.High, summary.RiskDistribution.Critical,
		summary.RecentActivity.Last24h, summary.RecentActivity.Last7d,
		strings.Join(lines, "\n"))

	content, err := a.complete(ctx, prompt, recommendParams)
	if err != nil {
		return "", err
	}
	resp, err := decodeModelJSON[struct {
		Recommendation string `json:"recommendation"`
	}](content)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Recommendation) == "" {
		return RecommendationFallback, nil
	}
	return strings.TrimSpace(resp.Recommendation), nil
}

func quotedCategories() string {
	cats := threat.Categories()
	parts := make([]string, len(cats))
	for i, c := range cats {
		parts[i] = `"` + string(c) + `"`
	}
	return strings.Join(parts, ", ")
}

func bulletCategories() string {
	cats := threat.Categories()
	parts := make([]string, len(cats))
	for i, c := range cats {
		parts[i] = "- " + string(c)
	}
	return strings.Join(parts, "\n")
}
