package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/AliNMackie/cofound-platform/internal/domain/analysis"
	"github.com/AliNMackie/cofound-platform/internal/domain/firewall"
	domain "github.com/AliNMackie/cofound-platform/internal/domain/jobs"
	"github.com/AliNMackie/cofound-platform/internal/infra/ai/prompt"
)

const maxTokens = 2048

// Client implements both the analysis.Analyzer and firewall.IntentClassifier
// ports against the OpenAI API. The two ports use separate models and
// prompts; the classifier call is deliberately independent from the analysis
// call path.
type Client struct {
	api             *openai.Client
	Model           string
	ClassifierModel string
}

func NewClient(apiKey, model, classifierModel string) *Client {
	return &Client{
		api:             openai.NewClient(apiKey),
		Model:           model,
		ClassifierModel: classifierModel,
	}
}

func (c *Client) chat(ctx context.Context, model, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	// Reasoning models (o1/o3/o4/gpt-5*) take MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

// retryable maps provider transport, rate-limit and server errors onto the
// redeliverable class; other API errors are permanent.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	// Connection-level failures arrive as plain errors.
	return true
}

// Analyze implements analysis.Analyzer.
func (c *Client) Analyze(ctx context.Context, contractText string) (*analysis.Result, error) {
	model := c.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	content, err := c.chat(ctx, model, prompt.GetAnalyzerSystemPrompt(), prompt.GetAnalyzerUserPrompt(contractText))
	if err != nil {
		if retryable(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrAnalyzerUnavailable, err)
		}
		return nil, fmt.Errorf("analysis request rejected: %w", err)
	}

	var parsed struct {
		Summary   string  `json:"summary"`
		RiskScore float64 `json:"risk_score"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		// A malformed completion is worth one more round trip.
		return nil, fmt.Errorf("%w: malformed analysis output: %v", domain.ErrAnalyzerUnavailable, err)
	}
	return &analysis.Result{
		Summary:   parsed.Summary,
		RiskScore: parsed.RiskScore,
		Raw:       content,
	}, nil
}

// Classify implements firewall.IntentClassifier.
func (c *Client) Classify(ctx context.Context, text string) (firewall.Intent, error) {
	model := c.ClassifierModel
	if model == "" {
		model = "gpt-4o-mini"
	}
	content, err := c.chat(ctx, model, prompt.GetGuardSystemPrompt(), prompt.GetGuardUserPrompt(text))
	if err != nil {
		return firewall.Intent{}, err
	}

	var parsed struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
		Category   string  `json:"category"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return firewall.Intent{}, fmt.Errorf("malformed classifier output: %w", err)
	}
	return firewall.Intent{
		Adversarial: strings.EqualFold(parsed.Label, "adversarial"),
		Confidence:  parsed.Confidence,
		Category:    parsed.Category,
	}, nil
}
