// Package llm adapts OpenAI chat completions to the classifier and arbiter
// ports.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"onlyjobs_server/core/domain"
	"onlyjobs_server/core/port/out"
	"onlyjobs_server/pkg/apperr"
	"onlyjobs_server/pkg/logger"
)

const DefaultModel = "gpt-4o-mini"

// Client calls the OpenAI API behind a circuit breaker. The breaker opens
// after repeated failures so a degraded model endpoint sheds load fast
// instead of timing out unit by unit.
type Client struct {
	client    *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
	breaker   *gobreaker.CircuitBreaker
	log       *logger.Logger
}

type ClientConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

func NewClient(cfg ClientConfig) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	log := logger.Default().WithField("component", "llm_client")
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "openai",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Client{
		client:    openai.NewClient(cfg.APIKey),
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
		breaker:   breaker,
		log:       log,
	}
}

var (
	_ out.EmailClassifier = (*Client)(nil)
	_ out.JobArbiter      = (*Client)(nil)
)

type classifyResponse struct {
	IsJobRelated bool    `json:"is_job_related"`
	Company      string  `json:"company"`
	Position     string  `json:"position"`
	Status       string  `json:"status"`
	Confidence   float64 `json:"confidence"`
}

const classifySystemPrompt = `You are a job-application email analyst. Analyze the email and respond with JSON only.

An email is job related when it concerns a specific job application of the recipient: application confirmations, recruiter outreach about an applied role, interview scheduling, offers, and rejections. Newsletters, job boards listing many roles, and general marketing are NOT job related.

Status must be one of: Applied, Interview, Offer, Declined.

Respond with this exact JSON format:
{
  "is_job_related": true|false,
  "company": "employer name or empty",
  "position": "position title or empty",
  "status": "Applied|Interview|Offer|Declined",
  "confidence": 0.0-1.0
}`

// Classify analyzes one email's subject and body.
func (c *Client) Classify(ctx context.Context, subject, body string) (*domain.ClassificationResult, error) {
	userPrompt := fmt.Sprintf("Subject: %s\n\nBody:\n%s", subject, truncateBody(body, 4000))

	resp, err := c.complete(ctx, classifySystemPrompt, userPrompt)
	if err != nil {
		return nil, apperr.ExternalError("openai classify", err)
	}

	var result classifyResponse
	if err := json.Unmarshal([]byte(trimJSONFence(resp)), &result); err != nil {
		return nil, apperr.ExternalError("openai classify", fmt.Errorf("failed to parse classification response: %w", err))
	}
	return &domain.ClassificationResult{
		IsJobRelated: result.IsJobRelated,
		Company:      strings.TrimSpace(result.Company),
		Position:     strings.TrimSpace(result.Position),
		Status:       strings.TrimSpace(result.Status),
		Confidence:   result.Confidence,
	}, nil
}

const matchSystemPrompt = `You decide whether two job-application records describe the same application: the same person applying to the same position at the same employer. Each record carries its tracked status; statuses may differ when the same application has progressed. Respond with JSON only.

Respond with this exact JSON format:
{
  "same_job": true|false
}`

// MatchJobs asks the model whether a candidate email and an existing job
// describe the same application.
func (c *Client) MatchJobs(ctx context.Context, candidate, existing out.JobSignature) (bool, error) {
	userPrompt := fmt.Sprintf(
		"Record A:\nCompany: %s\nPosition: %s\nStatus: %s\n\nRecord B:\nCompany: %s\nPosition: %s\nStatus: %s",
		candidate.Company, candidate.Position, candidate.Status,
		existing.Company, existing.Position, existing.Status,
	)

	resp, err := c.complete(ctx, matchSystemPrompt, userPrompt)
	if err != nil {
		return false, apperr.ExternalError("openai match", err)
	}

	var result struct {
		SameJob bool `json:"same_job"`
	}
	if err := json.Unmarshal([]byte(trimJSONFence(resp)), &result); err != nil {
		return false, apperr.ExternalError("openai match", fmt.Errorf("failed to parse match response: %w", err))
	}
	return result.SameJob, nil
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	content, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: userPrompt,
				},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("empty completion response")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", err
	}
	return content.(string), nil
}

func trimJSONFence(resp string) string {
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimSuffix(resp, "```")
	return strings.TrimSpace(resp)
}

func truncateBody(body string, maxLen int) string {
	if len(body) <= maxLen {
		return body
	}
	return body[:maxLen] + "..."
}
