package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"github.com/gitscribe/gitscribe/internal/models"
	"github.com/gitscribe/gitscribe/pkg/config"
	"github.com/gitscribe/gitscribe/pkg/logging"
	"github.com/gitscribe/gitscribe/pkg/telemetry"
)

// ErrRateLimited signals an HTTP 429 from the model API
var ErrRateLimited = fmt.Errorf("ai: rate limited")

// ErrNoJSON is returned when the model response contains no parseable
// JSON object. Callers must treat this as a failed draft; partial
// content is never salvaged.
var ErrNoJSON = fmt.Errorf("ai: no JSON object in model response")

// Client wraps the generative AI API
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
	retryBase  time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a new AI drafting client
func New(cfg *config.AIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ai_api_key is required")
	}

	return &Client{
		baseURL:    cfg.APIURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.RetryBase,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logging.WithComponent("ai-client"),
	}, nil
}

// AnalyzeCommits drafts a blog post from a commit diff batch.
// The returned result always carries the caller's commit SHAs and repo
// name; the model is never trusted to echo them correctly.
func (c *Client) AnalyzeCommits(ctx context.Context, commitDiffs []models.CommitDiff, repoFullName string) (*models.GenerateResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ai.analyze_commits")
	defer span.End()

	if len(commitDiffs) == 0 {
		return nil, fmt.Errorf("ai: no commits to analyze")
	}

	prompt := BuildPrompt(commitDiffs, repoFullName)

	text, err := c.generateWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	parsed, err := ParseResponse(text)
	if err != nil {
		c.logger.Error("Failed to parse model response",
			zap.String("repo", repoFullName),
			zap.Error(err))
		return nil, err
	}

	shas := make([]string, 0, len(commitDiffs))
	for _, cd := range commitDiffs {
		shas = append(shas, cd.Commit.Sha)
	}
	parsed.Commits = shas
	parsed.Repo = repoFullName

	return parsed, nil
}

// generateWithRetry calls the model, retrying only on rate limiting
// with exponential backoff. Any other failure propagates immediately.
func (c *Client) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	b := &backoff.Backoff{
		Min:    c.retryBase,
		Max:    c.retryBase << 4,
		Factor: 2,
		Jitter: false,
	}

	for attempt := 0; ; attempt++ {
		text, err := c.generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		if err != ErrRateLimited || attempt >= c.maxRetries {
			return "", err
		}

		delay := b.Duration()
		c.logger.Warn("Model rate limited, backing off",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
}

// generate performs one generateContent call
func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	reqBody := generateRequest{
		Contents: []content{
			{Parts: []part{{Text: prompt}}},
		},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read model response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("model returned status %d: %s", resp.StatusCode, truncateForLog(body))
	}

	var gr generateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return "", fmt.Errorf("failed to unmarshal model response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("model returned no candidates")
	}

	return gr.Candidates[0].Content.Parts[0].Text, nil
}

// ParseResponse extracts and validates the structured result from raw
// model output. Code fences are stripped and the outermost {...} span
// is parsed; anything less is a hard failure.
func ParseResponse(text string) (*models.GenerateResult, error) {
	cleaned := stripCodeFences(text)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return nil, ErrNoJSON
	}

	var result models.GenerateResult
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("ai: failed to parse model JSON: %w", err)
	}
	if result.Title == "" || result.Content == "" {
		return nil, fmt.Errorf("ai: model response missing title or content")
	}
	if result.Tags == nil {
		result.Tags = []string{}
	}
	return &result, nil
}

func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func truncateForLog(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}
