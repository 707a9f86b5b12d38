/*
Package explain drafts natural-language commentary for variance summaries.

PURPOSE:
  Wraps an OpenAI-compatible chat completion endpoint. The accounting
  team pastes the generated draft into the monthly cost report; the
  numbers in the prompt come from the persisted variance summary, so the
  model only ever phrases, never computes.

CONFIGURATION (environment):
  EXPLAIN_API_KEY   required; the client is unavailable without it
  EXPLAIN_BASE_URL  default https://api.openai.com/v1
  EXPLAIN_MODEL     default gpt-4o-mini
*/
package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/arakawak223/stdcost/jpfmt"
	"github.com/arakawak223/stdcost/variance"
)

// ErrUnavailable is returned when no API key is configured.
var ErrUnavailable = errors.New("explanation service is not configured")

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
)

type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewFromEnv builds a client from the EXPLAIN_* environment variables.
// The returned client is non-nil even when unconfigured; calls then
// fail with ErrUnavailable so handlers can map it to 503.
func NewFromEnv() *Client {
	baseURL := os.Getenv("EXPLAIN_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := os.Getenv("EXPLAIN_MODEL")
	if model == "" {
		model = defaultModel
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  os.Getenv("EXPLAIN_API_KEY"),
		model:   model,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Available reports whether the client has credentials.
func (c *Client) Available() bool { return c.apiKey != "" }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ExplainVariance drafts a short commentary for the summary, naming the
// largest variances and their direction.
func (c *Client) ExplainVariance(ctx context.Context, year, month int, summary *variance.Summary) (string, error) {
	if !c.Available() {
		return "", ErrUnavailable
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "対象期間: %s\n", jpfmt.FiscalPeriod(year, month))
	fmt.Fprintf(&sb, "標準原価合計: %s / 実際原価合計: %s / 差異合計: %s\n",
		jpfmt.Currency(summary.TotalStandard),
		jpfmt.Currency(summary.TotalActual),
		jpfmt.Currency(summary.TotalVariance))
	for _, es := range summary.Elements {
		fmt.Fprintf(&sb, "- %s: 標準 %s, 実際 %s, 差異 %s (%s), 閾値超過 %d件\n",
			es.Element,
			jpfmt.Currency(es.TotalStandard),
			jpfmt.Currency(es.TotalActual),
			jpfmt.Currency(es.TotalVariance),
			jpfmt.Percent(es.AverageVariancePercent),
			es.FlaggedCount)
	}

	return c.complete(ctx, []chatMessage{
		{
			Role: "system",
			Content: "あなたは製造業の原価管理担当者です。以下の標準原価差異分析の結果を、" +
				"月次報告書向けに3〜5文で簡潔に説明してください。数値は与えられたものだけを使い、" +
				"大きな差異とその有利・不利を明確にしてください。",
		},
		{Role: "user", Content: sb.String()},
	})
}

func (c *Client) complete(ctx context.Context, messages []chatMessage) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("explanation request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("unexpected explanation response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("explanation service error: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK || len(parsed.Choices) == 0 {
		return "", fmt.Errorf("explanation service returned status %d", resp.StatusCode)
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
