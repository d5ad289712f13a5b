// Package claude produces one-line extracts for source records through the
// Claude messages API.
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultEndpoint = "https://api.anthropic.com/v1/messages"

const systemPrompt = `You summarize one work item for a personal attention queue.
Reply with a single sentence, at most 140 characters, stating what the item
is and what action it needs. No preamble, no quotes.`

// Summarizer calls the Claude API to produce one-line summaries.
type Summarizer struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// New creates a summarizer with the given API key and model name.
func New(apiKey, model string) *Summarizer {
	return &Summarizer{
		apiKey:   apiKey,
		model:    model,
		endpoint: defaultEndpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetEndpoint overrides the API endpoint. Used by tests.
func (s *Summarizer) SetEndpoint(url string) {
	s.endpoint = url
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type response struct {
	ID      string         `json:"id"`
	Content []contentBlock `json:"content"`
}

// Summarize produces a one-line summary for a record's title and snippet.
func (s *Summarizer) Summarize(ctx context.Context, title, snippet string) (string, error) {
	user := "Title: " + title
	if snippet != "" {
		user += "\nBody: " + snippet
	}

	body, err := json.Marshal(&request{
		Model:     s.model,
		MaxTokens: 200,
		System:    systemPrompt,
		Messages:  []message{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", s.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("claude api error %d: %s", resp.StatusCode, string(respBody))
	}

	var out response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	summary := strings.TrimSpace(text.String())
	if summary == "" {
		return "", fmt.Errorf("empty summary in response %s", out.ID)
	}
	return summary, nil
}
