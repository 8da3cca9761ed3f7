// Package llm is a small OpenAI-compatible chat client used as the
// semantic fallback of the generic adapter: it decides whether a block of
// page text is a customer review and reads its fields.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/use-agent/reviewlens/models"
)

// ErrNotConfigured is returned when the client has no API key.
var ErrNotConfigured = errors.New("llm: no API key configured")

// Config holds the endpoint settings.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // e.g. "https://api.openai.com/v1"
}

// Client classifies review blocks with a chat completion model.
type Client struct {
	http  *resty.Client
	key   string
	model string
}

// NewClient creates a Client. hc may be nil; pass one to route requests
// through a custom transport (tests do this with httptest).
func NewClient(cfg Config, hc *http.Client) *Client {
	var rc *resty.Client
	if hc != nil {
		rc = resty.NewWithClient(hc)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second).
		SetRetryCount(1).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r != nil && (r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500)
		})

	return &Client{http: rc, key: cfg.APIKey, model: cfg.Model}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// blockVerdict is the JSON object the model is asked to return.
type blockVerdict struct {
	IsReview bool            `json:"is_review"`
	Title    string          `json:"title"`
	Body     string          `json:"body"`
	Rating   json.RawMessage `json:"rating"`
	Reviewer string          `json:"reviewer"`
}

const systemPrompt = `You read fragments of e-commerce pages. Decide whether the fragment is a single customer review of a product.

Return ONLY a JSON object with these keys:
- "is_review": true or false
- "title": the review headline, or ""
- "body": the review text, or ""
- "rating": the star rating as a number, or null
- "reviewer": the reviewer's display name, or ""

Seller answers, questions, advertisements and navigation are not reviews. Copy text verbatim; never invent values.`

// ClassifyReviewBlock asks the model about one block of text. It returns
// the extracted fields and true when the block is a review.
func (c *Client) ClassifyReviewBlock(ctx context.Context, text string) (*models.RawReview, bool, error) {
	if c.key == "" {
		return nil, false, ErrNotConfigured
	}

	var (
		out    chatResponse
		apiErr chatErrorResponse
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.key).
		SetBody(chatRequest{
			Model: c.model,
			Messages: []chatMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: text},
			},
			Temperature:    0,
			ResponseFormat: &responseFormat{Type: "json_object"},
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return nil, false, fmt.Errorf("llm: request failed: %w", err)
	}
	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		return nil, false, fmt.Errorf("llm: API returned %d: %s", resp.StatusCode(), msg)
	}
	if len(out.Choices) == 0 {
		return nil, false, errors.New("llm: no choices returned")
	}

	return parseVerdict(out.Choices[0].Message.Content)
}

// parseVerdict decodes the model's JSON answer. Markdown code fences around
// the object are tolerated.
func parseVerdict(content string) (*models.RawReview, bool, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var v blockVerdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &v); err != nil {
		return nil, false, fmt.Errorf("llm: invalid verdict JSON: %w", err)
	}
	if !v.IsReview {
		return nil, false, nil
	}
	return &models.RawReview{
		Title:      strings.TrimSpace(v.Title),
		Body:       strings.TrimSpace(v.Body),
		RatingText: ratingString(v.Rating),
		Reviewer:   strings.TrimSpace(v.Reviewer),
	}, true, nil
}

// ratingString accepts a JSON number or string and returns it as text.
func ratingString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return ""
}
