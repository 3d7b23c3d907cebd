// Package gemini implements intent extraction and reply generation on top of
// the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/aretw0/concierge/pkg/domain"
)

const (
	DefaultModel   = "gemini-1.5-flash"
	DefaultTimeout = 15 * time.Second
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("empty model response")

// Generator produces model text from a chat history and a new prompt.
type Generator interface {
	Generate(ctx context.Context, history []*genai.Content, prompt string) (string, error)
}

// Client is a Generator backed by a Gemini model.
type Client struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

// NewClient connects to Gemini with an API key.
func NewClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is empty", domain.ErrInvalidInput)
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	m := client.GenerativeModel(model)
	m.SetTemperature(0.4)
	return &Client{client: client, model: m, timeout: timeout}, nil
}

// Generate runs one chat turn.
func (c *Client) Generate(ctx context.Context, history []*genai.Content, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	chat := c.model.StartChat()
	chat.History = history
	resp, err := chat.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", &domain.ExternalError{Service: "gemini", Err: err}
	}
	text := responseText(resp)
	if text == "" {
		return "", &domain.ExternalError{Service: "gemini", Err: ErrEmptyResponse}
	}
	return text, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String())
}

func content(role, text string) *genai.Content {
	return &genai.Content{Role: role, Parts: []genai.Part{genai.Text(text)}}
}
