package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
)

// OutboundMessage is the payload posted to the bridge for every reply.
type OutboundMessage struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// WebhookGateway implements ports.Gateway by posting to a bridge URL.
type WebhookGateway struct {
	url    string
	token  string
	client *http.Client
}

// NewWebhookGateway posts replies to url. A nil client uses a 10s timeout.
func NewWebhookGateway(url, token string, client *http.Client) *WebhookGateway {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookGateway{url: url, token: token, client: client}
}

func (g *WebhookGateway) Deliver(ctx context.Context, to, text string) error {
	body, err := json.Marshal(OutboundMessage{To: to, Text: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return &domain.ExternalError{Service: "gateway", Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.ExternalError{Service: "gateway", Err: fmt.Errorf("bridge returned %s", resp.Status)}
	}
	return nil
}
