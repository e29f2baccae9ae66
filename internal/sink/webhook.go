// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package sink

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/presencewatch/internal/models"
)

// WebhookNotifier sends transitions to a generic webhook endpoint.
type WebhookNotifier struct {
	webhookURL string
	client     *http.Client
	limiter    *rate.Limiter
}

// WebhookPayload is the JSON payload sent to the webhook endpoint.
type WebhookPayload struct {
	Transition models.Transition `json:"transition"`
	EventType  string            `json:"event_type"` // presence_transition
	Timestamp  time.Time         `json:"timestamp"`
	Source     string            `json:"source"` // presencewatch
}

// NewWebhookNotifier creates a notifier that sends at most perMinute
// requests per minute. perMinute <= 0 disables the limit.
func NewWebhookNotifier(webhookURL string, perMinute int, timeout time.Duration) *WebhookNotifier {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Name implements Named.
func (n *WebhookNotifier) Name() string { return "webhook" }

// Notify implements NotificationSink.
func (n *WebhookNotifier) Notify(ctx context.Context, t models.Transition) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit wait: %w", err)
	}

	payload := WebhookPayload{
		Transition: t,
		EventType:  "presence_transition",
		Timestamp:  time.Now(),
		Source:     "presencewatch",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
