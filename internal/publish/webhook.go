// Package publish triggers an external site rebuild through a webhook and
// rate-limits how often a user can do so.
package publish

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/starford/bucketpress/internal/apperr"
)

// maxDiagnostic bounds the response body quoted in a failure message.
const maxDiagnostic = 1 << 10

// Webhook is the publish endpoint: one POST with a bearer token.
type Webhook struct {
	URL    string
	Token  string
	Client *http.Client
}

// NewWebhook creates a webhook client. A nil client gets a 30s timeout.
func NewWebhook(url, token string, client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Webhook{URL: url, Token: token, Client: client}
}

// Validate reports a configuration error when the URL or the token is unset.
func (w *Webhook) Validate() error {
	if strings.TrimSpace(w.URL) == "" {
		return apperr.Configuration(apperr.OpPublish, "publish URL is not set")
	}
	if strings.TrimSpace(w.Token) == "" {
		return apperr.Configuration(apperr.OpPublish, "publish token is not set")
	}
	return nil
}

// Trigger calls the endpoint once. Any non-2xx status is a failure whose
// message carries the status and the response body.
func (w *Webhook) Trigger(ctx context.Context) error {
	if err := w.Validate(); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, nil)
	if err != nil {
		return apperr.Configuration(apperr.OpPublish, "invalid publish URL: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.Token)

	resp, err := w.Client.Do(req)
	if err != nil {
		return apperr.Transport(apperr.OpPublish, "failed to reach publish endpoint", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxDiagnostic))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("failed to publish: %d", resp.StatusCode)
		if b := strings.TrimSpace(string(body)); b != "" {
			msg += " " + b
		}
		return apperr.Transport(apperr.OpPublish, msg, nil)
	}
	return nil
}
