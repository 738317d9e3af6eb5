/**
 * @description
 * Stage worker that delivers signed webhooks to the upstream application.
 * The body is HMAC-signed so the receiver can authenticate the sender;
 * any delivery failure is retried with the queue's backoff until the
 * attempt budget runs out.
 */
package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/transfa/signer-service/internal/domain"
	"github.com/transfa/signer-service/internal/queue"
)

// NotificationWorker posts transfer webhooks to the configured callbacks.
type NotificationWorker struct {
	client *http.Client
	signer *domain.Signer
	logger *slog.Logger
}

// NewNotificationWorker returns the webhook delivery stage handler.
func NewNotificationWorker(client *http.Client, signer *domain.Signer, logger *slog.Logger) *NotificationWorker {
	if client == nil {
		client = http.DefaultClient
	}
	return &NotificationWorker{client: client, signer: signer, logger: logger}
}

// Handle delivers one webhook.
func (w *NotificationWorker) Handle(ctx context.Context, job queue.Job) (queue.Disposition, error) {
	var payload domain.NotificationJob
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return queue.Fatal, fmt.Errorf("decode notification job %s: %w", job.ID, err)
	}
	path, err := payload.Type.WebhookPath()
	if err != nil {
		return queue.Fatal, fmt.Errorf("notification job %s: %w", job.ID, err)
	}

	body, err := json.Marshal(payload.Body())
	if err != nil {
		return queue.Fatal, fmt.Errorf("encode webhook body for %s: %w", payload.InternalID, err)
	}

	url := strings.TrimSuffix(payload.Callback, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return queue.Fatal, fmt.Errorf("build webhook request for %s: %w", payload.InternalID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", w.signer.Sign(body))

	resp, err := w.client.Do(req)
	if err != nil {
		return queue.RetryLater, fmt.Errorf("deliver webhook for %s: %w", payload.InternalID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return queue.RetryLater, fmt.Errorf("deliver webhook for %s: upstream returned %d", payload.InternalID, resp.StatusCode)
	}
	w.logger.Info("webhook delivered",
		"transfer_id", payload.InternalID, "type", int(payload.Type), "url", url)
	return queue.Advance, nil
}
