package outbox

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/obiefule/wallet-platform/internal/domain"
)

const (
	pollBatchSize = 10
	maxAttempts   = 5

	signatureHeader = "X-Wallet-Signature"
	eventTypeHeader = "X-Wallet-Event"
)

type eventRepo interface {
	GetPending(ctx context.Context, limit int) ([]domain.WebhookEvent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WebhookEventStatus, attempts int) error
}

// Dispatcher delivers outbox rows to the configured webhook endpoint. Rows
// stay pending across failed attempts until maxAttempts is reached, so
// consumers may see an event more than once but never miss one.
type Dispatcher struct {
	events   eventRepo
	client   *http.Client
	url      string
	secret   string
	logger   *slog.Logger
	interval time.Duration
}

func NewDispatcher(events eventRepo, url, secret string, logger *slog.Logger, interval time.Duration) *Dispatcher {
	return &Dispatcher{
		events:   events,
		client:   &http.Client{Timeout: 10 * time.Second},
		url:      url,
		secret:   secret,
		logger:   logger,
		interval: interval,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	if d.url == "" {
		d.logger.Info("webhook dispatcher disabled: no endpoint configured")
		return
	}

	d.logger.Info("webhook dispatcher started", "interval", d.interval)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("webhook dispatcher stopped")
			return
		case <-ticker.C:
			d.poll(ctx)
		}
	}
}

func (d *Dispatcher) poll(ctx context.Context) {
	events, err := d.events.GetPending(ctx, pollBatchSize)
	if err != nil {
		d.logger.Error("failed to fetch pending webhook events", "error", err)
		return
	}

	for _, event := range events {
		if err := d.dispatch(ctx, event); err != nil {
			d.logger.Error("failed to dispatch webhook event",
				"webhook_event_id", event.ID,
				"event_type", event.EventType,
				"attempts", event.Attempts+1,
				"error", err,
			)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, event domain.WebhookEvent) error {
	attempts := event.Attempts + 1

	if err := d.deliver(ctx, event); err != nil {
		status := domain.WebhookEventStatusPending
		if attempts >= maxAttempts {
			status = domain.WebhookEventStatusFailed
		}
		if updateErr := d.events.UpdateStatus(ctx, event.ID, status, attempts); updateErr != nil {
			return fmt.Errorf("dispatch: %w (update failed: %v)", err, updateErr)
		}
		return fmt.Errorf("dispatch: %w", err)
	}

	if err := d.events.UpdateStatus(ctx, event.ID, domain.WebhookEventStatusDispatched, attempts); err != nil {
		return fmt.Errorf("dispatch: mark dispatched: %w", err)
	}

	d.logger.Info("webhook event dispatched",
		"webhook_event_id", event.ID,
		"event_type", event.EventType,
	)
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, event domain.WebhookEvent) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(event.Payload))
	if err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(eventTypeHeader, string(event.EventType))
	req.Header.Set(signatureHeader, sign(d.secret, event.Payload))

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("deliver: endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
