package outbox

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obiefule/wallet-platform/internal/domain"
	"github.com/obiefule/wallet-platform/internal/repository"
	"github.com/obiefule/wallet-platform/internal/testutil"
)

const testWebhookSecret = "test-webhook-secret"

type receivedWebhook struct {
	eventType string
	signature string
	body      []byte
}

type webhookCollector struct {
	mu       sync.Mutex
	received []receivedWebhook
	status   int
}

func (c *webhookCollector) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.received = append(c.received, receivedWebhook{
			eventType: r.Header.Get("X-Wallet-Event"),
			signature: r.Header.Get("X-Wallet-Signature"),
			body:      body,
		})
		status := c.status
		c.mu.Unlock()
		w.WriteHeader(status)
	}
}

func (c *webhookCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.received)
}

func insertPendingEvent(t *testing.T, db *sql.DB, eventType domain.WebhookEventType, payload string) uuid.UUID {
	t.Helper()

	repo := repository.NewWebhookEventRepository(db)
	tx, err := db.Begin()
	require.NoError(t, err)

	now := time.Now().UTC()
	event := &domain.WebhookEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   []byte(payload),
		Status:    domain.WebhookEventStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.Create(context.Background(), tx, event))
	require.NoError(t, tx.Commit())
	return event.ID
}

func getEventState(t *testing.T, db *sql.DB, id uuid.UUID) (domain.WebhookEventStatus, int) {
	t.Helper()
	var status domain.WebhookEventStatus
	var attempts int
	err := db.QueryRow(`SELECT status, attempts FROM webhook_events WHERE id = $1`, id).Scan(&status, &attempts)
	require.NoError(t, err)
	return status, attempts
}

func TestDispatcher_DeliversPendingEvents(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	collector := &webhookCollector{status: http.StatusOK}
	server := httptest.NewServer(collector.handler())
	defer server.Close()

	payload := `{"payment_transaction_id":"abc","status":"CAPTURED"}`
	eventID := insertPendingEvent(t, db, domain.WebhookEventPaymentCaptured, payload)

	d := NewDispatcher(repository.NewWebhookEventRepository(db), server.URL, testWebhookSecret, slog.Default(), time.Second)
	d.poll(ctx)

	require.Equal(t, 1, collector.count())
	got := collector.received[0]
	assert.Equal(t, string(domain.WebhookEventPaymentCaptured), got.eventType)
	assert.Equal(t, payload, string(got.body))
	assert.Equal(t, sign(testWebhookSecret, []byte(payload)), got.signature)

	status, attempts := getEventState(t, db, eventID)
	assert.Equal(t, domain.WebhookEventStatusDispatched, status)
	assert.Equal(t, 1, attempts)

	// Dispatched events are not picked up again.
	d.poll(ctx)
	assert.Equal(t, 1, collector.count())
}

func TestDispatcher_RetriesUntilMaxAttempts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	collector := &webhookCollector{status: http.StatusInternalServerError}
	server := httptest.NewServer(collector.handler())
	defer server.Close()

	eventID := insertPendingEvent(t, db, domain.WebhookEventPenaltyAssessed, `{"emi_id":"xyz"}`)

	d := NewDispatcher(repository.NewWebhookEventRepository(db), server.URL, testWebhookSecret, slog.Default(), time.Second)

	for i := 1; i < maxAttempts; i++ {
		d.poll(ctx)
		status, attempts := getEventState(t, db, eventID)
		assert.Equal(t, domain.WebhookEventStatusPending, status)
		assert.Equal(t, i, attempts)
	}

	d.poll(ctx)
	status, attempts := getEventState(t, db, eventID)
	assert.Equal(t, domain.WebhookEventStatusFailed, status)
	assert.Equal(t, maxAttempts, attempts)

	// Failed events leave the queue for good.
	d.poll(ctx)
	assert.Equal(t, maxAttempts, collector.count())
}
