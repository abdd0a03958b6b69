package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type WebhookEventType string

const (
	WebhookEventPaymentCaptured  WebhookEventType = "payment_transaction.captured"
	WebhookEventPaymentRefunded  WebhookEventType = "payment_transaction.refunded"
	WebhookEventPaymentCancelled WebhookEventType = "payment_transaction.cancelled"
	WebhookEventPaymentFailed    WebhookEventType = "payment_transaction.failed"
	WebhookEventPenaltyAssessed  WebhookEventType = "emi.penalty_assessed"
)

type WebhookEventStatus string

const (
	WebhookEventStatusPending    WebhookEventStatus = "pending"
	WebhookEventStatusDispatched WebhookEventStatus = "dispatched"
	WebhookEventStatusFailed     WebhookEventStatus = "failed"
)

// WebhookEvent is an outbox row. Services enqueue events inside their own
// database transactions; the dispatcher delivers them out of band and the
// core never waits on delivery.
type WebhookEvent struct {
	ID        uuid.UUID
	EventType WebhookEventType
	Payload   json.RawMessage
	Status    WebhookEventStatus
	Attempts  int
	CreatedAt time.Time
	UpdatedAt time.Time
}
