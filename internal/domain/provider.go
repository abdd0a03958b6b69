package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentProvider is a processor identity (Stripe, PayPal, ...). Providers
// are deactivated when retired, never hard-deleted.
type PaymentProvider struct {
	ID        uuid.UUID
	Name      string
	ImageURL  *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

type Currency struct {
	ID             uuid.UUID
	Code           string
	FractionDigits int
	CreatedAt      time.Time
}
