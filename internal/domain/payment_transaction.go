package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type PaymentTransactionStatus string

const (
	PaymentStatusAuthorized PaymentTransactionStatus = "AUTHORIZED"
	PaymentStatusCaptured   PaymentTransactionStatus = "CAPTURED"
	PaymentStatusRefunded   PaymentTransactionStatus = "REFUNDED"
	PaymentStatusCancelled  PaymentTransactionStatus = "CANCELLED"
	PaymentStatusFailed     PaymentTransactionStatus = "FAILED"
)

// paymentTransitions is the exhaustive transition table. Anything not listed
// here is rejected with ErrInvalidTransition.
var paymentTransitions = map[PaymentTransactionStatus][]PaymentTransactionStatus{
	PaymentStatusAuthorized: {PaymentStatusCaptured, PaymentStatusCancelled, PaymentStatusFailed},
	PaymentStatusCaptured:   {PaymentStatusRefunded},
	PaymentStatusRefunded:   {},
	PaymentStatusCancelled:  {},
	PaymentStatusFailed:     {},
}

func (s PaymentTransactionStatus) CanTransitionTo(next PaymentTransactionStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminalSuccess reports whether linked ledger entries must have been
// applied to the wallet by the time this status is committed.
func (s PaymentTransactionStatus) IsTerminalSuccess() bool {
	return s == PaymentStatusCaptured || s == PaymentStatusRefunded
}

func (s PaymentTransactionStatus) IsTerminal() bool {
	return len(paymentTransitions[s]) == 0
}

func (s PaymentTransactionStatus) IsValid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

// PaymentTransaction is one attempt to move money through a provider.
type PaymentTransaction struct {
	ID           uuid.UUID
	Amount       Money
	PaymentToken string
	ProviderID   uuid.UUID
	StoreID      *uuid.UUID
	Status       PaymentTransactionStatus
	CurrencyID   uuid.UUID
	Metadata     map[string]string
	UserID       uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// OrderReceiptID extracts the receipt id from the "order_receipt" metadata
// key: the segment after the last underscore. Empty when the key is absent.
func (p *PaymentTransaction) OrderReceiptID() string {
	receipt, ok := p.Metadata["order_receipt"]
	if !ok || receipt == "" {
		return ""
	}
	if i := strings.LastIndex(receipt, "_"); i >= 0 {
		return receipt[i+1:]
	}
	return receipt
}
