package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds a single balance per user. The balance is mutated only by the
// ledger service; every write bumps Version so concurrent writers cannot
// silently lose an update.
type Wallet struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Balance   Money
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
