package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionTypeWithdraw       TransactionType = "withdraw"
	TransactionTypeDeposit        TransactionType = "deposit"
	TransactionTypeRefund         TransactionType = "refund"
	TransactionTypePurchase       TransactionType = "purchase"
	TransactionTypeInstallment    TransactionType = "installment"
	TransactionTypeBNPLCredit     TransactionType = "bnpl_credit"
	TransactionTypeBNPLCommission TransactionType = "bnpl_commission"
	TransactionTypeCashback       TransactionType = "cashback"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeWithdraw, TransactionTypeDeposit, TransactionTypeRefund,
		TransactionTypePurchase, TransactionTypeInstallment, TransactionTypeBNPLCredit,
		TransactionTypeBNPLCommission, TransactionTypeCashback:
		return true
	}
	return false
}

// Transaction is one immutable ledger-log entry. Amount is signed: credits
// are positive, debits negative. AppliedAt records the moment the entry's
// effect reached the wallet balance; an entry is applied at most once, the
// claim on a nil AppliedAt is the idempotency guard.
type Transaction struct {
	ID                   uuid.UUID
	Amount               Money
	Type                 TransactionType
	UserID               uuid.UUID
	PaymentTransactionID *uuid.UUID
	EMIID                *uuid.UUID
	AppliedAt            *time.Time
	CreatedAt            time.Time
	DeletedAt            *time.Time
}
