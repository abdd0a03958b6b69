package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidAmount          = errors.New("amount must not be negative")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrOutOfEligibleRange     = errors.New("amount outside eligible installment range")
	ErrTooManyInstallments    = errors.New("installment count exceeds rule maximum")
	ErrAlreadySettled         = errors.New("installment already settled")
	ErrNoPenaltyRuleForPeriod = errors.New("no penalty rule covers this period")
	ErrUnauthorized           = errors.New("actor is not authorized")
	ErrConcurrencyConflict    = errors.New("wallet was modified concurrently")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInvalidCurrency        = errors.New("invalid currency")
	ErrUserNotFound           = errors.New("user not found")
	ErrProviderInactive       = errors.New("payment provider is inactive")
	ErrInvalidRequest         = errors.New("invalid request")
	ErrUserExists             = errors.New("user already exists")
)
