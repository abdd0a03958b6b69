package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken       = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken       = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidCredentials = &AppError{http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password"}
	ErrInvalidRequest     = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed   = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound   = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError      = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidAmount        = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrInvalidCurrency      = &AppError{http.StatusBadRequest, "INVALID_CURRENCY", "Invalid currency"}
	ErrUserExists           = &AppError{http.StatusConflict, "USER_ALREADY_EXISTS", "A user with this email already exists"}
	ErrInvalidTransition    = &AppError{http.StatusConflict, "INVALID_TRANSITION", "Status transition not allowed"}
	ErrAlreadySettled       = &AppError{http.StatusConflict, "ALREADY_SETTLED", "Installment is already settled"}
	ErrVersionConflict      = &AppError{http.StatusConflict, "VERSION_CONFLICT", "Resource was modified concurrently, please retry"}
	ErrInsufficientFunds    = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrOutOfEligibleRange   = &AppError{http.StatusUnprocessableEntity, "OUT_OF_ELIGIBLE_RANGE", "Amount is outside the eligible installment range"}
	ErrTooManyInstallments  = &AppError{http.StatusUnprocessableEntity, "TOO_MANY_INSTALLMENTS", "Installment count exceeds the allowed maximum"}
	ErrNoPenaltyRule        = &AppError{http.StatusUnprocessableEntity, "NO_PENALTY_RULE_FOR_PERIOD", "No penalty rule covers this period"}
	ErrProviderInactive     = &AppError{http.StatusUnprocessableEntity, "PROVIDER_INACTIVE", "Payment provider is inactive"}
	ErrUnauthorizedActor    = &AppError{http.StatusForbidden, "UNAUTHORIZED_ACTOR", "Actor is not allowed to perform this action"}
)
