package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/obiefule/wallet-platform/internal/domain"
	"github.com/obiefule/wallet-platform/internal/logging"
	"github.com/obiefule/wallet-platform/internal/service/payment"
)

type paymentService interface {
	RecordPaymentTransaction(ctx context.Context, req payment.RecordPaymentRequest) (*domain.PaymentTransaction, error)
	Transition(ctx context.Context, id uuid.UUID, next domain.PaymentTransactionStatus) (*domain.PaymentTransaction, error)
	RecordTransaction(ctx context.Context, req payment.RecordTransactionRequest) (*domain.Transaction, error)
	GetPaymentTransaction(ctx context.Context, id uuid.UUID) (*domain.PaymentTransaction, error)
	ListUserPaymentTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.PaymentTransaction, error)
	ListUserTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, error)
}

type PaymentHandler struct {
	payments paymentService
}

func NewPaymentHandler(payments paymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type recordPaymentRequest struct {
	Amount       string            `json:"amount"`
	PaymentToken string            `json:"payment_token"`
	ProviderID   string            `json:"provider_id"`
	CurrencyID   string            `json:"currency_id"`
	StoreID      *string           `json:"store_id"`
	Metadata     map[string]string `json:"metadata"`
}

func (r recordPaymentRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Amount == "" {
		errs = append(errs, FieldError{Field: "amount", Message: "required"})
	} else if _, err := domain.MoneyFromString(r.Amount); err != nil {
		errs = append(errs, FieldError{Field: "amount", Message: "must be a decimal amount"})
	}
	if r.PaymentToken == "" {
		errs = append(errs, FieldError{Field: "payment_token", Message: "required"})
	}
	if _, err := uuid.Parse(r.ProviderID); err != nil {
		errs = append(errs, FieldError{Field: "provider_id", Message: "must be a UUID"})
	}
	if _, err := uuid.Parse(r.CurrencyID); err != nil {
		errs = append(errs, FieldError{Field: "currency_id", Message: "must be a UUID"})
	}
	if r.StoreID != nil {
		if _, err := uuid.Parse(*r.StoreID); err != nil {
			errs = append(errs, FieldError{Field: "store_id", Message: "must be a UUID"})
		}
	}
	return errs
}

type paymentTransactionDTO struct {
	ID           uuid.UUID         `json:"id"`
	Amount       domain.Money      `json:"amount"`
	PaymentToken string            `json:"payment_token"`
	ProviderID   uuid.UUID         `json:"provider_id"`
	StoreID      *uuid.UUID        `json:"store_id"`
	Status       string            `json:"status"`
	CurrencyID   uuid.UUID         `json:"currency_id"`
	Metadata     map[string]string `json:"metadata"`
	UserID       uuid.UUID         `json:"user_id"`
	CreatedAt    time.Time         `json:"created_at"`
}

func toPaymentTransactionDTO(p *domain.PaymentTransaction) paymentTransactionDTO {
	return paymentTransactionDTO{
		ID:           p.ID,
		Amount:       p.Amount,
		PaymentToken: p.PaymentToken,
		ProviderID:   p.ProviderID,
		StoreID:      p.StoreID,
		Status:       string(p.Status),
		CurrencyID:   p.CurrencyID,
		Metadata:     p.Metadata,
		UserID:       p.UserID,
		CreatedAt:    p.CreatedAt,
	}
}

func (h *PaymentHandler) Record(w http.ResponseWriter, r *http.Request) {
	userID, appErr := ownerFromPath(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	amount, _ := domain.MoneyFromString(req.Amount)
	var storeID *uuid.UUID
	if req.StoreID != nil {
		id := uuid.MustParse(*req.StoreID)
		storeID = &id
	}

	p, err := h.payments.RecordPaymentTransaction(r.Context(), payment.RecordPaymentRequest{
		UserID:       userID,
		Amount:       amount,
		PaymentToken: req.PaymentToken,
		ProviderID:   uuid.MustParse(req.ProviderID),
		CurrencyID:   uuid.MustParse(req.CurrencyID),
		StoreID:      storeID,
		Metadata:     req.Metadata,
	})
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to record payment transaction", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toPaymentTransactionDTO(p))
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (r transitionRequest) Validate() []FieldError {
	var errs []FieldError
	if !domain.PaymentTransactionStatus(r.Status).IsValid() {
		errs = append(errs, FieldError{Field: "status", Message: "unknown status"})
	}
	return errs
}

func (h *PaymentHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("pid"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	p, err := h.payments.Transition(r.Context(), id, domain.PaymentTransactionStatus(req.Status))
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to transition payment transaction", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPaymentTransactionDTO(p))
}

type recordTransactionRequest struct {
	Amount               string  `json:"amount"`
	Type                 string  `json:"type"`
	PaymentTransactionID *string `json:"payment_transaction_id"`
	EMIID                *string `json:"emi_id"`
}

func (r recordTransactionRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Amount == "" {
		errs = append(errs, FieldError{Field: "amount", Message: "required"})
	} else if _, err := domain.MoneyFromString(r.Amount); err != nil {
		errs = append(errs, FieldError{Field: "amount", Message: "must be a decimal amount"})
	}
	if !domain.TransactionType(r.Type).IsValid() {
		errs = append(errs, FieldError{Field: "type", Message: "unknown transaction type"})
	}
	if r.PaymentTransactionID != nil {
		if _, err := uuid.Parse(*r.PaymentTransactionID); err != nil {
			errs = append(errs, FieldError{Field: "payment_transaction_id", Message: "must be a UUID"})
		}
	}
	if r.EMIID != nil {
		if _, err := uuid.Parse(*r.EMIID); err != nil {
			errs = append(errs, FieldError{Field: "emi_id", Message: "must be a UUID"})
		}
	}
	return errs
}

type transactionDTO struct {
	ID                   uuid.UUID    `json:"id"`
	Amount               domain.Money `json:"amount"`
	Type                 string       `json:"type"`
	UserID               uuid.UUID    `json:"user_id"`
	PaymentTransactionID *uuid.UUID   `json:"payment_transaction_id"`
	EMIID                *uuid.UUID   `json:"emi_id"`
	AppliedAt            *time.Time   `json:"applied_at"`
	CreatedAt            time.Time    `json:"created_at"`
}

func toTransactionDTO(t *domain.Transaction) transactionDTO {
	return transactionDTO{
		ID:                   t.ID,
		Amount:               t.Amount,
		Type:                 string(t.Type),
		UserID:               t.UserID,
		PaymentTransactionID: t.PaymentTransactionID,
		EMIID:                t.EMIID,
		AppliedAt:            t.AppliedAt,
		CreatedAt:            t.CreatedAt,
	}
}

func (h *PaymentHandler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	userID, appErr := ownerFromPath(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req recordTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	amount, _ := domain.MoneyFromString(req.Amount)
	var ptID, emiID *uuid.UUID
	if req.PaymentTransactionID != nil {
		id := uuid.MustParse(*req.PaymentTransactionID)
		ptID = &id
	}
	if req.EMIID != nil {
		id := uuid.MustParse(*req.EMIID)
		emiID = &id
	}

	t, err := h.payments.RecordTransaction(r.Context(), payment.RecordTransactionRequest{
		UserID:               userID,
		Amount:               amount,
		Type:                 domain.TransactionType(req.Type),
		PaymentTransactionID: ptID,
		EMIID:                emiID,
	})
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to record transaction", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toTransactionDTO(t))
}

func (h *PaymentHandler) ListPaymentTransactions(w http.ResponseWriter, r *http.Request) {
	userID, appErr := ownerFromPath(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	limit, offset := pagination(r)
	list, err := h.payments.ListUserPaymentTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	out := make([]paymentTransactionDTO, len(list))
	for i := range list {
		out[i] = toPaymentTransactionDTO(&list[i])
	}
	RespondSuccess(w, http.StatusOK, out)
}

func (h *PaymentHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, appErr := ownerFromPath(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	limit, offset := pagination(r)
	list, err := h.payments.ListUserTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	out := make([]transactionDTO, len(list))
	for i := range list {
		out[i] = toTransactionDTO(&list[i])
	}
	RespondSuccess(w, http.StatusOK, out)
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
