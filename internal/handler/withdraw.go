package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/obiefule/wallet-platform/internal/auth"
	"github.com/obiefule/wallet-platform/internal/domain"
	"github.com/obiefule/wallet-platform/internal/logging"
)

type withdrawService interface {
	Create(ctx context.Context, userID uuid.UUID, amount domain.Money) (*domain.WithdrawRequest, error)
	Act(ctx context.Context, requestID, approverID uuid.UUID, decision domain.WithdrawDecision) (*domain.WithdrawRequest, error)
	MarkTransferred(ctx context.Context, requestID uuid.UUID) (*domain.WithdrawRequest, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawRequest, error)
}

type WithdrawHandler struct {
	withdrawals withdrawService
	users       actorRepo
}

func NewWithdrawHandler(withdrawals withdrawService, users actorRepo) *WithdrawHandler {
	return &WithdrawHandler{withdrawals: withdrawals, users: users}
}

type createWithdrawRequest struct {
	Amount string `json:"amount"`
}

func (r createWithdrawRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Amount == "" {
		errs = append(errs, FieldError{Field: "amount", Message: "required"})
	} else if _, err := domain.MoneyFromString(r.Amount); err != nil {
		errs = append(errs, FieldError{Field: "amount", Message: "must be a decimal amount"})
	}
	return errs
}

type withdrawDTO struct {
	ID        uuid.UUID    `json:"id"`
	UserID    uuid.UUID    `json:"user_id"`
	ActBy     *uuid.UUID   `json:"act_by"`
	Status    string       `json:"status"`
	Amount    domain.Money `json:"amount"`
	CreatedAt time.Time    `json:"created_at"`
}

func toWithdrawDTO(w *domain.WithdrawRequest) withdrawDTO {
	return withdrawDTO{
		ID:        w.ID,
		UserID:    w.UserID,
		ActBy:     w.ActBy,
		Status:    string(w.Status),
		Amount:    w.Amount,
		CreatedAt: w.CreatedAt,
	}
}

func (h *WithdrawHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, appErr := ownerFromPath(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req createWithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	amount, _ := domain.MoneyFromString(req.Amount)
	wr, err := h.withdrawals.Create(r.Context(), userID, amount)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to open withdraw request", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toWithdrawDTO(wr))
}

type actWithdrawRequest struct {
	Decision string `json:"decision"`
}

func (r actWithdrawRequest) Validate() []FieldError {
	var errs []FieldError
	if !domain.WithdrawDecision(r.Decision).IsValid() {
		errs = append(errs, FieldError{Field: "decision", Message: "must be approve or reject"})
	}
	return errs
}

func (h *WithdrawHandler) Act(w http.ResponseWriter, r *http.Request) {
	approverID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	requestID, err := uuid.Parse(r.PathValue("wid"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req actWithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	wr, err := h.withdrawals.Act(r.Context(), requestID, approverID, domain.WithdrawDecision(req.Decision))
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to act on withdraw request", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toWithdrawDTO(wr))
}

// MarkTransferred is operator-only: the transfer settlement debits the
// requester's wallet, so it must not be reachable with a member token.
func (h *WithdrawHandler) MarkTransferred(w http.ResponseWriter, r *http.Request) {
	if !requireOperator(w, r, h.users) {
		return
	}

	requestID, err := uuid.Parse(r.PathValue("wid"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	wr, err := h.withdrawals.MarkTransferred(r.Context(), requestID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to mark withdraw transferred", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toWithdrawDTO(wr))
}

func (h *WithdrawHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, appErr := ownerFromPath(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	list, err := h.withdrawals.ListByUser(r.Context(), userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	out := make([]withdrawDTO, len(list))
	for i := range list {
		out[i] = toWithdrawDTO(&list[i])
	}
	RespondSuccess(w, http.StatusOK, out)
}
