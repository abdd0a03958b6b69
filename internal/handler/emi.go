package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/obiefule/wallet-platform/internal/domain"
	"github.com/obiefule/wallet-platform/internal/logging"
	"github.com/obiefule/wallet-platform/internal/service/emi"
)

type emiService interface {
	CreateSchedule(ctx context.Context, req emi.CreateScheduleRequest) ([]domain.EMI, error)
	GetSchedule(ctx context.Context, paymentTransactionID uuid.UUID) ([]domain.EMI, error)
	MarkPaid(ctx context.Context, emiID uuid.UUID, paidOn time.Time) (*domain.EMI, error)
	AssessPenalty(ctx context.Context, emiID uuid.UUID, asOf time.Time) (*domain.EMIPenaltyCalculation, error)
	PenaltyHistory(ctx context.Context, emiID uuid.UUID) ([]domain.EMIPenaltyCalculation, error)
}

type EMIHandler struct {
	emis emiService
}

func NewEMIHandler(emis emiService) *EMIHandler {
	return &EMIHandler{emis: emis}
}

type createScheduleRequest struct {
	PaymentTransactionID string `json:"payment_transaction_id"`
	Installments         int    `json:"installments"`
	FirstDueDate         string `json:"first_due_date"`
	GraceDays            int    `json:"grace_days"`
}

func (r createScheduleRequest) Validate() []FieldError {
	var errs []FieldError
	if _, err := uuid.Parse(r.PaymentTransactionID); err != nil {
		errs = append(errs, FieldError{Field: "payment_transaction_id", Message: "must be a UUID"})
	}
	if r.Installments < 1 {
		errs = append(errs, FieldError{Field: "installments", Message: "must be at least 1"})
	}
	if _, err := time.Parse(time.RFC3339, r.FirstDueDate); err != nil {
		errs = append(errs, FieldError{Field: "first_due_date", Message: "must be an RFC 3339 timestamp"})
	}
	if r.GraceDays < 0 {
		errs = append(errs, FieldError{Field: "grace_days", Message: "must not be negative"})
	}
	return errs
}

type emiDTO struct {
	ID                   uuid.UUID    `json:"id"`
	Amount               domain.Money `json:"amount"`
	PaymentTransactionID uuid.UUID    `json:"payment_transaction_id"`
	InstallmentNumber    int          `json:"installment_number"`
	ScheduleDate         time.Time    `json:"schedule_date"`
	PaymentDate          *time.Time   `json:"payment_date"`
	Status               string       `json:"status"`
	Penalty              domain.Money `json:"penalty"`
	GraceDays            int          `json:"grace_days"`
}

func toEMIDTO(e *domain.EMI) emiDTO {
	return emiDTO{
		ID:                   e.ID,
		Amount:               e.Amount,
		PaymentTransactionID: e.PaymentTransactionID,
		InstallmentNumber:    e.InstallmentNumber,
		ScheduleDate:         e.ScheduleDate,
		PaymentDate:          e.PaymentDate,
		Status:               string(e.Status),
		Penalty:              e.Penalty,
		GraceDays:            e.PenaltyDays,
	}
}

func (h *EMIHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req createScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	firstDue, _ := time.Parse(time.RFC3339, req.FirstDueDate)
	emis, err := h.emis.CreateSchedule(r.Context(), emi.CreateScheduleRequest{
		PaymentTransactionID: uuid.MustParse(req.PaymentTransactionID),
		Installments:         req.Installments,
		FirstDueDate:         firstDue,
		GraceDays:            req.GraceDays,
	})
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to create installment plan", "error", err)
		RespondDomainError(w, err)
		return
	}

	out := make([]emiDTO, len(emis))
	for i := range emis {
		out[i] = toEMIDTO(&emis[i])
	}
	RespondSuccess(w, http.StatusCreated, out)
}

func (h *EMIHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("pid"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	emis, err := h.emis.GetSchedule(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	out := make([]emiDTO, len(emis))
	for i := range emis {
		out[i] = toEMIDTO(&emis[i])
	}
	RespondSuccess(w, http.StatusOK, out)
}

type markPaidRequest struct {
	PaidOn string `json:"paid_on"`
}

func (h *EMIHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("eid"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req markPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	paidOn := time.Now().UTC()
	if req.PaidOn != "" {
		paidOn, err = time.Parse(time.RFC3339, req.PaidOn)
		if err != nil {
			RespondValidationError(w, []FieldError{{Field: "paid_on", Message: "must be an RFC 3339 timestamp"}})
			return
		}
	}

	e, err := h.emis.MarkPaid(r.Context(), id, paidOn)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to mark installment paid", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toEMIDTO(e))
}

type penaltyCalculationDTO struct {
	ID       uuid.UUID             `json:"id"`
	EMIID    uuid.UUID             `json:"emi_id"`
	Amount   domain.Money          `json:"amount"`
	RuleID   uuid.UUID             `json:"rule_id"`
	DaysLate int                   `json:"days_late"`
	Details  domain.PenaltyDetails `json:"details"`
}

func (h *EMIHandler) AssessPenalty(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("eid"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	calc, err := h.emis.AssessPenalty(r.Context(), id, time.Now().UTC())
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to assess penalty", "error", err)
		RespondDomainError(w, err)
		return
	}

	if calc == nil {
		// Inside grace, or this assessment already ran.
		RespondSuccess(w, http.StatusOK, nil)
		return
	}

	RespondSuccess(w, http.StatusOK, toPenaltyCalculationDTO(calc))
}

func (h *EMIHandler) ListPenalties(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("eid"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	calcs, err := h.emis.PenaltyHistory(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	out := make([]penaltyCalculationDTO, len(calcs))
	for i := range calcs {
		out[i] = toPenaltyCalculationDTO(&calcs[i])
	}
	RespondSuccess(w, http.StatusOK, out)
}

func toPenaltyCalculationDTO(calc *domain.EMIPenaltyCalculation) penaltyCalculationDTO {
	return penaltyCalculationDTO{
		ID:       calc.ID,
		EMIID:    calc.EMIID,
		Amount:   calc.Amount,
		RuleID:   calc.RuleID,
		DaysLate: calc.DaysLate,
		Details:  calc.Details,
	}
}
