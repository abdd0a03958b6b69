package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/obiefule/wallet-platform/internal/auth"
	"github.com/obiefule/wallet-platform/internal/domain"
	"github.com/obiefule/wallet-platform/internal/logging"
)

type emiRuleRepo interface {
	CreateRules(ctx context.Context, rules *domain.EMIRules) error
	GetRules(ctx context.Context) (*domain.EMIRules, error)
	CreatePenaltyRule(ctx context.Context, rule *domain.EMIPenaltyRule) error
	ListPenaltyRules(ctx context.Context) ([]domain.EMIPenaltyRule, error)
}

type currencyRepo interface {
	Create(ctx context.Context, c *domain.Currency) error
}

type actorRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// RulesHandler manages platform reference data: the active EMI rule set, the
// penalty bands and the currency table. All writes are operator-only.
type RulesHandler struct {
	rules      emiRuleRepo
	currencies currencyRepo
	users      actorRepo
}

func NewRulesHandler(rules emiRuleRepo, currencies currencyRepo, users actorRepo) *RulesHandler {
	return &RulesHandler{rules: rules, currencies: currencies, users: users}
}

// requireOperator resolves the authenticated actor and rejects non-operators.
// The role is checked against the database, not the token, so a demoted
// operator loses access before their token expires.
func requireOperator(w http.ResponseWriter, r *http.Request, users actorRepo) bool {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return false
	}
	u, err := users.GetByID(r.Context(), userID)
	if err != nil {
		RespondDomainError(w, err)
		return false
	}
	if !u.IsActiveOperator() {
		RespondAppError(w, ErrUnauthorizedActor, nil)
		return false
	}
	return true
}

type createRulesRequest struct {
	MinAmount                  string `json:"min_amount"`
	MaxAmount                  string `json:"max_amount"`
	MaxInstallments            int    `json:"max_installments"`
	FirstInstallmentPercentage string `json:"first_installment_percentage"`
}

type rulesDTO struct {
	ID                         uuid.UUID    `json:"id"`
	MinAmount                  domain.Money `json:"min_amount"`
	MaxAmount                  domain.Money `json:"max_amount"`
	MaxInstallments            int          `json:"max_installments"`
	FirstInstallmentPercentage string       `json:"first_installment_percentage"`
}

func toRulesDTO(rules *domain.EMIRules) rulesDTO {
	return rulesDTO{
		ID:                         rules.ID,
		MinAmount:                  rules.MinAmount,
		MaxAmount:                  rules.MaxAmount,
		MaxInstallments:            rules.MaxInstallments,
		FirstInstallmentPercentage: rules.FirstInstallmentPercentage.String(),
	}
}

func (h *RulesHandler) CreateRules(w http.ResponseWriter, r *http.Request) {
	if !requireOperator(w, r, h.users) {
		return
	}

	var req createRulesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	var fields []FieldError
	minAmount, err := domain.MoneyFromString(req.MinAmount)
	if err != nil {
		fields = append(fields, FieldError{Field: "min_amount", Message: "must be a decimal amount"})
	}
	maxAmount, err := domain.MoneyFromString(req.MaxAmount)
	if err != nil {
		fields = append(fields, FieldError{Field: "max_amount", Message: "must be a decimal amount"})
	}
	firstPct, err := decimal.NewFromString(req.FirstInstallmentPercentage)
	if err != nil {
		fields = append(fields, FieldError{Field: "first_installment_percentage", Message: "must be a decimal percentage"})
	}
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	rules := &domain.EMIRules{
		ID:                         uuid.New(),
		MinAmount:                  minAmount,
		MaxAmount:                  maxAmount,
		MaxInstallments:            req.MaxInstallments,
		FirstInstallmentPercentage: firstPct,
		CreatedAt:                  time.Now().UTC(),
	}
	if err := rules.Validate(); err != nil {
		RespondDomainError(w, err)
		return
	}

	if err := h.rules.CreateRules(r.Context(), rules); err != nil {
		logging.FromContext(r.Context()).Error("failed to create emi rules", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toRulesDTO(rules))
}

func (h *RulesHandler) GetRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.GetRules(r.Context())
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toRulesDTO(rules))
}

type createPenaltyRuleRequest struct {
	Rate        string `json:"rate"`
	StartPeriod int    `json:"start_period"`
	EndPeriod   int    `json:"end_period"`
}

type penaltyRuleDTO struct {
	ID          uuid.UUID `json:"id"`
	Rate        string    `json:"rate"`
	StartPeriod int       `json:"start_period"`
	EndPeriod   int       `json:"end_period"`
}

func (h *RulesHandler) CreatePenaltyRule(w http.ResponseWriter, r *http.Request) {
	if !requireOperator(w, r, h.users) {
		return
	}

	var req createPenaltyRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	rate, err := decimal.NewFromString(req.Rate)
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "rate", Message: "must be a decimal percentage"}})
		return
	}

	rule := &domain.EMIPenaltyRule{
		ID:          uuid.New(),
		Amount:      rate,
		StartPeriod: req.StartPeriod,
		EndPeriod:   req.EndPeriod,
		CreatedAt:   time.Now().UTC(),
	}
	if err := rule.Validate(); err != nil {
		RespondDomainError(w, err)
		return
	}

	if err := h.rules.CreatePenaltyRule(r.Context(), rule); err != nil {
		logging.FromContext(r.Context()).Error("failed to create penalty rule", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, penaltyRuleDTO{
		ID:          rule.ID,
		Rate:        rule.Amount.String(),
		StartPeriod: rule.StartPeriod,
		EndPeriod:   rule.EndPeriod,
	})
}

func (h *RulesHandler) ListPenaltyRules(w http.ResponseWriter, r *http.Request) {
	list, err := h.rules.ListPenaltyRules(r.Context())
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	out := make([]penaltyRuleDTO, len(list))
	for i, rule := range list {
		out[i] = penaltyRuleDTO{
			ID:          rule.ID,
			Rate:        rule.Amount.String(),
			StartPeriod: rule.StartPeriod,
			EndPeriod:   rule.EndPeriod,
		}
	}
	RespondSuccess(w, http.StatusOK, out)
}

type createCurrencyRequest struct {
	Code           string `json:"code"`
	FractionDigits int    `json:"fraction_digits"`
}

func (h *RulesHandler) CreateCurrency(w http.ResponseWriter, r *http.Request) {
	if !requireOperator(w, r, h.users) {
		return
	}

	var req createCurrencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if len(code) != 3 {
		RespondValidationError(w, []FieldError{{Field: "code", Message: "must be a 3-letter currency code"}})
		return
	}
	if req.FractionDigits < 0 || req.FractionDigits > 4 {
		RespondValidationError(w, []FieldError{{Field: "fraction_digits", Message: "must be between 0 and 4"}})
		return
	}

	c := &domain.Currency{
		ID:             uuid.New(),
		Code:           code,
		FractionDigits: req.FractionDigits,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.currencies.Create(r.Context(), c); err != nil {
		logging.FromContext(r.Context()).Error("failed to create currency", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, c)
}
