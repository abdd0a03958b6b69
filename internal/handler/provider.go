package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/obiefule/wallet-platform/internal/domain"
	"github.com/obiefule/wallet-platform/internal/logging"
)

type providerRepo interface {
	Create(ctx context.Context, p *domain.PaymentProvider) error
	List(ctx context.Context) ([]domain.PaymentProvider, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// ProviderHandler manages the payment provider catalogue. Listing is open to
// any authenticated user; creating and retiring providers is operator-only.
type ProviderHandler struct {
	providers providerRepo
	users     actorRepo
}

func NewProviderHandler(providers providerRepo, users actorRepo) *ProviderHandler {
	return &ProviderHandler{providers: providers, users: users}
}

type createProviderRequest struct {
	Name     string  `json:"name"`
	ImageURL *string `json:"image_url"`
}

func (r createProviderRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required"})
	}
	return errs
}

type providerDTO struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	ImageURL *string   `json:"image_url"`
	Active   bool      `json:"active"`
}

func (h *ProviderHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !requireOperator(w, r, h.users) {
		return
	}

	var req createProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	now := time.Now().UTC()
	p := &domain.PaymentProvider{
		ID:        uuid.New(),
		Name:      req.Name,
		ImageURL:  req.ImageURL,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.providers.Create(r.Context(), p); err != nil {
		logging.FromContext(r.Context()).Error("failed to create provider", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, providerDTO{
		ID:       p.ID,
		Name:     p.Name,
		ImageURL: p.ImageURL,
		Active:   p.Active,
	})
}

func (h *ProviderHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.providers.List(r.Context())
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	out := make([]providerDTO, len(list))
	for i, p := range list {
		out[i] = providerDTO{
			ID:       p.ID,
			Name:     p.Name,
			ImageURL: p.ImageURL,
			Active:   p.Active,
		}
	}
	RespondSuccess(w, http.StatusOK, out)
}

func (h *ProviderHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if !requireOperator(w, r, h.users) {
		return
	}

	id, err := uuid.Parse(r.PathValue("pid"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	if err := h.providers.Deactivate(r.Context(), id); err != nil {
		logging.FromContext(r.Context()).Error("failed to deactivate provider", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, nil)
}
