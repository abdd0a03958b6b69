package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obiefule/wallet-platform/internal/auth"
	"github.com/obiefule/wallet-platform/internal/domain"
)

type mockProviderRepo struct {
	created     []*domain.PaymentProvider
	deactivated []uuid.UUID
}

func (m *mockProviderRepo) Create(_ context.Context, p *domain.PaymentProvider) error {
	m.created = append(m.created, p)
	return nil
}

func (m *mockProviderRepo) List(_ context.Context) ([]domain.PaymentProvider, error) {
	return nil, nil
}

func (m *mockProviderRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

func TestProviderCreate_OperatorOnly(t *testing.T) {
	actors, operator, member := seedActors()

	tests := []struct {
		name       string
		actorID    uuid.UUID
		wantStatus int
		wantSaved  int
	}{
		{"operator creates provider", operator.ID, http.StatusCreated, 1},
		{"member is rejected", member.ID, http.StatusForbidden, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockProviderRepo{}
			h := NewProviderHandler(repo, actors)

			req := httptest.NewRequest(http.MethodPost, "/providers", strings.NewReader(`{"name":"stripe"}`))
			req = req.WithContext(auth.ContextWithUserID(req.Context(), tc.actorID))
			rr := httptest.NewRecorder()
			h.Create(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code)
			assert.Len(t, repo.created, tc.wantSaved)
		})
	}
}

func TestProviderDeactivate_RejectsMember(t *testing.T) {
	actors, _, member := seedActors()
	repo := &mockProviderRepo{}
	h := NewProviderHandler(repo, actors)

	id := uuid.New()
	req := httptest.NewRequest(http.MethodDelete, "/providers/"+id.String(), nil)
	req.SetPathValue("pid", id.String())
	req = req.WithContext(auth.ContextWithUserID(req.Context(), member.ID))
	rr := httptest.NewRecorder()
	h.Deactivate(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, repo.deactivated)
}

func TestProviderDeactivate_OperatorSucceeds(t *testing.T) {
	actors, operator, _ := seedActors()
	repo := &mockProviderRepo{}
	h := NewProviderHandler(repo, actors)

	id := uuid.New()
	req := httptest.NewRequest(http.MethodDelete, "/providers/"+id.String(), nil)
	req.SetPathValue("pid", id.String())
	req = req.WithContext(auth.ContextWithUserID(req.Context(), operator.ID))
	rr := httptest.NewRecorder()
	h.Deactivate(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, repo.deactivated, 1)
	assert.Equal(t, id, repo.deactivated[0])
}
