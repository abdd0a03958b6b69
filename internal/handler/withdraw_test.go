package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obiefule/wallet-platform/internal/auth"
	"github.com/obiefule/wallet-platform/internal/domain"
)

type mockActorRepo struct {
	users map[uuid.UUID]*domain.User
}

func (m *mockActorRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

type mockWithdrawService struct {
	transferred []uuid.UUID
}

func (m *mockWithdrawService) Create(_ context.Context, userID uuid.UUID, amount domain.Money) (*domain.WithdrawRequest, error) {
	return &domain.WithdrawRequest{ID: uuid.New(), UserID: userID, Amount: amount, Status: domain.WithdrawStatusInReview, CreatedAt: time.Now().UTC()}, nil
}

func (m *mockWithdrawService) Act(_ context.Context, requestID, approverID uuid.UUID, _ domain.WithdrawDecision) (*domain.WithdrawRequest, error) {
	return &domain.WithdrawRequest{ID: requestID, ActBy: &approverID, Status: domain.WithdrawStatusApproved}, nil
}

func (m *mockWithdrawService) MarkTransferred(_ context.Context, requestID uuid.UUID) (*domain.WithdrawRequest, error) {
	m.transferred = append(m.transferred, requestID)
	return &domain.WithdrawRequest{ID: requestID, Status: domain.WithdrawStatusTransferred}, nil
}

func (m *mockWithdrawService) ListByUser(_ context.Context, _ uuid.UUID) ([]domain.WithdrawRequest, error) {
	return nil, nil
}

func seedActors() (*mockActorRepo, *domain.User, *domain.User) {
	operator := &domain.User{ID: uuid.New(), Role: domain.UserRoleOperator, Status: domain.UserStatusActive}
	member := &domain.User{ID: uuid.New(), Role: domain.UserRoleMember, Status: domain.UserStatusActive}
	repo := &mockActorRepo{users: map[uuid.UUID]*domain.User{operator.ID: operator, member.ID: member}}
	return repo, operator, member
}

func markTransferredRequest(actorID, requestID uuid.UUID) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/withdraws/"+requestID.String()+"/transfer", nil)
	req.SetPathValue("wid", requestID.String())
	return req.WithContext(auth.ContextWithUserID(req.Context(), actorID))
}

func TestMarkTransferred_RejectsMember(t *testing.T) {
	actors, _, member := seedActors()
	svc := &mockWithdrawService{}
	h := NewWithdrawHandler(svc, actors)

	rr := httptest.NewRecorder()
	h.MarkTransferred(rr, markTransferredRequest(member.ID, uuid.New()))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNAUTHORIZED_ACTOR", resp.Error.Code)
	assert.Empty(t, svc.transferred, "a member token must not reach the service")
}

func TestMarkTransferred_RejectsDisabledOperator(t *testing.T) {
	actors, operator, _ := seedActors()
	operator.Status = domain.UserStatusDisabled
	svc := &mockWithdrawService{}
	h := NewWithdrawHandler(svc, actors)

	rr := httptest.NewRecorder()
	h.MarkTransferred(rr, markTransferredRequest(operator.ID, uuid.New()))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, svc.transferred)
}

func TestMarkTransferred_RequiresToken(t *testing.T) {
	actors, _, _ := seedActors()
	svc := &mockWithdrawService{}
	h := NewWithdrawHandler(svc, actors)

	req := httptest.NewRequest(http.MethodPost, "/withdraws/"+uuid.NewString()+"/transfer", nil)
	req.SetPathValue("wid", uuid.NewString())
	rr := httptest.NewRecorder()
	h.MarkTransferred(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, svc.transferred)
}

func TestMarkTransferred_OperatorSucceeds(t *testing.T) {
	actors, operator, _ := seedActors()
	svc := &mockWithdrawService{}
	h := NewWithdrawHandler(svc, actors)

	requestID := uuid.New()
	rr := httptest.NewRecorder()
	h.MarkTransferred(rr, markTransferredRequest(operator.ID, requestID))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, svc.transferred, 1)
	assert.Equal(t, requestID, svc.transferred[0])
}
