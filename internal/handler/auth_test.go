package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/obiefule/wallet-platform/internal/auth"
	"github.com/obiefule/wallet-platform/internal/domain"
)

const testJWTSecret = "test-jwt-secret"

type mockUserRepo struct {
	created *domain.User
	byEmail map[string]*domain.User
	err     error
}

func (m *mockUserRepo) Create(_ context.Context, user *domain.User) error {
	if m.err != nil {
		return m.err
	}
	m.created = user
	return nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.byEmail[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func newAuthHandler(repo *mockUserRepo) *AuthHandler {
	return NewAuthHandler(repo, testJWTSecret, time.Hour)
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		repoErr    error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "valid registration",
			body:       `{"email":"New@Test.com","name":"New User","password":"password123"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "invalid JSON",
			body:       "not-json",
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "missing email",
			body:       `{"name":"New User","password":"password123"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "short password",
			body:       `{"email":"new@test.com","name":"New User","password":"short"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "duplicate email",
			body:       `{"email":"new@test.com","name":"New User","password":"password123"}`,
			repoErr:    domain.ErrUserExists,
			wantStatus: http.StatusConflict,
			wantCode:   "USER_ALREADY_EXISTS",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockUserRepo{err: tc.repoErr}
			h := newAuthHandler(repo)

			req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			h.Register(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code)

			var resp APIResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			if tc.wantCode == "" {
				assert.True(t, resp.Success)
			} else {
				assert.False(t, resp.Success)
				require.NotNil(t, resp.Error)
				assert.Equal(t, tc.wantCode, resp.Error.Code)
			}
		})
	}
}

func TestRegister_NormalizesAndHashes(t *testing.T) {
	repo := &mockUserRepo{}
	h := newAuthHandler(repo)

	body := `{"email":"Mixed@Case.COM","name":"Someone","password":"password123"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.Register(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	require.NotNil(t, repo.created)
	assert.Equal(t, "mixed@case.com", repo.created.Email)
	assert.Equal(t, domain.UserRoleMember, repo.created.Role)
	assert.Equal(t, domain.UserStatusActive, repo.created.Status)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.created.PasswordHash), []byte("password123")))
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &domain.User{
		Email:        "user@test.com",
		Name:         "User",
		PasswordHash: string(hash),
		Role:         domain.UserRoleMember,
		Status:       domain.UserStatusActive,
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "valid credentials",
			body:       `{"email":"user@test.com","password":"password123"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "case-insensitive email",
			body:       `{"email":"User@Test.COM","password":"password123"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong password",
			body:       `{"email":"user@test.com","password":"wrong-password"}`,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_CREDENTIALS",
		},
		{
			name:       "unknown email",
			body:       `{"email":"nobody@test.com","password":"password123"}`,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_CREDENTIALS",
		},
		{
			name:       "missing fields",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockUserRepo{byEmail: map[string]*domain.User{user.Email: user}}
			h := newAuthHandler(repo)

			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			h.Login(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code)

			var resp APIResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			if tc.wantCode == "" {
				assert.True(t, resp.Success)
			} else {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tc.wantCode, resp.Error.Code)
			}
		})
	}
}

func TestLogin_ReturnsUsableToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &domain.User{
		Email:        "user@test.com",
		PasswordHash: string(hash),
		Role:         domain.UserRoleOperator,
	}
	repo := &mockUserRepo{byEmail: map[string]*domain.User{user.Email: user}}
	h := newAuthHandler(repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"user@test.com","password":"password123"}`))
	rr := httptest.NewRecorder()
	h.Login(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Success bool          `json:"success"`
		Data    loginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.Token)

	claims, err := auth.ValidateToken(resp.Data.Token, testJWTSecret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, domain.UserRoleOperator, claims.Role)
}
