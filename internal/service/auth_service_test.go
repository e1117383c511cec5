package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/classhour/checkin-api/internal/models"
	appErrors "github.com/classhour/checkin-api/pkg/errors"
)

type stubUsers struct {
	user      *models.User
	err       error
	lastLogin *time.Time
}

func (s *stubUsers) FindByEmail(_ context.Context, _ string) (*models.User, error) {
	return s.user, s.err
}

func (s *stubUsers) FindByID(_ context.Context, _ string) (*models.User, error) {
	return s.user, s.err
}

func (s *stubUsers) UpdateLastLogin(_ context.Context, _ string, ts time.Time) error {
	s.lastLogin = &ts
	return nil
}

func newAuthFixture(t *testing.T, password string) (*AuthService, *stubUsers) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	users := &stubUsers{user: &models.User{
		ID:           "u-1",
		Email:        "admin@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		Active:       true,
	}}
	return NewAuthService(users, "test-secret", time.Hour, "checkin-api", NewValidator(), nil), users
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc, users := newAuthFixture(t, "correct-horse-battery")

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.NotNil(t, users.lastLogin)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t, "correct-horse-battery")

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "wrong-password-here",
	})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	svc := NewAuthService(&stubUsers{err: sql.ErrNoRows}, "test-secret", time.Hour, "checkin-api", NewValidator(), nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever-goes-here",
	})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	svc, users := newAuthFixture(t, "correct-horse-battery")
	users.user.Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "correct-horse-battery",
	})
	assert.ErrorIs(t, err, appErrors.ErrInactiveAccount)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthFixture(t, "correct-horse-battery")

	_, err := svc.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	svc, _ := newAuthFixture(t, "correct-horse-battery")
	other := NewAuthService(&stubUsers{}, "different-secret", time.Hour, "checkin-api", NewValidator(), nil)

	token, _, err := other.generateToken(&models.User{ID: "u-2", Email: "x@example.com", Role: models.RoleStaff})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
