package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ashwinyue/next-intent/internal/apperr"
	"github.com/ashwinyue/next-intent/internal/config"
	"github.com/ashwinyue/next-intent/internal/model"
	"github.com/ashwinyue/next-intent/internal/repository"
)

const testSecret = "test-secret"

func newTestService(t *testing.T, autoApprove bool) *Service {
	t.Helper()
	svc, err := NewService(repository.NewMemoryUserRepository(), config.AuthConfig{
		JWTSecret:   testSecret,
		TokenTTL:    1,
		AutoApprove: autoApprove,
	}, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func register(t *testing.T, svc *Service, name string) *model.User {
	t.Helper()
	u, err := svc.Register(context.Background(), &RegisterRequest{
		Username: name,
		Email:    name + "@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	return u
}

func TestService_RegisterAndLogin(t *testing.T) {
	svc := newTestService(t, true)
	ctx := context.Background()

	u := register(t, svc, "alice")
	assert.Equal(t, model.RoleUser, u.Role)
	assert.True(t, u.IsApproved)
	assert.NotEqual(t, "secret123", u.PasswordHash)

	resp, err := svc.Login(ctx, &LoginRequest{Email: "ALICE@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, u.ID, resp.User.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, time.Minute)

	got, err := svc.ValidateToken(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Login(ctx, &LoginRequest{Email: "alice@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = svc.Login(ctx, &LoginRequest{Email: "nobody@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_RegisterValidation(t *testing.T) {
	svc := newTestService(t, true)
	ctx := context.Background()
	register(t, svc, "alice")

	tests := []struct {
		name string
		req  RegisterRequest
		kind error
	}{
		{"short username", RegisterRequest{Username: "al", Email: "x@example.com", Password: "secret123"}, apperr.ErrValidation},
		{"bad email", RegisterRequest{Username: "bobby", Email: "bob", Password: "secret123"}, apperr.ErrValidation},
		{"short password", RegisterRequest{Username: "bobby", Email: "bob@example.com", Password: "123"}, apperr.ErrValidation},
		{"duplicate email", RegisterRequest{Username: "bobby", Email: "alice@example.com", Password: "secret123"}, apperr.ErrConflict},
		{"duplicate username", RegisterRequest{Username: "alice", Email: "bob@example.com", Password: "secret123"}, apperr.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := svc.Register(ctx, &req)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestService_ApprovalFlow(t *testing.T) {
	svc := newTestService(t, false)
	ctx := context.Background()

	u := register(t, svc, "carol")
	assert.False(t, u.IsApproved)

	adm, err := svc.CreateAdmin(ctx, &RegisterRequest{Username: "root", Email: "root@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, adm.Role)
	assert.True(t, adm.IsApproved)

	_, err = svc.Approve(ctx, u.Actor(), u.ID)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	approved, err := svc.Approve(ctx, adm.Actor(), u.ID)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved)

	got, err := svc.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsApproved)
}

func TestService_ValidateTokenRejects(t *testing.T) {
	svc := newTestService(t, true)
	ctx := context.Background()
	u := register(t, svc, "dave")

	sign := func(secret string, claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", sign("other", jwt.MapClaims{"user_id": u.ID, "exp": time.Now().Add(time.Hour).Unix()})},
		{"expired", sign(testSecret, jwt.MapClaims{"user_id": u.ID, "exp": time.Now().Add(-time.Hour).Unix()})},
		{"no expiry", sign(testSecret, jwt.MapClaims{"user_id": u.ID})},
		{"unknown user", sign(testSecret, jwt.MapClaims{"user_id": "ghost", "exp": time.Now().Add(time.Hour).Unix()})},
		{"missing user", sign(testSecret, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(ctx, tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestService_ChangePassword(t *testing.T) {
	svc := newTestService(t, true)
	ctx := context.Background()
	u := register(t, svc, "erin")

	assert.ErrorIs(t, svc.ChangePassword(ctx, u.ID, "wrong", "newpass1"), apperr.ErrValidation)
	require.NoError(t, svc.ChangePassword(ctx, u.ID, "secret123", "newpass1"))

	_, err := svc.Login(ctx, &LoginRequest{Email: "erin@example.com", Password: "newpass1"})
	assert.NoError(t, err)
}

func TestNewService_RandomSecret(t *testing.T) {
	svc, err := NewService(repository.NewMemoryUserRepository(), config.AuthConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, svc.secret, 44)
	assert.Equal(t, 24*time.Hour, svc.ttl)
}
