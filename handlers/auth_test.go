package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/marketgrid/storefront-backend-go/config"
	"github.com/marketgrid/storefront-backend-go/models"
)

func registerUser(t *testing.T, env *testEnv, email, password string) models.User {
	t.Helper()
	rec := env.invoke(t, env.handler.Register, call{
		method: http.MethodPost, path: "/api/auth/register",
		body: RegisterRequest{Name: "Ada Lovelace", Email: email, Password: password},
	})
	requireStatus(t, rec, http.StatusCreated)

	stored, err := env.users.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return *stored
}

func TestRegisterHashesPasswordAndIssuesOTP(t *testing.T) {
	env := newTestEnv(config.Config{})
	user := registerUser(t, env, "ada@example.com", "correct horse battery")

	assert.NotEqual(t, "correct horse battery", user.Password)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("correct horse battery")))

	require.NotNil(t, user.OTP)
	assert.Len(t, user.OTP.Code, 6)
	assert.False(t, user.OTP.Expired(time.Now()))
	assert.False(t, user.EmailVerified)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	env := newTestEnv(config.Config{})
	registerUser(t, env, "ada@example.com", "correct horse battery")

	rec := env.invoke(t, env.handler.Register, call{
		method: http.MethodPost, path: "/api/auth/register",
		body: RegisterRequest{Name: "Imposter", Email: "ada@example.com", Password: "another password"},
	})
	requireStatus(t, rec, http.StatusConflict)
	assert.Equal(t, "email_taken", errorCode(t, rec))
}

func TestRegisterRejectsBadInput(t *testing.T) {
	env := newTestEnv(config.Config{})

	rec := env.invoke(t, env.handler.Register, call{
		method: http.MethodPost, path: "/api/auth/register",
		body: RegisterRequest{Name: "Ada", Email: "not-an-email", Password: "long enough password"},
	})
	requireStatus(t, rec, http.StatusBadRequest)
	assert.Equal(t, "invalid_email", errorCode(t, rec))

	rec = env.invoke(t, env.handler.Register, call{
		method: http.MethodPost, path: "/api/auth/register",
		body: RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "short"},
	})
	requireStatus(t, rec, http.StatusBadRequest)
	assert.Equal(t, "weak_password", errorCode(t, rec))
}

func TestLogin(t *testing.T) {
	env := newTestEnv(config.Config{})
	registerUser(t, env, "ada@example.com", "correct horse battery")

	rec := env.invoke(t, env.handler.Login, call{
		method: http.MethodPost, path: "/api/auth/login",
		body: LoginRequest{Email: "ada@example.com", Password: "correct horse battery"},
	})
	requireStatus(t, rec, http.StatusOK)

	var body struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	decodeBody(t, rec, &body)
	assert.NotEmpty(t, body.Token)
	assert.Equal(t, "ada@example.com", body.User.Email)

	rec = env.invoke(t, env.handler.Login, call{
		method: http.MethodPost, path: "/api/auth/login",
		body: LoginRequest{Email: "ada@example.com", Password: "wrong password"},
	})
	requireStatus(t, rec, http.StatusUnauthorized)

	rec = env.invoke(t, env.handler.Login, call{
		method: http.MethodPost, path: "/api/auth/login",
		body: LoginRequest{Email: "nobody@example.com", Password: "correct horse battery"},
	})
	requireStatus(t, rec, http.StatusUnauthorized)
}

func TestVerifyOTP(t *testing.T) {
	env := newTestEnv(config.Config{})
	user := registerUser(t, env, "ada@example.com", "correct horse battery")

	rec := env.invoke(t, env.handler.VerifyOTP, call{
		method: http.MethodPost, path: "/api/auth/verify-otp",
		body: VerifyOTPRequest{Email: "ada@example.com", Code: "000000-wrong"},
	})
	requireStatus(t, rec, http.StatusBadRequest)
	assert.Equal(t, "invalid_otp", errorCode(t, rec))

	rec = env.invoke(t, env.handler.VerifyOTP, call{
		method: http.MethodPost, path: "/api/auth/verify-otp",
		body: VerifyOTPRequest{Email: "ada@example.com", Code: user.OTP.Code},
	})
	requireStatus(t, rec, http.StatusOK)

	stored, err := env.users.GetByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)
	assert.Nil(t, stored.OTP)

	// verifying again is a no-op, not an error
	rec = env.invoke(t, env.handler.VerifyOTP, call{
		method: http.MethodPost, path: "/api/auth/verify-otp",
		body: VerifyOTPRequest{Email: "ada@example.com", Code: user.OTP.Code},
	})
	requireStatus(t, rec, http.StatusOK)
}

func TestVerifyOTPExpired(t *testing.T) {
	env := newTestEnv(config.Config{})
	user := registerUser(t, env, "ada@example.com", "correct horse battery")

	user.OTP.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, env.users.Update(context.Background(), &user))

	rec := env.invoke(t, env.handler.VerifyOTP, call{
		method: http.MethodPost, path: "/api/auth/verify-otp",
		body: VerifyOTPRequest{Email: "ada@example.com", Code: user.OTP.Code},
	})
	requireStatus(t, rec, http.StatusBadRequest)
	assert.Equal(t, "otp_expired", errorCode(t, rec))
}

func TestResendOTPRotatesCode(t *testing.T) {
	env := newTestEnv(config.Config{})
	user := registerUser(t, env, "ada@example.com", "correct horse battery")

	user.OTP.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, env.users.Update(context.Background(), &user))

	rec := env.invoke(t, env.handler.ResendOTP, call{
		method: http.MethodPost, path: "/api/auth/resend-otp",
		body: ResendOTPRequest{Email: "ada@example.com"},
	})
	requireStatus(t, rec, http.StatusOK)

	stored, err := env.users.GetByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored.OTP)
	assert.False(t, stored.OTP.Expired(time.Now()))
}
