package handlers

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/mail"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/marketgrid/storefront-backend-go/mailer"
	"github.com/marketgrid/storefront-backend-go/middleware"
	"github.com/marketgrid/storefront-backend-go/models"
	"github.com/marketgrid/storefront-backend-go/store"
)

const otpTTL = 10 * time.Minute

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Phone    string `json:"phone"`
}

// Register creates a user account and kicks off email-OTP verification.
// The OTP mail is dispatched fire-and-forget so delivery problems never
// block the response.
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return nil
	}

	if !isValidEmail(req.Email) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_email"})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "weak_password", "message": "Password must be at least 8 characters"})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal_error"})
	}

	now := time.Now()
	user := &models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashedPassword),
		Phone:    req.Phone,
		OTP: &models.OTP{
			Code:      newOTPCode(),
			ExpiresAt: now.Add(otpTTL),
		},
		Addresses: []models.Address{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Users.Insert(c.Request().Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "email_taken", "message": "Email already registered"})
		}
		return storeError(c, err, "")
	}

	mailer.Dispatch(h.Mailer, user.Email, user.OTP.Code)
	log.WithField("email", user.Email).Info("user registered")

	return c.JSON(http.StatusCreated, user)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login checks credentials and issues a bearer token.
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return nil
	}

	user, err := h.Users.GetByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid_credentials"})
		}
		return storeError(c, err, "")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid_credentials"})
	}

	token, err := middleware.GenerateToken(user.ID, user.IsAdmin, h.Cfg.JWTSecret)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal_error"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"user":  user,
		"token": token,
	})
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required"`
	Code  string `json:"code" validate:"required"`
}

// VerifyOTP checks the pending code and marks the email verified.
func (h *Handler) VerifyOTP(c echo.Context) error {
	var req VerifyOTPRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return nil
	}

	ctx := c.Request().Context()
	user, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		return storeError(c, err, "user not found")
	}

	if user.EmailVerified {
		return c.JSON(http.StatusOK, map[string]string{"message": "email already verified"})
	}
	if user.OTP == nil || user.OTP.Code != req.Code {
		return domainError(c, "invalid_otp", "verification code does not match")
	}
	if user.OTP.Expired(time.Now()) {
		return domainError(c, "otp_expired", "verification code has expired, request a new one")
	}

	user.EmailVerified = true
	user.OTP = nil
	if err := h.Users.Update(ctx, user); err != nil {
		return storeError(c, err, "user not found")
	}

	log.WithField("email", user.Email).Info("email verified")
	return c.JSON(http.StatusOK, map[string]string{"message": "email verified"})
}

type ResendOTPRequest struct {
	Email string `json:"email" validate:"required"`
}

// ResendOTP regenerates and re-dispatches the verification code.
func (h *Handler) ResendOTP(c echo.Context) error {
	var req ResendOTPRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return nil
	}

	ctx := c.Request().Context()
	user, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		return storeError(c, err, "user not found")
	}
	if user.EmailVerified {
		return domainError(c, "already_verified", "email is already verified")
	}

	user.OTP = &models.OTP{
		Code:      newOTPCode(),
		ExpiresAt: time.Now().Add(otpTTL),
	}
	if err := h.Users.Update(ctx, user); err != nil {
		return storeError(c, err, "user not found")
	}

	mailer.Dispatch(h.Mailer, user.Email, user.OTP.Code)
	return c.JSON(http.StatusOK, map[string]string{"message": "verification code sent"})
}

func isValidEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

// newOTPCode returns a 6-digit code from crypto/rand.
func newOTPCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		// extraordinarily unlikely; fall back to a time-derived code
		return fmt.Sprintf("%06d", time.Now().UnixNano()%1000000)
	}
	return fmt.Sprintf("%06d", n.Int64())
}
