// Package auth implements account registration with email verification and
// JWT-based login for the HTTP surface.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/maestro-ai/maestro/pkg/models"
	"github.com/maestro-ai/maestro/pkg/store"
)

const (
	codeTTL  = 15 * time.Minute
	tokenTTL = 24 * time.Hour
)

var (
	// ErrInvalidCredentials is returned for wrong email/password pairs and
	// for bad or expired tokens. Deliberately unspecific.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotVerified is returned when a login is attempted before the email
	// is verified.
	ErrNotVerified = errors.New("email not verified")

	// ErrCodeExpired is returned for an expired verification code.
	ErrCodeExpired = errors.New("verification code expired")
)

// Service implements the auth flows.
type Service struct {
	store      store.Store
	sender     Sender
	signingKey []byte
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates an auth service.
func NewService(st store.Store, sender Sender, signingKey string, logger *slog.Logger) *Service {
	return &Service{
		store:      st,
		sender:     sender,
		signingKey: []byte(signingKey),
		logger:     logger.With("component", "auth"),
		now:        time.Now,
	}
}

// Register creates an unverified account and sends a verification code.
func (s *Service) Register(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return store.NewValidationError("email", "a valid email address is required")
	}
	if len(password) < 8 {
		return store.NewValidationError("password", "must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return err
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("failed to generate verification code: %w", err)
	}
	if err := s.store.SaveVerificationCode(ctx, models.VerificationCode{
		Email:     email,
		Code:      code,
		ExpiresAt: s.now().UTC().Add(codeTTL),
	}); err != nil {
		return err
	}

	if err := s.sender.Send(email, "Verify your account",
		fmt.Sprintf("Your verification code is %s. It expires in %d minutes.",
			code, int(codeTTL.Minutes()))); err != nil {
		s.logger.Error("Failed to send verification email", "email", email, "error", err)
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	s.logger.Info("User registered", "email", email)
	return nil
}

// Verify consumes a verification code and marks the account verified.
func (s *Service) Verify(ctx context.Context, email, code string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	stored, err := s.store.GetVerificationCode(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	if s.now().UTC().After(stored.ExpiresAt) {
		return ErrCodeExpired
	}
	if stored.Code != code {
		return ErrInvalidCredentials
	}
	if err := s.store.MarkUserVerified(ctx, email); err != nil {
		return err
	}
	s.logger.Info("User verified", "email", email)
	return nil
}

// Login checks the credentials and issues a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	if !user.Verified {
		return "", ErrNotVerified
	}

	now := s.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   user.Email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// ParseToken validates a bearer token and returns the owner identity.
func (s *Service) ParseToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.signingKey, nil
		})
	if err != nil || !token.Valid {
		return "", ErrInvalidCredentials
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidCredentials
	}
	return claims.Subject, nil
}

// generateCode returns a 6-digit numeric verification code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
