// Package identity handles operator signup, login, and token issuance.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/waitroomxyz/api/internal/app/domain/user"
	"github.com/waitroomxyz/api/internal/app/storage"
	"github.com/waitroomxyz/api/internal/emailcheck"
	apperrors "github.com/waitroomxyz/api/internal/errors"
	"github.com/waitroomxyz/api/internal/logging"
)

const bcryptCost = 12

// Claims is the JWT payload issued to operators.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Service authenticates operators.
type Service struct {
	store    storage.UserStore
	emails   emailcheck.Checker
	secret   []byte
	tokenTTL time.Duration
	log      *logging.Logger
}

// New returns a Service. A nil checker accepts any plausible address; a nil
// logger gets a default one.
func New(store storage.UserStore, emails emailcheck.Checker, secret []byte, tokenTTL time.Duration, log *logging.Logger) *Service {
	if emails == nil {
		emails = emailcheck.SyntaxChecker{}
	}
	if log == nil {
		log = logging.NewDefault("identity-service")
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{store: store, emails: emails, secret: secret, tokenTTL: tokenTTL, log: log}
}

// Signup registers an operator account and returns it with a signed token.
func (s *Service) Signup(ctx context.Context, email, name, password string) (*user.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, "", apperrors.Validation("email is required")
	}
	if len(password) < 8 {
		return nil, "", apperrors.Validation("password must be at least 8 characters")
	}
	ok, err := s.emails.Check(ctx, email)
	if err != nil {
		return nil, "", apperrors.Internal(fmt.Errorf("check email: %w", err))
	}
	if !ok {
		return nil, "", apperrors.Validation("email address failed verification")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, "", apperrors.Internal(err)
	}
	now := time.Now().UTC()
	u := &user.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, "", apperrors.Conflict("an account with this email already exists")
		}
		return nil, "", apperrors.Internal(fmt.Errorf("create user: %w", err))
	}

	token, err := s.issueToken(u)
	if err != nil {
		return nil, "", apperrors.Internal(err)
	}
	s.log.WithField("user_id", u.ID).Info("account created")
	return u, token, nil
}

// Login verifies credentials and returns the account with a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (*user.User, string, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", apperrors.Unauthorized("invalid email or password")
		}
		return nil, "", apperrors.Internal(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.LogSecurityEvent(ctx, "login_failed", map[string]interface{}{
			"user_id": u.ID,
		})
		return nil, "", apperrors.Unauthorized("invalid email or password")
	}
	token, err := s.issueToken(u)
	if err != nil {
		return nil, "", apperrors.Internal(err)
	}
	return u, token, nil
}

// Me returns the account for an authenticated user ID.
func (s *Service) Me(ctx context.Context, userID string) (*user.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NotFound("account not found")
		}
		return nil, apperrors.Internal(err)
	}
	return u, nil
}

// ParseToken validates a bearer token and returns its claims.
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, apperrors.Unauthorized("invalid token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperrors.Unauthorized("invalid token")
	}
	return claims, nil
}

func (s *Service) issueToken(u *user.User) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
