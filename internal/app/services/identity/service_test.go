package identity

import (
	"context"
	"testing"
	"time"

	"github.com/waitroomxyz/api/internal/app/storage/memory"
	apperrors "github.com/waitroomxyz/api/internal/errors"
)

var testSecret = []byte("test-secret")

func newTestService() *Service {
	return New(memory.New(), nil, testSecret, time.Hour, nil)
}

func TestSignupAndLogin(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	u, token, err := svc.Signup(ctx, "Founder@Example.com", "Founder", "hunter2hunter2")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if u.Email != "founder@example.com" {
		t.Fatalf("email = %s, want lowercased", u.Email)
	}
	if token == "" {
		t.Fatal("signup should issue a token")
	}
	if u.PasswordHash == "hunter2hunter2" {
		t.Fatal("password stored in clear")
	}

	u2, token2, err := svc.Login(ctx, "founder@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u2.ID != u.ID || token2 == "" {
		t.Fatal("login should return the account and a token")
	}

	claims, err := svc.ParseToken(token2)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != u.ID {
		t.Fatalf("claims user = %s, want %s", claims.UserID, u.ID)
	}
}

func TestSignupValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "", "x", "longenough"); !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("empty email = %v, want validation error", err)
	}
	if _, _, err := svc.Signup(ctx, "a@example.com", "x", "short"); !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("short password = %v, want validation error", err)
	}
	if _, _, err := svc.Signup(ctx, "not-an-email", "x", "longenough"); !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("bad email = %v, want validation error", err)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "a@example.com", "x", "longenough"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	_, _, err := svc.Signup(ctx, "A@example.com", "y", "longenough")
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("duplicate email = %v, want conflict", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "a@example.com", "x", "longenough"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, _, err := svc.Login(ctx, "a@example.com", "wrongwrong"); !apperrors.IsCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("wrong password = %v, want unauthorized", err)
	}
	if _, _, err := svc.Login(ctx, "missing@example.com", "whatever1"); !apperrors.IsCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("unknown email = %v, want unauthorized", err)
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	svc := newTestService()
	other := New(memory.New(), nil, []byte("other-secret"), time.Hour, nil)

	_, token, err := other.Signup(context.Background(), "a@example.com", "x", "longenough")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := svc.ParseToken(token); !apperrors.IsCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("foreign token = %v, want unauthorized", err)
	}
	if _, err := svc.ParseToken("not.a.token"); !apperrors.IsCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("garbage token = %v, want unauthorized", err)
	}
}
