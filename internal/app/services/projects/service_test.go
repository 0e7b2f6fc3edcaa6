package projects

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/waitroomxyz/api/internal/app/domain/project"
	"github.com/waitroomxyz/api/internal/app/storage/memory"
	apperrors "github.com/waitroomxyz/api/internal/errors"
)

func TestCreateIssuesKeys(t *testing.T) {
	svc := New(memory.New(), nil)
	userID := uuid.NewString()

	proj, err := svc.Create(context.Background(), userID, CreateParams{Name: "launch"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(proj.APIKey, "wl_pk_") {
		t.Fatalf("api key = %s, want wl_pk_ prefix", proj.APIKey)
	}
	if !strings.HasPrefix(proj.SecretKey, "wl_sk_") {
		t.Fatalf("secret key = %s, want wl_sk_ prefix", proj.SecretKey)
	}
	if proj.ReferralPolicy != project.PolicyOptimistic {
		t.Fatalf("default policy = %s, want optimistic", proj.ReferralPolicy)
	}
	if !proj.IsActive {
		t.Fatal("new project should be active")
	}
}

func TestCreateValidation(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()
	userID := uuid.NewString()

	if _, err := svc.Create(ctx, userID, CreateParams{}); !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("empty name = %v, want validation error", err)
	}
	if _, err := svc.Create(ctx, userID, CreateParams{Name: "x", ReferralPolicy: "weird"}); !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("bad policy = %v, want validation error", err)
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()
	owner := uuid.NewString()

	proj, err := svc.Create(ctx, owner, CreateParams{Name: "launch"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Get(ctx, owner, proj.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if _, err := svc.Get(ctx, uuid.NewString(), proj.ID); !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("stranger get = %v, want forbidden", err)
	}
	if _, err := svc.Get(ctx, owner, uuid.NewString()); !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("missing project = %v, want not found", err)
	}
}

func TestGetByAPIKey(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()
	owner := uuid.NewString()

	proj, err := svc.Create(ctx, owner, CreateParams{Name: "launch"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := svc.GetByAPIKey(ctx, proj.APIKey)
	if err != nil {
		t.Fatalf("by api key: %v", err)
	}
	if got.ID != proj.ID {
		t.Fatalf("resolved project %s, want %s", got.ID, proj.ID)
	}
	if _, err := svc.GetByAPIKey(ctx, "wl_pk_bogus"); !apperrors.IsCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("unknown key = %v, want unauthorized", err)
	}

	if _, err := svc.SetActive(ctx, owner, proj.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.GetByAPIKey(ctx, proj.APIKey); !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("inactive project key = %v, want forbidden", err)
	}
}

func TestRotateKeysInvalidatesOld(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()
	owner := uuid.NewString()

	proj, err := svc.Create(ctx, owner, CreateParams{Name: "launch"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	oldKey := proj.APIKey
	rotated, err := svc.RotateKeys(ctx, owner, proj.ID)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotated.APIKey == oldKey {
		t.Fatal("rotation should change the API key")
	}
	if _, err := svc.GetByAPIKey(ctx, oldKey); !apperrors.IsCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("old key = %v, want unauthorized", err)
	}
	if _, err := svc.GetByAPIKey(ctx, rotated.APIKey); err != nil {
		t.Fatalf("new key: %v", err)
	}
}

func TestUpdate(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()
	owner := uuid.NewString()

	proj, err := svc.Create(ctx, owner, CreateParams{Name: "launch"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	name := "relaunch"
	policy := project.PolicyManual
	updated, err := svc.Update(ctx, owner, proj.ID, UpdateParams{Name: &name, ReferralPolicy: &policy})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "relaunch" || updated.ReferralPolicy != project.PolicyManual {
		t.Fatalf("update not applied: %s %s", updated.Name, updated.ReferralPolicy)
	}

	empty := ""
	if _, err := svc.Update(ctx, owner, proj.ID, UpdateParams{Name: &empty}); !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("empty name = %v, want validation error", err)
	}
}
