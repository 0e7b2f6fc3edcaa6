package shares

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/waitroomxyz/api/internal/app/domain/share"
	"github.com/waitroomxyz/api/internal/app/storage/memory"
	apperrors "github.com/waitroomxyz/api/internal/errors"
)

func TestClaimAndVerify(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()
	projectID := uuid.NewString()

	claim, err := svc.Claim(ctx, projectID, "alice", share.PlatformTwitter, "https://twitter.com/alice/status/1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claim.VerificationToken) != 32 {
		t.Fatalf("token length = %d, want 32", len(claim.VerificationToken))
	}
	if claim.Method != share.MethodToken {
		t.Fatalf("method = %s, want token", claim.Method)
	}

	verified, flipped, err := svc.Verify(ctx, projectID, "alice", share.PlatformTwitter, claim.VerificationToken, "post-9")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !flipped || !verified.IsVerified {
		t.Fatal("verify should flip the claim")
	}
	if verified.PlatformPostID != "post-9" {
		t.Fatalf("post id = %s, want post-9", verified.PlatformPostID)
	}

	n, err := svc.CountVerified(ctx, projectID, "alice")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("verified count = %d, want 1", n)
	}
}

func TestClaimRejectsUnknownPlatform(t *testing.T) {
	svc := New(memory.New(), nil)
	_, err := svc.Claim(context.Background(), uuid.NewString(), "alice", "myspace", "")
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("unknown platform = %v, want validation error", err)
	}
}

func TestSecondPendingClaimConflicts(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()
	projectID := uuid.NewString()

	if _, err := svc.Claim(ctx, projectID, "alice", share.PlatformReddit, ""); err != nil {
		t.Fatalf("claim: %v", err)
	}
	_, err := svc.Claim(ctx, projectID, "alice", share.PlatformReddit, "")
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("second pending claim = %v, want conflict", err)
	}
	// A different platform is fine.
	if _, err := svc.Claim(ctx, projectID, "alice", share.PlatformTikTok, ""); err != nil {
		t.Fatalf("claim other platform: %v", err)
	}
}

func TestVerifyTokenMismatch(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()
	projectID := uuid.NewString()

	if _, err := svc.Claim(ctx, projectID, "alice", share.PlatformTwitter, ""); err != nil {
		t.Fatalf("claim: %v", err)
	}
	_, _, err := svc.Verify(ctx, projectID, "alice", share.PlatformTwitter, "bogus", "")
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("token mismatch = %v, want validation error", err)
	}
}

func TestVerifyWithoutPendingClaim(t *testing.T) {
	svc := New(memory.New(), nil)
	_, _, err := svc.Verify(context.Background(), uuid.NewString(), "alice", share.PlatformTwitter, "x", "")
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("no pending claim = %v, want not found", err)
	}
}

func TestVerifyManual(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()
	projectID := uuid.NewString()

	if _, err := svc.Claim(ctx, projectID, "alice", share.PlatformLinkedIn, ""); err != nil {
		t.Fatalf("claim: %v", err)
	}
	claim, flipped, err := svc.VerifyManual(ctx, projectID, "alice", share.PlatformLinkedIn)
	if err != nil {
		t.Fatalf("verify manual: %v", err)
	}
	if !flipped || !claim.IsVerified {
		t.Fatal("manual verify should flip the claim")
	}
	if claim.Method != share.MethodManual {
		t.Fatalf("method = %s, want manual", claim.Method)
	}
}
