// Package shares manages social share claims and their token verification.
package shares

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/waitroomxyz/api/internal/app/domain/share"
	"github.com/waitroomxyz/api/internal/app/storage"
	apperrors "github.com/waitroomxyz/api/internal/errors"
	"github.com/waitroomxyz/api/internal/logging"
)

// Service records share claims and verifies them exactly once per claim.
type Service struct {
	claims storage.ShareStore
	log    *logging.Logger
}

// New returns a Service. A nil logger gets a default one.
func New(claims storage.ShareStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("shares-service")
	}
	return &Service{claims: claims, log: log}
}

// Claim opens a share claim for username on platform and returns it with a
// fresh verification token. Only one pending claim may exist per user and
// platform; a second attempt while one is pending is a conflict.
func (s *Service) Claim(ctx context.Context, projectID, username string, platform share.Platform, shareURL string) (*share.Claim, error) {
	if !platform.Valid() {
		return nil, apperrors.Validation("unknown platform %q", platform)
	}
	token, err := generateToken()
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	now := time.Now().UTC()
	claim := &share.Claim{
		ID:                uuid.NewString(),
		ProjectID:         projectID,
		Username:          username,
		Platform:          platform,
		ShareURL:          shareURL,
		VerificationToken: token,
		Method:            share.MethodToken,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.claims.CreateClaim(ctx, claim); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperrors.Conflict("a pending %s share claim already exists", platform)
		}
		return nil, apperrors.Internal(fmt.Errorf("create claim: %w", err))
	}
	s.log.WithFields(map[string]interface{}{
		"project_id": projectID,
		"username":   username,
		"platform":   string(platform),
	}).Info("share claimed")
	return claim, nil
}

// Verify resolves the pending claim for username on platform. The token must
// match and each claim verifies at most once. The second return reports
// whether this call flipped the claim.
func (s *Service) Verify(ctx context.Context, projectID, username string, platform share.Platform, token, postID string) (*share.Claim, bool, error) {
	claim, err := s.claims.GetPendingClaim(ctx, projectID, username, platform)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, apperrors.NotFound("no pending %s share claim for %s", platform, username)
		}
		return nil, false, apperrors.Internal(err)
	}
	if claim.VerificationToken != token {
		s.log.LogSecurityEvent(ctx, "share_token_mismatch", map[string]interface{}{
			"project_id": projectID,
			"username":   username,
			"platform":   string(platform),
		})
		return nil, false, apperrors.Validation("verification token does not match")
	}
	claim.IsVerified = true
	claim.PlatformPostID = postID
	claim.UpdatedAt = time.Now().UTC()
	if err := s.claims.UpdateClaim(ctx, claim); err != nil {
		return nil, false, apperrors.Internal(fmt.Errorf("update claim: %w", err))
	}
	return claim, true, nil
}

// VerifyManual marks the pending claim verified without a token check. Used
// by operators reviewing claims from the dashboard.
func (s *Service) VerifyManual(ctx context.Context, projectID, username string, platform share.Platform) (*share.Claim, bool, error) {
	claim, err := s.claims.GetPendingClaim(ctx, projectID, username, platform)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, apperrors.NotFound("no pending %s share claim for %s", platform, username)
		}
		return nil, false, apperrors.Internal(err)
	}
	claim.IsVerified = true
	claim.Method = share.MethodManual
	claim.UpdatedAt = time.Now().UTC()
	if err := s.claims.UpdateClaim(ctx, claim); err != nil {
		return nil, false, apperrors.Internal(fmt.Errorf("update claim: %w", err))
	}
	return claim, true, nil
}

// List returns all claims by username in the project.
func (s *Service) List(ctx context.Context, projectID, username string) ([]share.Claim, error) {
	claims, err := s.claims.ListClaimsByUsername(ctx, projectID, username)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return claims, nil
}

// CountVerified returns the number of verified claims by username.
func (s *Service) CountVerified(ctx context.Context, projectID, username string) (int64, error) {
	n, err := s.claims.CountVerifiedShares(ctx, projectID, username)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return n, nil
}

func generateToken() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
