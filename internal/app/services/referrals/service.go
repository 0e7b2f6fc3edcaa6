// Package referrals manages referral edges between waitlist entries.
package referrals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/waitroomxyz/api/internal/app/domain/referral"
	"github.com/waitroomxyz/api/internal/app/storage"
	apperrors "github.com/waitroomxyz/api/internal/errors"
	"github.com/waitroomxyz/api/internal/logging"
)

// Service records and verifies referral edges. Score bookkeeping for the
// referrer lives in the waitlist service, which calls in here.
type Service struct {
	edges   storage.ReferralStore
	entries storage.EntryStore
	log     *logging.Logger
}

// New returns a Service. A nil logger gets a default one.
func New(edges storage.ReferralStore, entries storage.EntryStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("referrals-service")
	}
	return &Service{edges: edges, entries: entries, log: log}
}

// Record creates the edge referrer -> referee. The referrer must already be
// on the waitlist, a referee can be referred at most once, and self-referral
// is rejected.
func (s *Service) Record(ctx context.Context, projectID, referrerUsername, refereeUsername string, verified bool, method referral.Method) (*referral.Edge, error) {
	if referrerUsername == refereeUsername {
		return nil, apperrors.Validation("self-referral is not allowed")
	}
	if _, err := s.entries.GetEntry(ctx, projectID, referrerUsername); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NotFound("referrer %s is not on the waitlist", referrerUsername)
		}
		return nil, apperrors.Internal(err)
	}

	now := time.Now().UTC()
	edge := &referral.Edge{
		ID:               uuid.NewString(),
		ProjectID:        projectID,
		ReferrerUsername: referrerUsername,
		RefereeUsername:  refereeUsername,
		IsVerified:       verified,
		Method:           method,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.edges.CreateEdge(ctx, edge); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperrors.Conflict("%s was already referred", refereeUsername)
		}
		return nil, apperrors.Internal(fmt.Errorf("create edge: %w", err))
	}
	s.log.WithFields(map[string]interface{}{
		"project_id": projectID,
		"referrer":   referrerUsername,
		"referee":    refereeUsername,
		"verified":   verified,
	}).Info("referral recorded")
	return edge, nil
}

// Verify marks the referee's edge verified. Verifying an already verified
// edge is a no-op; the second return reports whether this call flipped it.
func (s *Service) Verify(ctx context.Context, projectID, refereeUsername string, method referral.Method) (*referral.Edge, bool, error) {
	edge, err := s.edges.GetEdgeByReferee(ctx, projectID, refereeUsername)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, apperrors.NotFound("no referral recorded for %s", refereeUsername)
		}
		return nil, false, apperrors.Internal(err)
	}
	if edge.IsVerified {
		return edge, false, nil
	}
	edge.IsVerified = true
	edge.Method = method
	edge.UpdatedAt = time.Now().UTC()
	if err := s.edges.UpdateEdge(ctx, edge); err != nil {
		return nil, false, apperrors.Internal(fmt.Errorf("update edge: %w", err))
	}
	return edge, true, nil
}

// GetByReferee returns the edge pointing at refereeUsername, if any.
func (s *Service) GetByReferee(ctx context.Context, projectID, refereeUsername string) (*referral.Edge, error) {
	edge, err := s.edges.GetEdgeByReferee(ctx, projectID, refereeUsername)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NotFound("no referral recorded for %s", refereeUsername)
		}
		return nil, apperrors.Internal(err)
	}
	return edge, nil
}

// ListByReferrer returns all edges originating from referrerUsername.
func (s *Service) ListByReferrer(ctx context.Context, projectID, referrerUsername string) ([]referral.Edge, error) {
	edges, err := s.edges.ListEdgesByReferrer(ctx, projectID, referrerUsername)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return edges, nil
}

// CountVerified returns the number of verified edges from referrerUsername.
func (s *Service) CountVerified(ctx context.Context, projectID, referrerUsername string) (int64, error) {
	n, err := s.edges.CountVerifiedReferrals(ctx, projectID, referrerUsername)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return n, nil
}
