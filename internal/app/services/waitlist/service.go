// Package waitlist implements the core join, referral, share, and ranking
// flows for a project's waitlist.
package waitlist

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/waitroomxyz/api/internal/app/domain/project"
	"github.com/waitroomxyz/api/internal/app/domain/referral"
	"github.com/waitroomxyz/api/internal/app/domain/share"
	domain "github.com/waitroomxyz/api/internal/app/domain/waitlist"
	"github.com/waitroomxyz/api/internal/app/ranking"
	"github.com/waitroomxyz/api/internal/app/scoring"
	"github.com/waitroomxyz/api/internal/app/services/referrals"
	"github.com/waitroomxyz/api/internal/app/services/shares"
	"github.com/waitroomxyz/api/internal/app/storage"
	"github.com/waitroomxyz/api/internal/emailcheck"
	apperrors "github.com/waitroomxyz/api/internal/errors"
	"github.com/waitroomxyz/api/internal/logging"
	"github.com/waitroomxyz/api/internal/metrics"
)

// inviteCodeAttempts bounds the retry loop for invite code collisions.
const inviteCodeAttempts = 5

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._\-]{1,50}$`)

// Service is the waitlist aggregate. All writes to a project's entries go
// through the per-project lock so scores and positions stay consistent.
type Service struct {
	entries   storage.EntryStore
	projects  storage.ProjectStore
	referrals *referrals.Service
	shares    *shares.Service
	emails    emailcheck.Checker
	cache     *ranking.Cache
	metrics   *metrics.Metrics
	log       *logging.Logger
	locks     *projectLocks
	now       func() time.Time
}

// New returns a Service. Cache, metrics, and logger may be nil; the email
// checker defaults to a syntax check.
func New(entries storage.EntryStore, projects storage.ProjectStore, refs *referrals.Service, shrs *shares.Service, emails emailcheck.Checker, cache *ranking.Cache, m *metrics.Metrics, log *logging.Logger) *Service {
	if emails == nil {
		emails = emailcheck.SyntaxChecker{}
	}
	if log == nil {
		log = logging.NewDefault("waitlist-service")
	}
	return &Service{
		entries:   entries,
		projects:  projects,
		referrals: refs,
		shares:    shrs,
		emails:    emails,
		cache:     cache,
		metrics:   m,
		log:       log,
		locks:     newProjectLocks(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// JoinParams carries a signup request from the widget.
type JoinParams struct {
	Username string
	Email    string
	Metadata string
	Tags     string
	// InviteCode is the referrer's code, if the signup came through a
	// referral link.
	InviteCode string
}

// Join adds a new entry to the project's waitlist, wires up the referral if
// an invite code was supplied, and assigns the initial rank.
func (s *Service) Join(ctx context.Context, proj *project.Project, p JoinParams) (*domain.Entry, error) {
	displayUsername := strings.TrimSpace(p.Username)
	username := strings.ToLower(displayUsername)
	if !usernamePattern.MatchString(username) {
		return nil, apperrors.Validation("username must be 1-50 characters of letters, digits, dot, dash, or underscore")
	}
	email := strings.TrimSpace(strings.ToLower(p.Email))
	ok, err := s.emails.Check(ctx, email)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("check email: %w", err))
	}
	if !ok {
		return nil, apperrors.Validation("email address failed verification")
	}

	unlock := s.locks.Lock(proj.ID)
	defer unlock()

	if _, err := s.entries.GetEntry(ctx, proj.ID, username); err == nil {
		return nil, apperrors.Conflict("%s is already on the waitlist", username)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.Internal(err)
	}
	existing, err := s.entries.ListEntries(ctx, proj.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	for _, e := range existing {
		if e.Email == email {
			return nil, apperrors.Conflict("email is already on the waitlist")
		}
	}

	var referrer *domain.Entry
	if p.InviteCode != "" {
		referrer, err = s.resolveReferrer(ctx, proj.ID, username, p.InviteCode)
		if err != nil {
			return nil, err
		}
	}

	joinIndex, err := s.projects.NextJoinIndex(ctx, proj.ID)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("claim join index: %w", err))
	}
	totalAtJoin := joinIndex + 1

	now := s.now()
	timeScore := scoring.TimeScoreAt(proj.CreatedAt, now)
	score, err := scoring.Compute(scoring.Inputs{
		JoinIndex:   joinIndex,
		TotalAtJoin: totalAtJoin,
		TimeScore:   timeScore,
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	entry := &domain.Entry{
		ID:              uuid.NewString(),
		ProjectID:       proj.ID,
		Username:        username,
		DisplayUsername: displayUsername,
		Email:           email,
		Metadata:        p.Metadata,
		Tags:            p.Tags,
		Status:          domain.StatusActive,
		PriorityScore:   score,
		JoinIndex:       joinIndex,
		TotalAtJoin:     totalAtJoin,
		TimeScore:       timeScore,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if referrer != nil {
		entry.ReferredBy = referrer.Username
	}

	if err := s.createWithFreshInviteCode(ctx, entry); err != nil {
		return nil, err
	}

	if referrer != nil {
		if err := s.recordReferral(ctx, proj, referrer, entry); err != nil {
			// The entry exists; losing the edge is recoverable by a manual
			// record, so log and continue.
			s.log.WithError(err).WithFields(map[string]interface{}{
				"project_id": proj.ID,
				"referrer":   referrer.Username,
				"referee":    entry.Username,
			}).Error("referral record failed after join")
		}
	}

	proj.TotalEntries++
	proj.UpdatedAt = now
	if err := s.projects.UpdateProject(ctx, proj); err != nil {
		s.log.WithError(err).WithField("project_id", proj.ID).Error("total entries update failed")
	}

	if err := s.recomputePositions(ctx, proj.ID); err != nil {
		return nil, err
	}

	fresh, err := s.entries.GetEntryByID(ctx, entry.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	fresh.InitialPosition = fresh.Position
	if err := s.entries.UpdateEntry(ctx, fresh); err != nil {
		return nil, apperrors.Internal(err)
	}

	s.metrics.RecordJoin(proj.ID)
	s.log.WithFields(map[string]interface{}{
		"project_id": proj.ID,
		"username":   username,
		"join_index": joinIndex,
		"position":   fresh.Position,
	}).Info("waitlist join")
	return fresh, nil
}

// resolveReferrer validates an invite code against the project. The code
// must belong to an entry in the same project and cannot be the joiner's own.
func (s *Service) resolveReferrer(ctx context.Context, projectID, username, code string) (*domain.Entry, error) {
	referrer, err := s.entries.GetEntryByInviteCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NotFound("invite code is not valid")
		}
		return nil, apperrors.Internal(err)
	}
	if referrer.ProjectID != projectID {
		return nil, apperrors.NotFound("invite code is not valid")
	}
	if referrer.Username == username {
		return nil, apperrors.Validation("self-referral is not allowed")
	}
	return referrer, nil
}

// createWithFreshInviteCode persists the entry, regenerating the invite code
// on a collision. A duplicate username surfaces as a conflict immediately;
// only code collisions are retried.
func (s *Service) createWithFreshInviteCode(ctx context.Context, entry *domain.Entry) error {
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code, err := generateInviteCode()
		if err != nil {
			return apperrors.Internal(err)
		}
		entry.InviteCode = code
		err = s.entries.CreateEntry(ctx, entry)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrDuplicate) {
			return apperrors.Internal(fmt.Errorf("create entry: %w", err))
		}
		// Distinguish a username clash from an invite code clash.
		if _, nameErr := s.entries.GetEntry(ctx, entry.ProjectID, entry.Username); nameErr == nil {
			return apperrors.Conflict("%s is already on the waitlist", entry.Username)
		}
	}
	return apperrors.Exhausted("could not allocate a unique invite code")
}

// recordReferral creates the edge and, under the optimistic policy, credits
// the referrer right away.
func (s *Service) recordReferral(ctx context.Context, proj *project.Project, referrer, referee *domain.Entry) error {
	verified := proj.ReferralPolicy == project.PolicyOptimistic
	if _, err := s.referrals.Record(ctx, proj.ID, referrer.Username, referee.Username, verified, referral.MethodInviteCode); err != nil {
		return err
	}
	if verified {
		if err := s.creditReferrer(ctx, proj.ID, referrer.Username); err != nil {
			return err
		}
		s.metrics.RecordReferralVerified(proj.ID)
	}
	return nil
}

// VerifyReferral confirms the pending referral for refereeUsername and, if
// this call flipped it, credits the referrer and reranks. Verifying twice is
// harmless.
func (s *Service) VerifyReferral(ctx context.Context, projectID, refereeUsername string) (*referral.Edge, error) {
	unlock := s.locks.Lock(projectID)
	defer unlock()

	edge, flipped, err := s.referrals.Verify(ctx, projectID, strings.ToLower(refereeUsername), referral.MethodManual)
	if err != nil {
		return nil, err
	}
	if !flipped {
		return edge, nil
	}
	if err := s.creditReferrer(ctx, projectID, edge.ReferrerUsername); err != nil {
		return nil, err
	}
	s.metrics.RecordReferralVerified(projectID)
	if err := s.recomputePositions(ctx, projectID); err != nil {
		return nil, err
	}
	return edge, nil
}

// creditReferrer bumps the referrer's verified count and recomputes their
// score. A terminal referrer keeps scoring; they just stay out of the
// ranking.
func (s *Service) creditReferrer(ctx context.Context, projectID, referrerUsername string) error {
	entry, err := s.entries.GetEntry(ctx, projectID, referrerUsername)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("load referrer: %w", err))
	}
	entry.VerifiedReferralsCount++
	return s.rescoreEntry(ctx, entry)
}

// ClaimShare opens a share claim for an existing entry.
func (s *Service) ClaimShare(ctx context.Context, projectID, username string, platform share.Platform, shareURL string) (*share.Claim, error) {
	username = strings.ToLower(username)
	if _, err := s.entries.GetEntry(ctx, projectID, username); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NotFound("%s is not on the waitlist", username)
		}
		return nil, apperrors.Internal(err)
	}
	return s.shares.Claim(ctx, projectID, username, platform, shareURL)
}

// VerifyShare resolves a pending share claim by token and credits the entry
// when the claim flips to verified.
func (s *Service) VerifyShare(ctx context.Context, projectID, username string, platform share.Platform, token, postID string) (*share.Claim, error) {
	username = strings.ToLower(username)
	unlock := s.locks.Lock(projectID)
	defer unlock()

	claim, flipped, err := s.shares.Verify(ctx, projectID, username, platform, token, postID)
	if err != nil {
		// A replayed verify finds no pending claim; answer with the already
		// verified one instead of failing, without crediting again.
		if apperrors.IsCode(err, apperrors.CodeNotFound) {
			if done := s.verifiedClaim(ctx, projectID, username, platform, token); done != nil {
				return done, nil
			}
		}
		return nil, err
	}
	if !flipped {
		return claim, nil
	}
	if err := s.creditShare(ctx, projectID, username); err != nil {
		return nil, err
	}
	return claim, nil
}

// verifiedClaim looks up an already verified claim matching the token, for
// replay tolerance.
func (s *Service) verifiedClaim(ctx context.Context, projectID, username string, platform share.Platform, token string) *share.Claim {
	claims, err := s.shares.List(ctx, projectID, username)
	if err != nil {
		return nil
	}
	for i := range claims {
		c := &claims[i]
		if c.Platform == platform && c.IsVerified && c.VerificationToken == token {
			return c
		}
	}
	return nil
}

// VerifyShareManual confirms a pending claim from the dashboard.
func (s *Service) VerifyShareManual(ctx context.Context, projectID, username string, platform share.Platform) (*share.Claim, error) {
	username = strings.ToLower(username)
	unlock := s.locks.Lock(projectID)
	defer unlock()

	claim, flipped, err := s.shares.VerifyManual(ctx, projectID, username, platform)
	if err != nil {
		return nil, err
	}
	if !flipped {
		return claim, nil
	}
	if err := s.creditShare(ctx, projectID, username); err != nil {
		return nil, err
	}
	return claim, nil
}

func (s *Service) creditShare(ctx context.Context, projectID, username string) error {
	entry, err := s.entries.GetEntry(ctx, projectID, username)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("load entry: %w", err))
	}
	entry.VerifiedSharesCount++
	if err := s.rescoreEntry(ctx, entry); err != nil {
		return err
	}
	s.metrics.RecordShareVerified(projectID)
	return s.recomputePositions(ctx, projectID)
}

// ChangeStatus moves an entry through its lifecycle. Illegal transitions are
// rejected; a legal one reranks the project since terminal entries leave the
// ordering.
func (s *Service) ChangeStatus(ctx context.Context, projectID, username string, next domain.Status) (*domain.Entry, error) {
	if !next.Valid() {
		return nil, apperrors.Validation("unknown status %q", next)
	}
	username = strings.ToLower(username)
	unlock := s.locks.Lock(projectID)
	defer unlock()

	entry, err := s.entries.GetEntry(ctx, projectID, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NotFound("%s is not on the waitlist", username)
		}
		return nil, apperrors.Internal(err)
	}
	if !entry.Status.CanTransitionTo(next) {
		return nil, apperrors.InvalidTransition(string(entry.Status), string(next))
	}
	entry.Status = next
	entry.UpdatedAt = s.now()
	if err := s.entries.UpdateEntry(ctx, entry); err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.recomputePositions(ctx, projectID); err != nil {
		return nil, err
	}
	fresh, err := s.entries.GetEntryByID(ctx, entry.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return fresh, nil
}

// GetEntry returns the entry for username, including its current position.
func (s *Service) GetEntry(ctx context.Context, projectID, username string) (*domain.Entry, error) {
	entry, err := s.entries.GetEntry(ctx, projectID, strings.ToLower(username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NotFound("%s is not on the waitlist", username)
		}
		return nil, apperrors.Internal(err)
	}
	return entry, nil
}

// ListRanked returns the project's rankable entries in rank order, serving
// from the cache when warm.
func (s *Service) ListRanked(ctx context.Context, projectID string) ([]domain.Entry, error) {
	if cached, ok := s.cache.Get(ctx, projectID); ok {
		return cached, nil
	}
	all, err := s.entries.ListEntries(ctx, projectID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	ranked, err := ranking.Order(all)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	s.cache.Put(ctx, projectID, ranked)
	return ranked, nil
}

// Rescore recomputes every entry's score from stored facts: verified counts
// are recounted and the time bonus is re-derived from the entry's own join
// time. Positions are rebuilt afterwards.
func (s *Service) Rescore(ctx context.Context, proj *project.Project) error {
	unlock := s.locks.Lock(proj.ID)
	defer unlock()

	all, err := s.entries.ListEntries(ctx, proj.ID)
	if err != nil {
		return apperrors.Internal(err)
	}
	for i := range all {
		entry := &all[i]
		refs, err := s.referrals.CountVerified(ctx, proj.ID, entry.Username)
		if err != nil {
			return err
		}
		shrs, err := s.shares.CountVerified(ctx, proj.ID, entry.Username)
		if err != nil {
			return err
		}
		entry.VerifiedReferralsCount = refs
		entry.VerifiedSharesCount = shrs
		entry.TimeScore = scoring.TimeScoreAt(proj.CreatedAt, entry.CreatedAt)
		if err := s.rescoreEntry(ctx, entry); err != nil {
			return err
		}
	}
	if err := s.recomputePositions(ctx, proj.ID); err != nil {
		return err
	}
	s.metrics.RecordRankRecompute(proj.ID)
	s.log.WithFields(map[string]interface{}{
		"project_id": proj.ID,
		"entries":    len(all),
	}).Info("full rescore complete")
	return nil
}

// rescoreEntry recomputes and persists one entry's score from its fields.
func (s *Service) rescoreEntry(ctx context.Context, entry *domain.Entry) error {
	score, err := scoring.Compute(scoring.Inputs{
		JoinIndex:         entry.JoinIndex,
		TotalAtJoin:       entry.TotalAtJoin,
		VerifiedReferrals: entry.VerifiedReferralsCount,
		VerifiedShares:    entry.VerifiedSharesCount,
		TimeScore:         entry.TimeScore,
	})
	if err != nil {
		return apperrors.Internal(err)
	}
	entry.PriorityScore = score
	entry.UpdatedAt = s.now()
	if err := s.entries.UpdateEntry(ctx, entry); err != nil {
		return apperrors.Internal(fmt.Errorf("update entry: %w", err))
	}
	return nil
}

// recomputePositions rebuilds 1-based positions from the current scores and
// drops the cached ranking.
func (s *Service) recomputePositions(ctx context.Context, projectID string) error {
	all, err := s.entries.ListEntries(ctx, projectID)
	if err != nil {
		return apperrors.Internal(err)
	}
	ranked, err := ranking.Order(all)
	if err != nil {
		return apperrors.Internal(err)
	}
	positions := make([]storage.Position, len(ranked))
	for i, e := range ranked {
		positions[i] = storage.Position{EntryID: e.ID, Position: int64(i + 1)}
	}
	if err := s.entries.UpdatePositions(ctx, projectID, positions); err != nil {
		return apperrors.Internal(fmt.Errorf("update positions: %w", err))
	}
	s.cache.Invalidate(ctx, projectID)
	return nil
}

func generateInviteCode() (string, error) {
	raw := make([]byte, 8)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate invite code: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
