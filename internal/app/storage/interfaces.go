// Package storage defines the persistence contracts shared by the memory and
// postgres backends.
package storage

import (
	"context"
	"errors"

	"github.com/waitroomxyz/api/internal/app/domain/project"
	"github.com/waitroomxyz/api/internal/app/domain/referral"
	"github.com/waitroomxyz/api/internal/app/domain/share"
	"github.com/waitroomxyz/api/internal/app/domain/user"
	"github.com/waitroomxyz/api/internal/app/domain/waitlist"
)

// Sentinel errors every backend maps its driver errors onto.
var (
	ErrNotFound  = errors.New("storage: not found")
	ErrDuplicate = errors.New("storage: duplicate")
)

// Position pairs an entry with its new rank for a bulk position write.
type Position struct {
	EntryID  string
	Position int64
}

// UserStore persists operator accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *user.User) error
	GetUser(ctx context.Context, id string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
}

// ProjectStore persists projects and owns the per-project join sequence.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *project.Project) error
	GetProject(ctx context.Context, id string) (*project.Project, error)
	GetProjectByAPIKey(ctx context.Context, apiKey string) (*project.Project, error)
	ListProjectsByUser(ctx context.Context, userID string) ([]project.Project, error)
	ListActiveProjects(ctx context.Context) ([]project.Project, error)
	UpdateProject(ctx context.Context, p *project.Project) error

	// NextJoinIndex atomically claims the next join index for the project.
	// Indices start at zero and are never reused, even when an entry is
	// later blocked or converted.
	NextJoinIndex(ctx context.Context, projectID string) (int64, error)
}

// EntryStore persists waitlist entries. Usernames are unique per project and
// stored lowercase; invite codes are unique globally.
type EntryStore interface {
	CreateEntry(ctx context.Context, e *waitlist.Entry) error
	GetEntry(ctx context.Context, projectID, username string) (*waitlist.Entry, error)
	GetEntryByID(ctx context.Context, id string) (*waitlist.Entry, error)
	GetEntryByInviteCode(ctx context.Context, code string) (*waitlist.Entry, error)
	UpdateEntry(ctx context.Context, e *waitlist.Entry) error
	ListEntries(ctx context.Context, projectID string) ([]waitlist.Entry, error)

	// UpdatePositions applies a batch of rank assignments atomically so
	// readers never observe a half-applied reordering.
	UpdatePositions(ctx context.Context, projectID string, positions []Position) error
}

// ReferralStore persists referral edges. At most one edge exists per referee
// per project.
type ReferralStore interface {
	CreateEdge(ctx context.Context, e *referral.Edge) error
	GetEdge(ctx context.Context, id string) (*referral.Edge, error)
	GetEdgeByReferee(ctx context.Context, projectID, refereeUsername string) (*referral.Edge, error)
	UpdateEdge(ctx context.Context, e *referral.Edge) error
	ListEdgesByReferrer(ctx context.Context, projectID, referrerUsername string) ([]referral.Edge, error)
	CountVerifiedReferrals(ctx context.Context, projectID, referrerUsername string) (int64, error)
}

// ShareStore persists social share claims.
type ShareStore interface {
	CreateClaim(ctx context.Context, c *share.Claim) error
	GetClaim(ctx context.Context, id string) (*share.Claim, error)
	GetPendingClaim(ctx context.Context, projectID, username string, platform share.Platform) (*share.Claim, error)
	UpdateClaim(ctx context.Context, c *share.Claim) error
	ListClaimsByUsername(ctx context.Context, projectID, username string) ([]share.Claim, error)
	CountVerifiedShares(ctx context.Context, projectID, username string) (int64, error)
}
