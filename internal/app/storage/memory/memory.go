// Package memory is the in-memory storage backend used by tests and by
// deployments without a database URL.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/waitroomxyz/api/internal/app/domain/project"
	"github.com/waitroomxyz/api/internal/app/domain/referral"
	"github.com/waitroomxyz/api/internal/app/domain/share"
	"github.com/waitroomxyz/api/internal/app/domain/user"
	"github.com/waitroomxyz/api/internal/app/domain/waitlist"
	"github.com/waitroomxyz/api/internal/app/storage"
)

// Store keeps everything in maps guarded by one mutex. Values are cloned on
// the way in and out so callers can never mutate shared state.
type Store struct {
	mu sync.Mutex

	users        map[string]user.User    // by id
	usersByEmail map[string]string       // lowercase email -> id
	projects     map[string]project.Project
	projectByKey map[string]string // api key -> project id
	joinSeq      map[string]int64  // project id -> next index

	entries        map[string]waitlist.Entry // by id
	entryByName    map[string]string         // project id + "/" + username -> id
	entryByInvite  map[string]string         // invite code -> id
	edges          map[string]referral.Edge  // by id
	edgeByReferee  map[string]string         // project id + "/" + referee -> id
	claims         map[string]share.Claim    // by id
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:         make(map[string]user.User),
		usersByEmail:  make(map[string]string),
		projects:      make(map[string]project.Project),
		projectByKey:  make(map[string]string),
		joinSeq:       make(map[string]int64),
		entries:       make(map[string]waitlist.Entry),
		entryByName:   make(map[string]string),
		entryByInvite: make(map[string]string),
		edges:         make(map[string]referral.Edge),
		edgeByReferee: make(map[string]string),
		claims:        make(map[string]share.Claim),
	}
}

var (
	_ storage.UserStore     = (*Store)(nil)
	_ storage.ProjectStore  = (*Store)(nil)
	_ storage.EntryStore    = (*Store)(nil)
	_ storage.ReferralStore = (*Store)(nil)
	_ storage.ShareStore    = (*Store)(nil)
)

func scopedKey(projectID, name string) string {
	return projectID + "/" + name
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, ok := s.usersByEmail[email]; ok {
		return storage.ErrDuplicate
	}
	if _, ok := s.users[u.ID]; ok {
		return storage.ErrDuplicate
	}
	s.users[u.ID] = *u
	s.usersByEmail[email] = u.ID
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.usersByEmail[strings.ToLower(email)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

// --- projects ---

func (s *Store) CreateProject(ctx context.Context, p *project.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; ok {
		return storage.ErrDuplicate
	}
	if _, ok := s.projectByKey[p.APIKey]; ok {
		return storage.ErrDuplicate
	}
	s.projects[p.ID] = *p
	s.projectByKey[p.APIKey] = p.ID
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetProjectByAPIKey(ctx context.Context, apiKey string) (*project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.projectByKey[apiKey]
	if !ok {
		return nil, storage.ErrNotFound
	}
	p := s.projects[id]
	return &p, nil
}

func (s *Store) ListProjectsByUser(ctx context.Context, userID string) ([]project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []project.Project
	for _, p := range s.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListActiveProjects(ctx context.Context) ([]project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []project.Project
	for _, p := range s.projects {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateProject(ctx context.Context, p *project.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.projects[p.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if old.APIKey != p.APIKey {
		if _, taken := s.projectByKey[p.APIKey]; taken {
			return storage.ErrDuplicate
		}
		delete(s.projectByKey, old.APIKey)
		s.projectByKey[p.APIKey] = p.ID
	}
	s.projects[p.ID] = *p
	return nil
}

func (s *Store) NextJoinIndex(ctx context.Context, projectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[projectID]; !ok {
		return 0, storage.ErrNotFound
	}
	idx := s.joinSeq[projectID]
	s.joinSeq[projectID] = idx + 1
	return idx, nil
}

// --- waitlist entries ---

func (s *Store) CreateEntry(ctx context.Context, e *waitlist.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	nameKey := scopedKey(e.ProjectID, e.Username)
	if _, ok := s.entryByName[nameKey]; ok {
		return storage.ErrDuplicate
	}
	if _, ok := s.entryByInvite[e.InviteCode]; ok {
		return storage.ErrDuplicate
	}
	for _, other := range s.entries {
		if other.ProjectID == e.ProjectID && strings.EqualFold(other.Email, e.Email) {
			return storage.ErrDuplicate
		}
	}
	s.entries[e.ID] = *e
	s.entryByName[nameKey] = e.ID
	s.entryByInvite[e.InviteCode] = e.ID
	return nil
}

func (s *Store) GetEntry(ctx context.Context, projectID, username string) (*waitlist.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.entryByName[scopedKey(projectID, username)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	e := s.entries[id]
	return &e, nil
}

func (s *Store) GetEntryByID(ctx context.Context, id string) (*waitlist.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &e, nil
}

func (s *Store) GetEntryByInviteCode(ctx context.Context, code string) (*waitlist.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.entryByInvite[code]
	if !ok {
		return nil, storage.ErrNotFound
	}
	e := s.entries[id]
	return &e, nil
}

func (s *Store) UpdateEntry(ctx context.Context, e *waitlist.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.ID]; !ok {
		return storage.ErrNotFound
	}
	s.entries[e.ID] = *e
	return nil
}

func (s *Store) ListEntries(ctx context.Context, projectID string) ([]waitlist.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []waitlist.Entry
	for _, e := range s.entries {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinIndex < out[j].JoinIndex })
	return out, nil
}

func (s *Store) UpdatePositions(ctx context.Context, projectID string, positions []storage.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range positions {
		e, ok := s.entries[p.EntryID]
		if !ok || e.ProjectID != projectID {
			return storage.ErrNotFound
		}
	}
	for _, p := range positions {
		e := s.entries[p.EntryID]
		e.Position = p.Position
		s.entries[p.EntryID] = e
	}
	return nil
}

// --- referral edges ---

func (s *Store) CreateEdge(ctx context.Context, e *referral.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scopedKey(e.ProjectID, e.RefereeUsername)
	if _, ok := s.edgeByReferee[key]; ok {
		return storage.ErrDuplicate
	}
	s.edges[e.ID] = *e
	s.edgeByReferee[key] = e.ID
	return nil
}

func (s *Store) GetEdge(ctx context.Context, id string) (*referral.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.edges[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &e, nil
}

func (s *Store) GetEdgeByReferee(ctx context.Context, projectID, refereeUsername string) (*referral.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.edgeByReferee[scopedKey(projectID, refereeUsername)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	e := s.edges[id]
	return &e, nil
}

func (s *Store) UpdateEdge(ctx context.Context, e *referral.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.edges[e.ID]; !ok {
		return storage.ErrNotFound
	}
	s.edges[e.ID] = *e
	return nil
}

func (s *Store) ListEdgesByReferrer(ctx context.Context, projectID, referrerUsername string) ([]referral.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []referral.Edge
	for _, e := range s.edges {
		if e.ProjectID == projectID && e.ReferrerUsername == referrerUsername {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountVerifiedReferrals(ctx context.Context, projectID, referrerUsername string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range s.edges {
		if e.ProjectID == projectID && e.ReferrerUsername == referrerUsername && e.IsVerified {
			n++
		}
	}
	return n, nil
}

// --- share claims ---

func (s *Store) CreateClaim(ctx context.Context, c *share.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.claims {
		if other.ProjectID == c.ProjectID && other.Username == c.Username &&
			other.Platform == c.Platform && !other.IsVerified {
			return storage.ErrDuplicate
		}
	}
	s.claims[c.ID] = *c
	return nil
}

func (s *Store) GetClaim(ctx context.Context, id string) (*share.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

func (s *Store) GetPendingClaim(ctx context.Context, projectID, username string, platform share.Platform) (*share.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.claims {
		if c.ProjectID == projectID && c.Username == username &&
			c.Platform == platform && !c.IsVerified {
			out := c
			return &out, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) UpdateClaim(ctx context.Context, c *share.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.claims[c.ID]; !ok {
		return storage.ErrNotFound
	}
	s.claims[c.ID] = *c
	return nil
}

func (s *Store) ListClaimsByUsername(ctx context.Context, projectID, username string) ([]share.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []share.Claim
	for _, c := range s.claims {
		if c.ProjectID == projectID && c.Username == username {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountVerifiedShares(ctx context.Context, projectID, username string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, c := range s.claims {
		if c.ProjectID == projectID && c.Username == username && c.IsVerified {
			n++
		}
	}
	return n, nil
}
