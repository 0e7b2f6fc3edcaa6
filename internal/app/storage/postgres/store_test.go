package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/waitroomxyz/api/internal/app/domain/project"
	"github.com/waitroomxyz/api/internal/app/domain/user"
	"github.com/waitroomxyz/api/internal/app/domain/waitlist"
	"github.com/waitroomxyz/api/internal/app/storage"
	"github.com/waitroomxyz/api/internal/database"
)

// The round-trip tests need a live database and only run when
// WAITROOM_TEST_DATABASE_URL is set.
func testStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("WAITROOM_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("WAITROOM_TEST_DATABASE_URL not set")
	}
	db, err := database.Open(url)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db)
}

func TestProjectRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	u := &user.User{
		ID:           uuid.NewString(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	p := &project.Project{
		ID:             uuid.NewString(),
		UserID:         u.ID,
		Name:           "launch",
		APIKey:         "wl_pk_" + uuid.NewString(),
		SecretKey:      "wl_sk_" + uuid.NewString(),
		ReferralPolicy: project.PolicyOptimistic,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.CreateProject(ctx, p); err != nil {
		t.Fatalf("create project: %v", err)
	}

	got, err := s.GetProjectByAPIKey(ctx, p.APIKey)
	if err != nil {
		t.Fatalf("by api key: %v", err)
	}
	if got.ID != p.ID {
		t.Fatalf("project = %s, want %s", got.ID, p.ID)
	}

	for want := int64(0); want < 3; want++ {
		idx, err := s.NextJoinIndex(ctx, p.ID)
		if err != nil {
			t.Fatalf("next join index: %v", err)
		}
		if idx != want {
			t.Fatalf("index = %d, want %d", idx, want)
		}
	}
}

func TestEntryConstraints(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	u := &user.User{ID: uuid.NewString(), Email: uuid.NewString() + "@example.com", PasswordHash: "x", CreatedAt: now, UpdatedAt: now}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	p := &project.Project{
		ID: uuid.NewString(), UserID: u.ID, Name: "launch",
		APIKey: "wl_pk_" + uuid.NewString(), SecretKey: "x",
		ReferralPolicy: project.PolicyOptimistic, IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.CreateProject(ctx, p); err != nil {
		t.Fatalf("create project: %v", err)
	}

	e := &waitlist.Entry{
		ID: uuid.NewString(), ProjectID: p.ID,
		Username: "alice", DisplayUsername: "Alice",
		Email: "alice-" + uuid.NewString() + "@example.com",
		InviteCode: uuid.NewString(), Status: waitlist.StatusActive,
		PriorityScore: "10000.0000", TimeScore: "250.0000",
		JoinIndex: 0, TotalAtJoin: 1,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.CreateEntry(ctx, e); err != nil {
		t.Fatalf("create entry: %v", err)
	}

	dup := *e
	dup.ID = uuid.NewString()
	dup.Email = "other-" + uuid.NewString() + "@example.com"
	dup.InviteCode = uuid.NewString()
	if err := s.CreateEntry(ctx, &dup); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("duplicate username = %v, want ErrDuplicate", err)
	}

	if _, err := s.GetEntry(ctx, p.ID, "nobody"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing entry = %v, want ErrNotFound", err)
	}
}
