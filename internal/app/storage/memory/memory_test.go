package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/waitroomxyz/api/internal/app/domain/project"
	"github.com/waitroomxyz/api/internal/app/domain/waitlist"
	"github.com/waitroomxyz/api/internal/app/storage"
)

func testProject(t *testing.T, s *Store) *project.Project {
	t.Helper()
	now := time.Now().UTC()
	p := &project.Project{
		ID:        uuid.NewString(),
		UserID:    uuid.NewString(),
		Name:      "launch",
		APIKey:    "wl_pk_" + uuid.NewString(),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func TestNextJoinIndexIsSequential(t *testing.T) {
	s := New()
	p := testProject(t, s)
	ctx := context.Background()

	for want := int64(0); want < 5; want++ {
		got, err := s.NextJoinIndex(ctx, p.ID)
		if err != nil {
			t.Fatalf("next join index: %v", err)
		}
		if got != want {
			t.Fatalf("index = %d, want %d", got, want)
		}
	}
}

func TestNextJoinIndexConcurrent(t *testing.T) {
	s := New()
	p := testProject(t, s)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	indexes := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			idx, err := s.NextJoinIndex(ctx, p.ID)
			if err != nil {
				t.Errorf("next join index: %v", err)
				return
			}
			indexes <- idx
		}()
	}
	wg.Wait()
	close(indexes)

	seen := make(map[int64]bool, n)
	for idx := range indexes {
		if seen[idx] {
			t.Fatalf("index %d handed out twice", idx)
		}
		seen[idx] = true
	}
	if len(seen) != n {
		t.Fatalf("got %d unique indexes, want %d", len(seen), n)
	}
}

func TestNextJoinIndexUnknownProject(t *testing.T) {
	s := New()
	if _, err := s.NextJoinIndex(context.Background(), uuid.NewString()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("unknown project = %v, want ErrNotFound", err)
	}
}

func TestCreateEntryUniqueness(t *testing.T) {
	s := New()
	p := testProject(t, s)
	ctx := context.Background()
	now := time.Now().UTC()

	base := waitlist.Entry{
		ID:         uuid.NewString(),
		ProjectID:  p.ID,
		Username:   "alice",
		Email:      "alice@example.com",
		InviteCode: "code-1",
		Status:     waitlist.StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.CreateEntry(ctx, &base); err != nil {
		t.Fatalf("create: %v", err)
	}

	dupName := base
	dupName.ID = uuid.NewString()
	dupName.Email = "other@example.com"
	dupName.InviteCode = "code-2"
	if err := s.CreateEntry(ctx, &dupName); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("duplicate username = %v, want ErrDuplicate", err)
	}

	dupCode := base
	dupCode.ID = uuid.NewString()
	dupCode.Username = "bob"
	dupCode.Email = "bob@example.com"
	if err := s.CreateEntry(ctx, &dupCode); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("duplicate invite code = %v, want ErrDuplicate", err)
	}

	dupEmail := base
	dupEmail.ID = uuid.NewString()
	dupEmail.Username = "carol"
	dupEmail.InviteCode = "code-3"
	if err := s.CreateEntry(ctx, &dupEmail); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("duplicate email = %v, want ErrDuplicate", err)
	}
}

func TestCloneOnReturn(t *testing.T) {
	s := New()
	p := testProject(t, s)
	ctx := context.Background()
	now := time.Now().UTC()

	entry := &waitlist.Entry{
		ID:         uuid.NewString(),
		ProjectID:  p.ID,
		Username:   "alice",
		Email:      "alice@example.com",
		InviteCode: "code-1",
		Status:     waitlist.StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.CreateEntry(ctx, entry); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetEntryByID(ctx, entry.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Username = "mutated"

	again, err := s.GetEntryByID(ctx, entry.ID)
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if again.Username != "alice" {
		t.Fatal("stored entry was mutated through a returned pointer")
	}
}

func TestUpdatePositionsAtomic(t *testing.T) {
	s := New()
	p := testProject(t, s)
	ctx := context.Background()
	now := time.Now().UTC()

	var ids []string
	for i, name := range []string{"alice", "bob"} {
		e := &waitlist.Entry{
			ID:         uuid.NewString(),
			ProjectID:  p.ID,
			Username:   name,
			Email:      name + "@example.com",
			InviteCode: uuid.NewString(),
			Status:     waitlist.StatusActive,
			JoinIndex:  int64(i),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.CreateEntry(ctx, e); err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, e.ID)
	}

	// A batch containing an unknown entry must not apply at all.
	err := s.UpdatePositions(ctx, p.ID, []storage.Position{
		{EntryID: ids[0], Position: 7},
		{EntryID: uuid.NewString(), Position: 8},
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("bad batch = %v, want ErrNotFound", err)
	}
	e, err := s.GetEntryByID(ctx, ids[0])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e.Position != 0 {
		t.Fatalf("position = %d after failed batch, want 0", e.Position)
	}

	if err := s.UpdatePositions(ctx, p.ID, []storage.Position{
		{EntryID: ids[0], Position: 2},
		{EntryID: ids[1], Position: 1},
	}); err != nil {
		t.Fatalf("good batch: %v", err)
	}
	e, _ = s.GetEntryByID(ctx, ids[0])
	if e.Position != 2 {
		t.Fatalf("position = %d, want 2", e.Position)
	}
}
