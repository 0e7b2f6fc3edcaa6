package ranking

import (
	"testing"

	"github.com/waitroomxyz/api/internal/app/domain/waitlist"
)

func entry(id string, joinIndex int64, score string, status waitlist.Status) waitlist.Entry {
	return waitlist.Entry{
		ID:            id,
		Username:      id,
		JoinIndex:     joinIndex,
		PriorityScore: score,
		Status:        status,
	}
}

func TestOrderByScoreDescending(t *testing.T) {
	got, err := Order([]waitlist.Entry{
		entry("low", 0, "100.0000", waitlist.StatusActive),
		entry("high", 1, "900.0000", waitlist.StatusActive),
		entry("mid", 2, "500.0000", waitlist.StatusActive),
	})
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	want := []string{"high", "mid", "low"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("rank %d = %s, want %s", i+1, got[i].ID, id)
		}
	}
}

func TestOrderTieBreaksOnJoinIndex(t *testing.T) {
	got, err := Order([]waitlist.Entry{
		entry("second", 5, "500.0000", waitlist.StatusActive),
		entry("first", 2, "500.0000", waitlist.StatusActive),
	})
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if got[0].ID != "first" || got[1].ID != "second" {
		t.Fatalf("tie broke wrong: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestOrderExcludesTerminalEntries(t *testing.T) {
	got, err := Order([]waitlist.Entry{
		entry("active", 0, "100.0000", waitlist.StatusActive),
		entry("invited", 1, "200.0000", waitlist.StatusInvited),
		entry("converted", 2, "900.0000", waitlist.StatusConverted),
		entry("blocked", 3, "900.0000", waitlist.StatusBlocked),
	})
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ranked %d entries, want 2", len(got))
	}
	if got[0].ID != "invited" || got[1].ID != "active" {
		t.Fatalf("order = %s, %s", got[0].ID, got[1].ID)
	}
}

func TestOrderMalformedScoreFails(t *testing.T) {
	if _, err := Order([]waitlist.Entry{entry("bad", 0, "zzz", waitlist.StatusActive)}); err == nil {
		t.Fatal("expected error for malformed score")
	}
}

func TestOrderDoesNotMutateInput(t *testing.T) {
	in := []waitlist.Entry{
		entry("a", 0, "100.0000", waitlist.StatusActive),
		entry("b", 1, "200.0000", waitlist.StatusActive),
	}
	if _, err := Order(in); err != nil {
		t.Fatalf("Order: %v", err)
	}
	if in[0].ID != "a" || in[1].ID != "b" {
		t.Fatal("input slice was reordered")
	}
}
