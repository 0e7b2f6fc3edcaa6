// Package waitlist defines the waitlist entry aggregate and its status state
// machine.
package waitlist

import "time"

// Status is the lifecycle state of an entry.
type Status string

const (
	StatusActive    Status = "active"
	StatusInvited   Status = "invited"
	StatusConverted Status = "converted"
	StatusBlocked   Status = "blocked"
)

// validTransitions is the full set of allowed status edges. Converted and
// blocked are terminal.
var validTransitions = map[Status]map[Status]bool{
	StatusActive: {
		StatusInvited:   true,
		StatusConverted: true,
		StatusBlocked:   true,
	},
	StatusInvited: {
		StatusConverted: true,
		StatusBlocked:   true,
	},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInvited, StatusConverted, StatusBlocked:
		return true
	}
	return false
}

// Terminal reports whether s permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusConverted || s == StatusBlocked
}

// CanTransitionTo reports whether the edge s -> next is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	return validTransitions[s][next]
}

// Entry is one signup on a project's waitlist.
type Entry struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`

	// Username is stored lowercase; DisplayUsername preserves the casing the
	// user submitted.
	Username        string `json:"username"`
	DisplayUsername string `json:"display_username"`
	Email           string `json:"email"`

	Metadata string `json:"metadata,omitempty"`
	Tags     string `json:"tags,omitempty"`

	// ReferredBy is the username of the referrer within the same project, or
	// empty.
	ReferredBy string `json:"referred_by,omitempty"`
	// InviteCode is globally unique so shared links cannot collide across
	// projects.
	InviteCode string `json:"invite_code"`

	IsEmailVerified bool   `json:"is_email_verified"`
	Status          Status `json:"status"`

	// PriorityScore is a fixed-precision decimal string; see the scoring
	// package for the exact representation.
	PriorityScore string `json:"priority_score"`
	// Position is the 1-based rank within the project, 0 while unranked.
	Position int64 `json:"position"`
	// InitialPosition is the rank assigned right after joining.
	InitialPosition int64 `json:"initial_position"`

	// JoinIndex counts prior entries in the project at join time; it is
	// assigned once and never reused.
	JoinIndex int64 `json:"join_index"`
	// TotalAtJoin is the project size including this entry, snapshotted at
	// join.
	TotalAtJoin int64 `json:"total_at_join"`
	// TimeScore is the frozen campaign-phase bonus, re-derived only by an
	// explicit rescore.
	TimeScore string `json:"time_score"`

	VerifiedReferralsCount int64 `json:"verified_referrals_count"`
	VerifiedSharesCount    int64 `json:"verified_shares_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Rankable reports whether the entry participates in ranking. Terminal
// entries keep their last score but drop out of the ordering.
func (e Entry) Rankable() bool {
	return !e.Status.Terminal()
}
