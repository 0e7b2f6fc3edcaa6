// Package project defines the tenant boundary. Every waitlist entry, referral
// edge, and share claim is scoped to exactly one project.
package project

import "time"

// ReferralPolicy controls how referral edges become verified.
type ReferralPolicy string

const (
	// PolicyOptimistic verifies a referral as soon as the invite code is
	// redeemed.
	PolicyOptimistic ReferralPolicy = "optimistic"
	// PolicyManual requires an operator to confirm each referral.
	PolicyManual ReferralPolicy = "manual"
)

// Valid reports whether p is a known policy.
func (p ReferralPolicy) Valid() bool {
	return p == PolicyOptimistic || p == PolicyManual
}

// Project is a tenant owning one waitlist.
type Project struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// APIKey is the public widget key; SecretKey authorizes webhooks and
	// admin integrations.
	APIKey    string `json:"api_key"`
	SecretKey string `json:"-"`

	Settings       string         `json:"settings,omitempty"`
	ReferralPolicy ReferralPolicy `json:"referral_policy"`

	TotalEntries int64 `json:"total_entries"`
	IsActive     bool  `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
