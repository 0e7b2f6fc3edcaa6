// Package referral defines the referrer-to-referee edge recorded when an
// invite code is redeemed.
package referral

import "time"

// Method records how an edge was verified.
type Method string

const (
	// MethodInviteCode marks optimistic verification at redemption time.
	MethodInviteCode Method = "invite_code"
	// MethodManual marks operator-confirmed verification.
	MethodManual Method = "manual"
)

// Edge relates one referrer to one referee within a project. A referee can
// have at most one edge per project; the first referrer wins.
type Edge struct {
	ID               string    `json:"id"`
	ProjectID        string    `json:"project_id"`
	ReferrerUsername string    `json:"referrer_username"`
	RefereeUsername  string    `json:"referee_username"`
	IsVerified       bool      `json:"is_verified"`
	Method           Method    `json:"verification_method"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
