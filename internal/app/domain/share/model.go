// Package share defines social share claims and their verification state.
package share

import "time"

// Platform is the social network a share was posted to.
type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformFacebook  Platform = "facebook"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformReddit    Platform = "reddit"
	PlatformOther     Platform = "other"
)

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformTwitter, PlatformFacebook, PlatformLinkedIn, PlatformInstagram,
		PlatformTikTok, PlatformReddit, PlatformOther:
		return true
	}
	return false
}

// Verification methods.
const (
	MethodToken  = "token_verification"
	MethodManual = "manual"
)

// Claim is one share attestation. The claimant must embed VerificationToken
// in the post; verification flips IsVerified exactly once.
type Claim struct {
	ID                string    `json:"id"`
	ProjectID         string    `json:"project_id"`
	Username          string    `json:"username"`
	Platform          Platform  `json:"platform"`
	ShareURL          string    `json:"share_url,omitempty"`
	PlatformPostID    string    `json:"platform_post_id,omitempty"`
	VerificationToken string    `json:"verification_token"`
	IsVerified        bool      `json:"is_verified"`
	Method            string    `json:"verification_method"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
