// Package emailcheck validates email deliverability through an Emailable
// compatible verification API, falling back to a syntax check when no API key
// is configured.
package emailcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/waitroomxyz/api/internal/logging"
)

// Checker reports whether an email address is acceptable.
type Checker interface {
	Check(ctx context.Context, email string) (bool, error)
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// SyntaxChecker accepts any syntactically plausible address. Used when no
// verification API key is configured.
type SyntaxChecker struct{}

func (SyntaxChecker) Check(_ context.Context, email string) (bool, error) {
	return emailPattern.MatchString(email), nil
}

// Client calls a hosted verification API. Addresses rated deliverable or
// risky pass; undeliverable and unknown fail.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	log     *logging.Logger
}

// New returns a Client, or a SyntaxChecker when apiKey is empty.
func New(apiKey, baseURL string, log *logging.Logger) Checker {
	if apiKey == "" {
		return SyntaxChecker{}
	}
	if baseURL == "" {
		baseURL = "https://api.emailable.com/v1"
	}
	if log == nil {
		log = logging.NewDefault("emailcheck")
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

type verifyResponse struct {
	State string `json:"state"`
}

func (c *Client) Check(ctx context.Context, email string) (bool, error) {
	if !emailPattern.MatchString(email) {
		return false, nil
	}
	q := url.Values{}
	q.Set("email", email)
	q.Set("api_key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/verify?"+q.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("build verify request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		// Fail open on transport errors so an outage does not block joins.
		c.log.WithError(err).Warn("email verification unreachable, accepting address")
		return true, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.WithField("status", resp.StatusCode).Warn("email verification error, accepting address")
		return true, nil
	}
	var vr verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return false, fmt.Errorf("decode verify response: %w", err)
	}
	switch vr.State {
	case "deliverable", "risky":
		return true, nil
	default:
		return false, nil
	}
}
