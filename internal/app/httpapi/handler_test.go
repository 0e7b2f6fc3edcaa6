package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/waitroomxyz/api/internal/app/services/identity"
	"github.com/waitroomxyz/api/internal/app/services/projects"
	"github.com/waitroomxyz/api/internal/app/services/referrals"
	"github.com/waitroomxyz/api/internal/app/services/shares"
	"github.com/waitroomxyz/api/internal/app/services/waitlist"
	"github.com/waitroomxyz/api/internal/app/storage/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.New()
	ids := identity.New(store, nil, []byte("test-secret"), time.Hour, nil)
	projs := projects.New(store, nil)
	refs := referrals.New(store, store, nil)
	shrs := shares.New(store, nil)
	wl := waitlist.New(store, store, refs, shrs, nil, nil, nil, nil)

	h := New(ids, projs, wl, nil, nil)
	srv := httptest.NewServer(h.Router(RouterOptions{}))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token, apiKey string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func signup(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/auth/signup", "", "", map[string]string{
		"email":    "founder@example.com",
		"name":     "Founder",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func createProject(t *testing.T, srv *httptest.Server, token string) (id, apiKey string) {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/projects", token, "", map[string]string{
		"name": "launch",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	proj, ok := body["project"].(map[string]interface{})
	require.True(t, ok, "response should carry the project")
	return proj["id"].(string), proj["api_key"].(string)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/health", "", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t)
	token := signup(t, srv)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/auth/me", token, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "founder@example.com", body["email"])

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/auth/me", "", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", "", map[string]string{
		"email":    "founder@example.com",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, body["token"])

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", "", map[string]string{
		"email":    "founder@example.com",
		"password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWidgetJoinFlow(t *testing.T) {
	srv := newTestServer(t)
	token := signup(t, srv)
	projectID, apiKey := createProject(t, srv, token)

	resp, entry := doJSON(t, http.MethodPost, srv.URL+"/api/v1/waitlist/join", "", apiKey, map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "alice", entry["username"])
	require.Equal(t, float64(1), entry["position"])
	inviteCode, _ := entry["invite_code"].(string)
	require.NotEmpty(t, inviteCode)

	// A referred joiner credits the referrer under the default policy.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/waitlist/join", "", apiKey, map[string]string{
		"username":    "bob",
		"email":       "bob@example.com",
		"invite_code": inviteCode,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, alice := doJSON(t, http.MethodGet, srv.URL+"/api/v1/waitlist/alice", "", apiKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), alice["verified_referrals_count"])
	require.Equal(t, float64(1), alice["position"])

	// Duplicate username conflicts.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/waitlist/join", "", apiKey, map[string]string{
		"username": "alice",
		"email":    "alice2@example.com",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Widget routes require the API key.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/waitlist/join", "", "", map[string]string{
		"username": "carol",
		"email":    "carol@example.com",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Dashboard sees the ranked list.
	resp, ranked := doJSON(t, http.MethodGet, srv.URL+"/api/projects/"+projectID+"/waitlist", token, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries, ok := ranked["entries"].([]interface{})
	require.True(t, ok)
	require.Len(t, entries, 2)
}

func TestShareEndpoints(t *testing.T) {
	srv := newTestServer(t)
	token := signup(t, srv)
	_, apiKey := createProject(t, srv, token)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/waitlist/join", "", apiKey, map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, claim := doJSON(t, http.MethodPost, srv.URL+"/api/v1/waitlist/alice/share", "", apiKey, map[string]string{
		"platform":  "twitter",
		"share_url": "https://twitter.com/alice/status/1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	shareToken, _ := claim["verification_token"].(string)
	require.NotEmpty(t, shareToken)

	resp, verified := doJSON(t, http.MethodPost, srv.URL+"/api/v1/waitlist/alice/share/verify", "", apiKey, map[string]string{
		"platform": "twitter",
		"token":    shareToken,
		"post_id":  "post-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, verified["is_verified"])

	resp, alice := doJSON(t, http.MethodGet, srv.URL+"/api/v1/waitlist/alice", "", apiKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), alice["verified_shares_count"])
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token := signup(t, srv)
	projectID, apiKey := createProject(t, srv, token)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/waitlist/join", "", apiKey, map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, entry := doJSON(t, http.MethodPatch, srv.URL+"/api/projects/"+projectID+"/waitlist/alice/status", token, "", map[string]string{
		"status": "invited",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "invited", entry["status"])

	resp, _ = doJSON(t, http.MethodPatch, srv.URL+"/api/projects/"+projectID+"/waitlist/alice/status", token, "", map[string]string{
		"status": "active",
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestProjectOwnership(t *testing.T) {
	srv := newTestServer(t)
	token := signup(t, srv)
	projectID, _ := createProject(t, srv, token)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/auth/signup", "", "", map[string]string{
		"email":    "rival@example.com",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rivalToken := body["token"].(string)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/projects/"+projectID, rivalToken, "", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRejectsUnknownFields(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/auth/signup", "", "", map[string]string{
		"email":    "a@example.com",
		"password": "hunter2hunter2",
		"surprise": "field",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
