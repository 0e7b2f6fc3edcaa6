// Package httpapi exposes the dashboard and widget HTTP surfaces.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/waitroomxyz/api/internal/app/domain/project"
	"github.com/waitroomxyz/api/internal/app/domain/share"
	domain "github.com/waitroomxyz/api/internal/app/domain/waitlist"
	"github.com/waitroomxyz/api/internal/app/services/identity"
	"github.com/waitroomxyz/api/internal/app/services/projects"
	"github.com/waitroomxyz/api/internal/app/services/waitlist"
	apperrors "github.com/waitroomxyz/api/internal/errors"
	"github.com/waitroomxyz/api/internal/logging"
	"github.com/waitroomxyz/api/internal/metrics"
	"github.com/waitroomxyz/api/internal/middleware"
)

// Handler wires the services to their routes.
type Handler struct {
	identity *identity.Service
	projects *projects.Service
	waitlist *waitlist.Service
	metrics  *metrics.Metrics
	log      *logging.Logger
}

// New returns a Handler. Metrics and logger may be nil.
func New(ids *identity.Service, projs *projects.Service, wl *waitlist.Service, m *metrics.Metrics, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.NewDefault("httpapi")
	}
	return &Handler{identity: ids, projects: projs, waitlist: wl, metrics: m, log: log}
}

// RouterOptions carries the cross-cutting knobs applied around the routes.
type RouterOptions struct {
	AllowedOrigins []string
	RateLimiter    *middleware.RateLimiter
}

// Router builds the full route tree: public auth endpoints, the JWT guarded
// dashboard API, and the API key guarded widget API.
func (h *Handler) Router(opts RouterOptions) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Tracing(h.log))
	r.Use(middleware.Metrics(h.metrics, "waitroom-api"))
	r.Use(middleware.CORS(opts.AllowedOrigins))
	if opts.RateLimiter != nil {
		r.Use(opts.RateLimiter.Middleware)
	}

	r.HandleFunc("/api/health", h.handleHealth).Methods(http.MethodGet)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/api/auth/signup", h.handleSignup).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", h.handleLogin).Methods(http.MethodPost)

	dash := r.PathPrefix("/api").Subrouter()
	dash.Use(middleware.RequireJWT(h.identity))
	dash.HandleFunc("/auth/me", h.handleMe).Methods(http.MethodGet)
	dash.HandleFunc("/projects", h.handleCreateProject).Methods(http.MethodPost)
	dash.HandleFunc("/projects", h.handleListProjects).Methods(http.MethodGet)
	dash.HandleFunc("/projects/{id}", h.handleGetProject).Methods(http.MethodGet)
	dash.HandleFunc("/projects/{id}", h.handleUpdateProject).Methods(http.MethodPatch)
	dash.HandleFunc("/projects/{id}/keys/rotate", h.handleRotateKeys).Methods(http.MethodPost)
	dash.HandleFunc("/projects/{id}/rescore", h.handleRescore).Methods(http.MethodPost)
	dash.HandleFunc("/projects/{id}/waitlist", h.handleListWaitlist).Methods(http.MethodGet)
	dash.HandleFunc("/projects/{id}/waitlist/{username}", h.handleGetWaitlistEntry).Methods(http.MethodGet)
	dash.HandleFunc("/projects/{id}/waitlist/{username}/status", h.handleChangeStatus).Methods(http.MethodPatch)
	dash.HandleFunc("/projects/{id}/waitlist/{username}/referral/verify", h.handleVerifyReferral).Methods(http.MethodPost)
	dash.HandleFunc("/projects/{id}/waitlist/{username}/shares/{platform}/verify", h.handleVerifyShareManual).Methods(http.MethodPost)

	widget := r.PathPrefix("/api/v1/waitlist").Subrouter()
	widget.Use(middleware.RequireAPIKey(h.projects))
	widget.HandleFunc("/join", h.handleJoin).Methods(http.MethodPost)
	widget.HandleFunc("/{username}", h.handleWidgetStatus).Methods(http.MethodGet)
	widget.HandleFunc("/{username}/share", h.handleClaimShare).Methods(http.MethodPost)
	widget.HandleFunc("/{username}/share/verify", h.handleVerifyShare).Methods(http.MethodPost)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- auth ---

type signupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  interface{} `json:"user"`
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	u, token, err := h.identity.Signup(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: u})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	u, token, err := h.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: u})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apperrors.Unauthorized("not authenticated"))
		return
	}
	u, err := h.identity.Me(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// --- projects ---

type createProjectRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Settings       string `json:"settings"`
	ReferralPolicy string `json:"referral_policy"`
}

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apperrors.Unauthorized("not authenticated"))
		return
	}
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	proj, err := h.projects.Create(r.Context(), claims.UserID, projects.CreateParams{
		Name:           req.Name,
		Description:    req.Description,
		Settings:       req.Settings,
		ReferralPolicy: project.ReferralPolicy(req.ReferralPolicy),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	// The secret key is shown exactly once, at creation.
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"project":    proj,
		"secret_key": proj.SecretKey,
	})
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apperrors.Unauthorized("not authenticated"))
		return
	}
	projs, err := h.projects.List(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"projects": projs})
}

func (h *Handler) ownedProject(r *http.Request) (*project.Project, error) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return nil, apperrors.Unauthorized("not authenticated")
	}
	return h.projects.Get(r.Context(), claims.UserID, mux.Vars(r)["id"])
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	proj, err := h.ownedProject(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

type updateProjectRequest struct {
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	Settings       *string `json:"settings"`
	ReferralPolicy *string `json:"referral_policy"`
	IsActive       *bool   `json:"is_active"`
}

func (h *Handler) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apperrors.Unauthorized("not authenticated"))
		return
	}
	var req updateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	projectID := mux.Vars(r)["id"]
	var policy *project.ReferralPolicy
	if req.ReferralPolicy != nil {
		p := project.ReferralPolicy(*req.ReferralPolicy)
		policy = &p
	}
	proj, err := h.projects.Update(r.Context(), claims.UserID, projectID, projects.UpdateParams{
		Name:           req.Name,
		Description:    req.Description,
		Settings:       req.Settings,
		ReferralPolicy: policy,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if req.IsActive != nil {
		proj, err = h.projects.SetActive(r.Context(), claims.UserID, projectID, *req.IsActive)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, proj)
}

func (h *Handler) handleRotateKeys(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apperrors.Unauthorized("not authenticated"))
		return
	}
	proj, err := h.projects.RotateKeys(r.Context(), claims.UserID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"project":    proj,
		"secret_key": proj.SecretKey,
	})
}

func (h *Handler) handleRescore(w http.ResponseWriter, r *http.Request) {
	proj, err := h.ownedProject(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.waitlist.Rescore(r.Context(), proj); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rescored"})
}

// --- dashboard waitlist ---

func (h *Handler) handleListWaitlist(w http.ResponseWriter, r *http.Request) {
	proj, err := h.ownedProject(r)
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := h.waitlist.ListRanked(r.Context(), proj.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (h *Handler) handleGetWaitlistEntry(w http.ResponseWriter, r *http.Request) {
	proj, err := h.ownedProject(r)
	if err != nil {
		writeError(w, err)
		return
	}
	entry, err := h.waitlist.GetEntry(r.Context(), proj.ID, mux.Vars(r)["username"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	proj, err := h.ownedProject(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req changeStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	entry, err := h.waitlist.ChangeStatus(r.Context(), proj.ID, mux.Vars(r)["username"], domain.Status(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleVerifyReferral(w http.ResponseWriter, r *http.Request) {
	proj, err := h.ownedProject(r)
	if err != nil {
		writeError(w, err)
		return
	}
	edge, err := h.waitlist.VerifyReferral(r.Context(), proj.ID, mux.Vars(r)["username"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, edge)
}

func (h *Handler) handleVerifyShareManual(w http.ResponseWriter, r *http.Request) {
	proj, err := h.ownedProject(r)
	if err != nil {
		writeError(w, err)
		return
	}
	vars := mux.Vars(r)
	claim, err := h.waitlist.VerifyShareManual(r.Context(), proj.ID, vars["username"], share.Platform(vars["platform"]))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// --- widget ---

type joinRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Metadata   string `json:"metadata"`
	Tags       string `json:"tags"`
	InviteCode string `json:"invite_code"`
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	proj, ok := middleware.ProjectFromContext(r.Context())
	if !ok {
		writeError(w, apperrors.Unauthorized("missing API key"))
		return
	}
	var req joinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	entry, err := h.waitlist.Join(r.Context(), proj, waitlist.JoinParams{
		Username:   req.Username,
		Email:      req.Email,
		Metadata:   req.Metadata,
		Tags:       req.Tags,
		InviteCode: req.InviteCode,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleWidgetStatus(w http.ResponseWriter, r *http.Request) {
	proj, ok := middleware.ProjectFromContext(r.Context())
	if !ok {
		writeError(w, apperrors.Unauthorized("missing API key"))
		return
	}
	entry, err := h.waitlist.GetEntry(r.Context(), proj.ID, mux.Vars(r)["username"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type claimShareRequest struct {
	Platform string `json:"platform"`
	ShareURL string `json:"share_url"`
}

func (h *Handler) handleClaimShare(w http.ResponseWriter, r *http.Request) {
	proj, ok := middleware.ProjectFromContext(r.Context())
	if !ok {
		writeError(w, apperrors.Unauthorized("missing API key"))
		return
	}
	var req claimShareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	claim, err := h.waitlist.ClaimShare(r.Context(), proj.ID, mux.Vars(r)["username"], share.Platform(req.Platform), req.ShareURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, claim)
}

type verifyShareRequest struct {
	Platform string `json:"platform"`
	Token    string `json:"token"`
	PostID   string `json:"post_id"`
}

func (h *Handler) handleVerifyShare(w http.ResponseWriter, r *http.Request) {
	proj, ok := middleware.ProjectFromContext(r.Context())
	if !ok {
		writeError(w, apperrors.Unauthorized("missing API key"))
		return
	}
	var req verifyShareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	claim, err := h.waitlist.VerifyShare(r.Context(), proj.ID, mux.Vars(r)["username"], share.Platform(req.Platform), req.Token, req.PostID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}
