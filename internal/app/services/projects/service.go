// Package projects manages tenant projects and their API credentials.
package projects

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/waitroomxyz/api/internal/app/domain/project"
	"github.com/waitroomxyz/api/internal/app/storage"
	apperrors "github.com/waitroomxyz/api/internal/errors"
	"github.com/waitroomxyz/api/internal/logging"
)

// Key prefixes distinguish the public widget key from the secret key at a
// glance and in leaked-credential scanners.
const (
	publicKeyPrefix = "wl_pk_"
	secretKeyPrefix = "wl_sk_"
)

// Service owns project lifecycle and credential rotation.
type Service struct {
	store storage.ProjectStore
	log   *logging.Logger
}

// New returns a Service. A nil logger gets a default one.
func New(store storage.ProjectStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("projects-service")
	}
	return &Service{store: store, log: log}
}

// CreateParams carries the operator-supplied fields for a new project.
type CreateParams struct {
	Name           string
	Description    string
	Settings       string
	ReferralPolicy project.ReferralPolicy
}

// Create registers a new project owned by userID and issues its key pair.
func (s *Service) Create(ctx context.Context, userID string, p CreateParams) (*project.Project, error) {
	if p.Name == "" {
		return nil, apperrors.Validation("name is required")
	}
	if p.ReferralPolicy == "" {
		p.ReferralPolicy = project.PolicyOptimistic
	}
	if !p.ReferralPolicy.Valid() {
		return nil, apperrors.Validation("unknown referral policy %q", p.ReferralPolicy)
	}

	apiKey, err := generateKey(publicKeyPrefix)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	secretKey, err := generateKey(secretKeyPrefix)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := time.Now().UTC()
	proj := &project.Project{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           p.Name,
		Description:    p.Description,
		APIKey:         apiKey,
		SecretKey:      secretKey,
		Settings:       p.Settings,
		ReferralPolicy: p.ReferralPolicy,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateProject(ctx, proj); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperrors.Conflict("project already exists")
		}
		return nil, apperrors.Internal(fmt.Errorf("create project: %w", err))
	}
	s.log.WithFields(map[string]interface{}{
		"project_id": proj.ID,
		"user_id":    userID,
	}).Info("project created")
	return proj, nil
}

// Get returns the project if userID owns it.
func (s *Service) Get(ctx context.Context, userID, projectID string) (*project.Project, error) {
	proj, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NotFound("project %s not found", projectID)
		}
		return nil, apperrors.Internal(err)
	}
	if proj.UserID != userID {
		return nil, apperrors.Forbidden("project belongs to another account")
	}
	return proj, nil
}

// List returns all projects owned by userID.
func (s *Service) List(ctx context.Context, userID string) ([]project.Project, error) {
	projs, err := s.store.ListProjectsByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return projs, nil
}

// GetByAPIKey resolves a public widget key to its project. Inactive projects
// do not resolve.
func (s *Service) GetByAPIKey(ctx context.Context, apiKey string) (*project.Project, error) {
	proj, err := s.store.GetProjectByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.Unauthorized("unknown API key")
		}
		return nil, apperrors.Internal(err)
	}
	if !proj.IsActive {
		return nil, apperrors.Forbidden("project is inactive")
	}
	return proj, nil
}

// UpdateParams carries the mutable project fields. Nil pointers mean keep the
// stored value.
type UpdateParams struct {
	Name           *string
	Description    *string
	Settings       *string
	ReferralPolicy *project.ReferralPolicy
}

// Update applies the non-nil fields of p to the project.
func (s *Service) Update(ctx context.Context, userID, projectID string, p UpdateParams) (*project.Project, error) {
	proj, err := s.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		if *p.Name == "" {
			return nil, apperrors.Validation("name cannot be empty")
		}
		proj.Name = *p.Name
	}
	if p.Description != nil {
		proj.Description = *p.Description
	}
	if p.Settings != nil {
		proj.Settings = *p.Settings
	}
	if p.ReferralPolicy != nil {
		if !p.ReferralPolicy.Valid() {
			return nil, apperrors.Validation("unknown referral policy %q", *p.ReferralPolicy)
		}
		proj.ReferralPolicy = *p.ReferralPolicy
	}
	proj.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateProject(ctx, proj); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("update project: %w", err))
	}
	return proj, nil
}

// SetActive toggles whether the project accepts widget traffic.
func (s *Service) SetActive(ctx context.Context, userID, projectID string, active bool) (*project.Project, error) {
	proj, err := s.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	proj.IsActive = active
	proj.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateProject(ctx, proj); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("update project: %w", err))
	}
	s.log.WithFields(map[string]interface{}{
		"project_id": projectID,
		"active":     active,
	}).Info("project active flag changed")
	return proj, nil
}

// RotateKeys replaces both credentials. Old keys stop working immediately.
func (s *Service) RotateKeys(ctx context.Context, userID, projectID string) (*project.Project, error) {
	proj, err := s.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	apiKey, err := generateKey(publicKeyPrefix)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	secretKey, err := generateKey(secretKeyPrefix)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	proj.APIKey = apiKey
	proj.SecretKey = secretKey
	proj.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateProject(ctx, proj); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("rotate keys: %w", err))
	}
	s.log.LogSecurityEvent(ctx, "project_keys_rotated", map[string]interface{}{
		"project_id": projectID,
		"user_id":    userID,
	})
	return proj, nil
}

func generateKey(prefix string) (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return prefix + hex.EncodeToString(raw), nil
}
