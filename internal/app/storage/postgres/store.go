// Package postgres is the PostgreSQL storage backend.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/waitroomxyz/api/internal/app/domain/project"
	"github.com/waitroomxyz/api/internal/app/domain/referral"
	"github.com/waitroomxyz/api/internal/app/domain/share"
	"github.com/waitroomxyz/api/internal/app/domain/user"
	"github.com/waitroomxyz/api/internal/app/domain/waitlist"
	"github.com/waitroomxyz/api/internal/app/storage"
)

// Store runs hand-written SQL against an open *sql.DB. Schema management
// lives in the database package; Store assumes migrations have run.
type Store struct {
	db *sql.DB
}

// New wraps db.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var (
	_ storage.UserStore     = (*Store)(nil)
	_ storage.ProjectStore  = (*Store)(nil)
	_ storage.EntryStore    = (*Store)(nil)
	_ storage.ReferralStore = (*Store)(nil)
	_ storage.ShareStore    = (*Store)(nil)
)

const uniqueViolation = "23505"

// mapErr converts driver errors to the storage sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return storage.ErrDuplicate
	}
	return err
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, created_at, updated_at)
		VALUES ($1, lower($2), $3, $4, $5, $6)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	return mapErr(err)
}

func (s *Store) GetUser(ctx context.Context, id string) (*user.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, created_at, updated_at
		FROM users WHERE id = $1`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, created_at, updated_at
		FROM users WHERE email = lower($1)`, email))
}

func (s *Store) scanUser(row *sql.Row) (*user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// --- projects ---

const projectColumns = `id, user_id, name, description, api_key, secret_key,
	settings, referral_policy, total_entries, is_active, created_at, updated_at`

func (s *Store) CreateProject(ctx context.Context, p *project.Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.UserID, p.Name, p.Description, p.APIKey, p.SecretKey,
		p.Settings, p.ReferralPolicy, p.TotalEntries, p.IsActive, p.CreatedAt, p.UpdatedAt)
	return mapErr(err)
}

func (s *Store) GetProject(ctx context.Context, id string) (*project.Project, error) {
	return scanProject(s.db.QueryRowContext(ctx, `
		SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
}

func (s *Store) GetProjectByAPIKey(ctx context.Context, apiKey string) (*project.Project, error) {
	return scanProject(s.db.QueryRowContext(ctx, `
		SELECT `+projectColumns+` FROM projects WHERE api_key = $1`, apiKey))
}

func (s *Store) ListProjectsByUser(ctx context.Context, userID string) ([]project.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+projectColumns+` FROM projects
		WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	return collectProjects(rows)
}

func (s *Store) ListActiveProjects(ctx context.Context) ([]project.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+projectColumns+` FROM projects
		WHERE is_active ORDER BY created_at`)
	if err != nil {
		return nil, mapErr(err)
	}
	return collectProjects(rows)
}

func (s *Store) UpdateProject(ctx context.Context, p *project.Project) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET name = $2, description = $3, api_key = $4,
			secret_key = $5, settings = $6, referral_policy = $7,
			total_entries = $8, is_active = $9, updated_at = $10
		WHERE id = $1`,
		p.ID, p.Name, p.Description, p.APIKey, p.SecretKey, p.Settings,
		p.ReferralPolicy, p.TotalEntries, p.IsActive, p.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return checkAffected(res)
}

func (s *Store) NextJoinIndex(ctx context.Context, projectID string) (int64, error) {
	var next int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE projects SET join_seq = join_seq + 1
		WHERE id = $1
		RETURNING join_seq - 1`, projectID).Scan(&next)
	if err != nil {
		return 0, mapErr(err)
	}
	return next, nil
}

func scanProject(row *sql.Row) (*project.Project, error) {
	var p project.Project
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.APIKey,
		&p.SecretKey, &p.Settings, &p.ReferralPolicy, &p.TotalEntries,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func collectProjects(rows *sql.Rows) ([]project.Project, error) {
	defer rows.Close()
	var out []project.Project
	for rows.Next() {
		var p project.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Description,
			&p.APIKey, &p.SecretKey, &p.Settings, &p.ReferralPolicy,
			&p.TotalEntries, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- waitlist entries ---

const entryColumns = `id, project_id, username, display_username, email,
	metadata, tags, referred_by, invite_code, is_email_verified, status,
	priority_score, position, initial_position, join_index, total_at_join,
	time_score, verified_referrals_count, verified_shares_count,
	created_at, updated_at`

func (s *Store) CreateEntry(ctx context.Context, e *waitlist.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO waitlist_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21)`,
		e.ID, e.ProjectID, e.Username, e.DisplayUsername, e.Email,
		e.Metadata, e.Tags, e.ReferredBy, e.InviteCode, e.IsEmailVerified,
		e.Status, e.PriorityScore, e.Position, e.InitialPosition,
		e.JoinIndex, e.TotalAtJoin, e.TimeScore,
		e.VerifiedReferralsCount, e.VerifiedSharesCount,
		e.CreatedAt, e.UpdatedAt)
	return mapErr(err)
}

func (s *Store) GetEntry(ctx context.Context, projectID, username string) (*waitlist.Entry, error) {
	return scanEntry(s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM waitlist_entries
		WHERE project_id = $1 AND username = $2`, projectID, username))
}

func (s *Store) GetEntryByID(ctx context.Context, id string) (*waitlist.Entry, error) {
	return scanEntry(s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM waitlist_entries WHERE id = $1`, id))
}

func (s *Store) GetEntryByInviteCode(ctx context.Context, code string) (*waitlist.Entry, error) {
	return scanEntry(s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM waitlist_entries WHERE invite_code = $1`, code))
}

func (s *Store) UpdateEntry(ctx context.Context, e *waitlist.Entry) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE waitlist_entries SET
			display_username = $2, email = $3, metadata = $4, tags = $5,
			referred_by = $6, is_email_verified = $7, status = $8,
			priority_score = $9, position = $10, initial_position = $11,
			time_score = $12, verified_referrals_count = $13,
			verified_shares_count = $14, updated_at = $15
		WHERE id = $1`,
		e.ID, e.DisplayUsername, e.Email, e.Metadata, e.Tags, e.ReferredBy,
		e.IsEmailVerified, e.Status, e.PriorityScore, e.Position,
		e.InitialPosition, e.TimeScore, e.VerifiedReferralsCount,
		e.VerifiedSharesCount, e.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return checkAffected(res)
}

func (s *Store) ListEntries(ctx context.Context, projectID string) ([]waitlist.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM waitlist_entries
		WHERE project_id = $1 ORDER BY join_index`, projectID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []waitlist.Entry
	for rows.Next() {
		var e waitlist.Entry
		if err := rows.Scan(entryFields(&e)...); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) UpdatePositions(ctx context.Context, projectID string, positions []storage.Position) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
		UPDATE waitlist_entries SET position = $3
		WHERE id = $1 AND project_id = $2`)
	if err != nil {
		return mapErr(err)
	}
	defer stmt.Close()
	for _, p := range positions {
		res, err := stmt.ExecContext(ctx, p.EntryID, projectID, p.Position)
		if err != nil {
			return mapErr(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return mapErr(err)
		}
		if n == 0 {
			return fmt.Errorf("entry %s: %w", p.EntryID, storage.ErrNotFound)
		}
	}
	return tx.Commit()
}

func scanEntry(row *sql.Row) (*waitlist.Entry, error) {
	var e waitlist.Entry
	if err := row.Scan(entryFields(&e)...); err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

func entryFields(e *waitlist.Entry) []any {
	return []any{
		&e.ID, &e.ProjectID, &e.Username, &e.DisplayUsername, &e.Email,
		&e.Metadata, &e.Tags, &e.ReferredBy, &e.InviteCode,
		&e.IsEmailVerified, &e.Status, &e.PriorityScore, &e.Position,
		&e.InitialPosition, &e.JoinIndex, &e.TotalAtJoin, &e.TimeScore,
		&e.VerifiedReferralsCount, &e.VerifiedSharesCount,
		&e.CreatedAt, &e.UpdatedAt,
	}
}

// --- referral edges ---

const edgeColumns = `id, project_id, referrer_username, referee_username,
	is_verified, verification_method, created_at, updated_at`

func (s *Store) CreateEdge(ctx context.Context, e *referral.Edge) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO waitlist_referrals (`+edgeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.ProjectID, e.ReferrerUsername, e.RefereeUsername,
		e.IsVerified, e.Method, e.CreatedAt, e.UpdatedAt)
	return mapErr(err)
}

func (s *Store) GetEdge(ctx context.Context, id string) (*referral.Edge, error) {
	return scanEdge(s.db.QueryRowContext(ctx, `
		SELECT `+edgeColumns+` FROM waitlist_referrals WHERE id = $1`, id))
}

func (s *Store) GetEdgeByReferee(ctx context.Context, projectID, refereeUsername string) (*referral.Edge, error) {
	return scanEdge(s.db.QueryRowContext(ctx, `
		SELECT `+edgeColumns+` FROM waitlist_referrals
		WHERE project_id = $1 AND referee_username = $2`, projectID, refereeUsername))
}

func (s *Store) UpdateEdge(ctx context.Context, e *referral.Edge) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE waitlist_referrals SET is_verified = $2,
			verification_method = $3, updated_at = $4
		WHERE id = $1`,
		e.ID, e.IsVerified, e.Method, e.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return checkAffected(res)
}

func (s *Store) ListEdgesByReferrer(ctx context.Context, projectID, referrerUsername string) ([]referral.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+edgeColumns+` FROM waitlist_referrals
		WHERE project_id = $1 AND referrer_username = $2
		ORDER BY created_at`, projectID, referrerUsername)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []referral.Edge
	for rows.Next() {
		var e referral.Edge
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.ReferrerUsername,
			&e.RefereeUsername, &e.IsVerified, &e.Method,
			&e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CountVerifiedReferrals(ctx context.Context, projectID, referrerUsername string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM waitlist_referrals
		WHERE project_id = $1 AND referrer_username = $2 AND is_verified`,
		projectID, referrerUsername).Scan(&n)
	if err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

func scanEdge(row *sql.Row) (*referral.Edge, error) {
	var e referral.Edge
	err := row.Scan(&e.ID, &e.ProjectID, &e.ReferrerUsername,
		&e.RefereeUsername, &e.IsVerified, &e.Method, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

// --- share claims ---

const claimColumns = `id, project_id, username, platform, share_url,
	platform_post_id, verification_token, is_verified, verification_method,
	created_at, updated_at`

func (s *Store) CreateClaim(ctx context.Context, c *share.Claim) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO waitlist_social_shares (`+claimColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.ProjectID, c.Username, c.Platform, c.ShareURL,
		c.PlatformPostID, c.VerificationToken, c.IsVerified, c.Method,
		c.CreatedAt, c.UpdatedAt)
	return mapErr(err)
}

func (s *Store) GetClaim(ctx context.Context, id string) (*share.Claim, error) {
	return scanClaim(s.db.QueryRowContext(ctx, `
		SELECT `+claimColumns+` FROM waitlist_social_shares WHERE id = $1`, id))
}

func (s *Store) GetPendingClaim(ctx context.Context, projectID, username string, platform share.Platform) (*share.Claim, error) {
	return scanClaim(s.db.QueryRowContext(ctx, `
		SELECT `+claimColumns+` FROM waitlist_social_shares
		WHERE project_id = $1 AND username = $2 AND platform = $3
			AND NOT is_verified
		ORDER BY created_at LIMIT 1`, projectID, username, platform))
}

func (s *Store) UpdateClaim(ctx context.Context, c *share.Claim) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE waitlist_social_shares SET share_url = $2,
			platform_post_id = $3, is_verified = $4,
			verification_method = $5, updated_at = $6
		WHERE id = $1`,
		c.ID, c.ShareURL, c.PlatformPostID, c.IsVerified, c.Method, c.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return checkAffected(res)
}

func (s *Store) ListClaimsByUsername(ctx context.Context, projectID, username string) ([]share.Claim, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+claimColumns+` FROM waitlist_social_shares
		WHERE project_id = $1 AND username = $2 ORDER BY created_at`,
		projectID, username)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []share.Claim
	for rows.Next() {
		var c share.Claim
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Username, &c.Platform,
			&c.ShareURL, &c.PlatformPostID, &c.VerificationToken,
			&c.IsVerified, &c.Method, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CountVerifiedShares(ctx context.Context, projectID, username string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM waitlist_social_shares
		WHERE project_id = $1 AND username = $2 AND is_verified`,
		projectID, username).Scan(&n)
	if err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

func scanClaim(row *sql.Row) (*share.Claim, error) {
	var c share.Claim
	err := row.Scan(&c.ID, &c.ProjectID, &c.Username, &c.Platform,
		&c.ShareURL, &c.PlatformPostID, &c.VerificationToken,
		&c.IsVerified, &c.Method, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
