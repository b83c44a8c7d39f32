package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Prathameshworks247/AGILITY/internal/domain"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Repo) conn(tx *sql.Tx) execer {
	if tx != nil {
		return tx
	}
	return r.DB
}

func (r Repo) EnsureUser(ctx context.Context, tx *sql.Tx, userID, displayName string) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT OR IGNORE INTO users(id, display_name, created_at) VALUES (?,?,?)`,
		userID, nullable(displayName), r.now())
	return err
}

func (r Repo) GetUser(ctx context.Context, userID string) (domain.User, error) {
	var u domain.User
	err := r.DB.QueryRowContext(ctx, `SELECT id,COALESCE(display_name,''),created_at FROM users WHERE id=?`, userID).
		Scan(&u.ID, &u.DisplayName, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) EnsureOrg(ctx context.Context, tx *sql.Tx, orgID, name string) error {
	if name == "" {
		name = orgID
	}
	_, err := r.conn(tx).ExecContext(ctx, `INSERT OR IGNORE INTO organizations(id, name, created_at) VALUES (?,?,?)`, orgID, name, r.now())
	return err
}

func (r Repo) GetOrg(ctx context.Context, orgID string) (domain.Organization, error) {
	var o domain.Organization
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,created_at FROM organizations WHERE id=?`, orgID).Scan(&o.ID, &o.Name, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return o, ErrNotFound
	}
	return o, err
}

// AddMember upserts a membership row. Re-adding a user updates the role.
func (r Repo) AddMember(ctx context.Context, tx *sql.Tx, orgID, userID, role string) error {
	if role == "" {
		role = "member"
	}
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO org_members(org_id, user_id, role) VALUES (?,?,?)
ON CONFLICT(org_id, user_id) DO UPDATE SET role=excluded.role`, orgID, userID, role)
	return err
}

func (r Repo) RemoveMember(ctx context.Context, orgID, userID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM org_members WHERE org_id=? AND user_id=?`, orgID, userID)
	return err
}

// IsOrgMember reports whether at least one membership row links the user to
// the organization.
func (r Repo) IsOrgMember(ctx context.Context, orgID, userID string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM org_members WHERE org_id=? AND user_id=? LIMIT 1`, orgID, userID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) ListMembers(ctx context.Context, orgID string) ([]domain.Membership, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT org_id,user_id,role FROM org_members WHERE org_id=? ORDER BY user_id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(&m.OrgID, &m.UserID, &m.Role); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
