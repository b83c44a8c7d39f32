package app

import (
	"context"
	"fmt"

	"github.com/Prathameshworks247/AGILITY/internal/repo"
)

const (
	DefaultOrgID   = "default-org"
	DefaultOrgName = "Default Org"
)

// Bootstrap ensures an organization exists and that ownerID is a member of
// it. It is safe to call on every start.
func Bootstrap(ctx context.Context, r repo.Repo, orgID, orgName, ownerID string) error {
	if orgID == "" {
		orgID = DefaultOrgID
		if orgName == "" {
			orgName = DefaultOrgName
		}
	}
	if ownerID == "" {
		ownerID = "local-user"
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := r.EnsureOrg(ctx, tx, orgID, orgName); err != nil {
		return fmt.Errorf("ensure org: %w", err)
	}
	if err := r.EnsureUser(ctx, tx, ownerID, ""); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	if err := r.AddMember(ctx, tx, orgID, ownerID, "owner"); err != nil {
		return fmt.Errorf("assign owner: %w", err)
	}
	return tx.Commit()
}
