package auth

import (
	"context"
	"fmt"
)

// ForbiddenError indicates the user has no membership in the organization
// that owns the requested resource.
type ForbiddenError struct {
	OrgID  string
	UserID string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("user %s is not a member of the organization that owns this task", e.UserID)
}

// MembershipStore reports organization membership.
type MembershipStore interface {
	IsOrgMember(ctx context.Context, orgID, userID string) (bool, error)
}

// Service resolves resource-level access. Membership is all or nothing:
// any row for the pair grants read and write on the organization's tasks.
type Service struct {
	Members MembershipStore
}

func (s Service) RequireOrgMember(ctx context.Context, orgID, userID string) error {
	if userID == "" {
		return ForbiddenError{OrgID: orgID, UserID: userID}
	}
	ok, err := s.Members.IsOrgMember(ctx, orgID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return ForbiddenError{OrgID: orgID, UserID: userID}
	}
	return nil
}
