package engine

import (
	"context"
	"errors"
	"strings"
)

// CallerIdentity is resolved once per request and is either Interactive or
// Service.
type CallerIdentity interface {
	// DeveloperID is the user the request acts for.
	DeveloperID() string
	callerIdentity()
}

// Interactive is a human with a live session. The session user is always
// the attributed developer.
type Interactive struct {
	UserID string
}

func (i Interactive) DeveloperID() string { return i.UserID }
func (Interactive) callerIdentity()       {}

// Service is a trusted backend acting on behalf of a developer named in the
// request body.
type Service struct {
	ClaimedDeveloperID string
}

func (s Service) DeveloperID() string { return s.ClaimedDeveloperID }
func (Service) callerIdentity()       {}

// AuthMode is how the transport authenticated the caller.
type AuthMode int

const (
	ModeInteractive AuthMode = iota
	ModeService
)

var ErrUnauthenticated = errors.New("authentication required")

// ResolveIdentity turns transport-level credentials into a CallerIdentity.
// In service mode the body must name an existing developer. In interactive
// mode the body value is ignored.
func (e Engine) ResolveIdentity(ctx context.Context, mode AuthMode, sessionUserID, bodyDeveloperID string) (CallerIdentity, error) {
	switch mode {
	case ModeService:
		devID := strings.TrimSpace(bodyDeveloperID)
		if devID == "" {
			return nil, ValidationError{Msg: "developerId is required for service requests"}
		}
		if _, err := e.Repo.GetUser(ctx, devID); err != nil {
			return nil, notFound("developer", devID, err)
		}
		return Service{ClaimedDeveloperID: devID}, nil
	default:
		if strings.TrimSpace(sessionUserID) == "" {
			return nil, ErrUnauthenticated
		}
		return Interactive{UserID: sessionUserID}, nil
	}
}
