package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Prathameshworks247/AGILITY/internal/domain"
	"github.com/Prathameshworks247/AGILITY/internal/engine/auth"
	"github.com/Prathameshworks247/AGILITY/internal/repo"
)

const (
	DefaultHistoryLimit = 10
	DefaultHistoryCap   = 20
)

type Engine struct {
	DB   *sql.DB
	Repo repo.Repo
	Auth auth.Service

	// HistoryCap bounds every history read regardless of the requested limit.
	HistoryCap int
}

func New(db *sql.DB) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:         db,
		Repo:       r,
		Auth:       auth.Service{Members: r},
		HistoryCap: DefaultHistoryCap,
	}
}

// ValidationError is a malformed request the caller must fix.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }

func (e NotFoundError) Unwrap() error { return repo.ErrNotFound }

func notFound(kind, id string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return NotFoundError{Kind: kind, ID: id}
	}
	return err
}

func newID(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

type ProjectCreateOptions struct {
	ID          string
	OrgID       string
	Name        string
	Description string
}

func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if strings.TrimSpace(opts.OrgID) == "" {
		return domain.Project{}, ValidationError{Msg: "orgId is required"}
	}
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Project{}, ValidationError{Msg: "name is required"}
	}
	if _, err := e.Repo.GetOrg(ctx, opts.OrgID); err != nil {
		return domain.Project{}, notFound("organization", opts.OrgID, err)
	}
	if opts.ID == "" {
		opts.ID = newID("proj")
	}
	return e.Repo.InsertProject(ctx, domain.Project{
		ID:          opts.ID,
		OrgID:       opts.OrgID,
		Name:        opts.Name,
		Description: opts.Description,
	})
}

type SprintCreateOptions struct {
	ID        string
	ProjectID string
	Name      string
	Goal      string
}

func (e Engine) CreateSprint(ctx context.Context, opts SprintCreateOptions) (domain.Sprint, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Sprint{}, ValidationError{Msg: "name is required"}
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Sprint{}, notFound("project", opts.ProjectID, err)
	}
	if opts.ID == "" {
		opts.ID = newID("sprint")
	}
	return e.Repo.InsertSprint(ctx, domain.Sprint{ID: opts.ID, ProjectID: opts.ProjectID, Name: opts.Name, Goal: opts.Goal})
}

type TaskCreateOptions struct {
	ID         string
	ProjectID  string
	SprintID   string
	Title      string
	AssigneeID string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Task{}, ValidationError{Msg: "title is required"}
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Task{}, notFound("project", opts.ProjectID, err)
	}
	t := domain.Task{ID: opts.ID, ProjectID: opts.ProjectID, Title: opts.Title}
	if opts.SprintID != "" {
		s, err := e.Repo.GetSprint(ctx, opts.SprintID)
		if err != nil {
			return domain.Task{}, notFound("sprint", opts.SprintID, err)
		}
		if s.ProjectID != opts.ProjectID {
			return domain.Task{}, ValidationError{Msg: "sprint belongs to a different project"}
		}
		t.SprintID = &opts.SprintID
	}
	if opts.AssigneeID != "" {
		if _, err := e.Repo.GetUser(ctx, opts.AssigneeID); err != nil {
			return domain.Task{}, notFound("user", opts.AssigneeID, err)
		}
		t.AssigneeID = &opts.AssigneeID
	}
	if t.ID == "" {
		t.ID = newID("task")
	}
	return e.Repo.InsertTask(ctx, t)
}

// AddMember registers the user if needed and links it to the organization.
func (e Engine) AddMember(ctx context.Context, orgID, userID, role string) error {
	if strings.TrimSpace(userID) == "" {
		return ValidationError{Msg: "user id is required"}
	}
	if _, err := e.Repo.GetOrg(ctx, orgID); err != nil {
		return notFound("organization", orgID, err)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.EnsureUser(ctx, tx, userID, ""); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	if err := e.Repo.AddMember(ctx, tx, orgID, userID, role); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return tx.Commit()
}

// taskOrg loads a task and the organization that owns it through its
// project.
func (e Engine) taskOrg(ctx context.Context, taskID string) (domain.Task, domain.Project, error) {
	task, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, domain.Project{}, notFound("task", taskID, err)
	}
	project, err := e.Repo.GetProject(ctx, task.ProjectID)
	if err != nil {
		return domain.Task{}, domain.Project{}, notFound("project", task.ProjectID, err)
	}
	return task, project, nil
}
