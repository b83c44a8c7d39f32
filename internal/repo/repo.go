package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Prathameshworks247/AGILITY/internal/domain"
)

// TimeLayout is fixed width so that lexical order of stored timestamps
// equals chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Repo struct {
	DB  *sql.DB
	Now func() time.Time
}

var ErrNotFound = errors.New("not found")

func (r Repo) now() string {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	return now().UTC().Format(TimeLayout)
}

// Timestamp formats t the way the repo stores it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func (r Repo) InsertProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	if p.CreatedAt == "" {
		p.CreatedAt = r.now()
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO projects(id,org_id,name,description,created_at) VALUES (?,?,?,?,?)`,
		p.ID, p.OrgID, p.Name, nullable(p.Description), p.CreatedAt)
	if err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var p domain.Project
	err := r.DB.QueryRowContext(ctx, `SELECT id,org_id,name,COALESCE(description,''),created_at FROM projects WHERE id=?`, id).
		Scan(&p.ID, &p.OrgID, &p.Name, &p.Description, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) ListProjects(ctx context.Context, orgID string) ([]domain.Project, error) {
	query := `SELECT id,org_id,name,COALESCE(description,''),created_at FROM projects`
	var args []any
	if orgID != "" {
		query += ` WHERE org_id=?`
		args = append(args, orgID)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.OrgID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) InsertSprint(ctx context.Context, s domain.Sprint) (domain.Sprint, error) {
	if s.CreatedAt == "" {
		s.CreatedAt = r.now()
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO sprints(id,project_id,name,goal,created_at) VALUES (?,?,?,?,?)`,
		s.ID, s.ProjectID, s.Name, nullable(s.Goal), s.CreatedAt)
	if err != nil {
		return domain.Sprint{}, fmt.Errorf("insert sprint: %w", err)
	}
	return s, nil
}

func (r Repo) GetSprint(ctx context.Context, id string) (domain.Sprint, error) {
	var s domain.Sprint
	err := r.DB.QueryRowContext(ctx, `SELECT id,project_id,name,COALESCE(goal,''),created_at FROM sprints WHERE id=?`, id).
		Scan(&s.ID, &s.ProjectID, &s.Name, &s.Goal, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) InsertTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	now := r.now()
	if t.CreatedAt == "" {
		t.CreatedAt = now
	}
	t.UpdatedAt = t.CreatedAt
	if t.Status == "" {
		t.Status = "todo"
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO tasks(id,project_id,sprint_id,title,status,assignee_id,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		t.ID, t.ProjectID, nullablePtr(t.SprintID), t.Title, t.Status, nullablePtr(t.AssigneeID), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

const taskColumns = `id,project_id,sprint_id,title,status,assignee_id,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var sprint, assignee sql.NullString
	if err := row.Scan(&t.ID, &t.ProjectID, &sprint, &t.Title, &t.Status, &assignee, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return t, err
	}
	if sprint.Valid {
		t.SprintID = &sprint.String
	}
	if assignee.Valid {
		t.AssigneeID = &assignee.String
	}
	return t, nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}

type TaskFilters struct {
	ProjectID string
	SprintID  string
	Status    string
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var (
		clauses []string
		args    []any
	)
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.SprintID != "" {
		clauses = append(clauses, "sprint_id=?")
		args = append(args, f.SprintID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullablePtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}
