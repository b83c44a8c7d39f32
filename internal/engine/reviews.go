package engine

import (
	"context"
	"strings"

	"github.com/Prathameshworks247/AGILITY/internal/domain"
	"github.com/Prathameshworks247/AGILITY/internal/repo"
)

// ReviewInput is a review-creation request after transport decoding.
// Findings is whatever JSON value the caller sent.
type ReviewInput struct {
	TaskID   string
	Status   string
	Summary  string
	Findings any
}

// SubmitReview authorizes and persists one review for the caller's
// developer.
func (e Engine) SubmitReview(ctx context.Context, caller CallerIdentity, in ReviewInput) (domain.Review, error) {
	if caller == nil {
		return domain.Review{}, ErrUnauthenticated
	}
	taskID := strings.TrimSpace(in.TaskID)
	if taskID == "" {
		return domain.Review{}, ValidationError{Msg: "taskId is required"}
	}
	task, project, err := e.taskOrg(ctx, taskID)
	if err != nil {
		return domain.Review{}, err
	}
	developerID := caller.DeveloperID()
	if err := e.Auth.RequireOrgMember(ctx, project.OrgID, developerID); err != nil {
		return domain.Review{}, err
	}
	status, err := domain.ParseVerdict(in.Status)
	if err != nil {
		return domain.Review{}, ValidationError{Msg: err.Error()}
	}
	return e.Repo.InsertReview(ctx, project.ID, domain.Review{
		TaskID:      task.ID,
		DeveloperID: developerID,
		Status:      status,
		Summary:     in.Summary,
		Findings:    domain.NormalizeFindings(in.Findings),
	})
}

// ClampHistoryLimit applies the default and the server cap.
func (e Engine) ClampHistoryLimit(limit int) int {
	capLimit := e.HistoryCap
	if capLimit <= 0 {
		capLimit = DefaultHistoryCap
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > capLimit {
		return capLimit
	}
	return limit
}

// History returns the newest reviews for one task the user can see.
func (e Engine) History(ctx context.Context, userID, taskID string, limit int) ([]domain.Review, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, ValidationError{Msg: "taskId is required"}
	}
	_, project, err := e.taskOrg(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := e.Auth.RequireOrgMember(ctx, project.OrgID, userID); err != nil {
		return nil, err
	}
	return e.Repo.ReviewHistory(ctx, taskID, e.ClampHistoryLimit(limit))
}

// BoardTask is a task with its most recent review, nil when it has none.
type BoardTask struct {
	domain.Task
	LatestReview *domain.Review `json:"latestReview"`
}

type TaskBoardQuery struct {
	ProjectID string
	SprintID  string
}

// TaskBoard lists a sprint's or project's tasks with their latest reviews,
// fetched in one batch.
func (e Engine) TaskBoard(ctx context.Context, userID string, q TaskBoardQuery) ([]BoardTask, error) {
	q.ProjectID = strings.TrimSpace(q.ProjectID)
	q.SprintID = strings.TrimSpace(q.SprintID)
	if q.ProjectID == "" && q.SprintID == "" {
		return nil, ValidationError{Msg: "sprintId or projectId is required"}
	}
	projectID := q.ProjectID
	if q.SprintID != "" {
		s, err := e.Repo.GetSprint(ctx, q.SprintID)
		if err != nil {
			return nil, notFound("sprint", q.SprintID, err)
		}
		if projectID != "" && projectID != s.ProjectID {
			return nil, ValidationError{Msg: "sprint belongs to a different project"}
		}
		projectID = s.ProjectID
	}
	project, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, notFound("project", projectID, err)
	}
	if err := e.Auth.RequireOrgMember(ctx, project.OrgID, userID); err != nil {
		return nil, err
	}
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{ProjectID: project.ID, SprintID: q.SprintID})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	latest, err := e.Repo.LatestReviewsForTasks(ctx, ids)
	if err != nil {
		return nil, err
	}
	board := make([]BoardTask, 0, len(tasks))
	for _, t := range tasks {
		bt := BoardTask{Task: t}
		if rv, ok := latest[t.ID]; ok {
			rv := rv
			bt.LatestReview = &rv
		}
		board = append(board, bt)
	}
	return board, nil
}
