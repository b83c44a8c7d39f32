package agilitysdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal AGILITY review store client for task boards.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BearerToken: token,
		Timeout:     10 * time.Second,
	}
}

// Review is one stored analysis verdict.
type Review struct {
	ID          string `json:"id"`
	TaskID      string `json:"taskId"`
	DeveloperID string `json:"developerId"`
	Status      string `json:"status"`
	Summary     string `json:"summary"`
	Findings    []any  `json:"findings"`
	CreatedAt   string `json:"createdAt"`
}

// Task is a board task with its most recent review, nil when it has none.
type Task struct {
	ID           string  `json:"id"`
	ProjectID    string  `json:"projectId"`
	SprintID     *string `json:"sprintId"`
	Title        string  `json:"title"`
	Status       string  `json:"status"`
	AssigneeID   *string `json:"assigneeId"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
	LatestReview *Review `json:"latestReview"`
}

// ReviewInput creates a review. DeveloperID is only honored with the
// service credential.
type ReviewInput struct {
	TaskID      string `json:"taskId"`
	Status      string `json:"status"`
	Summary     string `json:"summary"`
	Findings    any    `json:"findings,omitempty"`
	DeveloperID string `json:"developerId,omitempty"`
}

// TaskQuery selects tasks by sprint or project.
type TaskQuery struct {
	SprintID  string
	ProjectID string
}

// Me describes the authenticated caller.
type Me struct {
	UserID string `json:"userId"`
	Mode   string `json:"mode"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Message returns the server's error text.
func (e *APIError) Message() string {
	var env struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(e.Body), &env) == nil && env.Error != "" {
		return env.Error
	}
	return strings.TrimSpace(e.Body)
}

// CreateReview stores a review.
func (c *Client) CreateReview(ctx context.Context, in ReviewInput) (Review, error) {
	var resp Review
	err := c.do(ctx, http.MethodPost, "v0/reviews", in, &resp)
	return resp, err
}

// ReviewHistory returns a task's reviews, newest first. The server caps
// limit.
func (c *Client) ReviewHistory(ctx context.Context, taskID string, limit int) ([]Review, error) {
	q := url.Values{}
	q.Set("taskId", taskID)
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	var resp struct {
		Reviews []Review `json:"reviews"`
	}
	err := c.do(ctx, http.MethodGet, "v0/reviews?"+q.Encode(), nil, &resp)
	return resp.Reviews, err
}

// Tasks lists tasks with their latest review.
func (c *Client) Tasks(ctx context.Context, query TaskQuery) ([]Task, error) {
	q := url.Values{}
	if query.SprintID != "" {
		q.Set("sprintId", query.SprintID)
	}
	if query.ProjectID != "" {
		q.Set("projectId", query.ProjectID)
	}
	var resp struct {
		Tasks []Task `json:"tasks"`
	}
	err := c.do(ctx, http.MethodGet, "v0/tasks?"+q.Encode(), nil, &resp)
	return resp.Tasks, err
}

// Me returns the caller as the server sees it.
func (c *Client) Me(ctx context.Context) (Me, error) {
	var resp Me
	err := c.do(ctx, http.MethodGet, "v0/me", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
