package domain

type Organization struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}

type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	CreatedAt   string `json:"createdAt" format:"date-time"`
}

// Membership is one row linking a user to an organization. Any row grants
// access; the role is informational.
type Membership struct {
	OrgID  string `json:"orgId"`
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type Project struct {
	ID          string `json:"id"`
	OrgID       string `json:"orgId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"createdAt" format:"date-time"`
}

type Sprint struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Goal      string `json:"goal,omitempty"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}

type Task struct {
	ID         string  `json:"id"`
	ProjectID  string  `json:"projectId"`
	SprintID   *string `json:"sprintId,omitempty"`
	Title      string  `json:"title"`
	Status     string  `json:"status" enum:"todo,in_progress,done"`
	AssigneeID *string `json:"assigneeId,omitempty"`
	CreatedAt  string  `json:"createdAt" format:"date-time"`
	UpdatedAt  string  `json:"updatedAt" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"projectId,omitempty"`
	EntityKind string `json:"entityKind"`
	EntityID   string `json:"entityId,omitempty"`
	ActorID    string `json:"actorId"`
	Payload    string `json:"payload"`
}
