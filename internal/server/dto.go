package server

import (
	"github.com/Prathameshworks247/AGILITY/internal/domain"
	"github.com/Prathameshworks247/AGILITY/internal/engine"
)

// ReviewCreateRequest keeps every field optional at the schema level so that
// missing or malformed values reach the handler and get the documented
// status codes. Unknown fields, including a client createdAt, are ignored.
type ReviewCreateRequest struct {
	_           struct{} `json:"-" additionalProperties:"true"`
	TaskID      string   `json:"taskId,omitempty"`
	Status      string   `json:"status,omitempty" doc:"PASS, WARN or FAIL in any case"`
	Summary     string   `json:"summary,omitempty"`
	Findings    any      `json:"findings,omitempty" doc:"list of finding objects or a single object"`
	DeveloperID string   `json:"developerId,omitempty" doc:"required with the service credential, ignored otherwise"`
}

type ReviewHistoryResponse struct {
	Reviews []domain.Review `json:"reviews"`
}

type TaskListResponse struct {
	Tasks []engine.BoardTask `json:"tasks"`
}

type WhoAmIResponse struct {
	UserID string `json:"userId,omitempty"`
	Mode   string `json:"mode" enum:"interactive,service"`
}

type DevLoginRequest struct {
	UserID     string `json:"userId"`
	TTLSeconds int    `json:"ttlSeconds,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
