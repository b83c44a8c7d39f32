// Package apierr holds the JSON error envelope shared by the HTTP APIs:
// {"error": "<message>"}.
package apierr

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

type Error struct {
	status  int
	Message string `json:"error" example:"task task-1 not found"`
}

func (e *Error) GetStatus() int { return e.status }
func (e *Error) Error() string  { return e.Message }

func New(status int, message string) huma.StatusError {
	return &Error{status: status, Message: message}
}

var installOnce sync.Once

// Install routes huma's generated errors through the envelope. Request
// validation failures become 400 instead of 422.
func Install() {
	installOnce.Do(func() {
		huma.DefaultArrayNullable = false
		huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
			return New(status, join(msg, errs))
		}
		huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
			if status == http.StatusUnprocessableEntity {
				status = http.StatusBadRequest
			}
			return New(status, join(msg, errs))
		}
	})
}

func join(msg string, errs []error) string {
	var parts []string
	for _, err := range errs {
		if err != nil {
			parts = append(parts, err.Error())
		}
	}
	if len(parts) == 0 {
		return msg
	}
	return msg + ": " + strings.Join(parts, "; ")
}

// Write sends err outside of a huma handler, e.g. from middleware.
func Write(w http.ResponseWriter, err huma.StatusError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.GetStatus())
	_ = json.NewEncoder(w).Encode(err)
}
