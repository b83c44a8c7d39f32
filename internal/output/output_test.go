package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/Prathameshworks247/AGILITY/internal/capture"
	"github.com/Prathameshworks247/AGILITY/internal/domain"
	"github.com/Prathameshworks247/AGILITY/internal/engine"
)

func newTestUI() (*UI, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &UI{Out: out, ErrOut: errOut}, out, errOut
}

func TestNotifyRoutesByLevel(t *testing.T) {
	u, out, errOut := newTestUI()
	u.Notify(capture.LevelInfo, "sent")
	u.Notify(capture.LevelError, "rejected")
	assert.Contains(t, out.String(), "sent")
	assert.Contains(t, errOut.String(), "rejected")
	assert.NotContains(t, out.String(), "rejected")
}

func TestVerdictKeepsText(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()
	assert.Equal(t, "PASS", Verdict(domain.VerdictPass))
	assert.Equal(t, "FAIL", Verdict(domain.VerdictFail))
	assert.Equal(t, "odd", Verdict(domain.Verdict("odd")))
}

func TestBoardShowsLatestReview(t *testing.T) {
	u, out, _ := newTestUI()
	sprint := "sprint-1"
	u.Board([]engine.BoardTask{
		{Task: domain.Task{ID: "task-1", Title: "Login", Status: "todo", SprintID: &sprint},
			LatestReview: &domain.Review{Status: domain.VerdictWarn, CreatedAt: "2026-03-01T10:05:00.000000000Z"}},
		{Task: domain.Task{ID: "task-2", Title: "Logout", Status: "todo"}},
	})
	s := out.String()
	assert.Contains(t, s, "task-1")
	assert.Contains(t, s, "WARN")
	assert.Contains(t, s, "2026-03-01T10:05:00.000000000Z")
	assert.Contains(t, s, "task-2")
}

func TestHistoryCollapsesSummary(t *testing.T) {
	u, out, _ := newTestUI()
	u.History([]domain.Review{{
		CreatedAt: "2026-03-01T10:05:00.000000000Z",
		Status:    domain.VerdictFail,
		Summary:   "line one\nline two " + strings.Repeat("x", 100),
		Findings:  domain.Findings{map[string]any{}, map[string]any{}},
	}})
	s := out.String()
	assert.Contains(t, s, "line one line two")
	assert.Contains(t, s, "…")
}
