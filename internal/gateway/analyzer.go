package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Prathameshworks247/AGILITY/internal/domain"
)

// Analysis is the verdict produced for one snapshot.
type Analysis struct {
	Status   domain.Verdict  `json:"status"`
	Summary  string          `json:"summary"`
	Findings domain.Findings `json:"findings"`
}

// Analyzer classifies a snapshot.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, snap domain.Snapshot) (Analysis, error)
}

// ParseAnalysis reads a model reply. Markdown fences are stripped, an
// unknown status becomes WARN and findings are normalized the same way the
// review store does.
func ParseAnalysis(text string) (Analysis, error) {
	text = stripFences(text)
	if text == "" {
		return Analysis{}, errors.New("empty analysis response")
	}
	var raw struct {
		Status   string `json:"status"`
		Summary  string `json:"summary"`
		Findings any    `json:"findings"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Analysis{}, fmt.Errorf("parse analysis as JSON: %w", err)
	}
	status, err := domain.ParseVerdict(raw.Status)
	if err != nil {
		status = domain.VerdictWarn
	}
	return Analysis{
		Status:   status,
		Summary:  strings.TrimSpace(raw.Summary),
		Findings: domain.NormalizeFindings(raw.Findings),
	}, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}
