package domain

import (
	"fmt"
	"strings"
)

// Verdict is the three-valued outcome of an analysis.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictWarn Verdict = "WARN"
	VerdictFail Verdict = "FAIL"
)

// ParseVerdict accepts PASS, WARN or FAIL in any letter case.
func ParseVerdict(s string) (Verdict, error) {
	v := Verdict(strings.ToUpper(strings.TrimSpace(s)))
	switch v {
	case VerdictPass, VerdictWarn, VerdictFail:
		return v, nil
	}
	return "", fmt.Errorf("invalid status %q: must be one of PASS, WARN, FAIL", s)
}

// Rank orders verdicts by severity. Used for display only.
func (v Verdict) Rank() int {
	switch v {
	case VerdictPass:
		return 1
	case VerdictWarn:
		return 2
	case VerdictFail:
		return 3
	default:
		return 0
	}
}

// Findings is an opaque list of analysis observations. Elements are stored
// as received.
type Findings []any

// NormalizeFindings coerces an arbitrary decoded JSON value into Findings.
// A list passes through, a single object becomes a one-element list and
// everything else becomes empty.
func NormalizeFindings(v any) Findings {
	switch t := v.(type) {
	case []any:
		return Findings(t)
	case Findings:
		return t
	case []map[string]any:
		out := make(Findings, 0, len(t))
		for _, m := range t {
			out = append(out, m)
		}
		return out
	case map[string]any:
		return Findings{t}
	default:
		return Findings{}
	}
}

type Review struct {
	ID          string   `json:"id"`
	TaskID      string   `json:"taskId"`
	DeveloperID string   `json:"developerId"`
	Status      Verdict  `json:"status" enum:"PASS,WARN,FAIL"`
	Summary     string   `json:"summary"`
	Findings    Findings `json:"findings"`
	CreatedAt   string   `json:"createdAt" format:"date-time"`
}

// Snapshot is one captured unit of code plus context. TaskID and Content are
// always set; the rest is best effort.
type Snapshot struct {
	TaskID      string         `json:"taskId"`
	DeveloperID string         `json:"developerId,omitempty"`
	LanguageID  string         `json:"languageId"`
	FilePath    string         `json:"filePath"`
	Content     string         `json:"content"`
	Diff        *string        `json:"diff,omitempty"`
	Branch      *string        `json:"branch,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Source      string         `json:"source,omitempty"`
	SentAt      string         `json:"sentAt,omitempty"`
}
