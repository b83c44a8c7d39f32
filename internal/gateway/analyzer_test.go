package gateway

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prathameshworks247/AGILITY/internal/domain"
)

func TestParseAnalysis(t *testing.T) {
	a, err := ParseAnalysis("```json\n{\"status\":\"fail\",\"summary\":\" bad \",\"findings\":{\"message\":\"m\"}}\n```")
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictFail, a.Status)
	assert.Equal(t, "bad", a.Summary)
	assert.Equal(t, domain.Findings{map[string]any{"message": "m"}}, a.Findings)

	a, err = ParseAnalysis(`{"status":"maybe","summary":"s","findings":"none"}`)
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictWarn, a.Status)
	assert.Equal(t, domain.Findings{}, a.Findings)

	_, err = ParseAnalysis("I think it's fine")
	assert.Error(t, err)
	_, err = ParseAnalysis("  ")
	assert.Error(t, err)
}

func TestBuildPromptIncludesDiffAndBranch(t *testing.T) {
	branch, diff := "feature/x", "+added line"
	system, user := buildPrompt(domain.Snapshot{FilePath: "a.go", LanguageID: "go", Content: "package a", Branch: &branch, Diff: &diff})
	assert.Contains(t, system, `"status"`)
	assert.Contains(t, user, "Branch: feature/x")
	assert.Contains(t, user, "+added line")
	assert.Contains(t, user, "package a")

	_, user = buildPrompt(domain.Snapshot{FilePath: "a.go", Content: strings.Repeat("x", maxPromptContent+10)})
	assert.NotContains(t, user, "Uncommitted diff")
	assert.Contains(t, user, "[... truncated for length ...]")
}

func TestHeuristicAnalyzerOnContent(t *testing.T) {
	content := strings.Join([]string{
		"package main",
		`const apiKey = "sk-live-1234567890"`,
		"// TODO: remove",
		`func main() { fmt.Println("hi") }`,
	}, "\n")
	a, err := HeuristicAnalyzer{}.Analyze(context.Background(), domain.Snapshot{FilePath: "main.go", LanguageID: "go", Content: content})
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictFail, a.Status)
	require.Len(t, a.Findings, 3)
	first := a.Findings[0].(map[string]any)
	assert.Equal(t, "high", first["severity"])
	assert.Equal(t, "security", first["category"])
	assert.Equal(t, 2, first["startLine"])
	assert.Contains(t, a.Summary, "1 high")
}

func TestHeuristicAnalyzerOnlyReadsAddedLines(t *testing.T) {
	diff := strings.Join([]string{
		"diff --git a/app.js b/app.js",
		"--- a/app.js",
		"+++ b/app.js",
		"@@ -10,3 +10,4 @@ function f() {",
		" const a = 1;",
		"-console.log(a);",
		"+debugger;",
		" return a;",
		"+const b = 2;",
	}, "\n")
	content := "console.log('old debug left in the file');\n"
	a, err := HeuristicAnalyzer{}.Analyze(context.Background(), domain.Snapshot{FilePath: "app.js", LanguageID: "javascript", Content: content, Diff: &diff})
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictWarn, a.Status)
	require.Len(t, a.Findings, 1)
	assert.Equal(t, 11, a.Findings[0].(map[string]any)["startLine"])
}

func TestHeuristicAnalyzerClean(t *testing.T) {
	a, err := HeuristicAnalyzer{}.Analyze(context.Background(), domain.Snapshot{FilePath: "a.py", LanguageID: "python", Content: "def f():\n    return 1\n"})
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictPass, a.Status)
	assert.Equal(t, "No issues found.", a.Summary)
	assert.NotNil(t, a.Findings)
	assert.Empty(t, a.Findings)
}

type flakyAnalyzer struct {
	calls    atomic.Int32
	failures int32
	block    time.Duration
}

func (f *flakyAnalyzer) Name() string { return "flaky" }

func (f *flakyAnalyzer) Analyze(ctx context.Context, snap domain.Snapshot) (Analysis, error) {
	n := f.calls.Add(1)
	if f.block > 0 {
		select {
		case <-ctx.Done():
			return Analysis{}, ctx.Err()
		case <-time.After(f.block):
		}
	}
	if n <= f.failures {
		return Analysis{}, errors.New("upstream overloaded")
	}
	return Analysis{Status: domain.VerdictPass, Summary: "ok", Findings: domain.Findings{}}, nil
}

func TestResilientAnalyzerRetriesOnce(t *testing.T) {
	inner := &flakyAnalyzer{failures: 1}
	r := NewResilientAnalyzer(inner, time.Second)
	r.initialDelay = 10 * time.Millisecond
	a, err := r.Analyze(context.Background(), domain.Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictPass, a.Status)
	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, "flaky", r.Name())

	inner = &flakyAnalyzer{failures: 5}
	r = NewResilientAnalyzer(inner, time.Second)
	r.initialDelay = 10 * time.Millisecond
	_, err = r.Analyze(context.Background(), domain.Snapshot{})
	assert.Error(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestResilientAnalyzerTimesOut(t *testing.T) {
	r := NewResilientAnalyzer(&flakyAnalyzer{block: 5 * time.Second}, 50*time.Millisecond)
	r.initialDelay = 10 * time.Millisecond
	start := time.Now()
	_, err := r.Analyze(context.Background(), domain.Snapshot{})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
