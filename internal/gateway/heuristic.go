package gateway

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Prathameshworks247/AGILITY/internal/domain"
)

const maxLineLength = 120

// HeuristicAnalyzer reviews snapshots with fixed rules and no network. It
// looks at added lines when a diff is present and at the whole file
// otherwise.
type HeuristicAnalyzer struct{}

func (HeuristicAnalyzer) Name() string { return "heuristic" }

type rule struct {
	severity string
	category string
	message  string
	fix      string
	pattern  *regexp.Regexp
	// languages limits the rule; empty means every language.
	languages []string
}

var rules = []rule{
	{
		severity: "high",
		category: "security",
		message:  "Hard-coded credential",
		fix:      "Load the value from configuration or a secret store.",
		pattern:  regexp.MustCompile(`(?i)(api[_-]?key|secret|passw(or)?d|token)\s*[:=]+\s*["'][^"'\s]{8,}["']`),
	},
	{
		severity: "high",
		category: "security",
		message:  "Private key material in source",
		fix:      "Remove the key and rotate it.",
		pattern:  regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`),
	},
	{
		severity:  "medium",
		category:  "quality",
		message:   "Debugger statement left in code",
		fix:       "Remove the debugger statement.",
		pattern:   regexp.MustCompile(`^\s*debugger;?\s*$|\bbreakpoint\(\)|\bpdb\.set_trace\(\)`),
		languages: []string{"javascript", "typescript", "javascriptreact", "typescriptreact", "python"},
	},
	{
		severity:  "low",
		category:  "quality",
		message:   "Debug print left in code",
		fix:       "Use the project logger or remove the print.",
		pattern:   regexp.MustCompile(`\bconsole\.(log|debug)\(|^\s*print\(|\bfmt\.Print(ln|f)?\(`),
		languages: []string{"javascript", "typescript", "javascriptreact", "typescriptreact", "python", "go"},
	},
	{
		severity: "low",
		category: "documentation",
		message:  "Unresolved TODO marker",
		fix:      "Resolve it or link it to a task.",
		pattern:  regexp.MustCompile(`\b(TODO|FIXME|XXX)\b`),
	},
}

type scannedLine struct {
	number int
	text   string
}

func (HeuristicAnalyzer) Analyze(ctx context.Context, snap domain.Snapshot) (Analysis, error) {
	var lines []scannedLine
	if snap.Diff != nil && strings.TrimSpace(*snap.Diff) != "" {
		lines = addedLines(*snap.Diff)
	} else {
		for i, l := range strings.Split(snap.Content, "\n") {
			lines = append(lines, scannedLine{number: i + 1, text: l})
		}
	}

	findings := domain.Findings{}
	counts := map[string]int{}
	for _, l := range lines {
		if err := ctx.Err(); err != nil {
			return Analysis{}, err
		}
		for _, r := range rules {
			if !r.appliesTo(snap.LanguageID) || !r.pattern.MatchString(l.text) {
				continue
			}
			findings = append(findings, finding(snap.FilePath, l.number, r.severity, r.category, r.message, r.fix))
			counts[r.severity]++
		}
		if len([]rune(l.text)) > maxLineLength {
			findings = append(findings, finding(snap.FilePath, l.number, "low", "quality",
				fmt.Sprintf("Line longer than %d characters", maxLineLength), "Wrap or split the line."))
			counts["low"]++
		}
	}

	status := domain.VerdictPass
	switch {
	case counts["high"] > 0:
		status = domain.VerdictFail
	case counts["medium"] > 0:
		status = domain.VerdictWarn
	}
	summary := "No issues found."
	if len(findings) > 0 {
		summary = fmt.Sprintf("%d finding(s): %d high, %d medium, %d low.", len(findings), counts["high"], counts["medium"], counts["low"])
	}
	return Analysis{Status: status, Summary: summary, Findings: findings}, nil
}

func (r rule) appliesTo(lang string) bool {
	if len(r.languages) == 0 {
		return true
	}
	for _, l := range r.languages {
		if strings.EqualFold(l, lang) {
			return true
		}
	}
	return false
}

func finding(path string, line int, severity, category, message, fix string) map[string]any {
	return map[string]any{
		"severity":     severity,
		"category":     category,
		"message":      message,
		"filePath":     path,
		"startLine":    line,
		"endLine":      line,
		"suggestedFix": fix,
	}
}

var hunkHeader = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,\d+)? @@`)

// addedLines returns the "+" lines of a unified diff with their line numbers
// in the new file.
func addedLines(diff string) []scannedLine {
	var out []scannedLine
	next := 0
	for _, l := range strings.Split(diff, "\n") {
		if m := hunkHeader.FindStringSubmatch(l); m != nil {
			next, _ = strconv.Atoi(m[1])
			continue
		}
		if next == 0 {
			continue
		}
		switch {
		case strings.HasPrefix(l, "+++"):
		case strings.HasPrefix(l, "+"):
			out = append(out, scannedLine{number: next, text: l[1:]})
			next++
		case strings.HasPrefix(l, "-"):
		case strings.HasPrefix(l, `\`):
		default:
			next++
		}
	}
	return out
}
