package gateway

import (
	"strings"

	"github.com/Prathameshworks247/AGILITY/internal/domain"
)

const (
	maxPromptDiff    = 150 * 40
	maxPromptContent = 400 * 80
)

const systemPrompt = `You are an expert code reviewer looking at one file a developer just saved.
Return ONLY a JSON object with these fields:
- "status": one of "PASS", "WARN", "FAIL"
- "summary": one or two sentences on the change
- "findings": an array of objects, each with
  - "severity": one of "low", "medium", "high"
  - "category": one of "functionality", "design", "quality", "performance", "security", "testing", "documentation"
  - "message": observation and impact
  - "filePath": the file the finding is in
  - "startLine" and "endLine": line numbers in the new file, when known
  - "suggestedFix": a short suggestion, when there is one

Rules:
- FAIL only for bugs, security problems or changes that break callers
- WARN for issues worth fixing that do not block
- PASS when nothing needs attention; findings may then be empty
- Review the diff when one is given; use the full content for context only
- Keep it short and do not repeat the same feedback
- Return valid JSON only, no markdown fencing or explanation`

// buildPrompt returns the system and user prompts for snap.
func buildPrompt(snap domain.Snapshot) (system string, user string) {
	system = systemPrompt

	var sb strings.Builder
	sb.WriteString("File: ")
	sb.WriteString(snap.FilePath)
	sb.WriteString("\nLanguage: ")
	sb.WriteString(snap.LanguageID)
	sb.WriteString("\n")
	if snap.Branch != nil && *snap.Branch != "" {
		sb.WriteString("Branch: ")
		sb.WriteString(*snap.Branch)
		sb.WriteString("\n")
	}
	if snap.Diff != nil && strings.TrimSpace(*snap.Diff) != "" {
		sb.WriteString("\n## Uncommitted diff\n\n")
		sb.WriteString(clip(*snap.Diff, maxPromptDiff))
		sb.WriteString("\n")
	}
	sb.WriteString("\n## Current file content\n\n")
	sb.WriteString(clip(snap.Content, maxPromptContent))
	user = sb.String()
	return
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n\n[... truncated for length ...]"
}
