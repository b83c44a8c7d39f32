// Package output renders CLI messages, verdicts and tables.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Prathameshworks247/AGILITY/internal/capture"
	"github.com/Prathameshworks247/AGILITY/internal/domain"
	"github.com/Prathameshworks247/AGILITY/internal/engine"
)

// UI writes prefixed, colored lines.
type UI struct {
	Out    io.Writer
	ErrOut io.Writer
}

// New creates a UI with default stdout/stderr writers.
func New() *UI {
	return &UI{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

var (
	infoPrefix    = color.New(color.FgHiBlue).Sprint("i")
	successPrefix = color.New(color.FgHiGreen).Sprint("✓")
	warningPrefix = color.New(color.FgHiYellow).Sprint("⚠")
	errorPrefix   = color.New(color.FgHiRed).Sprint("✗")
	green         = color.New(color.FgHiGreen).SprintFunc()
	yellow        = color.New(color.FgHiYellow).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
	faint         = color.New(color.Faint).SprintFunc()
)

func (u *UI) Info(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", infoPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Success(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", successPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Warning(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", warningPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Error(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", errorPrefix, fmt.Sprintf(format, a...))
}

// Notify lets a UI act as the capture agent's notifier.
func (u *UI) Notify(level capture.Level, message string) {
	switch level {
	case capture.LevelError:
		u.Error("%s", message)
	case capture.LevelWarn:
		u.Warning("%s", message)
	default:
		u.Info("%s", message)
	}
}

// Verdict colors a verdict by severity: PASS green, WARN yellow, FAIL red.
func Verdict(v domain.Verdict) string {
	s := string(v)
	switch v.Rank() {
	case 1:
		return green(s)
	case 2:
		return yellow(s)
	case 3:
		return red(s)
	default:
		return s
	}
}

// Board renders tasks with their latest review.
func (u *UI) Board(tasks []engine.BoardTask) {
	tw := table.NewWriter()
	tw.SetOutputMirror(u.Out)
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Sprint", "Review", "Reviewed"})
	for _, t := range tasks {
		sprint := ""
		if t.SprintID != nil {
			sprint = *t.SprintID
		}
		verdict, when := faint("-"), ""
		if t.LatestReview != nil {
			verdict = Verdict(t.LatestReview.Status)
			when = t.LatestReview.CreatedAt
		}
		tw.AppendRow(table.Row{t.ID, t.Title, t.Status, sprint, verdict, when})
	}
	tw.Render()
}

// History renders reviews newest first, as given.
func (u *UI) History(reviews []domain.Review) {
	tw := table.NewWriter()
	tw.SetOutputMirror(u.Out)
	tw.AppendHeader(table.Row{"Created", "Status", "Developer", "Findings", "Summary"})
	for _, rv := range reviews {
		tw.AppendRow(table.Row{rv.CreatedAt, Verdict(rv.Status), rv.DeveloperID, len(rv.Findings), oneLine(rv.Summary, 72)})
	}
	tw.Render()
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
