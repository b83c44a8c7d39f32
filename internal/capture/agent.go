// Package capture decides which file saves become snapshots and sends them
// to the analysis gateway without holding up the save.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Prathameshworks247/AGILITY/internal/config"
	"github.com/Prathameshworks247/AGILITY/internal/delivery"
	"github.com/Prathameshworks247/AGILITY/internal/domain"
	"github.com/Prathameshworks247/AGILITY/internal/vcs"
)

// Skip reasons. OnFileSaved returns them so callers and tests can see why
// nothing was sent; they are not failures.
var (
	ErrAutoTrackDisabled  = errors.New("auto-track is disabled")
	ErrLanguageNotTracked = errors.New("language is not tracked")
	ErrNoActiveTask       = errors.New("no active task")
	ErrOutsideWorkspace   = errors.New("file is outside every workspace root")
)

// IsSkip reports whether err is one of the skip reasons.
func IsSkip(err error) bool {
	return errors.Is(err, ErrAutoTrackDisabled) ||
		errors.Is(err, ErrLanguageNotTracked) ||
		errors.Is(err, ErrNoActiveTask) ||
		errors.Is(err, ErrOutsideWorkspace)
}

// Document is a saved editor buffer.
type Document struct {
	Path       string
	LanguageID string
	Content    string
}

// Sender delivers a snapshot. *delivery.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, endpoint string, payload any, credential string) (delivery.Ack, error)
}

type Options struct {
	Config *config.Capture
	// Workspace is the root used when Config has no workspace_roots.
	Workspace string
	State     StateStore
	Diff      vcs.DiffSource
	Sender    Sender
	Notifier  Notifier
	Logger    *slog.Logger
	Now       func() time.Time
}

// Agent is the capture agent for one workspace. It is safe for concurrent
// use.
type Agent struct {
	cfg      *config.Capture
	roots    []string
	store    StateStore
	diff     vcs.DiffSource
	sender   Sender
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
	timeout  time.Duration

	mu    sync.Mutex
	state State

	// builds reads branch and diff right after each save; sends delivers the
	// built snapshots. Both keep save order per file.
	builds *fileQueue
	sends  *fileQueue
}

// NewAgent loads the workspace state, seeding it from config on first use.
func NewAgent(opts Options) (*Agent, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.State == nil {
		opts.State = &MemoryStateStore{}
	}
	if opts.Diff == nil {
		opts.Diff = vcs.NewGitDiffSource()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{Logger: opts.Logger}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultTimeoutSeconds) * time.Second
	}
	if opts.Sender == nil {
		opts.Sender = delivery.New("capture-agent", timeout)
	}
	roots, err := resolveRoots(cfg.WorkspaceRoots, opts.Workspace)
	if err != nil {
		return nil, err
	}
	a := &Agent{
		cfg:      cfg,
		roots:    roots,
		store:    opts.State,
		diff:     opts.Diff,
		sender:   opts.Sender,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		now:      opts.Now,
		timeout:  timeout,
		builds:   newFileQueue(),
		sends:    newFileQueue(),
	}
	st, found, err := a.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load capture state: %w", err)
	}
	if !found {
		st = State{AutoTrack: cfg.AutoTrackDefault()}
		if id := strings.TrimSpace(cfg.DefaultTaskID); id != "" {
			st.ActiveTaskID = &id
		}
		if err := a.store.Save(st); err != nil {
			return nil, fmt.Errorf("save capture state: %w", err)
		}
	}
	a.state = st
	return a, nil
}

func resolveRoots(configured []string, workspace string) ([]string, error) {
	if len(configured) == 0 {
		if workspace == "" {
			workspace = "."
		}
		configured = []string{workspace}
	}
	roots := make([]string, 0, len(configured))
	for _, r := range configured {
		if strings.TrimSpace(r) == "" {
			continue
		}
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("workspace root %q: %w", r, err)
		}
		roots = append(roots, filepath.Clean(abs))
	}
	return roots, nil
}

// Roots returns the absolute workspace roots.
func (a *Agent) Roots() []string {
	return append([]string(nil), a.roots...)
}

// Status returns the current state. It rereads the store so that changes
// written by another process sharing the workspace take effect.
func (a *Agent) Status() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refresh().clone()
}

// refresh reloads a.state from the store, keeping the cached copy when the
// store cannot be read. Callers hold a.mu.
func (a *Agent) refresh() State {
	st, found, err := a.store.Load()
	switch {
	case err != nil:
		a.logger.Warn("capture state unreadable; using cached state", "error", err)
	case found:
		a.state = st
	}
	return a.state
}

// SetActiveTask binds taskID, or clears the binding when taskID is nil or
// blank. The new state is persisted before it takes effect.
func (a *Agent) SetActiveTask(taskID *string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.refresh().clone()
	next.ActiveTaskID = nil
	if taskID != nil {
		if id := strings.TrimSpace(*taskID); id != "" {
			next.ActiveTaskID = &id
		}
	}
	if err := a.store.Save(next); err != nil {
		return fmt.Errorf("save capture state: %w", err)
	}
	a.state = next
	return nil
}

// ToggleAutoTrack flips auto-track and returns the new value.
func (a *Agent) ToggleAutoTrack() (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.refresh().clone()
	next.AutoTrack = !next.AutoTrack
	if err := a.store.Save(next); err != nil {
		return a.state.AutoTrack, fmt.Errorf("save capture state: %w", err)
	}
	a.state = next
	return next.AutoTrack, nil
}

// OnFileSaved queues a snapshot for doc when auto-track is on, the language
// is tracked and a task is bound. It returns immediately; the returned error
// is only ever a skip reason, already logged.
func (a *Agent) OnFileSaved(doc Document) error {
	st := a.Status()
	var skip error
	switch {
	case !st.AutoTrack:
		skip = ErrAutoTrackDisabled
	case !a.cfg.LanguageAllowed(doc.LanguageID):
		skip = ErrLanguageNotTracked
	case st.ActiveTaskID == nil:
		skip = ErrNoActiveTask
	}
	if skip == nil {
		if _, err := a.workspaceRoot(doc.Path); err != nil {
			skip = err
		}
	}
	if skip != nil {
		a.logger.Debug("capture skipped", "path", doc.Path, "language", doc.LanguageID, "reason", skip.Error())
		return skip
	}

	taskID := *st.ActiveTaskID
	capturedAt := a.now()
	key := a.queueKey(doc.Path)
	a.builds.enqueue(key, func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		snap, err := a.buildSnapshot(ctx, doc, taskID, capturedAt)
		cancel()
		if err != nil {
			a.logger.Debug("capture skipped", "path", doc.Path, "reason", err.Error())
			return
		}
		a.sends.enqueue(key, func() {
			ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
			defer cancel()
			if _, err := a.send(ctx, snap); err != nil {
				a.reportFailure(doc.Path, err)
			}
		})
	})
	return nil
}

// SendManualSnapshot sends doc right away for the bound task. Unlike a save,
// a missing task is an error here.
func (a *Agent) SendManualSnapshot(ctx context.Context, doc Document) (delivery.Ack, error) {
	st := a.Status()
	if st.ActiveTaskID == nil {
		return delivery.Ack{}, ErrNoActiveTask
	}
	snap, err := a.BuildSnapshot(ctx, doc, *st.ActiveTaskID)
	if err != nil {
		return delivery.Ack{}, err
	}
	ack, err := a.send(ctx, snap)
	if err != nil {
		a.reportFailure(doc.Path, err)
		return delivery.Ack{}, err
	}
	a.notifier.Notify(LevelInfo, fmt.Sprintf("Snapshot for %s sent", filepath.Base(doc.Path)))
	return ack, nil
}

// BuildSnapshot assembles the snapshot for doc. Branch and diff are added
// when the diff source has them.
func (a *Agent) BuildSnapshot(ctx context.Context, doc Document, taskID string) (domain.Snapshot, error) {
	return a.buildSnapshot(ctx, doc, taskID, a.now())
}

func (a *Agent) buildSnapshot(ctx context.Context, doc Document, taskID string, capturedAt time.Time) (domain.Snapshot, error) {
	root, err := a.workspaceRoot(doc.Path)
	if err != nil {
		return domain.Snapshot{}, err
	}
	path := absPath(doc.Path)
	res := a.diff.Diff(ctx, root, path)
	rel, _ := filepath.Rel(root, path)
	return domain.Snapshot{
		TaskID:      taskID,
		DeveloperID: strings.TrimSpace(a.cfg.DeveloperID),
		LanguageID:  doc.LanguageID,
		FilePath:    path,
		Content:     doc.Content,
		Diff:        res.Diff,
		Branch:      res.Branch,
		Metadata: map[string]any{
			"capturedAt":    capturedAt.UTC().Format(time.RFC3339Nano),
			"workspaceRoot": root,
			"relativePath":  filepath.ToSlash(rel),
			"lineCount":     lineCount(doc.Content),
		},
	}, nil
}

// Wait blocks until every queued snapshot has been handled.
func (a *Agent) Wait() {
	a.builds.wait()
	a.sends.wait()
}

func (a *Agent) send(ctx context.Context, snap domain.Snapshot) (delivery.Ack, error) {
	ack, err := a.sender.Send(ctx, a.cfg.GatewayURL, snap, delivery.Bearer(a.cfg.Token))
	if err != nil {
		return delivery.Ack{}, err
	}
	a.logger.Info("snapshot delivered", "task_id", snap.TaskID, "path", snap.FilePath, "ack", ack.AcknowledgementID)
	return ack, nil
}

func (a *Agent) reportFailure(path string, err error) {
	attrs := []any{"path", path, "error", err}
	var de *delivery.DeliveryError
	if errors.As(err, &de) {
		attrs = append(attrs, "status", de.StatusCode)
	}
	a.logger.Warn("snapshot delivery failed", attrs...)
	a.notifier.Notify(LevelError, describeFailure(filepath.Base(path), err))
}

// workspaceRoot returns the longest root containing path.
func (a *Agent) workspaceRoot(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrOutsideWorkspace
	}
	p := absPath(path)
	best := ""
	for _, root := range a.roots {
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if len(root) > len(best) {
			best = root
		}
	}
	if best == "" {
		return "", ErrOutsideWorkspace
	}
	return best, nil
}

func (a *Agent) queueKey(path string) string {
	return absPath(path)
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return filepath.Clean(abs)
	}
	return filepath.Clean(path)
}

func lineCount(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}
