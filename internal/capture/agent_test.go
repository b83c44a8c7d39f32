package capture

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prathameshworks247/AGILITY/internal/config"
	"github.com/Prathameshworks247/AGILITY/internal/delivery"
	"github.com/Prathameshworks247/AGILITY/internal/domain"
	"github.com/Prathameshworks247/AGILITY/internal/vcs"
)

type fakeDiff struct {
	branch *string
	diff   *string
}

func (f fakeDiff) Diff(ctx context.Context, root, path string) vcs.DiffResult {
	return vcs.DiffResult{Branch: f.branch, Diff: f.diff}
}

type sent struct {
	endpoint   string
	snapshot   domain.Snapshot
	credential string
}

type fakeSender struct {
	mu    sync.Mutex
	calls []sent
	err   error
	gate  chan struct{}
	delay time.Duration
}

func (f *fakeSender) Send(ctx context.Context, endpoint string, payload any, credential string) (delivery.Ack, error) {
	if f.gate != nil {
		<-f.gate
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sent{endpoint: endpoint, snapshot: payload.(domain.Snapshot), credential: credential})
	if f.err != nil {
		return delivery.Ack{}, f.err
	}
	return delivery.Ack{AcknowledgementID: "ack"}, nil
}

func (f *fakeSender) sent() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.calls...)
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
	lvls []Level
}

func (r *recordingNotifier) Notify(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lvls = append(r.lvls, level)
	r.msgs = append(r.msgs, message)
}

func (r *recordingNotifier) snapshot() ([]Level, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Level(nil), r.lvls...), append([]string(nil), r.msgs...)
}

func strPtr(s string) *string { return &s }

type fixture struct {
	dir      string
	agent    *Agent
	sender   *fakeSender
	notifier *recordingNotifier
}

func newFixture(t *testing.T, mutate func(*config.Capture)) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Token = "session-token"
	cfg.DeveloperID = "alice"
	cfg.DefaultTaskID = "task-1"
	if mutate != nil {
		mutate(cfg)
	}
	sender := &fakeSender{}
	notifier := &recordingNotifier{}
	agent, err := NewAgent(Options{
		Config:    cfg,
		Workspace: dir,
		State:     &MemoryStateStore{},
		Diff:      fakeDiff{branch: strPtr("main"), diff: strPtr("+x")},
		Sender:    sender,
		Notifier:  notifier,
		Now:       func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return &fixture{dir: dir, agent: agent, sender: sender, notifier: notifier}
}

func (f *fixture) doc(name, content string) Document {
	return Document{Path: filepath.Join(f.dir, name), LanguageID: "go", Content: content}
}

func TestNewAgentSeedsStateFromConfig(t *testing.T) {
	f := newFixture(t, nil)
	st := f.agent.Status()
	require.NotNil(t, st.ActiveTaskID)
	assert.Equal(t, "task-1", *st.ActiveTaskID)
	assert.True(t, st.AutoTrack)

	off := false
	g := newFixture(t, func(c *config.Capture) {
		c.DefaultTaskID = ""
		c.AutoTrack = &off
	})
	st = g.agent.Status()
	assert.Nil(t, st.ActiveTaskID)
	assert.False(t, st.AutoTrack)
}

func TestOnFileSavedSkips(t *testing.T) {
	f := newFixture(t, nil)

	err := f.agent.OnFileSaved(Document{Path: f.doc("a.rb", "").Path, LanguageID: "ruby", Content: "x"})
	assert.ErrorIs(t, err, ErrLanguageNotTracked)

	err = f.agent.OnFileSaved(Document{Path: filepath.Join(t.TempDir(), "a.go"), LanguageID: "go", Content: "x"})
	assert.ErrorIs(t, err, ErrOutsideWorkspace)

	require.NoError(t, f.agent.SetActiveTask(nil))
	err = f.agent.OnFileSaved(f.doc("a.go", "x"))
	assert.ErrorIs(t, err, ErrNoActiveTask)
	assert.True(t, IsSkip(err))

	require.NoError(t, f.agent.SetActiveTask(strPtr("task-2")))
	on, err := f.agent.ToggleAutoTrack()
	require.NoError(t, err)
	require.False(t, on)
	err = f.agent.OnFileSaved(f.doc("a.go", "x"))
	assert.ErrorIs(t, err, ErrAutoTrackDisabled)

	f.agent.Wait()
	assert.Empty(t, f.sender.sent())
}

func TestOnFileSavedSendsSnapshot(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.agent.OnFileSaved(f.doc("pkg/main.go", "package main\n\nfunc main() {}")))
	f.agent.Wait()

	calls := f.sender.sent()
	require.Len(t, calls, 1)
	call := calls[0]
	assert.Equal(t, config.DefaultGatewayURL, call.endpoint)
	assert.Equal(t, "Bearer session-token", call.credential)
	snap := call.snapshot
	assert.Equal(t, "task-1", snap.TaskID)
	assert.Equal(t, "alice", snap.DeveloperID)
	assert.Equal(t, "go", snap.LanguageID)
	assert.Equal(t, "main", *snap.Branch)
	assert.Equal(t, "+x", *snap.Diff)
	assert.Equal(t, "2026-03-01T10:00:00Z", snap.Metadata["capturedAt"])
	assert.Equal(t, "pkg/main.go", snap.Metadata["relativePath"])
	assert.Equal(t, 3, snap.Metadata["lineCount"])
}

func TestBuildSnapshotToleratesMissingDiff(t *testing.T) {
	f := newFixture(t, nil)
	f.agent.diff = fakeDiff{}
	snap, err := f.agent.BuildSnapshot(context.Background(), f.doc("a.go", "x"), "task-9")
	require.NoError(t, err)
	assert.Equal(t, "task-9", snap.TaskID)
	assert.Nil(t, snap.Branch)
	assert.Nil(t, snap.Diff)
	assert.Equal(t, "x", snap.Content)
}

func TestBuildSnapshotPicksLongestRoot(t *testing.T) {
	base := t.TempDir()
	inner := filepath.Join(base, "services", "api")
	f := newFixture(t, func(c *config.Capture) {
		c.WorkspaceRoots = []string{base, inner}
	})
	snap, err := f.agent.BuildSnapshot(context.Background(), Document{Path: filepath.Join(inner, "h.go"), LanguageID: "go", Content: "x"}, "t")
	require.NoError(t, err)
	assert.Equal(t, inner, snap.Metadata["workspaceRoot"])
	assert.Equal(t, "h.go", snap.Metadata["relativePath"])
}

func TestSameFileSendsKeepSaveOrder(t *testing.T) {
	f := newFixture(t, nil)
	f.sender.delay = 5 * time.Millisecond
	contents := []string{"v1", "v2", "v3", "v4", "v5"}
	for _, c := range contents {
		require.NoError(t, f.agent.OnFileSaved(f.doc("a.go", c)))
	}
	f.agent.Wait()

	calls := f.sender.sent()
	require.Len(t, calls, len(contents))
	for i, c := range contents {
		assert.Equal(t, c, calls[i].snapshot.Content)
	}
}

func TestOnFileSavedDoesNotWaitForDelivery(t *testing.T) {
	f := newFixture(t, nil)
	f.sender.gate = make(chan struct{})

	done := make(chan struct{})
	go func() {
		_ = f.agent.OnFileSaved(f.doc("a.go", "first"))
		_ = f.agent.OnFileSaved(f.doc("a.go", "second"))
		_ = f.agent.OnFileSaved(f.doc("b.go", "other"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnFileSaved blocked on delivery")
	}
	close(f.sender.gate)
	f.agent.Wait()
	assert.Len(t, f.sender.sent(), 3)
}

func TestDeliveryFailureIsNotifiedNotReturned(t *testing.T) {
	f := newFixture(t, nil)
	f.sender.err = &delivery.DeliveryError{StatusCode: http.StatusForbidden, Body: `{"error":"not a member"}`}

	require.NoError(t, f.agent.OnFileSaved(f.doc("a.go", "x")))
	f.agent.Wait()

	lvls, msgs := f.notifier.snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, LevelError, lvls[0])
	assert.Contains(t, msgs[0], "403")
	assert.Contains(t, msgs[0], "not a member")
}

func TestSendManualSnapshot(t *testing.T) {
	f := newFixture(t, func(c *config.Capture) { c.DefaultTaskID = "" })

	_, err := f.agent.SendManualSnapshot(context.Background(), f.doc("a.go", "x"))
	assert.ErrorIs(t, err, ErrNoActiveTask)

	require.NoError(t, f.agent.SetActiveTask(strPtr(" task-7 ")))
	// manual sends ignore the language allow-list and auto-track
	_, err = f.agent.ToggleAutoTrack()
	require.NoError(t, err)
	ack, err := f.agent.SendManualSnapshot(context.Background(), Document{Path: f.doc("a.rb", "").Path, LanguageID: "ruby", Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ack", ack.AcknowledgementID)
	assert.Equal(t, "task-7", f.sender.sent()[0].snapshot.TaskID)

	f.sender.err = &delivery.TransportError{Endpoint: "http://gw", Err: errors.New("connection refused")}
	_, err = f.agent.SendManualSnapshot(context.Background(), f.doc("a.go", "x"))
	var te *delivery.TransportError
	assert.True(t, errors.As(err, &te))
	lvls, msgs := f.notifier.snapshot()
	assert.Equal(t, LevelError, lvls[len(lvls)-1])
	assert.Contains(t, msgs[len(msgs)-1], "connection refused")
}

func TestFileStateStorePersistsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DefaultTaskID = "task-1"
	newAgent := func() *Agent {
		a, err := NewAgent(Options{Config: cfg, Workspace: dir, State: NewFileStateStore(dir), Diff: fakeDiff{}, Sender: &fakeSender{}})
		require.NoError(t, err)
		return a
	}

	a := newAgent()
	require.NoError(t, a.SetActiveTask(strPtr("task-42")))
	_, err := a.ToggleAutoTrack()
	require.NoError(t, err)

	b := newAgent()
	st := b.Status()
	require.NotNil(t, st.ActiveTaskID)
	assert.Equal(t, "task-42", *st.ActiveTaskID)
	assert.False(t, st.AutoTrack)

	require.NoError(t, b.SetActiveTask(nil))
	st = newAgent().Status()
	assert.Nil(t, st.ActiveTaskID)

	_, err = os.Stat(filepath.Join(dir, ".agility", "state.yml"))
	assert.NoError(t, err)
}

func TestAgentsInDifferentWorkspacesAreIndependent(t *testing.T) {
	a := newFixture(t, nil)
	b := newFixture(t, nil)
	require.NoError(t, a.agent.SetActiveTask(strPtr("task-a")))
	assert.Equal(t, "task-1", *b.agent.Status().ActiveTaskID)
}

func TestRunningAgentSeesStateWrittenByAnotherProcess(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	sender := &fakeSender{}
	watching, err := NewAgent(Options{Config: cfg, Workspace: dir, State: NewFileStateStore(dir), Diff: fakeDiff{}, Sender: sender})
	require.NoError(t, err)
	cli, err := NewAgent(Options{Config: cfg, Workspace: dir, State: NewFileStateStore(dir), Diff: fakeDiff{}, Sender: &fakeSender{}})
	require.NoError(t, err)

	doc := Document{Path: filepath.Join(dir, "a.go"), LanguageID: "go", Content: "x"}
	assert.ErrorIs(t, watching.OnFileSaved(doc), ErrNoActiveTask)

	require.NoError(t, cli.SetActiveTask(strPtr("task-42")))
	require.NoError(t, watching.OnFileSaved(doc))
	watching.Wait()
	calls := sender.sent()
	require.Len(t, calls, 1)
	assert.Equal(t, "task-42", calls[0].snapshot.TaskID)

	on, err := cli.ToggleAutoTrack()
	require.NoError(t, err)
	require.False(t, on)
	assert.ErrorIs(t, watching.OnFileSaved(doc), ErrAutoTrackDisabled)

	// toggling from the watching agent starts from what the CLI wrote
	on, err = watching.ToggleAutoTrack()
	require.NoError(t, err)
	assert.True(t, on)
}

type countingDiff struct {
	mu    sync.Mutex
	calls int
}

func (c *countingDiff) Diff(ctx context.Context, root, path string) vcs.DiffResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	d := fmt.Sprintf("diff-%d", c.calls)
	return vcs.DiffResult{Diff: &d}
}

func (c *countingDiff) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func TestSnapshotContextIsTakenAtSaveTime(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DefaultTaskID = "task-1"
	diff := &countingDiff{}
	sender := &fakeSender{gate: make(chan struct{})}
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	agent, err := NewAgent(Options{Config: cfg, Workspace: dir, Diff: diff, Sender: sender, Now: clock.Now})
	require.NoError(t, err)

	path := filepath.Join(dir, "a.go")
	require.NoError(t, agent.OnFileSaved(Document{Path: path, LanguageID: "go", Content: "v1"}))
	require.NoError(t, agent.OnFileSaved(Document{Path: path, LanguageID: "go", Content: "v2"}))

	// both diffs are read while the first delivery is still held up
	require.Eventually(t, func() bool { return diff.count() == 2 }, time.Second, 5*time.Millisecond)

	clock.Set(time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC))
	close(sender.gate)
	agent.Wait()

	calls := sender.sent()
	require.Len(t, calls, 2)
	for i, want := range []string{"v1", "v2"} {
		snap := calls[i].snapshot
		assert.Equal(t, want, snap.Content)
		assert.Equal(t, "2026-03-01T10:00:00Z", snap.Metadata["capturedAt"])
		require.NotNil(t, snap.Diff)
		assert.Equal(t, fmt.Sprintf("diff-%d", i+1), *snap.Diff)
	}
}
