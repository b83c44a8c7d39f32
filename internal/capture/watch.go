package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Prathameshworks247/AGILITY/internal/config"
)

// DefaultSettle is how long a path must stay quiet before its events count
// as one save. Editors often write, truncate and chmod for a single save.
const DefaultSettle = 150 * time.Millisecond

var ignoredDirs = map[string]bool{
	".git":         true,
	".agility":     true,
	"node_modules": true,
}

// Watcher turns file writes under the agent's workspace roots into
// OnFileSaved calls.
type Watcher struct {
	agent     *Agent
	languages config.ExtensionIndex
	settle    time.Duration
	watcher   *fsnotify.Watcher

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewWatcher watches every root of agent recursively.
func NewWatcher(agent *Agent, languages config.ExtensionIndex, settle time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	if languages == nil {
		languages = config.NewExtensionIndex(nil)
	}
	w := &Watcher{
		agent:     agent,
		languages: languages,
		settle:    settle,
		watcher:   fw,
		timers:    make(map[string]*time.Timer),
	}
	for _, root := range agent.Roots() {
		if err := w.watchRecursive(root); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && ignoredDirs[info.Name()] {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Run handles events until ctx is cancelled. Pending saves are dropped on
// return; call agent.Wait to drain sends already queued.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	defer w.stopTimers()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.agent.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
		return
	}
	if ignoredPath(event.Name) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Op.Has(fsnotify.Create) {
			_ = w.watchRecursive(event.Name)
		}
		return
	}
	w.schedule(event.Name)
}

// schedule restarts the settle timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.timers[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.saved(path)
	})
}

func (w *Watcher) saved(path string) {
	lang := w.languages.LanguageFor(path)
	if lang == "" {
		w.agent.logger.Debug("capture skipped", "path", path, "reason", "unknown extension")
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		w.agent.logger.Debug("capture skipped", "path", path, "reason", err.Error())
		return
	}
	_ = w.agent.OnFileSaved(Document{Path: path, LanguageID: lang, Content: string(data)})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

func ignoredPath(path string) bool {
	for dir := filepath.Dir(path); ; {
		if ignoredDirs[filepath.Base(dir)] {
			return true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}
