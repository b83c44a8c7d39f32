package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const stateFileName = "state.yml"

// State is the workspace-local binding: the task being worked on and the
// auto-track switch.
type State struct {
	ActiveTaskID *string `yaml:"active_task_id,omitempty"`
	AutoTrack    bool    `yaml:"auto_track"`
}

func (s State) clone() State {
	if s.ActiveTaskID != nil {
		id := *s.ActiveTaskID
		s.ActiveTaskID = &id
	}
	return s
}

// StateStore persists State for one workspace. Load reports found=false
// when nothing was saved yet.
type StateStore interface {
	Load() (State, bool, error)
	Save(State) error
}

// FileStateStore keeps State in a YAML file.
type FileStateStore struct {
	Path string
}

// NewFileStateStore stores state under the workspace's .agility directory.
func NewFileStateStore(workspace string) *FileStateStore {
	if workspace == "" {
		workspace = "."
	}
	return &FileStateStore{Path: filepath.Join(workspace, ".agility", stateFileName)}
}

func (f *FileStateStore) Load() (State, bool, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{}, false, nil
		}
		return State{}, false, err
	}
	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return State{}, false, fmt.Errorf("parse %s: %w", f.Path, err)
	}
	return st, true, nil
}

// Save replaces the file atomically.
func (f *FileStateStore) Save(st State) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(st)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.Path), stateFileName+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.Path)
}

// MemoryStateStore keeps State in memory, one per agent.
type MemoryStateStore struct {
	mu    sync.Mutex
	state *State
}

func (m *MemoryStateStore) Load() (State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return State{}, false, nil
	}
	return m.state.clone(), true, nil
}

func (m *MemoryStateStore) Save(st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st = st.clone()
	m.state = &st
	return nil
}
