package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Manager persists session snapshots as jsonl files: one metadata line
// followed by one line per message. Snapshots are taken at defined
// checkpoints (session start, terminal transition); the on-disk layout
// beyond that is the storage collaborator's concern.
type Manager struct {
	dir string
	mu  sync.Mutex
}

// NewManager creates a snapshot manager rooted at dir.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return &Manager{dir: dir}, nil
}

type snapshotMeta struct {
	Type      string `json:"_type"`
	ID        string `json:"id"`
	Goal      string `json:"goal"`
	State     string `json:"state"`
	Reason    string `json:"reason,omitempty"`
	Iteration int    `json:"iteration"`
	StartedAt string `json:"started_at"`
	SavedAt   string `json:"saved_at"`
}

// Save writes a snapshot of the session.
func (m *Manager) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.path(s.ID())
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer file.Close()

	meta := snapshotMeta{
		Type:      "metadata",
		ID:        s.ID(),
		Goal:      s.Goal(),
		State:     s.State(),
		Reason:    s.TerminalReason(),
		Iteration: s.Iteration(),
		StartedAt: s.StartedAt().Format(time.RFC3339),
		SavedAt:   time.Now().Format(time.RFC3339),
	}
	enc := json.NewEncoder(file)
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("write snapshot metadata: %w", err)
	}
	for _, msg := range s.History(0) {
		if err := enc.Encode(msg); err != nil {
			return fmt.Errorf("write snapshot message: %w", err)
		}
	}
	return nil
}

// Info describes one stored snapshot.
type Info struct {
	ID        string
	Goal      string
	State     string
	Reason    string
	Iteration int
	Path      string
}

// List returns metadata for all stored snapshots.
func (m *Manager) List() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Info
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return out
	}
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		path := filepath.Join(m.dir, entry.Name())
		info := Info{
			ID:   strings.TrimSuffix(entry.Name(), ".jsonl"),
			Path: path,
		}
		if meta, err := readMeta(path); err == nil {
			info.Goal = meta.Goal
			info.State = meta.State
			info.Reason = meta.Reason
			info.Iteration = meta.Iteration
		}
		out = append(out, info)
	}
	return out
}

// Load reconstructs a session's messages and metadata from disk.
func (m *Manager) Load(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.Open(m.path(id))
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	dec := json.NewDecoder(file)
	var meta snapshotMeta
	if err := dec.Decode(&meta); err != nil {
		return nil, fmt.Errorf("read snapshot metadata: %w", err)
	}

	s := New(meta.Goal)
	s.mu.Lock()
	s.id = meta.ID
	s.state = meta.State
	s.reason = meta.Reason
	s.iteration = meta.Iteration
	if t, err := time.Parse(time.RFC3339, meta.StartedAt); err == nil {
		s.startedAt = t
	}
	s.mu.Unlock()

	for dec.More() {
		var msg Message
		if err := dec.Decode(&msg); err != nil {
			break
		}
		s.Append(msg)
	}
	return s, nil
}

func (m *Manager) path(id string) string {
	safe := strings.ReplaceAll(id, string(os.PathSeparator), "_")
	safe = strings.ReplaceAll(safe, "..", "_")
	return filepath.Join(m.dir, filepath.Base(safe)+".jsonl")
}

func readMeta(path string) (*snapshotMeta, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	var meta snapshotMeta
	if err := json.NewDecoder(file).Decode(&meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
