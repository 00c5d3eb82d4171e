package checkoutflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PendingStore holds the one reference currently awaiting verification.
type PendingStore interface {
	Save(reference string) error
	// Load returns "" when nothing is pending.
	Load() (string, error)
	Clear() error
}

// MemoryStore keeps the pending reference in process memory.
type MemoryStore struct {
	mu  sync.Mutex
	ref string
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Save(reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ref = reference
	return nil
}

func (m *MemoryStore) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ref, nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ref = ""
	return nil
}

const pendingFileName = "pending_payment.json"

type pendingFile struct {
	Reference string    `json:"reference"`
	SavedAt   time.Time `json:"saved_at"`
}

// FileStore persists the pending reference as JSON so it survives restarts.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore stores state under dir; an empty dir uses the user config directory.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config dir: %w", err)
		}
		dir = filepath.Join(base, "contribute")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, pendingFileName)}, nil
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Save(reference string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	payload, err := json.Marshal(pendingFile{Reference: reference, SavedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write pending reference: %w", err)
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) Load() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read pending reference: %w", err)
	}
	var state pendingFile
	if err := json.Unmarshal(raw, &state); err != nil {
		return "", fmt.Errorf("decode pending reference: %w", err)
	}
	return state.Reference, nil
}

func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear pending reference: %w", err)
	}
	return nil
}
