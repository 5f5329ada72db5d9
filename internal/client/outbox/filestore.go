package outbox

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/okian/rally/internal/domain/model"
)

// FileStore persists outbox entries as JSON lines in a single file. Appends
// are O(1); removals rewrite the file without the removed entry. The file is
// loaded once at construction so entries survive process restarts.
type FileStore struct {
	mu      sync.Mutex
	path    string
	entries []model.OutboxEntry
}

// NewFileStore opens or creates the outbox file at path and loads any
// pending entries from a previous run.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("outbox: empty file path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("outbox: create dir: %w", err)
	}

	fs := &FileStore{path: path}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Append durably records an entry at the tail.
func (fs *FileStore) Append(entry model.OutboxEntry) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("outbox: marshal entry: %w", err)
	}

	f, err := os.OpenFile(fs.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("outbox: open: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("outbox: write: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("outbox: sync: %w", err)
	}

	fs.entries = append(fs.entries, entry)
	return nil
}

// RemoveByID drops the entry for the given client event ID and compacts the
// backing file.
func (fs *FileStore) RemoveByID(eventID string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	kept := fs.entries[:0]
	removed := false
	for _, e := range fs.entries {
		if e.Event.ClientEventID == eventID {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	if !removed {
		return nil
	}
	fs.entries = kept
	return fs.rewrite()
}

// ListAll returns pending entries in enqueue order.
func (fs *FileStore) ListAll() ([]model.OutboxEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	out := make([]model.OutboxEntry, len(fs.entries))
	copy(out, fs.entries)
	return out, nil
}

func (fs *FileStore) load() error {
	f, err := os.Open(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("outbox: open: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry model.OutboxEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			// A torn tail line from an interrupted write is dropped.
			continue
		}
		fs.entries = append(fs.entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("outbox: read: %w", err)
	}
	return nil
}

// rewrite compacts the file to the current entry set via a temp-file swap.
func (fs *FileStore) rewrite() error {
	tmp := fs.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("outbox: open tmp: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, e := range fs.entries {
		line, err := json.Marshal(e)
		if err != nil {
			f.Close()
			return fmt.Errorf("outbox: marshal entry: %w", err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			f.Close()
			return fmt.Errorf("outbox: write tmp: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("outbox: flush tmp: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("outbox: sync tmp: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("outbox: close tmp: %w", err)
	}

	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("outbox: swap: %w", err)
	}
	return nil
}

// MemStore keeps outbox entries in memory only. Useful for tests and for
// clients that do not need durability.
type MemStore struct {
	mu      sync.Mutex
	entries []model.OutboxEntry
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Append records an entry at the tail.
func (ms *MemStore) Append(entry model.OutboxEntry) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.entries = append(ms.entries, entry)
	return nil
}

// RemoveByID drops the entry for the given client event ID.
func (ms *MemStore) RemoveByID(eventID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	kept := ms.entries[:0]
	for _, e := range ms.entries {
		if e.Event.ClientEventID != eventID {
			kept = append(kept, e)
		}
	}
	ms.entries = kept
	return nil
}

// ListAll returns pending entries in enqueue order.
func (ms *MemStore) ListAll() ([]model.OutboxEntry, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	out := make([]model.OutboxEntry, len(ms.entries))
	copy(out, ms.entries)
	return out, nil
}
