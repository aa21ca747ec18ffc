package events

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// Sink receives diagnostic events. Callers treat it as fire-and-forget.
type Sink interface {
	// AddEvent records a single event
	AddEvent(ctx context.Context, event ClientEvent) error
}

// Store is a Sink that can also be read back and cleared
type Store interface {
	Sink

	// Events returns all recorded events, oldest first
	Events(ctx context.Context) ([]ClientEvent, error)

	// Clear removes all recorded events
	Clear(ctx context.Context) error
}

// memoryStore keeps events in process memory
type memoryStore struct {
	mu     sync.Mutex
	events []ClientEvent
}

// NewMemoryStore creates an in-memory event store
func NewMemoryStore() Store {
	return &memoryStore{}
}

func (m *memoryStore) AddEvent(_ context.Context, event ClientEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memoryStore) Events(_ context.Context) ([]ClientEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ClientEvent, len(m.events))
	copy(out, m.events)
	return out, nil
}

func (m *memoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
	return nil
}

// fileStore appends events as JSON lines to a file shared between processes
type fileStore struct {
	path string

	// mu serializes goroutines sharing lock; flock only excludes other processes
	mu   sync.Mutex
	lock *flock.Flock
}

// NewFileStore creates a file-backed event store.
// The file and its parent directory are created on first write.
func NewFileStore(path string) Store {
	return &fileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// AddEvent appends the event to the log file under an exclusive lock
func (f *fileStore) AddEvent(_ context.Context, event ClientEvent) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
		return fmt.Errorf("failed to create event log directory: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.ID, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock event log: %w", err)
	}
	defer func() {
		if err := f.lock.Unlock(); err != nil {
			slog.Warn("Failed to unlock event log", "path", f.path, "error", err)
		}
	}()

	// #nosec G304 -- path comes from configuration
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}

	_, writeErr := file.Write(append(data, '\n'))
	closeErr := file.Close()
	if writeErr != nil {
		return fmt.Errorf("failed to write event log: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close event log: %w", closeErr)
	}

	return nil
}

// Events reads every event from the log file.
// Returns an empty slice if the file doesn't exist yet. Corrupt lines are skipped.
func (f *fileStore) Events(_ context.Context) ([]ClientEvent, error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create event log directory: %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to lock event log: %w", err)
	}
	defer func() { _ = f.lock.Unlock() }()

	// #nosec G304 -- path comes from configuration
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []ClientEvent{}, nil
		}
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}

	result := []ClientEvent{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var event ClientEvent
		if err := json.Unmarshal(line, &event); err != nil {
			slog.Debug("Skipping corrupt event log line", "path", f.path, "error", err)
			continue
		}
		result = append(result, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan event log: %w", err)
	}

	return result, nil
}

// Clear truncates the log file
func (f *fileStore) Clear(_ context.Context) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
		return fmt.Errorf("failed to create event log directory: %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock event log: %w", err)
	}
	defer func() { _ = f.lock.Unlock() }()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear event log: %w", err)
	}
	return nil
}
