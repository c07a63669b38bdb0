package chatlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"agent-chat/pkg/types"
)

const (
	DefaultStorageFileName = ".agent-chat-chats.json"
)

// Storage persists the chat index as a JSON file
type Storage struct {
	filePath string
	mu       sync.RWMutex
	entries  map[string]*Entry
	now      func() time.Time
}

// indexFile is the JSON structure on disk
type indexFile struct {
	Chats map[string]*Entry `json:"chats"`
}

// NewStorage opens the index at filePath, defaulting to the home directory
func NewStorage(filePath string) (*Storage, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultStorageFileName)
	}

	s := &Storage{
		filePath: filePath,
		entries:  make(map[string]*Entry),
		now:      time.Now,
	}

	if err := s.load(); err != nil {
		// created on first save
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load chats: %w", err)
		}
	}

	return s, nil
}

func (s *Storage) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var index indexFile
	if err := json.Unmarshal(data, &index); err != nil {
		return fmt.Errorf("failed to unmarshal chats: %w", err)
	}

	s.entries = index.Chats
	if s.entries == nil {
		s.entries = make(map[string]*Entry)
	}
	return nil
}

// saveLocked writes the index; s.mu must be held
func (s *Storage) saveLocked() error {
	data, err := json.MarshalIndent(indexFile{Chats: s.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chats: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// write then rename so a crash never leaves a truncated index
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write chats: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Touch records an exchange with agentID. The agent's entry is created on
// first use; afterwards its count and timestamp are refreshed.
func (s *Storage) Touch(agentID string, messages []types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry := s.byAgentLocked(agentID)
	if entry == nil {
		entry = &Entry{
			ID:      uuid.New().String(),
			Agent:   agentID,
			Created: now,
		}
		s.entries[entry.ID] = entry
	}
	entry.Title = titleFor(messages)
	entry.MessageCount = len(messages)
	entry.LastUpdated = now

	return s.saveLocked()
}

func (s *Storage) byAgentLocked(agentID string) *Entry {
	for _, e := range s.entries {
		if e.Agent == agentID {
			return e
		}
	}
	return nil
}

// Get returns the entry with id
func (s *Storage) Get(id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.entries[id]
	if !exists {
		return nil, fmt.Errorf("chat '%s' not found", id)
	}
	copied := *entry
	return &copied, nil
}

// Delete removes the entry with id
func (s *Storage) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; !exists {
		return fmt.Errorf("chat '%s' not found", id)
	}
	delete(s.entries, id)
	return s.saveLocked()
}

// List returns all entries, most recently updated first
func (s *Storage) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LastUpdated.Equal(entries[j].LastUpdated) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].LastUpdated.After(entries[j].LastUpdated)
	})
	return entries
}

// Count returns the number of entries
func (s *Storage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// GetFilePath returns the storage file path
func (s *Storage) GetFilePath() string {
	return s.filePath
}
