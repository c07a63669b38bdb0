package chatlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"agent-chat/pkg/types"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "chats.json"))
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	return s
}

func TestTouchCreatesThenUpdates(t *testing.T) {
	s := newTestStorage(t)
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return clock }

	msgs := []types.Message{
		types.AssistantMessage{Content: "hi"},
		types.UserMessage{Content: "  swap 1 ETH\nto USDC "},
	}
	if err := s.Touch("swap-agent", msgs); err != nil {
		t.Fatalf("touch: %v", err)
	}

	entries := s.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	first := entries[0]
	if first.Title != "swap 1 ETH to USDC" || first.MessageCount != 2 || first.ID == "" {
		t.Fatalf("unexpected entry %+v", first)
	}

	clock = clock.Add(time.Minute)
	msgs = append(msgs, types.AssistantMessage{Content: "quote ready"})
	if err := s.Touch("swap-agent", msgs); err != nil {
		t.Fatalf("touch again: %v", err)
	}
	if s.Count() != 1 {
		t.Fatalf("expected entry to be reused, got %d", s.Count())
	}
	updated, err := s.Get(first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if updated.MessageCount != 3 || !updated.LastUpdated.Equal(clock) || !updated.Created.Equal(first.Created) {
		t.Fatalf("unexpected update %+v", updated)
	}
}

func TestListNewestFirstAndPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chats.json")
	s, err := NewStorage(path)
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	if err := s.Touch("swap-agent", nil); err != nil {
		t.Fatalf("touch: %v", err)
	}
	clock = clock.Add(time.Hour)
	if err := s.Touch("functional-data-agent", []types.Message{types.UserMessage{Content: "tvl?"}}); err != nil {
		t.Fatalf("touch: %v", err)
	}

	reopened, err := NewStorage(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	entries := reopened.List()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Agent != "functional-data-agent" || entries[1].Title != "New chat" {
		t.Fatalf("unexpected order %+v", entries)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp file left behind")
	}
}

func TestDelete(t *testing.T) {
	s := newTestStorage(t)
	if err := s.Touch("swap-agent", nil); err != nil {
		t.Fatalf("touch: %v", err)
	}
	id := s.List()[0].ID

	if err := s.Delete(id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Count() != 0 {
		t.Fatal("entry not deleted")
	}
	if err := s.Delete(id); err == nil {
		t.Fatal("expected error deleting missing entry")
	}
}

func TestLongTitleIsShortened(t *testing.T) {
	title := titleFor([]types.Message{types.UserMessage{Content: strings.Repeat("a", 100)}})
	if len([]rune(title)) != maxTitleLength || !strings.HasSuffix(title, "...") {
		t.Fatalf("unexpected title %q", title)
	}
}

func TestCorruptIndexIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chats.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewStorage(path); err == nil {
		t.Fatal("expected error for corrupt index")
	}
}
