package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/thereceipt/receipt-studio/internal/draft"
)

func TestManager_Lifecycle(t *testing.T) {
	deps, drafts := testDeps(t)
	m := NewManager(deps, ManagerConfig{TTL: time.Minute, Debounce: time.Hour})
	defer m.Shutdown()

	s, err := m.Open(context.Background(), Options{ClientID: "c1", TemplateID: "walgreens"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.ID() == "" || m.Len() != 1 {
		t.Fatalf("Expected a registered session, got id %q len %d", s.ID(), m.Len())
	}

	got, err := m.Get(s.ID())
	if err != nil || got != s {
		t.Fatalf("Get: %v", err)
	}

	s.Rename("Pending")
	if err := m.Close(s.ID()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := m.Get(s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}

	entry, err := drafts.Load(context.Background(), draft.Key{ClientID: "c1", TemplateID: "walgreens"})
	if err != nil {
		t.Fatalf("Expected pending draft flushed on close: %v", err)
	}
	doc, _ := entry.Decode()
	if doc.Name != "Pending" {
		t.Errorf("Expected flushed draft, got %q", doc.Name)
	}
}

func TestManager_UnknownTemplate(t *testing.T) {
	deps, _ := testDeps(t)
	m := NewManager(deps, ManagerConfig{})
	defer m.Shutdown()

	if _, err := m.Open(context.Background(), Options{ClientID: "c1", TemplateID: "nope"}); err == nil {
		t.Error("Expected error for unknown template")
	}
	if m.Len() != 0 {
		t.Errorf("Expected no sessions, got %d", m.Len())
	}
}

func TestManager_SweepEvictsIdle(t *testing.T) {
	deps, _ := testDeps(t)
	m := NewManager(deps, ManagerConfig{TTL: time.Minute})
	defer m.Shutdown()

	old, _ := m.Open(context.Background(), Options{ClientID: "c1", TemplateID: "walgreens"})
	m.Open(context.Background(), Options{ClientID: "c2", TemplateID: "walgreens"})

	old.mu.Lock()
	old.lastUsed = time.Now().Add(-2 * time.Minute)
	old.mu.Unlock()

	if n := m.Sweep(time.Now()); n != 1 {
		t.Fatalf("Expected 1 eviction, got %d", n)
	}
	if _, err := m.Get(old.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Error("Expected idle session to be gone")
	}
	if m.Len() != 1 {
		t.Errorf("Expected 1 session left, got %d", m.Len())
	}
}

func TestManager_StartStop(t *testing.T) {
	deps, _ := testDeps(t)
	m := NewManager(deps, ManagerConfig{TTL: 10 * time.Millisecond, SweepInterval: 5 * time.Millisecond})
	m.Start()

	m.Open(context.Background(), Options{ClientID: "c1", TemplateID: "walgreens"})
	time.Sleep(100 * time.Millisecond)

	if m.Len() != 0 {
		t.Errorf("Expected the sweeper to evict the idle session, got %d", m.Len())
	}
	m.Shutdown()
}
