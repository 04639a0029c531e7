package session

import (
	"testing"
	"time"
)

func TestStoreCreateGet(t *testing.T) {
	store := NewStore()

	s := store.Create("s1")
	if s == nil {
		t.Fatal("Create returned nil")
	}
	if s.ID() != "s1" {
		t.Errorf("session id = %q, want s1", s.ID())
	}

	if store.Get("s1") != s {
		t.Error("Get should return the created session")
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestStoreCreateEmptyIDFailsClosed(t *testing.T) {
	store := NewStore()

	if s := store.Create(""); s != nil {
		t.Error("Create(\"\") should return nil")
	}
	if store.Len() != 0 {
		t.Error("Create(\"\") should not register a session")
	}
}

func TestStoreCreateReplacesExisting(t *testing.T) {
	store := NewStore()

	first := store.Create("s1")
	first.AppendMessage(RoleUser, "old state", time.Now())

	second := store.Create("s1")
	if second == first {
		t.Error("Create with same id should return a fresh session")
	}
	if len(store.Get("s1").History(0)) != 0 {
		t.Error("re-created session should have empty history")
	}
}

func TestStoreDelete(t *testing.T) {
	store := NewStore()
	s := store.Create("s1")

	store.Delete("s1")

	if store.Get("s1") != nil {
		t.Error("Get after Delete should return nil")
	}
	if s.Active() {
		t.Error("deleted session should be closed")
	}

	// Deleting an absent id is a no-op, not a panic.
	store.Delete("nope")
}
