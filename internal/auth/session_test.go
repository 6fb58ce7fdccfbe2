package auth

import (
	"testing"
	"time"

	"github.com/tgarchive/viewer/internal/model"
)

func TestSessionStoreCreateAndValidate(t *testing.T) {
	store := NewSessionStore(time.Hour, 10)

	sess, err := store.Create("alice", model.RoleViewer, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.Token == "" {
		t.Fatal("expected non-empty token")
	}

	got, ok := store.Validate(sess.Token)
	if !ok {
		t.Fatal("expected session to validate")
	}
	if got.Username != "alice" {
		t.Errorf("Username = %q, want alice", got.Username)
	}
}

func TestSessionStoreExpiry(t *testing.T) {
	store := NewSessionStore(time.Millisecond, 10)

	sess, err := store.Create("bob", model.RoleViewer, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	if _, ok := store.Validate(sess.Token); ok {
		t.Error("expected expired session to be rejected")
	}
	if _, ok := store.byToken[sess.Token]; ok {
		t.Error("expired session should be purged from byToken on Validate")
	}
}

func TestSessionStoreEvictsOldestOnQuota(t *testing.T) {
	store := NewSessionStore(time.Hour, 2)

	first, err := store.Create("carol", model.RoleViewer, nil)
	if err != nil {
		t.Fatalf("Create first: %v", err)
	}
	if _, err := store.Create("carol", model.RoleViewer, nil); err != nil {
		t.Fatalf("Create second: %v", err)
	}
	third, err := store.Create("carol", model.RoleViewer, nil)
	if err != nil {
		t.Fatalf("Create third: %v", err)
	}

	if store.Count("carol") != 2 {
		t.Errorf("Count = %d, want 2", store.Count("carol"))
	}
	if _, ok := store.Validate(first.Token); ok {
		t.Error("oldest session should have been evicted")
	}
	if _, ok := store.Validate(third.Token); !ok {
		t.Error("newest session should still be valid")
	}
}

func TestSessionStoreDeleteUser(t *testing.T) {
	store := NewSessionStore(time.Hour, 10)

	a, _ := store.Create("dave", model.RoleViewer, nil)
	b, _ := store.Create("dave", model.RoleViewer, nil)

	removed := store.DeleteUser("dave")
	if removed != 2 {
		t.Errorf("DeleteUser removed = %d, want 2", removed)
	}
	if _, ok := store.Validate(a.Token); ok {
		t.Error("session a should be gone")
	}
	if _, ok := store.Validate(b.Token); ok {
		t.Error("session b should be gone")
	}
}

func TestSessionStoreSweepExpired(t *testing.T) {
	store := NewSessionStore(time.Millisecond, 10)

	_, _ = store.Create("erin", model.RoleViewer, nil)
	time.Sleep(5 * time.Millisecond)

	if n := store.SweepExpired(); n != 1 {
		t.Errorf("SweepExpired removed = %d, want 1", n)
	}
	if store.Count("erin") != 0 {
		t.Error("expected erin to have no sessions left")
	}
}
