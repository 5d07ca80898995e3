package session_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/echosysai/echosys-go/internal/session"
)

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	store, err := session.NewFileStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.SetToken("tok-123"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	if err := store.SetEmail("dev@example.com"); err != nil {
		t.Fatalf("set email: %v", err)
	}

	// A second store on the same path sees the persisted session, like a
	// page reload reading local storage.
	reopened, err := session.NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	token, ok := reopened.Token()
	if !ok || token != "tok-123" {
		t.Errorf("expected persisted token, got %q (ok=%v)", token, ok)
	}
	email, ok := reopened.Email()
	if !ok || email != "dev@example.com" {
		t.Errorf("expected persisted email, got %q (ok=%v)", email, ok)
	}
}

func TestFileStore_MissingFileIsEmptySession(t *testing.T) {
	store, err := session.NewFileStore(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, ok := store.Token(); ok {
		t.Error("expected no token in a fresh session")
	}
}

func TestFileStore_CorruptFileDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	store, err := session.NewFileStore(path)
	if err != nil {
		t.Fatalf("corrupt file must not be an error: %v", err)
	}
	if _, ok := store.Token(); ok {
		t.Error("expected empty session from corrupt file")
	}
}

func TestFileStore_ClearRemovesEverything(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	store, err := session.NewFileStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.SetToken("tok"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}

	reopened, err := session.NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	if _, ok := reopened.Token(); ok {
		t.Error("expected cleared session to persist as empty")
	}
	if _, ok := reopened.Email(); ok {
		t.Error("expected email cleared too")
	}
}

func TestMemoryStore_PendingIsTakeOnce(t *testing.T) {
	store := session.NewMemoryStore()

	store.SetPending([]byte(`{"name":"drafted project"}`))

	payload, ok := store.TakePending()
	if !ok || string(payload) != `{"name":"drafted project"}` {
		t.Fatalf("expected stashed payload back, got %q (ok=%v)", payload, ok)
	}
	if _, ok := store.TakePending(); ok {
		t.Error("expected pending payload to be consumed")
	}
}
