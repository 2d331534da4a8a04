package control

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestLoadOrCreateNodeUUID_GeneratesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "node_uuid")

	id, err := LoadOrCreateNodeUUID(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected a valid uuid, got %q", id)
	}

	// Second load returns the same identity.
	again, err := LoadOrCreateNodeUUID(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again != id {
		t.Errorf("expected stable identity, got %q then %q", id, again)
	}
}

func TestLoadOrCreateNodeUUID_RejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node_uuid")
	if err := os.WriteFile(path, []byte("not-a-uuid\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadOrCreateNodeUUID(path); err == nil {
		t.Fatal("expected an error for a corrupt identity file")
	}
}
