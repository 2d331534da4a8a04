package control

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LoadOrCreateNodeUUID returns the node's persisted identity, generating and
// persisting a fresh UUID on first run. The identity must stay stable across
// restarts or placement would accumulate orphaned provider records.
func LoadOrCreateNodeUUID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if _, parseErr := uuid.Parse(id); parseErr == nil {
			return id, nil
		}
		return "", fmt.Errorf("identity file %s holds an invalid uuid", path)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to read identity file: %w", err)
	}

	id := uuid.New().String()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create identity dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to write identity file: %w", err)
	}
	return id, nil
}
