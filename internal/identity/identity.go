// ABOUTME: Persistent device-scoped client identity
// ABOUTME: Generates a UUID once and reuses it across restarts
package identity

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const idFileName = "client-id"

// Load returns the persistent client ID stored under dir, generating
// and storing a new UUID on first run. The ID is immutable after
// creation; a corrupt file is replaced with a fresh identity.
func Load(dir string) (string, error) {
	path := filepath.Join(dir, idFileName)

	data, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if _, parseErr := uuid.Parse(id); parseErr == nil {
			return id, nil
		}
		log.Printf("Ignoring corrupt client id file %s", path)
	}

	id := uuid.New().String()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("store client id: %w", err)
	}
	log.Printf("Generated new client id %s", id)
	return id, nil
}
