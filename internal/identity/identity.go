// Package identity manages the sender's stable per-host identifier: a
// 128-bit token rendered as 32 lowercase hex characters, created once on
// first run and never rotated.
package identity

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// dirPermissions matches the sender's other on-disk directories.
const dirPermissions = 0o755

// filePermissions matches the sender's other on-disk state files.
const filePermissions = 0o644

// GetOrCreateIdentity returns the sender's identity, creating one if path
// does not yet exist. The identity is 32 lowercase hex characters with no
// separators, generated from a cryptographically acceptable source when
// first created.
func GetOrCreateIdentity(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("identity: path is empty")
	}

	id, err := readIdentity(path)
	if err == nil {
		return id, nil
	}

	if !os.IsNotExist(err) {
		return "", fmt.Errorf("identity: reading %s: %w", path, err)
	}

	return createIdentity(path)
}

// readIdentity reads the first line of the identity file, trimmed of
// surrounding whitespace, and rejects it unless it is 32 characters long.
func readIdentity(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("identity: scanning %s: %w", path, err)
		}

		return "", fmt.Errorf("identity: %s is empty", path)
	}

	line := strings.TrimSpace(scanner.Text())
	if len(line) != 32 {
		return "", fmt.Errorf("identity: %s does not contain a 32-character identity", path)
	}

	return line, nil
}

// createIdentity generates a fresh 128-bit identifier from uuid's CSPRNG
// source, renders it as 32 lowercase hex characters, and persists it.
func createIdentity(path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return "", fmt.Errorf("identity: creating directory for %s: %w", path, err)
	}

	raw := uuid.New() // 16 random bytes from a CSPRNG; not rendered in UUID form.
	id := hex.EncodeToString(raw[:])

	if err := os.WriteFile(path, []byte(id+"\n"), filePermissions); err != nil {
		return "", fmt.Errorf("identity: writing %s: %w", path, err)
	}

	return id, nil
}
