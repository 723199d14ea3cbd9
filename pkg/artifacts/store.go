// Package artifacts implements content-addressed, write-once storage for
// agent outputs under a session's artifact directory.
package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/maestro-ai/maestro/pkg/models"
)

// Store writes artifacts under {dataDir}/sessions/{session}/artifacts.
type Store struct {
	dataDir string
}

// NewStore creates an artifact store rooted at dataDir.
func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

func (s *Store) dir(sessionID string) string {
	return filepath.Join(s.dataDir, "sessions", sessionID, "artifacts")
}

// extensionFor maps a content type to a file extension.
func extensionFor(contentType string) string {
	switch contentType {
	case "text/markdown":
		return ".md"
	case "application/json":
		return ".json"
	default:
		return ".txt"
	}
}

// Put writes the artifact atomically (rename-from-temp) and returns its
// reference. Overwriting an existing artifact is forbidden; each call gets a
// fresh generated id.
func (s *Store) Put(sessionID, label string, data []byte, contentType string) (*models.ArtifactRef, error) {
	dir := s.dir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact dir: %w", err)
	}

	sum := sha256.Sum256(data)
	name := uuid.NewString() + extensionFor(contentType)
	final := filepath.Join(dir, name)
	if _, err := os.Stat(final); err == nil {
		return nil, fmt.Errorf("artifact %s already exists", name)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to finalize artifact: %w", err)
	}

	return &models.ArtifactRef{
		Label:       label,
		URI:         filepath.Join("artifacts", name),
		Digest:      "sha256:" + hex.EncodeToString(sum[:]),
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
	}, nil
}

// Get reads an artifact by its session-relative URI.
func (s *Store) Get(sessionID, uri string) ([]byte, error) {
	path := filepath.Join(s.dataDir, "sessions", sessionID, filepath.Clean(uri))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", uri, err)
	}
	return data, nil
}

// DeleteSession removes the artifact directory for a session. Called only
// when the owning session is deleted.
func (s *Store) DeleteSession(sessionID string) error {
	return os.RemoveAll(s.dir(sessionID))
}
