package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/catalog"
)

// LocalArtifactStore keeps export documents under a base directory, one
// subdirectory per content type
type LocalArtifactStore struct {
	baseDir string
	now     func() time.Time
	logger  *zap.Logger
}

var _ catalog.ArtifactStore = (*LocalArtifactStore)(nil)

// NewLocalArtifactStore creates a store rooted at baseDir; an empty baseDir
// uses the system temp directory
func NewLocalArtifactStore(baseDir string, logger *zap.Logger) *LocalArtifactStore {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalArtifactStore{baseDir: baseDir, now: time.Now, logger: logger}
}

// FileName returns the artifact name for a content type and connection at t.
// runID keeps runs that start within the same second apart; full and queued
// offer exports share a content type.
func FileName(contentType catalog.ContentType, connectionID int64, t time.Time, runID string) string {
	return fmt.Sprintf("ec_%d_%s_%d_%s.xml", connectionID, contentType, t.Unix(), runID)
}

// Create opens a new document for the content type and connection
func (s *LocalArtifactStore) Create(contentType catalog.ContentType, connectionID int64) (catalog.DocumentWriter, error) {
	dir := filepath.Join(s.baseDir, string(contentType))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	runID := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return NewXMLWriter(filepath.Join(dir, FileName(contentType, connectionID, s.now(), runID)))
}

// Remove deletes an artifact; a missing file is not an error
func (s *LocalArtifactStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Cleanup removes artifacts older than maxAge and returns how many were removed
func (s *LocalArtifactStore) Cleanup(maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge)
	removed := 0
	for _, ct := range []catalog.ContentType{catalog.ContentTypeCatalog, catalog.ContentTypeOfferUpdate} {
		dir := filepath.Join(s.baseDir, string(ct))
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return removed, err
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasPrefix(e.Name(), "ec_") {
				continue
			}
			info, err := e.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if err := s.Remove(path); err != nil {
				s.logger.Warn("Failed to remove export artifact.", zap.String("path", path), zap.Error(err))
				continue
			}
			removed++
		}
	}
	return removed, nil
}
