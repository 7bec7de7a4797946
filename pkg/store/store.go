package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"igrelay/pkg/logger"
	"igrelay/pkg/models"
)

// mediaPatterns matches downloaded media files. The scraper names files
// <shortcode>.<seq>.<ext>, so a media name always carries two periods;
// the per-account metadata record (<username>.json) never matches.
var mediaPatterns = []string{"*?.*.jpg", "*?.*.mp4"}

// Store manages the per-account media directories under the temp root.
// It is the only component allowed to delete files there.
type Store struct {
	baseDir string
	logger  logger.Logger
}

// New creates a store rooted at baseDir, creating the directory if needed.
func New(baseDir string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &Store{baseDir: baseDir, logger: log}, nil
}

// BaseDir returns the temp root directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// AccountDir returns the media directory for a tracked account.
func (s *Store) AccountDir(username string) string {
	return filepath.Join(s.baseDir, username)
}

// MetadataPath returns the path of an account's metadata record.
func (s *Store) MetadataPath(username string) string {
	return filepath.Join(s.AccountDir(username), username+".json")
}

// ListMediaFiles returns the account's media files sorted by modification
// time, newest first. A missing directory yields an empty listing.
func (s *Store) ListMediaFiles(username string) ([]models.MediaFile, error) {
	dir := s.AccountDir(username)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read account directory: %w", err)
	}

	var files []models.MediaFile
	for _, entry := range entries {
		if entry.IsDir() || !isMediaName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, models.NewMediaFile(filepath.Join(dir, entry.Name()), info.ModTime()))
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})

	return files, nil
}

// Latest returns the most recently modified media file for the account, or
// nil when the directory is empty or absent. Captured before a scrape, the
// result is the watermark bounding the next new-content scan.
func (s *Store) Latest(username string) (*models.MediaFile, error) {
	files, err := s.ListMediaFiles(username)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	latest := files[0]
	return &latest, nil
}

// Cleanup deletes every file in the account directory except the most
// recent media file, preserving the watermark for the next cycle. With
// fullReset nothing is preserved. Cleanup is best-effort: filesystem
// errors are logged as warnings and never propagated.
func (s *Store) Cleanup(username string, fullReset bool) {
	dir := s.AccountDir(username)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return
	}

	keep := ""
	if !fullReset {
		latest, err := s.Latest(username)
		if err != nil {
			s.logger.WarnWithFields("cleanup: failed to determine file to keep", map[string]interface{}{
				"username": username,
				"error":    err.Error(),
			})
			return
		}
		if latest != nil {
			keep = latest.Path
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.WarnWithFields("cleanup: failed to read account directory", map[string]interface{}{
			"username": username,
			"error":    err.Error(),
		})
		return
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if path == keep {
			continue
		}
		if err := os.Remove(path); err != nil {
			s.logger.WarnWithFields("cleanup: failed to remove file", map[string]interface{}{
				"username": username,
				"path":     path,
				"error":    err.Error(),
			})
		}
	}
}

// isMediaName reports whether a file name looks like downloaded media.
func isMediaName(name string) bool {
	for _, pattern := range mediaPatterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
