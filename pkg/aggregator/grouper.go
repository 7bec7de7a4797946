package aggregator

import (
	"igrelay/pkg/logger"
	"igrelay/pkg/metadata"
	"igrelay/pkg/models"
	"igrelay/pkg/store"
)

// Grouper reconstructs logical media items from an account's directory.
// Files sharing a shortcode collapse into one item (an album), everything
// at or below the watermark is considered already forwarded.
type Grouper struct {
	store    *store.Store
	captions metadata.CaptionSource
	logger   logger.Logger
}

// New creates a grouper over the given store and caption source.
func New(st *store.Store, captions metadata.CaptionSource, log logger.Logger) *Grouper {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Grouper{store: st, captions: captions, logger: log}
}

// Group scans the account's media newest first, stopping at the watermark
// file when present, and partitions the files scanned into logical items
// keyed by shortcode. The returned items are ordered oldest first so
// delivery proceeds chronologically. An empty scan yields no items and no
// error.
//
// The scan is bounded only by the watermark; the scraper's per-cycle fetch
// limit never excludes files that already landed above it.
func (g *Grouper) Group(username string, watermark *models.MediaFile) ([]*models.MediaItem, error) {
	files, err := g.store.ListMediaFiles(username)
	if err != nil {
		return nil, err
	}

	var items []*models.MediaItem
	for _, file := range files {
		if watermark != nil && file.Path == watermark.Path {
			break
		}

		found := false
		for _, item := range items {
			if item.Shortcode == file.Shortcode {
				item.Files = append(item.Files, file)
				found = true
				break
			}
		}
		if !found {
			items = append(items, &models.MediaItem{
				Username:  username,
				Shortcode: file.Shortcode,
				Files:     []models.MediaFile{file},
			})
		}
	}

	if len(items) == 0 {
		return nil, nil
	}

	g.resolveCaptions(username, items)

	// The scan walked newest to oldest; deliver oldest first, and keep an
	// album's files in their original sequence.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	for _, item := range items {
		files := item.Files
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}

	g.logger.DebugWithFields("grouped new media", map[string]interface{}{
		"username": username,
		"items":    len(items),
	})

	return items, nil
}

// resolveCaptions fills in caption text from the account's metadata record.
// A missing record or entry leaves the caption empty; the caption source
// already logged the reason.
func (g *Grouper) resolveCaptions(username string, items []*models.MediaItem) {
	if g.captions == nil {
		return
	}
	for _, item := range items {
		if text, ok := g.captions.LookupCaption(username, item.Shortcode); ok {
			item.Caption = text
		}
	}
}
