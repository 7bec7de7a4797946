package metadata

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"igrelay/pkg/logger"
	"igrelay/pkg/store"
)

// CaptionSource resolves caption text for a post. Implementations own the
// translation from their native record format; callers only see shortcodes
// and text.
type CaptionSource interface {
	// LookupCaption returns the caption for a shortcode. ok is false when
	// the account's record is missing, unreadable, or has no entry for the
	// shortcode; that is never an error for the caller.
	LookupCaption(username, shortcode string) (string, bool)
}

// The scraper writes one JSON record per account. Only the first caption
// fragment of a post is used.
type record struct {
	GraphImages []graphImage `json:"GraphImages"`
}

type graphImage struct {
	Shortcode          string       `json:"shortcode"`
	EdgeMediaToCaption captionEdges `json:"edge_media_to_caption"`
}

type captionEdges struct {
	Edges []captionEdge `json:"edges"`
}

type captionEdge struct {
	Node captionNode `json:"node"`
}

type captionNode struct {
	Text string `json:"text"`
}

// FileSource implements CaptionSource over the per-account metadata records
// in the media store. Parsed records are cached until the file changes.
type FileSource struct {
	store  *store.Store
	logger logger.Logger

	mu    sync.Mutex
	cache map[string]*cachedRecord
}

type cachedRecord struct {
	modTime  time.Time
	captions map[string]string
}

// NewFileSource creates a caption source backed by the store's metadata files.
func NewFileSource(st *store.Store, log logger.Logger) *FileSource {
	if log == nil {
		log = logger.GetLogger()
	}
	return &FileSource{
		store:  st,
		logger: log,
		cache:  make(map[string]*cachedRecord),
	}
}

// LookupCaption implements CaptionSource. A missing or malformed record is
// logged as a warning and degrades to "no caption" for the whole account.
func (f *FileSource) LookupCaption(username, shortcode string) (string, bool) {
	captions := f.captionsFor(username)
	if captions == nil {
		return "", false
	}
	text, ok := captions[shortcode]
	return text, ok
}

func (f *FileSource) captionsFor(username string) map[string]string {
	path := f.store.MetadataPath(username)

	info, err := os.Stat(path)
	if err != nil {
		f.logger.WarnWithFields("failed to load metadata record", map[string]interface{}{
			"username": username,
			"path":     path,
			"error":    err.Error(),
		})
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if cached, ok := f.cache[username]; ok && cached.modTime.Equal(info.ModTime()) {
		return cached.captions
	}

	data, err := os.ReadFile(path)
	if err != nil {
		f.logger.WarnWithFields("failed to read metadata record", map[string]interface{}{
			"username": username,
			"path":     path,
			"error":    err.Error(),
		})
		return nil
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		f.logger.WarnWithFields("failed to parse metadata record", map[string]interface{}{
			"username": username,
			"path":     path,
			"error":    err.Error(),
		})
		return nil
	}

	captions := make(map[string]string, len(rec.GraphImages))
	for _, img := range rec.GraphImages {
		if img.Shortcode == "" {
			continue
		}
		if len(img.EdgeMediaToCaption.Edges) > 0 {
			captions[img.Shortcode] = img.EdgeMediaToCaption.Edges[0].Node.Text
		} else {
			captions[img.Shortcode] = ""
		}
	}

	f.cache[username] = &cachedRecord{modTime: info.ModTime(), captions: captions}
	return captions
}
