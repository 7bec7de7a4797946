package models

import (
	"path/filepath"
	"strings"
	"time"
)

// MediaKind distinguishes image and video payloads, derived from the
// downloaded file's extension.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// MediaFile is a single downloaded artifact in an account's directory.
// Files belonging to one post share a shortcode encoded as the filename
// prefix before the first period (e.g. abc123.0.jpg, abc123.1.jpg).
type MediaFile struct {
	Path      string
	Shortcode string
	Kind      MediaKind
	ModTime   time.Time
}

// NewMediaFile derives the shortcode and kind from the file path.
func NewMediaFile(path string, modTime time.Time) MediaFile {
	return MediaFile{
		Path:      path,
		Shortcode: ShortcodeFromPath(path),
		Kind:      KindFromPath(path),
		ModTime:   modTime,
	}
}

// MediaItem is the unit of delivery: one post, possibly spanning several
// files (an album). Files keep the order in which the directory scan saw
// them; all of them share Shortcode and Username.
type MediaItem struct {
	Username  string
	Shortcode string
	Caption   string
	Files     []MediaFile
}

// IsAlbum reports whether the item spans more than one file.
func (i *MediaItem) IsAlbum() bool {
	return len(i.Files) > 1
}

// ShortcodeFromPath parses the post shortcode from a media file name.
// The shortcode is everything before the first period of the base name;
// a name without periods yields the whole base name.
func ShortcodeFromPath(path string) string {
	base := filepath.Base(path)
	if idx := strings.Index(base, "."); idx >= 0 {
		return base[:idx]
	}
	return base
}

// KindFromPath derives the media kind from the file extension.
// Only .jpg files are images; everything else downloaded by the scraper
// is treated as video.
func KindFromPath(path string) MediaKind {
	if strings.EqualFold(filepath.Ext(path), ".jpg") {
		return MediaKindImage
	}
	return MediaKindVideo
}

// Permalink builds the public post URL for a shortcode.
func Permalink(shortcode string) string {
	return "https://www.instagram.com/p/" + shortcode + "/"
}
