package metadata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"igrelay/pkg/store"
)

const metadataRecord = `{
  "GraphImages": [
    {
      "shortcode": "abc123",
      "edge_media_to_caption": {
        "edges": [
          {"node": {"text": "A volcano at dawn"}},
          {"node": {"text": "ignored second fragment"}}
        ]
      }
    },
    {
      "shortcode": "def456",
      "edge_media_to_caption": {"edges": []}
    }
  ]
}`

func newTestSource(t *testing.T) (*FileSource, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewFileSource(st, nil), st
}

func writeRecord(t *testing.T, st *store.Store, username, content string) string {
	t.Helper()
	if err := os.MkdirAll(st.AccountDir(username), 0755); err != nil {
		t.Fatal(err)
	}
	path := st.MetadataPath(username)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLookupCaption(t *testing.T) {
	source, st := newTestSource(t)
	writeRecord(t, st, "natgeo", metadataRecord)

	text, ok := source.LookupCaption("natgeo", "abc123")
	if !ok {
		t.Fatal("Expected caption to be found")
	}
	if text != "A volcano at dawn" {
		t.Errorf("Expected first caption fragment, got %q", text)
	}

	// A post with no caption edges resolves to empty text, found
	text, ok = source.LookupCaption("natgeo", "def456")
	if !ok {
		t.Error("Expected captionless post to be found")
	}
	if text != "" {
		t.Errorf("Expected empty caption, got %q", text)
	}

	// Unknown shortcode
	if _, ok := source.LookupCaption("natgeo", "zzz999"); ok {
		t.Error("Expected unknown shortcode to not be found")
	}
}

func TestLookupCaptionMissingRecord(t *testing.T) {
	source, _ := newTestSource(t)

	if _, ok := source.LookupCaption("never-scraped", "abc123"); ok {
		t.Error("Expected missing record to degrade to no caption")
	}
}

func TestLookupCaptionMalformedRecord(t *testing.T) {
	source, st := newTestSource(t)
	writeRecord(t, st, "natgeo", "{not json")

	if _, ok := source.LookupCaption("natgeo", "abc123"); ok {
		t.Error("Expected malformed record to degrade to no caption")
	}
}

func TestLookupCaptionCacheInvalidation(t *testing.T) {
	source, st := newTestSource(t)
	path := writeRecord(t, st, "natgeo", metadataRecord)

	if _, ok := source.LookupCaption("natgeo", "abc123"); !ok {
		t.Fatal("Expected caption to be found")
	}

	// Rewrite the record with new content and a newer mtime
	updated := `{"GraphImages":[{"shortcode":"abc123","edge_media_to_caption":{"edges":[{"node":{"text":"updated"}}]}}]}`
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	text, ok := source.LookupCaption("natgeo", "abc123")
	if !ok || text != "updated" {
		t.Errorf("Expected refreshed caption %q, got %q (ok=%v)", "updated", text, ok)
	}
}

func TestMetadataPathShape(t *testing.T) {
	_, st := newTestSource(t)
	path := st.MetadataPath("natgeo")
	if filepath.Base(path) != "natgeo.json" {
		t.Errorf("Expected record name natgeo.json, got %s", filepath.Base(path))
	}
}
