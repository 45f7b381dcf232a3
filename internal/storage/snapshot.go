package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/deusflow/teamnews/internal/news"
	"github.com/deusflow/teamnews/internal/rss"
)

// SnapshotItem is one entry as written to the snapshot file.
type SnapshotItem struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Source      string    `json:"source"`
	Published   int64     `json:"published"`
	PublishedAt time.Time `json:"published_at"`
	Summary     string    `json:"summary,omitempty"`
	Author      string    `json:"author,omitempty"`
}

// SnapshotDocument is the on-disk layout read by the display page.
type SnapshotDocument struct {
	Team      string         `json:"team"`
	UpdatedAt time.Time      `json:"updated_at"`
	Items     []SnapshotItem `json:"items"`
	Sources   []string       `json:"sources"`
	Links     []rss.Link     `json:"links"`
}

// NewSnapshotDocument converts a snapshot into its file layout.
func NewSnapshotDocument(team string, snap news.Snapshot, links []rss.Link) SnapshotDocument {
	doc := SnapshotDocument{
		Team:      team,
		UpdatedAt: snap.GeneratedAt.UTC(),
		Items:     make([]SnapshotItem, 0, len(snap.Items)),
		Sources:   append([]string{}, snap.Sources...),
		Links:     append([]rss.Link{}, links...),
	}
	for _, e := range snap.Items {
		doc.Items = append(doc.Items, SnapshotItem{
			Title:       e.Title,
			Link:        e.CanonicalURL,
			Source:      e.DisplaySource,
			Published:   e.PublishedAt.Unix(),
			PublishedAt: e.PublishedAt.UTC(),
			Summary:     e.Summary,
			Author:      e.Author,
		})
	}
	return doc
}

// SnapshotFile writes snapshot documents to a JSON file.
type SnapshotFile struct {
	filePath string
}

// NewSnapshotFile creates a writer for filePath.
func NewSnapshotFile(filePath string) *SnapshotFile {
	return &SnapshotFile{filePath: filePath}
}

// Path returns the target file path.
func (sf *SnapshotFile) Path() string {
	return sf.filePath
}

// Save replaces the file atomically so readers never see a half-written
// snapshot.
func (sf *SnapshotFile) Save(doc SnapshotDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	dir := filepath.Dir(sf.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to chmod snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), sf.filePath); err != nil {
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}
	return nil
}

// Load reads the current snapshot file.
func (sf *SnapshotFile) Load() (SnapshotDocument, error) {
	var doc SnapshotDocument
	data, err := os.ReadFile(sf.filePath)
	if err != nil {
		return doc, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return doc, nil
}
