package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
)

// RepoMeta describes the ingested repository.
type RepoMeta struct {
	Owner         string    `json:"owner"`
	Name          string    `json:"name"`
	URL           string    `json:"url"`
	DefaultBranch string    `json:"defaultBranch"`
	Description   string    `json:"description,omitempty"`
	FetchedAt     time.Time `json:"fetchedAt"`
}

// RepoFile is one fetched file.
type RepoFile struct {
	Path string `json:"path"`
	// Size is the size reported by the tree listing.
	Size      int64    `json:"size"`
	Content   string   `json:"content"`
	SourceURL string   `json:"sourceUrl"`
	Category  Category `json:"category"`
}

// Stats summarises an ingestion.
type Stats struct {
	TotalTreeFiles int   `json:"totalTreeFiles"`
	SelectedFiles  int   `json:"selectedFiles"`
	TotalBytes     int64 `json:"totalBytes"`
	SkippedFiles   int   `json:"skippedFiles"`
}

// RepoContext is the read-only bundle handed to prompt builders. It is built
// once per ingestion and never modified afterwards.
type RepoContext struct {
	Repo          RepoMeta   `json:"repo"`
	Files         []RepoFile `json:"files"`
	SelectedPaths []string   `json:"selectedPaths"`
	Stats         Stats      `json:"stats"`
	Warnings      []string   `json:"warnings"`
}

// Digest returns the hex sha256 of the RFC 8785 canonical JSON encoding, so
// equal contexts hash equally regardless of field order.
func (c *RepoContext) Digest() (string, error) {
	encoded, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode repo context: %w", err)
	}
	canonical, err := jcs.Transform(encoded)
	if err != nil {
		return "", fmt.Errorf("canonicalize repo context: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// File returns the fetched file at path.
func (c *RepoContext) File(path string) (RepoFile, bool) {
	for _, file := range c.Files {
		if file.Path == path {
			return file, true
		}
	}
	return RepoFile{}, false
}
