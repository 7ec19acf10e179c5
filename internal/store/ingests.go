package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"repolearn/internal/ingest"
)

// IngestRecord is a stored repository context.
type IngestRecord struct {
	ID        int64
	Repo      string
	Digest    string
	Context   *ingest.RepoContext
	CreatedAt time.Time
}

// SaveIngest stores repoCtx under its owner/name.
func (s *Store) SaveIngest(ctx context.Context, repoCtx *ingest.RepoContext) (IngestRecord, error) {
	if repoCtx == nil {
		return IngestRecord{}, errors.New("repo context is nil")
	}
	digest, err := repoCtx.Digest()
	if err != nil {
		return IngestRecord{}, err
	}
	encoded, err := json.Marshal(repoCtx)
	if err != nil {
		return IngestRecord{}, fmt.Errorf("encode repo context: %w", err)
	}
	repo := repoKey(repoCtx.Repo.Owner + "/" + repoCtx.Repo.Name)
	createdAt := s.timestamp()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ingests (repo, url, digest, context_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		repo, repoCtx.Repo.URL, digest, string(encoded), createdAt,
	)
	if err != nil {
		return IngestRecord{}, fmt.Errorf("insert ingest: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return IngestRecord{}, fmt.Errorf("last insert id: %w", err)
	}
	return IngestRecord{ID: id, Repo: repo, Digest: digest, Context: repoCtx, CreatedAt: parseTime(createdAt)}, nil
}

// LatestIngest returns the most recent context stored for repo (owner/name).
func (s *Store) LatestIngest(ctx context.Context, repo string) (IngestRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, repo, digest, context_json, created_at FROM ingests WHERE repo = ? ORDER BY id DESC LIMIT 1`,
		repoKey(repo),
	)
	var (
		record     IngestRecord
		contextRaw string
		createdRaw string
	)
	if err := row.Scan(&record.ID, &record.Repo, &record.Digest, &contextRaw, &createdRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return IngestRecord{}, notFound("latest ingest", "no ingest stored for "+repo)
		}
		return IngestRecord{}, fmt.Errorf("query latest ingest: %w", err)
	}
	var repoCtx ingest.RepoContext
	if err := json.Unmarshal([]byte(contextRaw), &repoCtx); err != nil {
		return IngestRecord{}, fmt.Errorf("decode repo context: %w", err)
	}
	record.Context = &repoCtx
	record.CreatedAt = parseTime(createdRaw)
	return record, nil
}
