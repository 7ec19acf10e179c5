package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"repolearn/internal/learning"
)

// PlanRecord is a stored chapter plan.
type PlanRecord struct {
	Repo         string
	IngestDigest string
	Digest       string
	Plans        []learning.ChapterPlan
	Fallback     bool
	CreatedAt    time.Time
}

// SavePlan stores plans generated from the ingest identified by ingestDigest.
func (s *Store) SavePlan(ctx context.Context, repo, ingestDigest string, plans []learning.ChapterPlan, fallback bool) (PlanRecord, error) {
	payload, digest, err := canonicalJSON(plans)
	if err != nil {
		return PlanRecord{}, err
	}
	createdAt := s.timestamp()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO plans (repo, ingest_digest, payload_digest, plans_json, fallback, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		repoKey(repo), ingestDigest, digest, payload, boolToInt(fallback), createdAt,
	); err != nil {
		return PlanRecord{}, fmt.Errorf("insert plan: %w", err)
	}
	return PlanRecord{
		Repo:         repoKey(repo),
		IngestDigest: ingestDigest,
		Digest:       digest,
		Plans:        plans,
		Fallback:     fallback,
		CreatedAt:    parseTime(createdAt),
	}, nil
}

// LatestPlan returns the most recent plan stored for repo.
func (s *Store) LatestPlan(ctx context.Context, repo string) (PlanRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT repo, ingest_digest, payload_digest, plans_json, fallback, created_at
         FROM plans WHERE repo = ? ORDER BY id DESC LIMIT 1`,
		repoKey(repo),
	)
	var (
		record     PlanRecord
		payload    string
		fallback   int
		createdRaw string
	)
	if err := row.Scan(&record.Repo, &record.IngestDigest, &record.Digest, &payload, &fallback, &createdRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PlanRecord{}, notFound("latest plan", "no plan stored for "+repo)
		}
		return PlanRecord{}, fmt.Errorf("query latest plan: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &record.Plans); err != nil {
		return PlanRecord{}, fmt.Errorf("decode plans: %w", err)
	}
	record.Fallback = fallback != 0
	record.CreatedAt = parseTime(createdRaw)
	return record, nil
}

// ChapterRecord is a stored chapter. PlanDigest identifies the plan the
// chapter was generated from.
type ChapterRecord struct {
	Repo       string
	PlanDigest string
	Digest     string
	Chapter    learning.Chapter
	Fallback   bool
	UpdatedAt  time.Time
}

// SaveChapter stores chapter generated from the plan identified by planDigest,
// replacing any earlier version with the same id.
func (s *Store) SaveChapter(ctx context.Context, repo, planDigest string, chapter learning.Chapter, fallback bool) (ChapterRecord, error) {
	payload, digest, err := canonicalJSON(chapter)
	if err != nil {
		return ChapterRecord{}, err
	}
	updatedAt := s.timestamp()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO chapters (repo, chapter_id, plan_digest, payload_digest, chapter_json, fallback, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(repo, chapter_id) DO UPDATE SET
             plan_digest = excluded.plan_digest,
             payload_digest = excluded.payload_digest,
             chapter_json = excluded.chapter_json,
             fallback = excluded.fallback,
             updated_at = excluded.updated_at`,
		repoKey(repo), chapter.ID, planDigest, digest, payload, boolToInt(fallback), updatedAt,
	); err != nil {
		return ChapterRecord{}, fmt.Errorf("upsert chapter: %w", err)
	}
	return ChapterRecord{
		Repo:       repoKey(repo),
		PlanDigest: planDigest,
		Digest:     digest,
		Chapter:    chapter,
		Fallback:   fallback,
		UpdatedAt:  parseTime(updatedAt),
	}, nil
}

// Chapter returns the stored chapter with chapterID.
func (s *Store) Chapter(ctx context.Context, repo, chapterID string) (ChapterRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT repo, plan_digest, payload_digest, chapter_json, fallback, updated_at
         FROM chapters WHERE repo = ? AND chapter_id = ?`,
		repoKey(repo), chapterID,
	)
	var (
		record     ChapterRecord
		payload    string
		fallback   int
		updatedRaw string
	)
	if err := row.Scan(&record.Repo, &record.PlanDigest, &record.Digest, &payload, &fallback, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ChapterRecord{}, notFound("chapter", fmt.Sprintf("no chapter %q stored for %s", chapterID, repo))
		}
		return ChapterRecord{}, fmt.Errorf("query chapter: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &record.Chapter); err != nil {
		return ChapterRecord{}, fmt.Errorf("decode chapter: %w", err)
	}
	record.Fallback = fallback != 0
	record.UpdatedAt = parseTime(updatedRaw)
	return record, nil
}
