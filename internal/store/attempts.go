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

// SaveAttempt inserts or replaces a quiz attempt.
func (s *Store) SaveAttempt(ctx context.Context, repo string, attempt learning.QuizAttempt) error {
	if attempt.ID == "" {
		return errors.New("quiz attempt id is required")
	}
	encoded, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("encode quiz attempt: %w", err)
	}
	createdAt := attempt.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	updatedAt := attempt.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO quiz_attempts (id, repo, chapter_id, status, attempt_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             status = excluded.status,
             attempt_json = excluded.attempt_json,
             updated_at = excluded.updated_at`,
		attempt.ID, repoKey(repo), attempt.ChapterID, string(attempt.Status), string(encoded),
		createdAt.UTC().Format(time.RFC3339Nano), updatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("upsert quiz attempt: %w", err)
	}
	return nil
}

// Attempt returns the quiz attempt with id.
func (s *Store) Attempt(ctx context.Context, repo, id string) (learning.QuizAttempt, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT attempt_json FROM quiz_attempts WHERE repo = ? AND id = ?`, repoKey(repo), id,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return learning.QuizAttempt{}, notFound("quiz attempt", fmt.Sprintf("no quiz attempt %q stored for %s", id, repo))
	}
	if err != nil {
		return learning.QuizAttempt{}, fmt.Errorf("query quiz attempt: %w", err)
	}
	var attempt learning.QuizAttempt
	if err := json.Unmarshal([]byte(payload), &attempt); err != nil {
		return learning.QuizAttempt{}, fmt.Errorf("decode quiz attempt: %w", err)
	}
	return attempt, nil
}

// Attempts lists the quiz attempts for a chapter in creation order.
func (s *Store) Attempts(ctx context.Context, repo, chapterID string) ([]learning.QuizAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT attempt_json FROM quiz_attempts WHERE repo = ? AND chapter_id = ? ORDER BY created_at, id`,
		repoKey(repo), chapterID,
	)
	if err != nil {
		return nil, fmt.Errorf("query quiz attempts: %w", err)
	}
	defer rows.Close()

	var attempts []learning.QuizAttempt
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var attempt learning.QuizAttempt
		if err := json.Unmarshal([]byte(payload), &attempt); err != nil {
			return nil, fmt.Errorf("decode quiz attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

// AppendMessages records Q&A turns for a chapter.
func (s *Store) AppendMessages(ctx context.Context, repo, chapterID string, messages ...learning.Message) error {
	if len(messages) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin messages tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, message := range messages {
		createdAt := message.CreatedAt
		if createdAt.IsZero() {
			createdAt = s.now()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (repo, chapter_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			repoKey(repo), chapterID, string(message.Role), message.Content, createdAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit messages: %w", err)
	}
	return nil
}

// Messages returns a chapter's Q&A history, oldest first.
func (s *Store) Messages(ctx context.Context, repo, chapterID string) ([]learning.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM messages WHERE repo = ? AND chapter_id = ? ORDER BY id`,
		repoKey(repo), chapterID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []learning.Message
	for rows.Next() {
		var role, content, createdRaw string
		if err := rows.Scan(&role, &content, &createdRaw); err != nil {
			return nil, err
		}
		messages = append(messages, learning.Message{
			Role:      learning.MessageRole(role),
			Content:   content,
			CreatedAt: parseTime(createdRaw),
		})
	}
	return messages, rows.Err()
}
