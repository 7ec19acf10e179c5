package main

import (
	"errors"
	"fmt"

	"repolearn/internal/github"
	"repolearn/internal/ingest"
	"repolearn/internal/learning"
	"repolearn/internal/logging"
	"repolearn/internal/services"
	"repolearn/internal/store"
)

// runIngest fetches the repository and stores the resulting context.
func (s *session) runIngest(opts ingest.Options) (store.IngestRecord, error) {
	opts.RepoURL = s.ref.URL
	repoCtx, err := s.ingest.Ingest(s.ctx, opts)
	if err != nil {
		return store.IngestRecord{}, ingestFailure(err)
	}
	return s.store.SaveIngest(s.ctx, repoCtx)
}

// repoContext returns the cached ingest for the session repository,
// ingesting it first when none is stored or refresh is set.
func (s *session) repoContext(refresh bool) (store.IngestRecord, error) {
	if !refresh {
		record, err := s.store.LatestIngest(s.ctx, s.ref.FullName())
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, services.ErrNotFound) {
			return store.IngestRecord{}, err
		}
	}
	return s.runIngest(ingest.Options{})
}

// plan returns the cached plan, generating and storing one when missing or
// stale relative to the latest ingest.
func (s *session) plan(refresh bool) (store.IngestRecord, store.PlanRecord, error) {
	ingested, err := s.repoContext(false)
	if err != nil {
		return store.IngestRecord{}, store.PlanRecord{}, err
	}
	if !refresh {
		cached, err := s.store.LatestPlan(s.ctx, s.ref.FullName())
		switch {
		case err == nil && cached.IngestDigest == ingested.Digest:
			return ingested, cached, nil
		case err != nil && !errors.Is(err, services.ErrNotFound):
			return store.IngestRecord{}, store.PlanRecord{}, err
		}
	}

	outcome, err := s.tutor.GeneratePlan(s.ctx, ingested.Context)
	if err != nil {
		return store.IngestRecord{}, store.PlanRecord{}, err
	}
	record, err := s.store.SavePlan(s.ctx, s.ref.FullName(), ingested.Digest, outcome.Value, outcome.Fallback)
	if err != nil {
		s.saveFailed("plan", err)
		return store.IngestRecord{}, store.PlanRecord{}, err
	}
	logging.WithContext(s.ctx, s.logger).Info("chapter plan generated",
		logging.String(logging.FieldRepo, s.ref.FullName()),
		logging.Int("chapters", len(outcome.Value)),
		logging.Bool("fallback", outcome.Fallback),
		logging.Int("attempts", outcome.Attempts),
	)
	return ingested, record, nil
}

// chapter returns the cached chapter when it was generated from the current
// plan, otherwise it generates and stores a new one.
func (s *session) chapter(chapterID string, refresh bool) (store.IngestRecord, store.ChapterRecord, string, error) {
	ingested, planRecord, err := s.plan(false)
	if err != nil {
		return store.IngestRecord{}, store.ChapterRecord{}, "", err
	}
	chapterPlan, ok := learning.FindPlan(planRecord.Plans, chapterID)
	if !ok {
		return store.IngestRecord{}, store.ChapterRecord{}, "", services.Wrap(services.ErrNotFound, "cli", "chapter",
			fmt.Sprintf("chapter %q is not in the plan for %s", chapterID, s.ref.FullName()), nil)
	}
	if !refresh {
		cached, err := s.store.Chapter(s.ctx, s.ref.FullName(), chapterID)
		switch {
		case err == nil && cached.PlanDigest == planRecord.Digest:
			return ingested, cached, "", nil
		case err == nil:
			logging.WithContext(s.ctx, s.logger).Debug("cached chapter predates the current plan",
				logging.String("chapter_id", chapterID),
				logging.String("plan_digest", planRecord.Digest),
			)
		case !errors.Is(err, services.ErrNotFound):
			return store.IngestRecord{}, store.ChapterRecord{}, "", err
		}
	}

	outcome, err := s.tutor.GenerateChapter(s.ctx, ingested.Context, chapterPlan)
	if err != nil {
		return store.IngestRecord{}, store.ChapterRecord{}, "", err
	}
	record, err := s.store.SaveChapter(s.ctx, s.ref.FullName(), planRecord.Digest, outcome.Value, outcome.Fallback)
	if err != nil {
		s.saveFailed("chapter", err)
		return store.IngestRecord{}, store.ChapterRecord{}, "", err
	}
	return ingested, record, outcome.Reason, nil
}

func (s *session) saveFailed(artifact string, err error) {
	logging.ErrorWithContext(logging.WithContext(s.ctx, s.logger), "artifact save failed", "artifact_save_failed",
		logging.String("artifact", artifact),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check free space and permissions under "+s.cfg.Paths.DataDir),
	)
}

// ingestFailure tags an ingestion error for exit-code classification and
// replaces its text with the user-facing hint.
func ingestFailure(err error) error {
	var marker error
	switch github.CodeOf(err) {
	case github.CodeCancelled:
		marker = services.ErrCancelled
	case github.CodeInvalidRepoURL, github.CodeInvalidOptions:
		marker = services.ErrValidation
	case github.CodeNotFound, github.CodeNotPublic:
		marker = services.ErrNotFound
	case github.CodeTimeout:
		marker = services.ErrTimeout
	case github.CodeRateLimited:
		marker = services.ErrTransient
	default:
		marker = services.ErrExternalTool
	}
	return services.Wrap(marker, "ingest", "", github.Hint(err), err)
}
