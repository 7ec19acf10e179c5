package ingest

import (
	"context"
	"errors"
	"time"

	"repolearn/internal/github"
)

// ContentSource retrieves raw file content. *github.Client satisfies it.
type ContentSource interface {
	RawContent(ctx context.Context, ref github.RepoRef, branch, path string, maxBytes int64) (github.RawFile, error)
}

// DroppedFile records a selected path that could not be fetched.
type DroppedFile struct {
	Path string
	Err  error
}

// FetchResult is the outcome of Fetch.
type FetchResult struct {
	Files []RepoFile
	// Dropped lists paths skipped by the fetcher, in selection order.
	Dropped []DroppedFile
}

// SkippedByFetch counts dropped paths.
func (r FetchResult) SkippedByFetch() int {
	return len(r.Dropped)
}

// Fetch downloads selected files one at a time, each under its own timeout.
// Oversized or failing files are dropped; cancellation of ctx aborts the
// batch with CANCELLED and expiry of its deadline with TIMEOUT. Zero
// successes fail with REPO_TOO_LARGE.
func Fetch(ctx context.Context, source ContentSource, ref github.RepoRef, branch string, selected []ScoredFile, limits Limits, timeout time.Duration) (FetchResult, error) {
	var result FetchResult
	for _, file := range selected {
		if err := interrupted(ctx, nil); err != nil {
			return FetchResult{}, err
		}

		raw, err := fetchOne(ctx, source, ref, branch, file.Path, limits.MaxFileBytes, timeout)
		if err != nil {
			if stop := interrupted(ctx, err); stop != nil {
				return FetchResult{}, stop
			}
			if github.CodeOf(err) == github.CodeCancelled {
				return FetchResult{}, cancelled(err)
			}
			result.Dropped = append(result.Dropped, DroppedFile{Path: file.Path, Err: err})
			continue
		}
		if int64(len(raw.Content)) > limits.MaxFileBytes {
			result.Dropped = append(result.Dropped, DroppedFile{
				Path: file.Path,
				Err:  github.NewError(github.CodeRepoTooLarge, "file exceeds size limit"),
			})
			continue
		}
		result.Files = append(result.Files, RepoFile{
			Path:      file.Path,
			Size:      file.Size,
			Content:   raw.Content,
			SourceURL: raw.URL,
			Category:  file.Category,
		})
	}

	if len(result.Files) == 0 {
		return result, github.NewError(github.CodeRepoTooLarge, "failed to fetch any files")
	}
	return result, nil
}

func fetchOne(ctx context.Context, source ContentSource, ref github.RepoRef, branch, path string, maxBytes int64, timeout time.Duration) (github.RawFile, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return source.RawContent(ctx, ref, branch, path, maxBytes)
}

func cancelled(err error) error {
	return &github.Error{Code: github.CodeCancelled, Message: "ingestion cancelled", Err: err}
}

// interrupted returns nil while ctx is live. Once it is done, caller
// cancellation maps to CANCELLED and an expired deadline to TIMEOUT.
func interrupted(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		if github.CodeOf(err) == github.CodeCancelled {
			return err
		}
		return cancelled(errors.Join(ctx.Err(), err))
	case ctx.Err() != nil:
		if github.CodeOf(err) == github.CodeTimeout {
			return err
		}
		return &github.Error{Code: github.CodeTimeout, Message: "ingestion deadline exceeded", Err: errors.Join(ctx.Err(), err)}
	}
	return nil
}
