package ingest

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"repolearn/internal/github"
	"repolearn/internal/logging"
	"repolearn/internal/services"
)

// DefaultTimeout bounds each host request when Options.Timeout is zero.
const DefaultTimeout = 12 * time.Second

// Host is the read-only repository host. *github.Client satisfies it.
type Host interface {
	ContentSource
	Repository(ctx context.Context, ref github.RepoRef) (github.Repository, error)
	Tree(ctx context.Context, ref github.RepoRef, branch string) (github.Tree, error)
}

// Options is one ingestion request. Zero limits fall back to the service
// defaults.
type Options struct {
	RepoURL      string
	MaxFiles     int
	MaxBytes     int64
	MaxFileBytes int64
	MaxDepth     int
	// Timeout bounds each host request individually.
	Timeout time.Duration
}

// Service runs ingestions against a host.
type Service struct {
	host     Host
	logger   *slog.Logger
	defaults Limits
	timeout  time.Duration
	now      func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDefaultLimits replaces the standard budget used for zero option fields.
func WithDefaultLimits(limits Limits) ServiceOption {
	return func(s *Service) {
		s.defaults = limits.withDefaults(DefaultLimits())
	}
}

// WithDefaultTimeout sets the per-request timeout used when Options.Timeout is zero.
func WithDefaultTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithClock overrides the fetch timestamp source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs an ingestion service.
func NewService(host Host, opts ...ServiceOption) *Service {
	svc := &Service{
		host:     host,
		logger:   logging.NewNop(),
		defaults: DefaultLimits(),
		timeout:  DefaultTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.logger = logging.NewComponentLogger(svc.logger, "ingest")
	return svc
}

// Ingest resolves the repository, rejects private ones before listing the
// tree, selects files within budget and fetches them sequentially.
func (s *Service) Ingest(ctx context.Context, opts Options) (*RepoContext, error) {
	ref, err := github.ParseRepoURL(opts.RepoURL)
	if err != nil {
		return nil, err
	}
	limits := Limits{
		MaxFiles:     opts.MaxFiles,
		MaxBytes:     opts.MaxBytes,
		MaxFileBytes: opts.MaxFileBytes,
		MaxDepth:     opts.MaxDepth,
	}.withDefaults(s.defaults)
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.timeout
	}

	ctx = services.WithRepo(ctx, ref.FullName())
	logger := logging.WithContext(ctx, s.logger)
	started := time.Now()

	meta, err := callWithTimeout(ctx, timeout, func(callCtx context.Context) (github.Repository, error) {
		return s.host.Repository(callCtx, ref)
	})
	if err != nil {
		return nil, s.hostFailure(ctx, logger, "repository metadata", err)
	}
	if meta.DefaultBranch == "" {
		return nil, github.NewError(github.CodeFetchFailed, "missing default branch")
	}
	if meta.IsPrivate() {
		return nil, github.NewError(github.CodeNotPublic, "private repositories are not supported")
	}

	tree, err := callWithTimeout(ctx, timeout, func(callCtx context.Context) (github.Tree, error) {
		return s.host.Tree(callCtx, ref, meta.DefaultBranch)
	})
	if err != nil {
		return nil, s.hostFailure(ctx, logger, "repository tree", err)
	}
	if tree.Truncated {
		return nil, github.NewError(github.CodeRepoTooLarge, "repo tree is too large to ingest safely")
	}

	selection, err := Select(tree.Entries, limits)
	if err != nil {
		return nil, err
	}
	logger.Debug("files selected",
		logging.Int("tree_files", selection.TotalTreeFiles),
		logging.Int("selected", len(selection.Selected)),
		logging.Int("skipped", selection.Skipped),
		logging.Int64("selected_bytes", selection.TotalBytes()),
	)

	fetched, err := Fetch(ctx, s.host, ref, meta.DefaultBranch, selection.Selected, limits, timeout)
	for _, dropped := range fetched.Dropped {
		logger.Debug("file dropped during fetch",
			logging.String("path", dropped.Path),
			logging.String("code", string(github.CodeOf(dropped.Err))),
			logging.Error(dropped.Err),
		)
	}
	if err != nil {
		return nil, s.hostFailure(ctx, logger, "file contents", err)
	}

	repoCtx := &RepoContext{
		Repo: RepoMeta{
			Owner:         ref.Owner,
			Name:          ref.Name,
			URL:           ref.URL,
			DefaultBranch: meta.DefaultBranch,
			Description:   meta.Description,
			FetchedAt:     s.now().UTC(),
		},
		Files:         fetched.Files,
		SelectedPaths: make([]string, 0, len(fetched.Files)),
		Warnings:      slices.Clone(selection.Warnings),
	}
	var totalBytes int64
	for _, file := range fetched.Files {
		repoCtx.SelectedPaths = append(repoCtx.SelectedPaths, file.Path)
		totalBytes += file.Size
	}
	if repoCtx.Warnings == nil {
		repoCtx.Warnings = []string{}
	}
	repoCtx.Stats = Stats{
		TotalTreeFiles: selection.TotalTreeFiles,
		SelectedFiles:  len(fetched.Files),
		TotalBytes:     totalBytes,
		SkippedFiles:   selection.Skipped + fetched.SkippedByFetch(),
	}

	logger.Info("repository ingested",
		logging.String(logging.FieldEventType, "ingest_complete"),
		logging.Int("files", repoCtx.Stats.SelectedFiles),
		logging.Int64("bytes", repoCtx.Stats.TotalBytes),
		logging.Int("skipped", repoCtx.Stats.SkippedFiles),
		logging.Duration("elapsed", time.Since(started)),
	)
	return repoCtx, nil
}

func (s *Service) hostFailure(ctx context.Context, logger *slog.Logger, stage string, err error) error {
	if stop := interrupted(ctx, err); stop != nil {
		err = stop
	}
	code := github.CodeOf(err)
	if code == github.CodeCancelled {
		logger.Info("ingestion cancelled", logging.String("stage", stage))
		return err
	}
	logging.WarnWithContext(logger, "ingestion failed", "ingest_failed",
		logging.String("stage", stage),
		logging.String("code", string(code)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, github.Hint(err)),
	)
	return err
}

func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}
