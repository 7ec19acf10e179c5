package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"repolearn/internal/config"
	"repolearn/internal/github"
	"repolearn/internal/ingest"
	"repolearn/internal/learning"
	"repolearn/internal/llm"
	"repolearn/internal/logging"
	"repolearn/internal/prompts"
	"repolearn/internal/services"
	"repolearn/internal/store"
	"repolearn/internal/structured"
	"repolearn/internal/tutor"
)

const userAgent = "repolearn"

type commandContext struct {
	configFlag *string
	formatFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	// transport replaces the configured chat client when set (tests).
	transport llm.Transport
}

func newCommandContext(configFlag, formatFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		formatFlag: formatFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "load", "", err)
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		var extra []string
		if c.verbose != nil && *c.verbose {
			extra = append(extra, "stderr")
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg, extra...)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) format() string {
	if c.formatFlag == nil {
		return formatText
	}
	return strings.ToLower(strings.TrimSpace(*c.formatFlag))
}

func (c *commandContext) validateFormat() error {
	switch c.format() {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return services.Wrap(services.ErrValidation, "cli", "format", fmt.Sprintf("unsupported output format %q", c.format()), nil)
	}
}

// session bundles what a repository-scoped command needs. Close must be
// called to release the store lock.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	ref    github.RepoRef
	ctx    context.Context
	tutor  *tutor.Tutor
	ingest *ingest.Service
}

func (c *commandContext) openSession(cmd *cobra.Command, repoURL, operation string) (*session, error) {
	ref, err := github.ParseRepoURL(repoURL)
	if err != nil {
		return nil, ingestFailure(err)
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = services.WithRequestID(ctx, uuid.NewString())
	ctx = services.WithRepo(ctx, ref.FullName())
	ctx = services.WithOperation(ctx, operation)

	artifactStore, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, logger).Debug("artifact store opened", logging.String("path", artifactStore.Path()))

	host, err := github.New(github.Config{
		Token:             cfg.GitHub.Token,
		APIBaseURL:        cfg.GitHub.APIBaseURL,
		RawBaseURL:        cfg.GitHub.RawBaseURL,
		UserAgent:         userAgent,
		Timeout:           cfg.GitHubTimeout(),
		RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
	})
	if err != nil {
		_ = artifactStore.Close()
		return nil, services.Wrap(services.ErrConfiguration, "github", "client", "", err)
	}

	return &session{
		cfg:    cfg,
		logger: logger,
		store:  artifactStore,
		ref:    ref,
		ctx:    ctx,
		tutor:  c.newTutor(cfg, logger),
		ingest: ingest.NewService(host,
			ingest.WithLogger(logger),
			ingest.WithDefaultLimits(limitsFromConfig(cfg)),
			ingest.WithDefaultTimeout(cfg.GitHubTimeout()),
		),
	}, nil
}

func (c *commandContext) newTutor(cfg *config.Config, logger *slog.Logger) *tutor.Tutor {
	transport := c.transport
	if transport == nil {
		transport = llm.NewClient(llm.Config{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			Referer:        cfg.LLM.Referer,
			Title:          cfg.LLM.Title,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		})
	}
	temperature := cfg.LLM.Temperature
	engine := structured.NewEngine(transport,
		structured.WithLogger(logger),
		structured.WithDefaults(structured.Defaults{
			MaxAttempts:     cfg.LLM.MaxAttempts,
			Timeout:         cfg.LLMTimeout(),
			Temperature:     &temperature,
			MaxOutputTokens: cfg.LLM.MaxOutputTokens,
			Model:           cfg.LLM.Model,
		}),
	)
	policy := learning.DefaultGradingPolicy()
	policy.LongAnswerChars = cfg.Grading.LongAnswerChars
	policy.MediumAnswerChars = cfg.Grading.MediumAnswerChars
	return tutor.New(engine,
		tutor.WithLogger(logger),
		tutor.WithGradingPolicy(policy),
		tutor.WithPrompts(prompts.NewBuilder(prompts.Options{
			MaxContextChars: cfg.Prompts.MaxContextChars,
			MaxFileChars:    cfg.Prompts.MaxFileChars,
		})),
	)
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		logging.WarnWithContext(s.logger, "store close failed", "store_close_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "lock file may linger until the process exits"),
		)
	}
}

func limitsFromConfig(cfg *config.Config) ingest.Limits {
	return ingest.Limits{
		MaxFiles:     cfg.GitHub.MaxFiles,
		MaxBytes:     cfg.GitHub.MaxBytes,
		MaxFileBytes: cfg.GitHub.MaxFileBytes,
		MaxDepth:     cfg.GitHub.MaxDepth,
	}
}
