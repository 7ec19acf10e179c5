package testsupport

import (
	"path/filepath"
	"testing"

	"repolearn/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Network endpoints point nowhere until a test overrides them.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.GitHub.APIBaseURL = "http://127.0.0.1:0"
	cfgVal.GitHub.RawBaseURL = "http://127.0.0.1:0"
	cfgVal.LLM.BaseURL = "http://127.0.0.1:0"
	cfgVal.LLM.APIKey = "test"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithGitHubServer points both GitHub endpoints at a test server.
func WithGitHubServer(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.GitHub.APIBaseURL = baseURL
		b.cfg.GitHub.RawBaseURL = baseURL + "/raw"
	}
}

// WithLLMServer points the model endpoint at a test server.
func WithLLMServer(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = url
	}
}

// WithLimits overrides the ingestion budget.
func WithLimits(maxFiles int, maxBytes, maxFileBytes int64, maxDepth int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.GitHub.MaxFiles = maxFiles
		b.cfg.GitHub.MaxBytes = maxBytes
		b.cfg.GitHub.MaxFileBytes = maxFileBytes
		b.cfg.GitHub.MaxDepth = maxDepth
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
