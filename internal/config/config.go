package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"repolearn/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// GitHub contains settings for the source host client and the ingestion budget.
type GitHub struct {
	Token             string  `toml:"token"`
	APIBaseURL        string  `toml:"api_base_url"`
	RawBaseURL        string  `toml:"raw_base_url"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	MaxFiles          int     `toml:"max_files"`
	MaxBytes          int64   `toml:"max_bytes"`
	MaxFileBytes      int64   `toml:"max_file_bytes"`
	MaxDepth          int     `toml:"max_depth"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// LLM contains the chat completion connection and generation settings.
type LLM struct {
	APIKey          string  `toml:"api_key"`
	BaseURL         string  `toml:"base_url"`
	Model           string  `toml:"model"`
	Referer         string  `toml:"referer"`
	Title           string  `toml:"title"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
	MaxAttempts     int     `toml:"max_attempts"`
	Temperature     float64 `toml:"temperature"`
	MaxOutputTokens int     `toml:"max_output_tokens"`
}

// Prompts bounds the repository context embedded in prompts.
type Prompts struct {
	MaxContextChars int `toml:"max_context_chars"`
	MaxFileChars    int `toml:"max_file_chars"`
}

// Grading contains the answer-length thresholds used by heuristic grading.
type Grading struct {
	LongAnswerChars   int `toml:"long_answer_chars"`
	MediumAnswerChars int `toml:"medium_answer_chars"`
}

// Logging contains logging configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for repolearn.
//
// Configuration sections by subsystem:
//   - Paths: artifact store and log directories
//   - GitHub: repository host access and ingestion limits
//   - LLM: model connection and structured generation retries
//   - Prompts: repository context budget inside prompts
//   - Grading: heuristic grading thresholds
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	GitHub  GitHub  `toml:"github"`
	LLM     LLM     `toml:"llm"`
	Prompts Prompts `toml:"prompts"`
	Grading Grading `toml:"grading"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StorePath returns the artifact database location inside the data directory.
func (c *Config) StorePath() string {
	return filepath.Join(c.Paths.DataDir, storeFileName)
}

// GitHubTimeout returns the per-request timeout for repository host calls.
func (c *Config) GitHubTimeout() time.Duration {
	return time.Duration(c.GitHub.TimeoutSeconds) * time.Second
}

// LLMTimeout returns the per-call timeout for model requests.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if err := fileutil.WriteFileAtomic(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML with secrets redacted.
func (c *Config) Encode() ([]byte, error) {
	redacted := *c
	redacted.GitHub.Token = redact(redacted.GitHub.Token)
	redacted.LLM.APIKey = redact(redacted.LLM.APIKey)
	data, err := toml.Marshal(redacted)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

func redact(secret string) string {
	if strings.TrimSpace(secret) == "" {
		return ""
	}
	return "********"
}
