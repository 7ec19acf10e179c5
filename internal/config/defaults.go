package config

const (
	defaultConfigPath        = "~/.config/repolearn/config.toml"
	projectConfigName        = "repolearn.toml"
	storeFileName            = "repolearn.db"
	defaultDataDir           = "~/.local/share/repolearn"
	defaultLogDir            = "~/.local/share/repolearn/logs"
	defaultGitHubAPIBaseURL  = "https://api.github.com"
	defaultGitHubRawBaseURL  = "https://raw.githubusercontent.com"
	defaultGitHubTimeout     = 12
	defaultMaxFiles          = 28
	defaultMaxBytes          = 240_000
	defaultMaxFileBytes      = 60_000
	defaultMaxDepth          = 4
	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "google/gemini-2.0-flash-001"
	defaultLLMReferer        = "https://github.com/repolearn/repolearn"
	defaultLLMTitle          = "repolearn"
	defaultLLMTimeout        = 30
	defaultLLMMaxAttempts    = 3
	defaultLLMTemperature    = 0.2
	defaultLLMMaxTokens      = 4096
	defaultMaxContextChars   = 45_000
	defaultMaxFileChars      = 6_000
	defaultLongAnswerChars   = 200
	defaultMediumAnswerChars = 80
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		GitHub: GitHub{
			APIBaseURL:     defaultGitHubAPIBaseURL,
			RawBaseURL:     defaultGitHubRawBaseURL,
			TimeoutSeconds: defaultGitHubTimeout,
			MaxFiles:       defaultMaxFiles,
			MaxBytes:       defaultMaxBytes,
			MaxFileBytes:   defaultMaxFileBytes,
			MaxDepth:       defaultMaxDepth,
		},
		LLM: LLM{
			BaseURL:         defaultLLMBaseURL,
			Model:           defaultLLMModel,
			Referer:         defaultLLMReferer,
			Title:           defaultLLMTitle,
			TimeoutSeconds:  defaultLLMTimeout,
			MaxAttempts:     defaultLLMMaxAttempts,
			Temperature:     defaultLLMTemperature,
			MaxOutputTokens: defaultLLMMaxTokens,
		},
		Prompts: Prompts{
			MaxContextChars: defaultMaxContextChars,
			MaxFileChars:    defaultMaxFileChars,
		},
		Grading: Grading{
			LongAnswerChars:   defaultLongAnswerChars,
			MediumAnswerChars: defaultMediumAnswerChars,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
