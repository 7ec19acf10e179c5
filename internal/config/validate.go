package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateGitHub(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validatePrompts(); err != nil {
		return err
	}
	if err := c.validateGrading(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateGitHub() error {
	if c.GitHub.MaxFiles <= 0 {
		return errors.New("github.max_files must be positive")
	}
	if c.GitHub.MaxBytes <= 0 {
		return errors.New("github.max_bytes must be positive")
	}
	if c.GitHub.MaxFileBytes <= 0 {
		return errors.New("github.max_file_bytes must be positive")
	}
	if c.GitHub.MaxDepth <= 0 {
		return errors.New("github.max_depth must be positive")
	}
	if c.GitHub.RequestsPerSecond < 0 {
		return errors.New("github.requests_per_second must be zero (unlimited) or positive")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.MaxAttempts < 1 || c.LLM.MaxAttempts > 10 {
		return errors.New("llm.max_attempts must be between 1 and 10")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	if c.LLM.MaxOutputTokens < 0 {
		return errors.New("llm.max_output_tokens must be zero (provider default) or positive")
	}
	return nil
}

func (c *Config) validatePrompts() error {
	if c.Prompts.MaxContextChars <= 0 {
		return errors.New("prompts.max_context_chars must be positive")
	}
	if c.Prompts.MaxFileChars <= 0 {
		return errors.New("prompts.max_file_chars must be positive")
	}
	return nil
}

func (c *Config) validateGrading() error {
	if c.Grading.MediumAnswerChars <= 0 {
		return errors.New("grading.medium_answer_chars must be positive")
	}
	if c.Grading.LongAnswerChars <= c.Grading.MediumAnswerChars {
		return errors.New("grading.long_answer_chars must be greater than grading.medium_answer_chars")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
