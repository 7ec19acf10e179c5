// Package config loads, normalizes, and validates repolearn configuration data.
//
// It supplies defaults for the ingestion budget, the model connection and the
// prompt context budget, expands user paths (including tilde shortcuts), reads
// TOML files, and honours environment fallbacks such as GITHUB_TOKEN and
// OPENROUTER_API_KEY.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical log settings, and clear validation errors.
package config
