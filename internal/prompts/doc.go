// Package prompts builds the default system and user prompts for every
// structured generation, along with the repository context formatter they
// share.
//
// Repository file contents are framed as untrusted data. Each builder
// returns a Prompt carrying the schema name and document so callers can hand
// it straight to the structured engine.
package prompts
