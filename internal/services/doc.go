// Package services defines shared utilities consumed by the ingest pipeline,
// the structured generation engine, and the tutoring workflows.
//
// Key responsibilities:
//   - Context helpers that stamp repository keys, operation names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that let callers classify
//     failures (configuration vs validation vs transient) without parsing
//     message strings.
//
// Use these helpers when wiring new workflow logic so error handling and
// observability stay uniform across commands.
package services
