// Package textutil provides small text helpers shared across packages:
// slug folding for deterministic identifiers, single-line payload snippets
// for error messages, filesystem-safe tokens, and term-frequency
// fingerprints used to rank repository files against a question.
package textutil
