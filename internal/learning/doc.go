// Package learning defines the curriculum models produced for a repository
// (chapter plans, chapters, quizzes, gradings, answers), the JSON Schema
// documents that constrain model output, and the deterministic fallbacks
// used when generation is exhausted.
//
// Fallbacks never touch the network and never use randomness; the same
// input always yields byte-identical output.
package learning
