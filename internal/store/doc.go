// Package store caches ingested repository contexts and the learning
// artifacts generated from them in a SQLite database under the data
// directory.
//
// The CLI runs as short-lived processes, so Open takes an advisory file lock
// beside the database and holds it until Close. A second process waits for
// the lock (bounded by its context) instead of interleaving writes.
package store
