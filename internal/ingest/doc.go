// Package ingest turns a repository URL into a bounded RepoContext.
//
// Select scores and budgets tree entries without touching the network,
// Fetch downloads the selection one file at a time, and Service.Ingest runs
// the whole pipeline: metadata, private check, recursive tree, selection,
// content. Every failure is a *github.Error.
package ingest
