// Package github reads public repository metadata, recursive trees and raw
// file contents from GitHub.
//
// The client is read-only and unauthenticated unless a token is configured.
// Every failure is reported as *Error carrying a Code from a closed set, so
// callers can map host failures to user-facing hints without string matching.
package github
