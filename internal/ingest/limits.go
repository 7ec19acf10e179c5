package ingest

import (
	"fmt"

	"repolearn/internal/github"
)

// Limits bounds a selection.
type Limits struct {
	MaxFiles     int
	MaxBytes     int64
	MaxFileBytes int64
	MaxDepth     int
}

// DefaultLimits returns the standard ingestion budget.
func DefaultLimits() Limits {
	return Limits{
		MaxFiles:     28,
		MaxBytes:     240_000,
		MaxFileBytes: 60_000,
		MaxDepth:     4,
	}
}

// Validate rejects non-positive limits with INVALID_OPTIONS.
func (l Limits) Validate() error {
	switch {
	case l.MaxFiles <= 0:
		return github.NewError(github.CodeInvalidOptions, fmt.Sprintf("max files must be positive, got %d", l.MaxFiles))
	case l.MaxBytes <= 0:
		return github.NewError(github.CodeInvalidOptions, fmt.Sprintf("max bytes must be positive, got %d", l.MaxBytes))
	case l.MaxFileBytes <= 0:
		return github.NewError(github.CodeInvalidOptions, fmt.Sprintf("max file bytes must be positive, got %d", l.MaxFileBytes))
	case l.MaxDepth <= 0:
		return github.NewError(github.CodeInvalidOptions, fmt.Sprintf("max depth must be positive, got %d", l.MaxDepth))
	}
	return nil
}

// withDefaults fills zero fields from base.
func (l Limits) withDefaults(base Limits) Limits {
	if l.MaxFiles == 0 {
		l.MaxFiles = base.MaxFiles
	}
	if l.MaxBytes == 0 {
		l.MaxBytes = base.MaxBytes
	}
	if l.MaxFileBytes == 0 {
		l.MaxFileBytes = base.MaxFileBytes
	}
	if l.MaxDepth == 0 {
		l.MaxDepth = base.MaxDepth
	}
	return l
}
