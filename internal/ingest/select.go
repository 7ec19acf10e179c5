package ingest

import (
	"path"
	"regexp"
	"slices"
	"strings"

	"repolearn/internal/github"
)

// Category groups selected files by their role in the repository.
type Category string

const (
	CategoryReadme     Category = "readme"
	CategoryDocs       Category = "docs"
	CategoryConfig     Category = "config"
	CategoryEntrypoint Category = "entrypoint"
	CategoryOther      Category = "other"
)

// CappedByBytesWarning is recorded once when a candidate did not fit the byte budget.
const CappedByBytesWarning = "file selection capped by total bytes limit"

// ScoredFile is a tree entry that survived filtering.
type ScoredFile struct {
	github.TreeEntry
	Score    int
	Category Category
}

// Depth is the number of path segments.
func (f ScoredFile) Depth() int {
	return pathDepth(f.Path)
}

// Selection is the outcome of Select.
type Selection struct {
	Selected []ScoredFile
	// TotalTreeFiles counts blob entries in the input tree.
	TotalTreeFiles int
	// Skipped counts blobs rejected by depth, skip segment, size or extension.
	Skipped  int
	Warnings []string
}

// TotalBytes sums the tree sizes of the selected files.
func (s Selection) TotalBytes() int64 {
	var total int64
	for _, file := range s.Selected {
		total += file.Size
	}
	return total
}

var (
	skipSegments = setOf(
		"node_modules", "dist", "build", "coverage", ".git", ".next",
		".turbo", ".cache", "vendor", "target", "out",
	)
	binaryExtensions = setOf(
		"png", "jpg", "jpeg", "gif", "webp", "ico", "pdf", "zip", "gz", "tgz",
		"tar", "7z", "rar", "mp4", "mp3", "wav", "woff", "woff2", "ttf", "eot",
		"exe", "dll", "bin", "dmg",
	)
	configFiles = setOf(
		"package.json", "pnpm-lock.yaml", "package-lock.json", "yarn.lock",
		"tsconfig.json", "vite.config.ts", "vite.config.js", "next.config.js",
		"next.config.mjs", "next.config.ts", "cargo.toml", "go.mod",
		"pyproject.toml", "requirements.txt", "gemfile", "composer.json",
	)
	docsPrefixes       = []string{"docs/", "doc/", "documentation/"}
	entrypointPattern  = regexp.MustCompile(`^(src|app|lib)/(main|index)\.[jt]sx?$`)
	goCommandEntryPath = regexp.MustCompile(`^cmd/[^/]+/main\.go$`)
)

func setOf(values ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, value := range values {
		out[value] = struct{}{}
	}
	return out
}

// Select filters, scores, orders and budgets tree entries. The result depends
// only on the set of entries and the limits, never on input order.
func Select(tree []github.TreeEntry, limits Limits) (Selection, error) {
	if err := limits.Validate(); err != nil {
		return Selection{}, err
	}

	var (
		selection  Selection
		candidates []ScoredFile
	)
	for _, entry := range tree {
		if entry.Type != github.EntryBlob || entry.Path == "" {
			continue
		}
		selection.TotalTreeFiles++
		if !eligible(entry, limits) {
			selection.Skipped++
			continue
		}
		score, category := scorePath(entry.Path)
		candidates = append(candidates, ScoredFile{TreeEntry: entry, Score: score, Category: category})
	}

	slices.SortStableFunc(candidates, compareCandidates)

	var totalBytes int64
	capped := false
	for _, candidate := range candidates {
		if len(selection.Selected) >= limits.MaxFiles {
			break
		}
		if totalBytes+candidate.Size > limits.MaxBytes {
			capped = true
			continue
		}
		selection.Selected = append(selection.Selected, candidate)
		totalBytes += candidate.Size
	}
	if capped {
		selection.Warnings = append(selection.Warnings, CappedByBytesWarning)
	}

	if len(selection.Selected) == 0 {
		return Selection{}, github.NewError(github.CodeRepoTooLarge, "no eligible files within limits")
	}
	return selection, nil
}

func eligible(entry github.TreeEntry, limits Limits) bool {
	segments := strings.Split(entry.Path, "/")
	if len(segments) > limits.MaxDepth {
		return false
	}
	for _, segment := range segments {
		if _, skip := skipSegments[segment]; skip {
			return false
		}
	}
	if entry.Size > limits.MaxFileBytes {
		return false
	}
	return isLikelyText(entry.Path)
}

// isLikelyText treats files without an extension as text.
func isLikelyText(p string) bool {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
	if ext == "" {
		return true
	}
	_, binary := binaryExtensions[ext]
	return !binary
}

func scorePath(p string) (int, Category) {
	lower := strings.ToLower(p)
	if !strings.Contains(p, "/") && strings.HasPrefix(lower, "readme") {
		return 100, CategoryReadme
	}
	for _, prefix := range docsPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return 85, CategoryDocs
		}
	}
	if _, ok := configFiles[path.Base(lower)]; ok {
		return 70, CategoryConfig
	}
	if entrypointPattern.MatchString(lower) || lower == "main.go" || goCommandEntryPath.MatchString(lower) {
		return 60, CategoryEntrypoint
	}
	if strings.HasSuffix(lower, ".md") {
		return 45, CategoryDocs
	}
	return 20, CategoryOther
}

// compareCandidates orders by score desc, depth asc, path asc, size asc.
func compareCandidates(a, b ScoredFile) int {
	if a.Score != b.Score {
		return b.Score - a.Score
	}
	if da, db := pathDepth(a.Path), pathDepth(b.Path); da != db {
		return da - db
	}
	if c := strings.Compare(a.Path, b.Path); c != 0 {
		return c
	}
	switch {
	case a.Size < b.Size:
		return -1
	case a.Size > b.Size:
		return 1
	default:
		return 0
	}
}

func pathDepth(p string) int {
	return strings.Count(p, "/") + 1
}
