package prompts

import (
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"repolearn/internal/ingest"
)

func sampleContext() *ingest.RepoContext {
	return &ingest.RepoContext{
		Repo: ingest.RepoMeta{
			Owner:         "acme",
			Name:          "widget",
			URL:           "https://github.com/acme/widget",
			DefaultBranch: "main",
			Description:   "Widgets for everyone",
		},
		Files: []ingest.RepoFile{
			{Path: "internal/util/helpers.go", Size: 12, Content: "package util", Category: ingest.CategoryOther},
			{Path: "go.mod", Size: 14, Content: "module widget", Category: ingest.CategoryConfig},
			{Path: "docs/guide.md", Size: 7, Content: "# Guide", Category: ingest.CategoryDocs},
			{Path: "main.go", Size: 12, Content: "package main", Category: ingest.CategoryEntrypoint},
			{Path: "README.md", Size: 8, Content: "# Widget", Category: ingest.CategoryReadme},
		},
		Stats:    ingest.Stats{TotalTreeFiles: 40, SelectedFiles: 5, TotalBytes: 53},
		Warnings: []string{"file selection capped by total bytes limit"},
	}
}

func blockPaths(formatted string) []string {
	var paths []string
	for _, line := range strings.Split(formatted, "\n") {
		if strings.HasPrefix(line, "--- END: ") {
			paths = append(paths, strings.TrimSuffix(strings.TrimPrefix(line, "--- END: "), " ---"))
		}
	}
	return paths
}

func TestFormatRepoContextOrdersByCategory(t *testing.T) {
	out := FormatRepoContext(sampleContext(), FormatOptions{})

	want := []string{"README.md", "docs/guide.md", "main.go", "go.mod", "internal/util/helpers.go"}
	if diff := cmp.Diff(want, blockPaths(out)); diff != "" {
		t.Fatalf("file order mismatch (-want +got):\n%s", diff)
	}
	for _, fragment := range []string{
		"Repo: https://github.com/acme/widget",
		"Default branch: main",
		"Description: Widgets for everyone",
		"Selected files: 5/40 (bytes: 53)",
		"Warnings: file selection capped by total bytes limit",
		filesBanner,
		"--- README: README.md (8 bytes) ---\n# Widget\n--- END: README.md ---",
		"--- Entrypoints: main.go (12 bytes) ---",
	} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("formatted context missing %q:\n%s", fragment, out)
		}
	}
	if strings.Contains(out, "CONTEXT_CAPPED") || strings.Contains(out, "TRUNCATED") {
		t.Fatalf("unexpected markers in small context:\n%s", out)
	}
}

func TestFormatRepoContextOmitsEmptyOptionalHeaders(t *testing.T) {
	repo := sampleContext()
	repo.Repo.Description = ""
	repo.Warnings = nil
	out := FormatRepoContext(repo, FormatOptions{})
	if strings.Contains(out, "Description:") || strings.Contains(out, "Warnings:") {
		t.Fatalf("optional headers should be omitted:\n%s", out)
	}
}

func TestFormatRepoContextClampsFiles(t *testing.T) {
	repo := sampleContext()
	repo.Files = []ingest.RepoFile{{Path: "README.md", Size: 30, Content: strings.Repeat("é", 30), Category: ingest.CategoryReadme}}
	out := FormatRepoContext(repo, FormatOptions{MaxFileChars: 10})
	if !strings.Contains(out, strings.Repeat("é", 10)+"\n\n[TRUNCATED]\n--- END: README.md ---") {
		t.Fatalf("expected clamped content:\n%s", out)
	}
	if strings.Contains(out, strings.Repeat("é", 11)) {
		t.Fatalf("content was not clamped:\n%s", out)
	}
}

func TestFormatRepoContextCapsTotal(t *testing.T) {
	repo := sampleContext()
	full := FormatRepoContext(repo, FormatOptions{})
	// Leave room for the header and roughly two blocks.
	limit := strings.Index(full, "--- END: docs/guide.md ---") + len("--- END: docs/guide.md ---") + 5

	out := FormatRepoContext(repo, FormatOptions{MaxTotalChars: limit})
	if diff := cmp.Diff([]string{"README.md", "docs/guide.md"}, blockPaths(out)); diff != "" {
		t.Fatalf("capped file set mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasSuffix(out, "[CONTEXT_CAPPED: maxTotalChars="+strconv.Itoa(limit)+"]") {
		t.Fatalf("missing cap marker:\n%s", out)
	}
}

func TestFormatRepoContextFocusPromotesRelevantFiles(t *testing.T) {
	repo := sampleContext()
	repo.Files[0].Content = "package util\n\nfunc RetryBackoff() {}\n// retry backoff jitter"
	out := FormatRepoContext(repo, FormatOptions{Focus: "How does retry backoff work?"})
	paths := blockPaths(out)
	if len(paths) == 0 || paths[0] != "internal/util/helpers.go" {
		t.Fatalf("expected focused file first, got %v", paths)
	}
}

func TestFormatRepoContextDoesNotMutateInput(t *testing.T) {
	repo := sampleContext()
	before := append([]ingest.RepoFile(nil), repo.Files...)
	FormatRepoContext(repo, FormatOptions{})
	if diff := cmp.Diff(before, repo.Files); diff != "" {
		t.Fatalf("input files mutated (-before +after):\n%s", diff)
	}
}
