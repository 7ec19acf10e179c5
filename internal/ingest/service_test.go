package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"repolearn/internal/github"
)

type hostServer struct {
	mu       sync.Mutex
	repoJSON string
	treeJSON string
	files    map[string]string
	paths    []string
}

func (h *hostServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.paths = append(h.paths, r.URL.Path)
	h.mu.Unlock()

	switch {
	case r.URL.Path == "/repos/octo/demo":
		fmt.Fprint(w, h.repoJSON)
	case strings.HasPrefix(r.URL.Path, "/repos/octo/demo/git/trees/"):
		fmt.Fprint(w, h.treeJSON)
	case strings.HasPrefix(r.URL.Path, "/raw/octo/demo/main/"):
		content, ok := h.files[strings.TrimPrefix(r.URL.Path, "/raw/octo/demo/main/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(content)))
		fmt.Fprint(w, content)
	default:
		http.NotFound(w, r)
	}
}

func (h *hostServer) requested() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.paths...)
}

func newIngestService(t *testing.T, host *hostServer) *Service {
	t.Helper()
	server := httptest.NewServer(host)
	t.Cleanup(server.Close)
	client, err := github.New(github.Config{APIBaseURL: server.URL, RawBaseURL: server.URL + "/raw"})
	if err != nil {
		t.Fatalf("github.New: %v", err)
	}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return NewService(client, WithClock(func() time.Time { return fixed }))
}

func TestIngestBuildsRepoContext(t *testing.T) {
	host := &hostServer{
		repoJSON: `{"default_branch":"main","description":"Demo","private":false}`,
		treeJSON: `{"truncated":false,"tree":[
			{"path":"README.md","type":"blob","size":12},
			{"path":"docs","type":"tree"},
			{"path":"docs/guide.md","type":"blob","size":13},
			{"path":"docs/gone.md","type":"blob","size":5},
			{"path":"assets/logo.png","type":"blob","size":20}
		]}`,
		files: map[string]string{
			"README.md":     "Hello readme",
			"docs/guide.md": "Guide content",
		},
	}
	svc := newIngestService(t, host)

	repoCtx, err := svc.Ingest(context.Background(), Options{
		RepoURL:      "https://github.com/octo/demo",
		MaxFiles:     5,
		MaxBytes:     200,
		MaxFileBytes: 100,
		MaxDepth:     4,
		Timeout:      time.Second,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if repoCtx.Repo.DefaultBranch != "main" || repoCtx.Repo.Description != "Demo" || repoCtx.Repo.URL != "https://github.com/octo/demo" {
		t.Fatalf("unexpected repo meta: %+v", repoCtx.Repo)
	}
	if !repoCtx.Repo.FetchedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected fetched at %v", repoCtx.Repo.FetchedAt)
	}
	if len(repoCtx.Files) != 2 || repoCtx.Files[0].Path != "README.md" || repoCtx.Files[1].Content != "Guide content" {
		t.Fatalf("unexpected files: %+v", repoCtx.Files)
	}
	if strings.Join(repoCtx.SelectedPaths, ",") != "README.md,docs/guide.md" {
		t.Fatalf("unexpected selected paths %v", repoCtx.SelectedPaths)
	}
	want := Stats{TotalTreeFiles: 4, SelectedFiles: 2, TotalBytes: 25, SkippedFiles: 2}
	if repoCtx.Stats != want {
		t.Fatalf("unexpected stats: %+v want %+v", repoCtx.Stats, want)
	}

	first, err := repoCtx.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	second, err := repoCtx.Digest()
	if err != nil || first != second || len(first) != 64 {
		t.Fatalf("expected stable sha256 digest, got %q and %q (%v)", first, second, err)
	}
}

func TestIngestRejectsPrivateBeforeTree(t *testing.T) {
	for _, body := range []string{
		`{"default_branch":"main","private":true}`,
		`{"default_branch":"main","visibility":"private"}`,
	} {
		host := &hostServer{repoJSON: body, treeJSON: `{"tree":[]}`}
		svc := newIngestService(t, host)

		_, err := svc.Ingest(context.Background(), Options{RepoURL: "github.com/octo/demo"})
		if github.CodeOf(err) != github.CodeNotPublic {
			t.Fatalf("expected NOT_PUBLIC, got %v", err)
		}
		if paths := host.requested(); len(paths) != 1 || paths[0] != "/repos/octo/demo" {
			t.Fatalf("expected only the metadata call, got %v", paths)
		}
	}
}

func TestIngestMissingDefaultBranch(t *testing.T) {
	host := &hostServer{repoJSON: `{"private":true}`}
	svc := newIngestService(t, host)

	_, err := svc.Ingest(context.Background(), Options{RepoURL: "github.com/octo/demo"})
	if github.CodeOf(err) != github.CodeFetchFailed {
		t.Fatalf("expected FETCH_FAILED, got %v", err)
	}
}

func TestIngestFailsClosedOnTruncatedTree(t *testing.T) {
	host := &hostServer{
		repoJSON: `{"default_branch":"main"}`,
		treeJSON: `{"truncated":true,"tree":[{"path":"README.md","type":"blob","size":1}]}`,
		files:    map[string]string{"README.md": "x"},
	}
	svc := newIngestService(t, host)

	_, err := svc.Ingest(context.Background(), Options{RepoURL: "github.com/octo/demo"})
	if github.CodeOf(err) != github.CodeRepoTooLarge {
		t.Fatalf("expected REPO_TOO_LARGE, got %v", err)
	}
	for _, path := range host.requested() {
		if strings.HasPrefix(path, "/raw/") {
			t.Fatalf("no content should be fetched for a truncated tree, got %v", host.requested())
		}
	}
}

func TestIngestNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	}))
	t.Cleanup(server.Close)
	client, err := github.New(github.Config{APIBaseURL: server.URL, RawBaseURL: server.URL})
	if err != nil {
		t.Fatalf("github.New: %v", err)
	}
	_, err = NewService(client).Ingest(context.Background(), Options{RepoURL: "https://github.com/ghost/missing"})
	if github.CodeOf(err) != github.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestIngestRejectsBadInput(t *testing.T) {
	svc := NewService(&fakeHost{})
	if _, err := svc.Ingest(context.Background(), Options{RepoURL: "https://gitlab.com/a/b"}); github.CodeOf(err) != github.CodeInvalidRepoURL {
		t.Fatalf("expected INVALID_REPO_URL, got %v", err)
	}
	if _, err := svc.Ingest(context.Background(), Options{RepoURL: "github.com/a/b", MaxFiles: -1}); github.CodeOf(err) != github.CodeInvalidOptions {
		t.Fatalf("expected INVALID_OPTIONS, got %v", err)
	}
}

func TestIngestCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := NewService(&fakeHost{})
	_, err := svc.Ingest(ctx, Options{RepoURL: "github.com/a/b"})
	if github.CodeOf(err) != github.CodeCancelled {
		t.Fatalf("expected CANCELLED, got %v", err)
	}
}

func TestIngestDeadlineIsTimeoutNotCancellation(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	svc := NewService(&fakeHost{})
	_, err := svc.Ingest(ctx, Options{RepoURL: "github.com/a/b"})
	if github.CodeOf(err) != github.CodeTimeout {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("deadline expiry must not read as cancellation: %v", err)
	}
}

type fakeHost struct{ fakeSource }

func (f *fakeHost) Repository(ctx context.Context, ref github.RepoRef) (github.Repository, error) {
	if err := ctx.Err(); err != nil {
		return github.Repository{}, &github.Error{Code: github.CodeOf(err), Message: "interrupted", Err: err}
	}
	return github.Repository{DefaultBranch: "main"}, nil
}

func (f *fakeHost) Tree(ctx context.Context, ref github.RepoRef, branch string) (github.Tree, error) {
	return github.Tree{}, nil
}
