package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultAPIBaseURL  = "https://api.github.com"
	defaultRawBaseURL  = "https://raw.githubusercontent.com"
	defaultCallTimeout = 12 * time.Second
	defaultUserAgent   = "repolearn"
	acceptHeader       = "application/vnd.github+json"
	maxMetadataBytes   = 32 << 20
	maxErrorBodyBytes  = 4096
)

// Config describes the GitHub client configuration.
type Config struct {
	Token      string
	APIBaseURL string
	RawBaseURL string
	UserAgent  string
	// Timeout bounds each request. Zero uses the default.
	Timeout time.Duration
	// RequestsPerSecond throttles requests when positive.
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Client is a read-only GitHub API and raw content client.
type Client struct {
	token     string
	userAgent string
	apiBase   *url.URL
	rawBase   *url.URL
	timeout   time.Duration
	limiter   *rate.Limiter
	http      *http.Client
}

// Repository is the subset of repository metadata ingestion needs.
type Repository struct {
	DefaultBranch string
	Description   string
	Private       bool
	Visibility    string
}

// IsPrivate reports whether the host marks the repository as private.
func (r Repository) IsPrivate() bool {
	return r.Private || strings.EqualFold(r.Visibility, "private")
}

// TreeEntry is one node of a recursive git tree.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	// Size is zero when the host omits it.
	Size int64 `json:"size,omitempty"`
}

// Tree entry types.
const (
	EntryBlob = "blob"
	EntryTree = "tree"
)

// Tree is a recursive listing of a branch.
type Tree struct {
	Entries   []TreeEntry
	Truncated bool
}

// RawFile is the text content of one file.
type RawFile struct {
	Content string
	URL     string
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	apiBase, err := parseBase(cfg.APIBaseURL, defaultAPIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("github: parse api base url: %w", err)
	}
	rawBase, err := parseBase(cfg.RawBaseURL, defaultRawBaseURL)
	if err != nil {
		return nil, fmt.Errorf("github: parse raw base url: %w", err)
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		token:     strings.TrimSpace(cfg.Token),
		userAgent: userAgent,
		apiBase:   apiBase,
		rawBase:   rawBase,
		timeout:   timeout,
		limiter:   limiter,
		http:      client,
	}, nil
}

func parseBase(value, fallback string) (*url.URL, error) {
	value = strings.TrimRight(strings.TrimSpace(value), "/")
	if value == "" {
		value = fallback
	}
	return url.Parse(value)
}

// Repository fetches repository metadata.
func (c *Client) Repository(ctx context.Context, ref RepoRef) (Repository, error) {
	endpoint := c.apiBase.JoinPath("repos", ref.Owner, ref.Name)
	var payload struct {
		DefaultBranch string  `json:"default_branch"`
		Description   *string `json:"description"`
		Private       bool    `json:"private"`
		Visibility    string  `json:"visibility"`
	}
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return Repository{}, err
	}
	repo := Repository{
		DefaultBranch: strings.TrimSpace(payload.DefaultBranch),
		Private:       payload.Private,
		Visibility:    payload.Visibility,
	}
	if payload.Description != nil {
		repo.Description = strings.TrimSpace(*payload.Description)
	}
	return repo, nil
}

// Tree fetches the recursive tree of branch.
func (c *Client) Tree(ctx context.Context, ref RepoRef, branch string) (Tree, error) {
	endpoint := c.apiBase.JoinPath("repos", ref.Owner, ref.Name, "git", "trees", branch)
	endpoint.RawQuery = url.Values{"recursive": []string{"1"}}.Encode()
	var payload struct {
		Truncated bool        `json:"truncated"`
		Tree      []TreeEntry `json:"tree"`
	}
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return Tree{}, err
	}
	return Tree{Entries: payload.Tree, Truncated: payload.Truncated}, nil
}

// RawURL returns the raw content URL for path on branch.
func (c *Client) RawURL(ref RepoRef, branch, path string) string {
	segments := append([]string{ref.Owner, ref.Name, branch}, strings.Split(path, "/")...)
	return c.rawBase.JoinPath(segments...).String()
}

// RawContent downloads one file. Files larger than maxBytes, by header or by
// body, fail with REPO_TOO_LARGE without buffering the rest of the body.
func (c *Client) RawContent(ctx context.Context, ref RepoRef, branch, path string, maxBytes int64) (RawFile, error) {
	rawURL := c.RawURL(ref, branch, path)
	endpoint, err := url.Parse(rawURL)
	if err != nil {
		return RawFile{}, &Error{Code: CodeFetchFailed, Message: "invalid raw content url", Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(callCtx, endpoint, "")
	if err != nil {
		return RawFile{}, err
	}
	defer resp.Body.Close()

	if length := resp.Header.Get("Content-Length"); length != "" && maxBytes > 0 {
		if size, convErr := strconv.ParseInt(length, 10, 64); convErr == nil && size > maxBytes {
			return RawFile{}, &Error{Code: CodeRepoTooLarge, Message: "file exceeds size limit"}
		}
	}

	reader := io.Reader(resp.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return RawFile{}, classifyTransportError(callCtx, err)
	}
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return RawFile{}, &Error{Code: CodeRepoTooLarge, Message: "file exceeds size limit"}
	}
	return RawFile{Content: string(body), URL: rawURL}, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint *url.URL, target any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(callCtx, endpoint, acceptHeader)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBytes))
	if err != nil {
		return classifyTransportError(callCtx, err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return &Error{Code: CodeFetchFailed, Message: "decode GitHub response", Err: err}
	}
	return nil
}

// do performs one GET and converts non-2xx answers into *Error.
func (c *Client) do(ctx context.Context, endpoint *url.URL, accept string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, classifyTransportError(ctx, ctx.Err())
			}
			return nil, classifyTransportError(ctx, context.DeadlineExceeded)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, &Error{Code: CodeFetchFailed, Message: "build request", Err: err}
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, ClassifyResponse(resp.StatusCode, resp.Header, responseMessage(resp))
	}
	return resp, nil
}

func responseMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && strings.TrimSpace(payload.Message) != "" {
		return payload.Message
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return "request failed"
}
