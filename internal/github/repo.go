package github

import (
	"net/url"
	"regexp"
	"strings"
)

// RepoRef identifies a repository on github.com.
type RepoRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
	// URL is the canonical https://github.com/<owner>/<name> form.
	URL string `json:"url"`
}

// FullName returns "owner/name".
func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Name
}

var (
	sshPattern    = regexp.MustCompile(`(?i)^git@github\.com:([^/]+)/(.+?)(\.git)?$`)
	schemePattern = regexp.MustCompile(`(?i)^https?://`)
	gitSuffix     = regexp.MustCompile(`(?i)\.git$`)
)

// ParseRepoURL accepts https, scheme-less and git@ SSH forms of a github.com
// repository URL. Extra path segments after owner/name are ignored.
func ParseRepoURL(input string) (RepoRef, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return RepoRef{}, NewError(CodeInvalidRepoURL, "repo URL is empty")
	}

	if match := sshPattern.FindStringSubmatch(trimmed); match != nil {
		return newRepoRef(match[1], match[2]), nil
	}

	normalized := trimmed
	if !schemePattern.MatchString(normalized) {
		normalized = "https://" + normalized
	}
	parsed, err := url.Parse(normalized)
	if err != nil || parsed.Host == "" {
		return RepoRef{}, NewError(CodeInvalidRepoURL, "invalid repo URL")
	}
	if !strings.EqualFold(parsed.Hostname(), "github.com") {
		return RepoRef{}, NewError(CodeInvalidRepoURL, "only github.com URLs are supported")
	}

	var parts []string
	for _, part := range strings.Split(parsed.Path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) < 2 {
		return RepoRef{}, NewError(CodeInvalidRepoURL, "repo URL must include owner/repo")
	}
	owner := parts[0]
	name := gitSuffix.ReplaceAllString(parts[1], "")
	if owner == "" || name == "" {
		return RepoRef{}, NewError(CodeInvalidRepoURL, "invalid owner or repo")
	}
	return newRepoRef(owner, name), nil
}

func newRepoRef(owner, name string) RepoRef {
	return RepoRef{Owner: owner, Name: name, URL: "https://github.com/" + owner + "/" + name}
}
