// Package publisher defines the source-hosting provider port (interface).
package publisher

import "context"

// Repo describes a hosted repository.
type Repo struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
}

// Capabilities declares which operations a provider supports.
type Capabilities struct {
	Pages    bool `json:"pages"`
	Contents bool `json:"contents"`
}

// Provider is the port interface for publishing generated documents to a
// git-hosting platform with static-page serving.
type Provider interface {
	// Name returns the unique identifier for this provider (e.g. "gitee").
	Name() string

	// Capabilities returns what this provider supports.
	Capabilities() Capabilities

	// CreateRepo creates a new repository owned by the configured account.
	CreateRepo(ctx context.Context, name, description string) (*Repo, error)

	// GetRepo returns the repository, or domain.ErrNotFound.
	GetRepo(ctx context.Context, name string) (*Repo, error)

	// GetContentSHA returns the current version token of a file, or an
	// empty string when the file does not exist.
	GetContentSHA(ctx context.Context, repo, path string) (string, error)

	// PutContent commits content at path. A non-empty sha replaces the
	// existing version; an empty sha creates the file.
	PutContent(ctx context.Context, repo, path string, content []byte, message, sha string) error

	// EnablePages turns on static-page serving for the repository.
	// Enabling an already-enabled repository is a no-op.
	EnablePages(ctx context.Context, repo string) error

	// RepoURL returns the browsable URL for a repository name.
	RepoURL(repo string) string

	// PagesURL returns the conventional public serving URL for a repository.
	PagesURL(repo string) string
}
