// Package github implements a publisher.Provider for GitHub using its REST API.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Strob0t/PageForge/internal/domain"
	"github.com/Strob0t/PageForge/internal/port/publisher"
)

const providerName = "github"

const apiBase = "https://api.github.com"

func init() {
	publisher.Register(providerName, func(config map[string]string) (publisher.Provider, error) {
		if config["owner"] == "" {
			return nil, fmt.Errorf("github: owner is required")
		}
		if config["token"] == "" {
			return nil, fmt.Errorf("github: token is required")
		}
		p := NewProvider(config["owner"], config["token"])
		if config["base_url"] != "" {
			p.setBaseURL(config["base_url"])
		}
		return p, nil
	})
}

// Provider implements publisher.Provider for GitHub repositories and GitHub Pages.
type Provider struct {
	baseURL    string
	webBase    string // browsable host, e.g. https://github.com
	pagesBase  string // format string with owner and repo slots
	owner      string
	token      string
	httpClient *http.Client
}

// NewProvider creates a GitHub provider for the given account owner and token.
func NewProvider(owner, token string) *Provider {
	return &Provider{
		baseURL:    apiBase,
		webBase:    "https://github.com",
		pagesBase:  "https://%s.github.io/%s",
		owner:      owner,
		token:      token,
		httpClient: http.DefaultClient,
	}
}

// setBaseURL points the provider at a GitHub Enterprise API host and derives
// the browsable and pages hosts from it, so reported URLs match the instance
// instead of github.com.
func (p *Provider) setBaseURL(raw string) {
	p.baseURL = strings.TrimSuffix(raw, "/")

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.Host == "api.github.com" {
		return
	}
	host := strings.TrimPrefix(u.Host, "api.")
	p.webBase = u.Scheme + "://" + host
	p.pagesBase = u.Scheme + "://%s." + host + "/%s"
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) Capabilities() publisher.Capabilities {
	return publisher.Capabilities{
		Pages:    true,
		Contents: true,
	}
}

// ghRepo mirrors the JSON response from the GitHub repository API.
type ghRepo struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
}

type ghContent struct {
	SHA string `json:"sha"`
}

func (p *Provider) CreateRepo(ctx context.Context, name, description string) (*publisher.Repo, error) {
	payload := map[string]any{
		"name":        name,
		"description": description,
		"private":     false,
		"auto_init":   true,
	}
	body, err := p.doRequest(ctx, http.MethodPost, "/user/repos", payload)
	if err != nil {
		return nil, fmt.Errorf("github create repo: %w", err)
	}

	var repo ghRepo
	if err := json.Unmarshal(body, &repo); err != nil {
		return nil, fmt.Errorf("github parse response: %w", err)
	}
	return repoToPort(&repo), nil
}

func (p *Provider) GetRepo(ctx context.Context, name string) (*publisher.Repo, error) {
	path := fmt.Sprintf("/repos/%s/%s", p.owner, name)
	body, err := p.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("github get repo: %w", err)
	}

	var repo ghRepo
	if err := json.Unmarshal(body, &repo); err != nil {
		return nil, fmt.Errorf("github parse response: %w", err)
	}
	return repoToPort(&repo), nil
}

// GetContentSHA returns the blob sha of path, or "" when the file is absent.
func (p *Provider) GetContentSHA(ctx context.Context, repo, path string) (string, error) {
	reqPath := fmt.Sprintf("/repos/%s/%s/contents/%s", p.owner, repo, url.PathEscape(path))
	body, err := p.doRequest(ctx, http.MethodGet, reqPath, nil)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("github get content: %w", err)
	}

	var content ghContent
	if err := json.Unmarshal(body, &content); err != nil {
		return "", fmt.Errorf("github parse response: %w", err)
	}
	return content.SHA, nil
}

// PutContent creates or replaces the file. GitHub uses PUT for both; the sha
// field distinguishes a replacement from a creation.
func (p *Provider) PutContent(ctx context.Context, repo, path string, content []byte, message, sha string) error {
	payload := map[string]any{
		"content": base64.StdEncoding.EncodeToString(content),
		"message": message,
	}
	if sha != "" {
		payload["sha"] = sha
	}

	reqPath := fmt.Sprintf("/repos/%s/%s/contents/%s", p.owner, repo, url.PathEscape(path))
	if _, err := p.doRequest(ctx, http.MethodPut, reqPath, payload); err != nil {
		return fmt.Errorf("github put content: %w", err)
	}
	return nil
}

// EnablePages enables GitHub Pages from the default branch root. A 409 means
// Pages is already enabled and is treated as success.
func (p *Provider) EnablePages(ctx context.Context, repo string) error {
	branch := "main"
	if r, err := p.GetRepo(ctx, repo); err == nil && r.DefaultBranch != "" {
		branch = r.DefaultBranch
	}

	payload := map[string]any{
		"source": map[string]string{"branch": branch, "path": "/"},
	}
	path := fmt.Sprintf("/repos/%s/%s/pages", p.owner, repo)
	_, err := p.doRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.status == http.StatusConflict {
			return nil
		}
		return fmt.Errorf("github enable pages: %w", err)
	}
	return nil
}

func (p *Provider) RepoURL(repo string) string {
	return fmt.Sprintf("%s/%s/%s", p.webBase, p.owner, repo)
}

func (p *Provider) PagesURL(repo string) string {
	return fmt.Sprintf(p.pagesBase, p.owner, repo)
}

// apiError carries the HTTP status so callers can detect 404s and 409s.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("github API %d: %s", e.status, e.body)
}

func (e *apiError) Unwrap() error {
	if e.status == http.StatusNotFound {
		return domain.ErrNotFound
	}
	return nil
}

func isNotFound(err error) bool {
	var ae *apiError
	return errors.As(err, &ae) && ae.status == http.StatusNotFound
}

func (p *Provider) doRequest(ctx context.Context, method, path string, payload map[string]any) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+p.token)
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &apiError{status: resp.StatusCode, body: string(respBody)}
	}

	return respBody, nil
}

func repoToPort(r *ghRepo) *publisher.Repo {
	branch := r.DefaultBranch
	if branch == "" {
		branch = "main"
	}
	return &publisher.Repo{
		Name:          r.Name,
		FullName:      r.FullName,
		HTMLURL:       r.HTMLURL,
		DefaultBranch: branch,
	}
}
