// Package gitee implements a publisher.Provider for Gitee using its v5 REST API.
package gitee

import (
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

const providerName = "gitee"

const apiBase = "https://gitee.com/api/v5"

func init() {
	publisher.Register(providerName, func(config map[string]string) (publisher.Provider, error) {
		if config["owner"] == "" {
			return nil, fmt.Errorf("gitee: owner is required")
		}
		if config["token"] == "" {
			return nil, fmt.Errorf("gitee: token is required")
		}
		p := NewProvider(config["owner"], config["token"])
		if config["base_url"] != "" {
			p.setBaseURL(config["base_url"])
		}
		return p, nil
	})
}

// Provider implements publisher.Provider for Gitee repositories and Gitee Pages.
type Provider struct {
	baseURL    string
	webBase    string // browsable host, e.g. https://gitee.com
	pagesBase  string // format string with owner and repo slots
	owner      string
	token      string
	httpClient *http.Client
}

// NewProvider creates a Gitee provider for the given account owner and token.
func NewProvider(owner, token string) *Provider {
	return &Provider{
		baseURL:    apiBase,
		webBase:    "https://gitee.com",
		pagesBase:  "https://%s.gitee.io/%s",
		owner:      owner,
		token:      token,
		httpClient: http.DefaultClient,
	}
}

// setBaseURL points the provider at a different API host and derives the
// browsable and pages hosts from it, so reported URLs match a self-hosted
// instance instead of gitee.com.
func (p *Provider) setBaseURL(raw string) {
	p.baseURL = strings.TrimSuffix(raw, "/")

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.Host == "gitee.com" {
		return
	}
	p.webBase = u.Scheme + "://" + u.Host
	p.pagesBase = u.Scheme + "://%s." + u.Host + "/%s"
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) Capabilities() publisher.Capabilities {
	return publisher.Capabilities{
		Pages:    true,
		Contents: true,
	}
}

// giteeRepo mirrors the JSON response from the Gitee repository API.
type giteeRepo struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
}

// giteeContent mirrors the contents API response; only the sha is used.
type giteeContent struct {
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
		return nil, fmt.Errorf("gitee create repo: %w", err)
	}

	var repo giteeRepo
	if err := json.Unmarshal(body, &repo); err != nil {
		return nil, fmt.Errorf("gitee parse response: %w", err)
	}
	return repoToPort(&repo), nil
}

func (p *Provider) GetRepo(ctx context.Context, name string) (*publisher.Repo, error) {
	path := fmt.Sprintf("/repos/%s/%s", p.owner, name)
	body, err := p.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("gitee get repo: %w", err)
	}

	var repo giteeRepo
	if err := json.Unmarshal(body, &repo); err != nil {
		return nil, fmt.Errorf("gitee parse response: %w", err)
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
		return "", fmt.Errorf("gitee get content: %w", err)
	}

	var content giteeContent
	if err := json.Unmarshal(body, &content); err != nil {
		return "", fmt.Errorf("gitee parse response: %w", err)
	}
	return content.SHA, nil
}

// PutContent creates the file when sha is empty and replaces it otherwise.
// Gitee distinguishes the two with POST vs PUT on the same path.
func (p *Provider) PutContent(ctx context.Context, repo, path string, content []byte, message, sha string) error {
	payload := map[string]any{
		"content": base64.StdEncoding.EncodeToString(content),
		"message": message,
	}
	method := http.MethodPost
	if sha != "" {
		method = http.MethodPut
		payload["sha"] = sha
	}

	reqPath := fmt.Sprintf("/repos/%s/%s/contents/%s", p.owner, repo, url.PathEscape(path))
	if _, err := p.doRequest(ctx, method, reqPath, payload); err != nil {
		return fmt.Errorf("gitee put content: %w", err)
	}
	return nil
}

// EnablePages triggers a Gitee Pages build. Gitee rebuilds in place, so
// repeating the call on an already-enabled repository is harmless.
func (p *Provider) EnablePages(ctx context.Context, repo string) error {
	path := fmt.Sprintf("/repos/%s/%s/pages/builds", p.owner, repo)
	if _, err := p.doRequest(ctx, http.MethodPost, path, map[string]any{}); err != nil {
		return fmt.Errorf("gitee enable pages: %w", err)
	}
	return nil
}

func (p *Provider) RepoURL(repo string) string {
	return fmt.Sprintf("%s/%s/%s", p.webBase, p.owner, repo)
}

func (p *Provider) PagesURL(repo string) string {
	return fmt.Sprintf(p.pagesBase, p.owner, repo)
}

// apiError carries the HTTP status so callers can detect 404s.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("gitee API %d: %s", e.status, e.body)
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
		payload["access_token"] = p.token
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = strings.NewReader(string(data))
	}

	reqURL := p.baseURL + path
	if payload == nil {
		sep := "?"
		if strings.Contains(reqURL, "?") {
			sep = "&"
		}
		reqURL += sep + "access_token=" + url.QueryEscape(p.token)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
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

func repoToPort(r *giteeRepo) *publisher.Repo {
	branch := r.DefaultBranch
	if branch == "" {
		branch = "master"
	}
	return &publisher.Repo{
		Name:          r.Name,
		FullName:      r.FullName,
		HTMLURL:       r.HTMLURL,
		DefaultBranch: branch,
	}
}
