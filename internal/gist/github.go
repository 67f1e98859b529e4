package gist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"
)

var (
	ErrBadCredentials = errors.New("gist: bad credentials")
	ErrRateLimited    = errors.New("gist: rate limited")
	ErrForbidden      = errors.New("gist: forbidden")
)

func classify(resp *http.Response, op string) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrBadCredentials
	case http.StatusForbidden:
		if strings.TrimSpace(resp.Header.Get("X-RateLimit-Remaining")) == "0" {
			return ErrRateLimited
		}
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	default:
		if resp.StatusCode >= 300 {
			return fmt.Errorf("%s failed: %s", op, resp.Status)
		}
		return nil
	}
}

// GitHubStore keeps snippets as GitHub gists.
type GitHubStore struct {
	apiBase    string
	token      string
	httpClient *http.Client
}

func NewGitHubStore(apiBase, token string, httpClient *http.Client) *GitHubStore {
	if apiBase == "" {
		apiBase = "https://api.github.com"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GitHubStore{
		apiBase:    strings.TrimRight(apiBase, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

type githubFile struct {
	Content string `json:"content"`
}

type githubGist struct {
	ID      string                `json:"id"`
	HTMLURL string                `json:"html_url"`
	Files   map[string]githubFile `json:"files"`
}

func (g *githubGist) snapshot() *Snapshot {
	files := make(map[string]string, len(g.Files))
	for name, f := range g.Files {
		files[name] = f.Content
	}
	return &Snapshot{ID: g.ID, URL: g.HTMLURL, Files: files}
}

func (s *GitHubStore) Create(ctx context.Context, params CreateParams) (*Snapshot, error) {
	payload := struct {
		Description string                `json:"description"`
		Public      bool                  `json:"public"`
		Files       map[string]githubFile `json:"files"`
	}{
		Description: params.Description,
		Public:      params.Public,
		Files:       map[string]githubFile{params.Filename: {Content: params.Content}},
	}

	resp, err := s.doPOSTJSON(ctx, s.apiBase+"/gists", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := classify(resp, "create gist"); err != nil {
		return nil, err
	}

	var out githubGist
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode gist: %w", err)
	}
	return out.snapshot(), nil
}

func (s *GitHubStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}

	resp, err := s.doGET(ctx, s.apiBase+"/gists/"+neturl.PathEscape(id))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := classify(resp, "load gist"); err != nil {
		return nil, err
	}

	var out githubGist
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode gist: %w", err)
	}
	return out.snapshot(), nil
}

func (s *GitHubStore) doGET(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	s.setHeaders(req)
	return s.httpClient.Do(req)
}

func (s *GitHubStore) doPOSTJSON(ctx context.Context, url string, payload any) (*http.Response, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode gist: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	s.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	return s.httpClient.Do(req)
}

func (s *GitHubStore) setHeaders(req *http.Request) {
	if strings.TrimSpace(s.token) != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
}
