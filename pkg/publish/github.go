package publish

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mfeltz/footprint/pkg/fault"
)

const githubAPIBaseURL = "https://api.github.com"

// GitHubClient implements GitClient against the GitHub Git Data API.
type GitHubClient struct {
	client  *http.Client
	token   string
	owner   string
	repo    string
	baseURL string
}

// NewGitHubClient creates a client for owner/repo.
func NewGitHubClient(token, owner, repo string) *GitHubClient {
	return &GitHubClient{
		client:  &http.Client{Timeout: 30 * time.Second},
		token:   token,
		owner:   owner,
		repo:    repo,
		baseURL: githubAPIBaseURL,
	}
}

func (g *GitHubClient) GetBranchHead(ctx context.Context, branch string) (string, error) {
	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	if err := g.do(ctx, http.MethodGet, "/git/ref/heads/"+branch, nil, &ref); err != nil {
		return "", fmt.Errorf("resolve branch %s: %w", branch, err)
	}
	return ref.Object.SHA, nil
}

func (g *GitHubClient) GetCommitTree(ctx context.Context, commitSHA string) (string, error) {
	var commit struct {
		Tree struct {
			SHA string `json:"sha"`
		} `json:"tree"`
	}
	if err := g.do(ctx, http.MethodGet, "/git/commits/"+commitSHA, nil, &commit); err != nil {
		return "", fmt.Errorf("resolve commit %s: %w", commitSHA, err)
	}
	return commit.Tree.SHA, nil
}

func (g *GitHubClient) CreateBlob(ctx context.Context, content []byte) (string, error) {
	body := map[string]string{
		"content":  base64.StdEncoding.EncodeToString(content),
		"encoding": "base64",
	}
	var blob struct {
		SHA string `json:"sha"`
	}
	if err := g.do(ctx, http.MethodPost, "/git/blobs", body, &blob); err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	return blob.SHA, nil
}

func (g *GitHubClient) CreateTree(ctx context.Context, baseTreeSHA string, entries []TreeEntry) (string, error) {
	type treeItem struct {
		Path string `json:"path"`
		Mode string `json:"mode"`
		Type string `json:"type"`
		SHA  string `json:"sha"`
	}
	items := make([]treeItem, len(entries))
	for i, e := range entries {
		items[i] = treeItem{Path: e.Path, Mode: "100644", Type: "blob", SHA: e.BlobSHA}
	}

	body := map[string]any{"base_tree": baseTreeSHA, "tree": items}
	var tree struct {
		SHA string `json:"sha"`
	}
	if err := g.do(ctx, http.MethodPost, "/git/trees", body, &tree); err != nil {
		return "", fmt.Errorf("create tree: %w", err)
	}
	return tree.SHA, nil
}

func (g *GitHubClient) CreateCommit(ctx context.Context, message, treeSHA, parentSHA string) (string, error) {
	body := map[string]any{
		"message": message,
		"tree":    treeSHA,
		"parents": []string{parentSHA},
	}
	var commit struct {
		SHA string `json:"sha"`
	}
	if err := g.do(ctx, http.MethodPost, "/git/commits", body, &commit); err != nil {
		return "", fmt.Errorf("create commit: %w", err)
	}
	return commit.SHA, nil
}

func (g *GitHubClient) UpdateBranchHead(ctx context.Context, branch, newSHA, expectedOldSHA string) error {
	// A non-forced ref update is GitHub's compare-and-swap: it only
	// fast-forwards, so it fails once the tip no longer matches the
	// parent chain built from expectedOldSHA.
	body := map[string]any{"sha": newSHA, "force": false}
	if err := g.do(ctx, http.MethodPatch, "/git/refs/heads/"+branch, body, nil); err != nil {
		return fmt.Errorf("update branch %s: %w", branch, err)
	}
	return nil
}

func (g *GitHubClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	url := fmt.Sprintf("%s/repos/%s/%s%s", g.baseURL, g.owner, g.repo, path)
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+g.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fault.Transient("github api", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		op := fmt.Sprintf("github api %s %s", method, path)
		errStatus := fmt.Errorf("status %d", resp.StatusCode)
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return fault.Auth(op, errStatus)
		case method == http.MethodPatch &&
			(resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity):
			return fault.Conflict(op, errStatus)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fault.Transient(op, errStatus)
		}
		return fmt.Errorf("%s: %w", op, errStatus)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
