package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/mfeltz/footprint/pkg/compare"
	"github.com/mfeltz/footprint/pkg/fault"
)

const githubBaseURL = "https://api.github.com"

// GitHubActivity syncs the user's commits across their owned public repos.
//
// Cursor format: RFC3339 timestamp of the newest commit applied. GitHub's
// `since` parameter is inclusive, so the cursor is bumped by one second when
// sent to exclude the commit already stored.
type GitHubActivity struct {
	client   *http.Client
	token    string
	username string
	baseURL  string
}

// NewGitHubActivity creates a GitHub commit-activity adapter.
func NewGitHubActivity(token, username string) *GitHubActivity {
	return &GitHubActivity{
		client:   &http.Client{Timeout: 30 * time.Second},
		token:    token,
		username: username,
		baseURL:  githubBaseURL,
	}
}

func (g *GitHubActivity) Name() Type { return TypeGitHub }

// FetchSince walks every owned public repo and returns all new commits as a
// single batch. The repo set is small enough that splitting it into pages
// would only spread one logical snapshot over several cursor commits.
func (g *GitHubActivity) FetchSince(ctx context.Context, cursor string) (Batch, error) {
	since := ""
	newest := time.Time{}
	if cursor != "" {
		t, err := time.Parse(time.RFC3339, cursor)
		if err != nil {
			return Batch{}, fault.Validation("parse github cursor", err)
		}
		newest = t
		since = t.Add(time.Second).Format(time.RFC3339)
	}

	repos, err := g.listRepos(ctx)
	if err != nil {
		return Batch{}, err
	}

	now := time.Now().UTC()
	var records []Record
	for _, repo := range repos {
		commits, err := g.listCommits(ctx, repo.Owner.Login, repo.Name, since)
		if err != nil {
			return Batch{}, err
		}

		for _, c := range commits {
			if c.SHA == "" || c.Commit.Author.Date.IsZero() {
				fmt.Fprintf(os.Stderr, "  github: skipping malformed commit in %s\n", repo.FullName)
				continue
			}
			date := c.Commit.Author.Date.UTC()
			if date.After(newest) {
				newest = date
			}
			records = append(records, Record{
				ID:         "github:" + c.SHA,
				Source:     TypeGitHub,
				OccurredAt: date,
				Labels:     map[string]string{"repo": repo.FullName},
				Values:     map[string]float64{},
				FetchedAt:  now,
			})
		}
	}

	next := cursor
	if !newest.IsZero() {
		next = newest.Format(time.RFC3339)
	}
	return Batch{Records: records, NextCursor: next, HasMore: false}, nil
}

const githubPageSize = 100

func (g *GitHubActivity) listRepos(ctx context.Context) ([]ghActivityRepo, error) {
	var repos []ghActivityRepo
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("type", "owner")
		params.Set("per_page", strconv.Itoa(githubPageSize))
		params.Set("page", strconv.Itoa(page))

		var batch []ghActivityRepo
		if err := g.get(ctx, "/users/"+g.username+"/repos?"+params.Encode(), &batch); err != nil {
			return nil, err
		}
		repos = append(repos, batch...)
		if len(batch) < githubPageSize {
			return repos, nil
		}
	}
}

func (g *GitHubActivity) listCommits(ctx context.Context, owner, repo, since string) ([]ghActivityCommit, error) {
	var commits []ghActivityCommit
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("author", g.username)
		params.Set("per_page", strconv.Itoa(githubPageSize))
		params.Set("page", strconv.Itoa(page))
		if since != "" {
			params.Set("since", since)
		}

		var batch []ghActivityCommit
		err := g.get(ctx, "/repos/"+owner+"/"+repo+"/commits?"+params.Encode(), &batch)
		if err != nil {
			// An empty repository answers 409; treat it as no commits.
			if fault.IsConflict(err) {
				return commits, nil
			}
			return nil, err
		}
		commits = append(commits, batch...)
		if len(batch) < githubPageSize {
			return commits, nil
		}
	}
}

func (g *GitHubActivity) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create github request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fault.Transient("fetch github activity", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return fault.Conflict("fetch github activity", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return apiError("fetch github activity", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode github response: %w", err)
	}
	return nil
}

func (g *GitHubActivity) Reduce(records []Record) map[string]float64 {
	return map[string]float64{
		"commits":       float64(len(records)),
		"repos_touched": distinctLabel(records, "repo"),
	}
}

func (g *GitHubActivity) Comparisons() []compare.Metric {
	return []compare.Metric{
		{Name: "commits"},
		{Name: "repos_touched"},
	}
}

type ghActivityRepo struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Owner    struct {
		Login string `json:"login"`
	} `json:"owner"`
}

type ghActivityCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}
