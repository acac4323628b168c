package publish

import (
	"context"
	"fmt"

	"github.com/mfeltz/footprint/pkg/fault"
)

const defaultMaxRetries = 3

// Entry is one whole-file content destined for the repository.
type Entry struct {
	Path    string
	Content []byte
}

// Manifest is the full set of files for one commit plus its message. It is
// consumed by exactly one Commit call.
type Manifest struct {
	Entries []Entry
	Message string
}

// Transaction commits manifests to one branch atomically.
type Transaction struct {
	client GitClient
	branch string

	// MaxRetries bounds how often a lost compare-and-swap restarts the
	// whole sequence from a fresh branch tip.
	MaxRetries int
}

// NewTransaction creates a transaction against branch.
func NewTransaction(client GitClient, branch string) *Transaction {
	return &Transaction{client: client, branch: branch, MaxRetries: defaultMaxRetries}
}

// Commit publishes every manifest entry as a single commit and returns the
// new commit SHA. Either the branch advances by exactly one commit holding
// all entries, or it is left untouched.
//
// Each attempt re-resolves the tip and rebuilds blobs and tree against the
// fresh base, so a retry can never publish a tree layered on a stale parent.
func (t *Transaction) Commit(ctx context.Context, m Manifest) (string, error) {
	if len(m.Entries) == 0 {
		return "", fmt.Errorf("publish %s: empty manifest", t.branch)
	}

	retries := t.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		sha, err := t.attempt(ctx, m)
		if err == nil {
			return sha, nil
		}
		if !fault.IsConflict(err) {
			return "", fmt.Errorf("publish %s: %w", t.branch, err)
		}
		lastErr = err
	}
	return "", fault.Conflict("publish "+t.branch,
		fmt.Errorf("branch kept moving after %d retries: %w", retries, lastErr))
}

func (t *Transaction) attempt(ctx context.Context, m Manifest) (string, error) {
	head, err := t.client.GetBranchHead(ctx, t.branch)
	if err != nil {
		return "", err
	}

	baseTree, err := t.client.GetCommitTree(ctx, head)
	if err != nil {
		return "", err
	}

	entries := make([]TreeEntry, 0, len(m.Entries))
	for _, e := range m.Entries {
		blob, err := t.client.CreateBlob(ctx, e.Content)
		if err != nil {
			return "", err
		}
		entries = append(entries, TreeEntry{Path: e.Path, BlobSHA: blob})
	}

	tree, err := t.client.CreateTree(ctx, baseTree, entries)
	if err != nil {
		return "", err
	}

	commit, err := t.client.CreateCommit(ctx, m.Message, tree, head)
	if err != nil {
		return "", err
	}

	if err := t.client.UpdateBranchHead(ctx, t.branch, commit, head); err != nil {
		return "", err
	}
	return commit, nil
}
