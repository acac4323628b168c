package publish

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfeltz/footprint/pkg/fault"
)

// fakeGitClient simulates a remote branch. Trees, blobs and commits are
// created freely; only UpdateBranchHead is observable, and it enforces the
// compare-and-swap.
type fakeGitClient struct {
	head      string
	tree      string
	nextSHA   int
	commits   map[string]string // commit -> tree
	blobs     map[string][]byte
	trees     map[string][]TreeEntry
	updates   int
	moveOnce  bool // simulate a concurrent push before the first CAS
	failBlobs bool
}

func newFakeGitClient() *fakeGitClient {
	return &fakeGitClient{
		head:    "base-commit",
		tree:    "base-tree",
		commits: map[string]string{"base-commit": "base-tree"},
		blobs:   map[string][]byte{},
		trees:   map[string][]TreeEntry{},
	}
}

func (f *fakeGitClient) sha(prefix string) string {
	f.nextSHA++
	return fmt.Sprintf("%s-%d", prefix, f.nextSHA)
}

func (f *fakeGitClient) GetBranchHead(ctx context.Context, branch string) (string, error) {
	return f.head, nil
}

func (f *fakeGitClient) GetCommitTree(ctx context.Context, commitSHA string) (string, error) {
	tree, ok := f.commits[commitSHA]
	if !ok {
		return "", fmt.Errorf("unknown commit %s", commitSHA)
	}
	return tree, nil
}

func (f *fakeGitClient) CreateBlob(ctx context.Context, content []byte) (string, error) {
	if f.failBlobs {
		return "", fault.Transient("create blob", fmt.Errorf("status 502"))
	}
	sha := f.sha("blob")
	f.blobs[sha] = content
	return sha, nil
}

func (f *fakeGitClient) CreateTree(ctx context.Context, baseTreeSHA string, entries []TreeEntry) (string, error) {
	sha := f.sha("tree")
	f.trees[sha] = entries
	return sha, nil
}

func (f *fakeGitClient) CreateCommit(ctx context.Context, message, treeSHA, parentSHA string) (string, error) {
	sha := f.sha("commit")
	f.commits[sha] = treeSHA
	return sha, nil
}

func (f *fakeGitClient) UpdateBranchHead(ctx context.Context, branch, newSHA, expectedOldSHA string) error {
	f.updates++
	if f.moveOnce {
		// Someone else pushed between resolve and CAS.
		f.moveOnce = false
		f.head = "interloper-commit"
		f.commits["interloper-commit"] = "interloper-tree"
	}
	if f.head != expectedOldSHA {
		return fault.Conflict("update branch", fmt.Errorf("expected %s, at %s", expectedOldSHA, f.head))
	}
	f.head = newSHA
	return nil
}

func manifest() Manifest {
	return Manifest{
		Message: "Add monthly summary draft for 08/2025",
		Entries: []Entry{
			{Path: "content/posts/2025-08-monthly-summary.md", Content: []byte("# summary")},
			{Path: "data/activity/reading.yaml", Content: []byte("# reading")},
		},
	}
}

func TestCommit_SingleAttempt(t *testing.T) {
	client := newFakeGitClient()
	tx := NewTransaction(client, "main")

	sha, err := tx.Commit(context.Background(), manifest())
	require.NoError(t, err)
	assert.Equal(t, sha, client.head)
	assert.Equal(t, 1, client.updates)

	// Both entries landed in one tree.
	tree := client.commits[sha]
	require.Len(t, client.trees[tree], 2)
}

func TestCommit_RetriesOnTipMove(t *testing.T) {
	client := newFakeGitClient()
	client.moveOnce = true
	tx := NewTransaction(client, "main")

	sha, err := tx.Commit(context.Background(), manifest())
	require.NoError(t, err)
	assert.Equal(t, sha, client.head)
	assert.Equal(t, 2, client.updates)

	// The retry rebuilt against the moved tip, not the stale base.
	assert.Equal(t, 4, len(client.blobs))
}

func TestCommit_FailureLeavesBranchUntouched(t *testing.T) {
	client := newFakeGitClient()
	client.failBlobs = true
	tx := NewTransaction(client, "main")

	_, err := tx.Commit(context.Background(), manifest())
	require.Error(t, err)
	assert.Equal(t, "base-commit", client.head)
	assert.Equal(t, 0, client.updates)
	// Transient blob failures are not conflicts; no retry loop.
	assert.False(t, fault.IsConflict(err))
}

func TestCommit_ConflictRetriesExhausted(t *testing.T) {
	moved := 0
	client := &alwaysMovingClient{fakeGitClient: newFakeGitClient(), moved: &moved}
	tx := NewTransaction(client, "main")
	tx.MaxRetries = 2

	_, err := tx.Commit(context.Background(), manifest())
	require.Error(t, err)
	assert.True(t, fault.IsConflict(err))
	assert.Equal(t, 3, moved) // initial attempt + 2 retries
}

// alwaysMovingClient makes every CAS lose to a concurrent push.
type alwaysMovingClient struct {
	*fakeGitClient
	moved *int
}

func (a *alwaysMovingClient) UpdateBranchHead(ctx context.Context, branch, newSHA, expectedOldSHA string) error {
	*a.moved++
	moved := a.sha("moved")
	a.commits[moved] = a.sha("moved-tree")
	a.head = moved
	return fault.Conflict("update branch", fmt.Errorf("tip moved"))
}

func TestCommit_EmptyManifest(t *testing.T) {
	tx := NewTransaction(newFakeGitClient(), "main")
	_, err := tx.Commit(context.Background(), Manifest{Message: "empty"})
	assert.Error(t, err)
}
