// Package publish commits a batch of generated files to a remote repository
// as one atomic change, using the content-addressed tree/commit model: blobs
// and trees are created invisibly, and the only observable step is a single
// compare-and-swap update of the branch reference.
package publish

import "context"

// TreeEntry maps one repository path to a created blob.
type TreeEntry struct {
	Path    string
	BlobSHA string
}

// GitClient is the narrow slice of a git hosting API the transaction needs.
// Implementations classify failures through pkg/fault: compare-and-swap
// losses surface as conflicts, credential problems as auth, 5xx/timeouts as
// transient.
type GitClient interface {
	// GetBranchHead resolves the commit the branch currently points at.
	GetBranchHead(ctx context.Context, branch string) (string, error)

	// GetCommitTree resolves a commit's root tree.
	GetCommitTree(ctx context.Context, commitSHA string) (string, error)

	// CreateBlob stores content and returns its blob SHA.
	CreateBlob(ctx context.Context, content []byte) (string, error)

	// CreateTree creates one tree layered on baseTree with every entry
	// replaced or added in a single call.
	CreateTree(ctx context.Context, baseTreeSHA string, entries []TreeEntry) (string, error)

	// CreateCommit creates a commit pointing at tree with the given parent.
	CreateCommit(ctx context.Context, message, treeSHA, parentSHA string) (string, error)

	// UpdateBranchHead moves the branch to newSHA, failing with a conflict
	// when the branch no longer points at expectedOldSHA.
	UpdateBranchHead(ctx context.Context, branch, newSHA, expectedOldSHA string) error
}
