// Package gitdiff extracts per-file change records between two commits of a
// remote Git repository.
package gitdiff

import "errors"

// ChangeKind represents the kind of change to a file
type ChangeKind string

const (
	// ChangeKindAdded represents a file that was added
	ChangeKindAdded ChangeKind = "added"
	// ChangeKindModified represents a file that was modified
	ChangeKindModified ChangeKind = "modified"
	// ChangeKindDeleted represents a file that was deleted
	ChangeKindDeleted ChangeKind = "deleted"
	// ChangeKindRenamed represents a file that was renamed
	ChangeKindRenamed ChangeKind = "renamed"
)

// BinaryPlaceholder is the diff text recorded for binary files. Binary files
// are reported, never dropped, but their content is not sent to the judge.
const BinaryPlaceholder = "[binary file]"

var (
	// ErrRepoUnavailable indicates the repository could not be cloned or fetched
	ErrRepoUnavailable = errors.New("repository unavailable")

	// ErrCommitNotFound indicates one of the requested commits does not resolve
	ErrCommitNotFound = errors.New("commit not found")

	// ErrDiffFailure indicates the diff between the two commits could not be computed
	ErrDiffFailure = errors.New("diff failure")
)

// ChangeRecord represents one file's change between two commits
type ChangeRecord struct {
	Path    string     `json:"path"`
	OldPath string     `json:"old_path,omitempty"` // Only set for renamed files
	Kind    ChangeKind `json:"change_kind"`
	Diff    string     `json:"diff,omitempty"`
	Binary  bool       `json:"binary,omitempty"`
}

// Analyzable reports whether the record carries content worth sending to the
// AI judge. Deleted and binary files are skipped by the aggregator.
func (r *ChangeRecord) Analyzable() bool {
	return r.Kind != ChangeKindDeleted && !r.Binary
}
