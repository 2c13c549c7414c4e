// Package analysis orchestrates the judgement of repository changes: it
// extracts per-file diffs, asks the AI judge for a verdict on each, and folds
// the answers into a repository-level verdict.
package analysis

import (
	"errors"
	"fmt"
	"time"

	"github.com/diffjury/diffjury/internal/gitdiff"
)

var (
	// ErrUnparseable indicates the judge's response did not contain a usable
	// verdict. The file is reported as an issue; the run continues.
	ErrUnparseable = errors.New("unparseable judge response")
)

// ValidationError indicates a malformed analysis request
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// Request describes one repository analysis
type Request struct {
	RepoURL     string `json:"repo_url"`
	OlderCommit string `json:"older_commit"`
	NewerCommit string `json:"newer_commit"`

	// APIKey is carried per request and never stored in the global
	// configuration or written to logs.
	APIKey string `json:"-"`
}

// Validate checks that all required fields are present
func (r *Request) Validate() error {
	if r.RepoURL == "" {
		return &ValidationError{Field: "repo_url", Reason: "must not be empty"}
	}
	if r.OlderCommit == "" {
		return &ValidationError{Field: "older_commit", Reason: "must not be empty"}
	}
	if r.NewerCommit == "" {
		return &ValidationError{Field: "newer_commit", Reason: "must not be empty"}
	}
	if r.APIKey == "" {
		return &ValidationError{Field: "api_key", Reason: "must not be empty"}
	}
	return nil
}

// FileVerdict is the judge's answer for a single changed file
type FileVerdict struct {
	Path   string `json:"path"`
	IsGood bool   `json:"is_good"`
	Issue  string `json:"issue_description,omitempty"`

	// Skipped marks files that never reached the judge (deleted or binary).
	// Skipped files count as analyzed but neither as good nor as issues.
	Skipped    bool   `json:"skipped,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
}

// RepositoryVerdict is the aggregate outcome of an analysis run.
//
// AnalyzedFiles always equals GoodFiles + FilesWithIssues + SkippedFiles, and
// IsGood holds exactly when no file has an issue and every file was analyzed.
type RepositoryVerdict struct {
	IsGood          bool          `json:"is_good"`
	TotalFiles      int           `json:"total_files"`
	AnalyzedFiles   int           `json:"analyzed_files"`
	GoodFiles       int           `json:"good_files"`
	FilesWithIssues int           `json:"files_with_issues"`
	SkippedFiles    int           `json:"skipped_files"`
	Details         []FileVerdict `json:"details"`
}

// Run is a persisted analysis run
type Run struct {
	ID          string            `json:"id"`
	Label       string            `json:"label"`
	RepoURL     string            `json:"repo_url"`
	OlderCommit string            `json:"older_commit"`
	NewerCommit string            `json:"newer_commit"`
	Verdict     RepositoryVerdict `json:"verdict"`
	CreatedAt   time.Time         `json:"created_at"`
}

// skipReason explains why a record bypassed the judge
func skipReason(record *gitdiff.ChangeRecord) string {
	if record.Kind == gitdiff.ChangeKindDeleted {
		return "file deleted"
	}
	if record.Binary {
		return "binary file"
	}
	return ""
}
