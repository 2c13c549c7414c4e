package gitdiff

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	"github.com/diffjury/diffjury/internal/loggy"
)

// Service provides change extraction between two commits of a repository
type Service struct {
	logger *loggy.Logger
}

// NewService creates a new gitdiff service
func NewService(logger *loggy.Logger) *Service {
	return &Service{
		logger: logger,
	}
}

// ExtractChanges clones the repository at repoURL into memory, resolves both
// commit identifiers and returns the per-file changes between them, sorted by
// path. The older commit is the diff base.
func (s *Service) ExtractChanges(ctx context.Context, repoURL, older, newer string) ([]ChangeRecord, error) {
	repo, err := git.CloneContext(ctx, memory.NewStorage(), nil, &git.CloneOptions{
		URL: repoURL,
	})
	if err != nil {
		s.logger.Debug("Failed to clone repository", "url", repoURL, "error", err)
		return nil, fmt.Errorf("%w: cloning %s: %v", ErrRepoUnavailable, repoURL, err)
	}

	olderCommit, err := s.resolveCommit(repo, older)
	if err != nil {
		return nil, err
	}

	newerCommit, err := s.resolveCommit(repo, newer)
	if err != nil {
		return nil, err
	}

	records, err := s.diffCommits(ctx, olderCommit, newerCommit)
	if err != nil {
		return nil, err
	}

	// Stable order so repeated runs over identical inputs are deterministic
	sort.Slice(records, func(i, j int) bool {
		return records[i].Path < records[j].Path
	})

	s.logger.Debug("Extracted changes",
		"url", repoURL,
		"older", olderCommit.Hash.String(),
		"newer", newerCommit.Hash.String(),
		"files", len(records))

	return records, nil
}

// FileContentsAt returns the contents of the named files as they exist at
// the given commit. Paths that do not exist at that commit are left out of
// the result rather than failing it; binary files come back as the
// placeholder text.
func (s *Service) FileContentsAt(ctx context.Context, repoURL, commit string, paths []string) (map[string]string, error) {
	if len(paths) == 0 {
		return map[string]string{}, nil
	}

	repo, err := git.CloneContext(ctx, memory.NewStorage(), nil, &git.CloneOptions{
		URL: repoURL,
	})
	if err != nil {
		s.logger.Debug("Failed to clone repository", "url", repoURL, "error", err)
		return nil, fmt.Errorf("%w: cloning %s: %v", ErrRepoUnavailable, repoURL, err)
	}

	target, err := s.resolveCommit(repo, commit)
	if err != nil {
		return nil, err
	}

	contents := make(map[string]string, len(paths))
	for _, path := range paths {
		file, err := target.File(filepath.Clean(path))
		if err != nil {
			if errors.Is(err, object.ErrFileNotFound) {
				continue
			}
			return nil, fmt.Errorf("%w: reading %s: %v", ErrDiffFailure, path, err)
		}

		if binary, err := file.IsBinary(); err == nil && binary {
			contents[path] = BinaryPlaceholder
			continue
		}

		text, err := file.Contents()
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrDiffFailure, path, err)
		}
		contents[path] = text
	}

	return contents, nil
}

// resolveCommit resolves a revision string to its commit object
func (s *Service) resolveCommit(repo *git.Repository, rev string) (*object.Commit, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %q: %v", ErrCommitNotFound, rev, err)
	}

	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("%w: loading commit %s: %v", ErrCommitNotFound, hash, err)
	}

	return commit, nil
}

// diffCommits computes the tree-to-tree diff between two commits
func (s *Service) diffCommits(ctx context.Context, older, newer *object.Commit) ([]ChangeRecord, error) {
	olderTree, err := older.Tree()
	if err != nil {
		return nil, fmt.Errorf("%w: getting older tree: %v", ErrDiffFailure, err)
	}

	newerTree, err := newer.Tree()
	if err != nil {
		return nil, fmt.Errorf("%w: getting newer tree: %v", ErrDiffFailure, err)
	}

	// Rename detection is delegated to go-git; a detected rename arrives as a
	// single change with differing From/To names.
	changes, err := object.DiffTreeWithOptions(ctx, olderTree, newerTree, &object.DiffTreeOptions{
		DetectRenames: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: diffing trees: %v", ErrDiffFailure, err)
	}

	records := make([]ChangeRecord, 0, len(changes))
	for _, change := range changes {
		record, err := s.processChange(ctx, change)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

// processChange converts a single go-git Change to a ChangeRecord
func (s *Service) processChange(ctx context.Context, change *object.Change) (ChangeRecord, error) {
	var record ChangeRecord

	fromName := ""
	if change.From.Name != "" {
		fromName = filepath.Clean(change.From.Name)
	}

	toName := ""
	if change.To.Name != "" {
		toName = filepath.Clean(change.To.Name)
	}

	path := toName
	if path == "" {
		path = fromName
	}

	kind, err := changeKind(change, fromName, toName)
	if err != nil {
		return record, err
	}

	record = ChangeRecord{
		Path: path,
		Kind: kind,
	}
	if kind == ChangeKindRenamed {
		record.OldPath = fromName
	}

	patch, err := change.PatchContext(ctx)
	if err != nil {
		return record, fmt.Errorf("%w: generating patch for %s: %v", ErrDiffFailure, path, err)
	}

	for _, fp := range patch.FilePatches() {
		if fp.IsBinary() {
			record.Binary = true
			break
		}
	}

	if record.Binary {
		record.Diff = BinaryPlaceholder
	} else {
		record.Diff = patch.String()
	}

	return record, nil
}

// changeKind determines the kind of change from a go-git object.Change
func changeKind(change *object.Change, fromName, toName string) (ChangeKind, error) {
	action, err := change.Action()
	if err != nil {
		return "", fmt.Errorf("%w: determining change action: %v", ErrDiffFailure, err)
	}

	switch action {
	case merkletrie.Insert:
		return ChangeKindAdded, nil
	case merkletrie.Delete:
		return ChangeKindDeleted, nil
	default:
		if fromName != "" && toName != "" && fromName != toName {
			return ChangeKindRenamed, nil
		}
		return ChangeKindModified, nil
	}
}
