package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/diffjury/diffjury/internal/config"
	"github.com/diffjury/diffjury/internal/gitdiff"
	"github.com/diffjury/diffjury/internal/llm"
	"github.com/diffjury/diffjury/internal/loggy"
)

// ChangeSource extracts per-file changes between two commits and reads file
// contents at a commit
type ChangeSource interface {
	ExtractChanges(ctx context.Context, repoURL, older, newer string) ([]gitdiff.ChangeRecord, error)
	FileContentsAt(ctx context.Context, repoURL, commit string, paths []string) (map[string]string, error)
}

// ClientFactory builds a judge client bound to an API key. The key arrives
// with each request and must not outlive it.
type ClientFactory func(apiKey string) llm.Client

// Service runs repository analyses
type Service struct {
	config  *config.Config
	changes ChangeSource
	clients ClientFactory
	parser  *VerdictParser
	repo    Repository // nil disables history
	logger  *loggy.Logger
}

// NewService creates a new analysis service. A nil repository disables
// history persistence; verdicts are still computed and returned.
func NewService(
	cfg *config.Config,
	changes ChangeSource,
	clients ClientFactory,
	repo Repository,
	logger *loggy.Logger,
) *Service {
	return &Service{
		config:  cfg,
		changes: changes,
		clients: clients,
		parser:  NewVerdictParser(logger),
		repo:    repo,
		logger:  logger,
	}
}

// AnalyzeRepository judges every file changed between the two commits and
// returns the aggregate verdict. Run-level failures (bad request, repository
// or commit resolution, rejected credentials) return a nil verdict; per-file
// judge failures are folded into the verdict as issues instead.
func (s *Service) AnalyzeRepository(ctx context.Context, req *Request) (*RepositoryVerdict, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.logger.Info("Starting analysis",
		"repo", req.RepoURL,
		"older", req.OlderCommit,
		"newer", req.NewerCommit)

	records, err := s.changes.ExtractChanges(ctx, req.RepoURL, req.OlderCommit, req.NewerCommit)
	if err != nil {
		return nil, err
	}

	details, err := s.judgeAll(ctx, req.APIKey, records)
	if err != nil {
		return nil, err
	}

	verdict := foldVerdicts(len(records), details)

	s.logger.Info("Analysis complete",
		"repo", req.RepoURL,
		"is_good", verdict.IsGood,
		"total", verdict.TotalFiles,
		"good", verdict.GoodFiles,
		"issues", verdict.FilesWithIssues,
		"skipped", verdict.SkippedFiles)

	if s.repo != nil {
		run := &Run{
			RepoURL:     req.RepoURL,
			OlderCommit: req.OlderCommit,
			NewerCommit: req.NewerCommit,
			Verdict:     *verdict,
		}
		if err := s.repo.CreateRun(ctx, run); err != nil {
			// History is best effort; the verdict already exists
			s.logger.Warn("Failed to persist analysis run", "error", err)
		}
	}

	return verdict, nil
}

// Ask sends a free-form prompt to the judge and returns the raw answer
func (s *Service) Ask(ctx context.Context, apiKey, prompt string) (string, error) {
	if apiKey == "" {
		return "", &ValidationError{Field: "api_key", Reason: "must not be empty"}
	}
	if prompt == "" {
		return "", &ValidationError{Field: "prompt", Reason: "must not be empty"}
	}

	client := s.clients(apiKey)
	resp, err := client.GenerateChat(ctx, llm.ChatRequest{
		Messages: []llm.Message{llm.NewUserMessage(prompt)},
	})
	if err != nil {
		return "", err
	}

	return resp.Content, nil
}

// judgeAll fans the analyzable records out to a bounded worker pool. Results
// keep the input order regardless of completion order. A rejected credential
// cancels the remaining workers and fails the whole run, even mid-batch.
func (s *Service) judgeAll(ctx context.Context, apiKey string, records []gitdiff.ChangeRecord) ([]FileVerdict, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := s.clients(apiKey)
	details := make([]FileVerdict, len(records))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		runErr error
		sem    = make(chan struct{}, s.config.Analysis.Concurrency)
	)

	for i := range records {
		record := &records[i]

		if !record.Analyzable() {
			details[i] = FileVerdict{
				Path:       record.Path,
				IsGood:     true,
				Skipped:    true,
				SkipReason: skipReason(record),
			}
			continue
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			verdict, err := s.judgeFile(ctx, client, record)
			if err != nil {
				mu.Lock()
				if runErr == nil {
					runErr = err
				}
				mu.Unlock()
				cancel()
				return
			}

			details[i] = *verdict
		}(i)
	}

	wg.Wait()

	if runErr != nil {
		return nil, runErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return details, nil
}

// judgeFile asks the judge about one file, splitting oversized diffs into
// chunks. Any bad chunk makes the file bad. Judge failures that are not
// credential rejections become the file's issue; auth failures propagate.
func (s *Service) judgeFile(ctx context.Context, client llm.Client, record *gitdiff.ChangeRecord) (*FileVerdict, error) {
	chunks := SplitDiff(record.Diff, s.config.Analysis.MaxDiffBytes)

	verdict := &FileVerdict{Path: record.Path, IsGood: true}

	for i, chunk := range chunks {
		part := ""
		if len(chunks) > 1 {
			part = fmt.Sprintf("chunk %d/%d", i+1, len(chunks))
		}

		chunkVerdict, err := s.judgeChunk(ctx, client, record, chunk, part)
		if err != nil {
			if errors.Is(err, llm.ErrAuthFailure) || ctx.Err() != nil {
				return nil, err
			}

			s.logger.Warn("Judging failed for file",
				"path", record.Path,
				"part", part,
				"error", err)

			return &FileVerdict{
				Path:   record.Path,
				IsGood: false,
				Issue:  fmt.Sprintf("analysis failed: %v", err),
			}, nil
		}

		if !chunkVerdict.IsGood {
			verdict.IsGood = false
			if verdict.Issue != "" {
				verdict.Issue += "; "
			}
			verdict.Issue += chunkVerdict.Issue
		}
	}

	return verdict, nil
}

func (s *Service) judgeChunk(ctx context.Context, client llm.Client, record *gitdiff.ChangeRecord, chunk, part string) (*JudgeVerdict, error) {
	messages, err := BuildMessages(record, chunk, part)
	if err != nil {
		return nil, fmt.Errorf("building prompt for %s: %w", record.Path, err)
	}

	resp, err := client.GenerateChat(ctx, llm.ChatRequest{Messages: messages})
	if err != nil {
		return nil, err
	}

	return s.parser.Parse(resp.Content)
}

// foldVerdicts computes the aggregate counters from the per-file details
func foldVerdicts(totalFiles int, details []FileVerdict) *RepositoryVerdict {
	verdict := &RepositoryVerdict{
		TotalFiles:    totalFiles,
		AnalyzedFiles: len(details),
		Details:       details,
	}

	for _, d := range details {
		switch {
		case d.Skipped:
			verdict.SkippedFiles++
		case d.IsGood:
			verdict.GoodFiles++
		default:
			verdict.FilesWithIssues++
		}
	}

	verdict.IsGood = verdict.FilesWithIssues == 0 &&
		verdict.AnalyzedFiles == verdict.TotalFiles

	return verdict
}
