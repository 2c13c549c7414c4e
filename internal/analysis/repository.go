package analysis

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/goombaio/namegenerator"

	"github.com/diffjury/diffjury/internal/loggy"
	"github.com/diffjury/diffjury/internal/ulid"
)

// Repository defines operations for persisting analysis runs
type Repository interface {
	// CreateRun persists a run and its per-file verdicts
	CreateRun(ctx context.Context, run *Run) error

	// GetRun retrieves a run by ID, including its per-file verdicts
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns retrieves recent runs, newest first, without details
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
}

// SQLRepository implements the Repository interface using a SQL database
type SQLRepository struct {
	db     *sql.DB
	names  namegenerator.Generator
	logger *loggy.Logger
}

// NewSQLRepository creates a new SQL repository
func NewSQLRepository(db *sql.DB, logger *loggy.Logger) *SQLRepository {
	return &SQLRepository{
		db:     db,
		names:  namegenerator.NewNameGenerator(time.Now().UnixNano()),
		logger: logger,
	}
}

// CreateRun persists a run and its per-file verdicts
func (r *SQLRepository) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = ulid.RunID()
	}
	if run.Label == "" {
		run.Label = r.names.Generate()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := squirrel.Insert("analysis_runs").
		Columns("id", "label", "repo_url", "older_commit", "newer_commit",
			"is_good", "total_files", "analyzed_files", "good_files",
			"files_with_issues", "skipped_files", "created_at").
		Values(run.ID, run.Label, run.RepoURL, run.OlderCommit, run.NewerCommit,
			run.Verdict.IsGood, run.Verdict.TotalFiles, run.Verdict.AnalyzedFiles,
			run.Verdict.GoodFiles, run.Verdict.FilesWithIssues,
			run.Verdict.SkippedFiles, run.CreatedAt)

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("building create run query: %w", err)
	}

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("executing create run query: %w", err)
	}

	for i := range run.Verdict.Details {
		if err := r.createFileVerdict(ctx, tx, run.ID, &run.Verdict.Details[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}

	r.logger.Debug("Persisted analysis run", "id", run.ID, "label", run.Label)
	return nil
}

func (r *SQLRepository) createFileVerdict(ctx context.Context, tx *sql.Tx, runID string, v *FileVerdict) error {
	var issue sql.NullString
	if v.Issue != "" {
		issue = sql.NullString{String: v.Issue, Valid: true}
	}

	var skipReason sql.NullString
	if v.SkipReason != "" {
		skipReason = sql.NullString{String: v.SkipReason, Valid: true}
	}

	q := squirrel.Insert("file_verdicts").
		Columns("id", "run_id", "path", "is_good", "issue", "skipped", "skip_reason").
		Values(ulid.VerdictID(), runID, v.Path, v.IsGood, issue, v.Skipped, skipReason)

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("building create file verdict query: %w", err)
	}

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("executing create file verdict query: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID, including its per-file verdicts
func (r *SQLRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	q := squirrel.Select("id", "label", "repo_url", "older_commit", "newer_commit",
		"is_good", "total_files", "analyzed_files", "good_files",
		"files_with_issues", "skipped_files", "created_at").
		From("analysis_runs").
		Where(squirrel.Eq{"id": id})

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building get run query: %w", err)
	}

	run, err := r.scanRun(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run not found: %s", id)
		}
		return nil, fmt.Errorf("executing get run query: %w", err)
	}

	details, err := r.fileVerdictsByRun(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	run.Verdict.Details = details

	return run, nil
}

// ListRuns retrieves recent runs, newest first, without per-file details
func (r *SQLRepository) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}

	q := squirrel.Select("id", "label", "repo_url", "older_commit", "newer_commit",
		"is_good", "total_files", "analyzed_files", "good_files",
		"files_with_issues", "skipped_files", "created_at").
		From("analysis_runs").
		OrderBy("id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list runs query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing list runs query: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) scanRun(row rowScanner) (*Run, error) {
	var run Run
	err := row.Scan(
		&run.ID,
		&run.Label,
		&run.RepoURL,
		&run.OlderCommit,
		&run.NewerCommit,
		&run.Verdict.IsGood,
		&run.Verdict.TotalFiles,
		&run.Verdict.AnalyzedFiles,
		&run.Verdict.GoodFiles,
		&run.Verdict.FilesWithIssues,
		&run.Verdict.SkippedFiles,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *SQLRepository) fileVerdictsByRun(ctx context.Context, runID string) ([]FileVerdict, error) {
	q := squirrel.Select("path", "is_good", "issue", "skipped", "skip_reason").
		From("file_verdicts").
		Where(squirrel.Eq{"run_id": runID}).
		OrderBy("path ASC")

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building file verdicts query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing file verdicts query: %w", err)
	}
	defer rows.Close()

	var details []FileVerdict
	for rows.Next() {
		var v FileVerdict
		var issue, skipReason sql.NullString
		if err := rows.Scan(&v.Path, &v.IsGood, &issue, &v.Skipped, &skipReason); err != nil {
			return nil, fmt.Errorf("scanning file verdict: %w", err)
		}
		v.Issue = issue.String
		v.SkipReason = skipReason.String
		details = append(details, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating file verdicts: %w", err)
	}

	return details, nil
}
