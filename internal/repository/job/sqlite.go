package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ahmethakanbesel/candle-csv/internal/apperror"
	domain "github.com/ahmethakanbesel/candle-csv/internal/job"
)

const columns = `id, status, progress, filename, error, error_kind, symbol,
	resolved_symbol, timeframe, start_ms, end_ms, rows_count, created_at, updated_at`

// Store is a job.Store backed by SQLite. Records outlive the process; work
// in flight does not.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ domain.Store = (*Store)(nil)

func (s *Store) CreateIfAbsent(ctx context.Context, j *domain.Job) (bool, error) {
	const query = `INSERT INTO jobs (` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query, args(j)...)
	if err != nil {
		return false, fmt.Errorf("create job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create job: %w", err)
	}
	return n == 1, nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM jobs WHERE id = ?`, id)
	j, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.New(apperror.NotFound, "job not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// Set replaces the stored job unless the stored copy is already finished.
func (s *Store) Set(ctx context.Context, j *domain.Job) error {
	const query = `UPDATE jobs SET status = ?, progress = ?, filename = ?, error = ?,
		error_kind = ?, resolved_symbol = ?, rows_count = ?, updated_at = ?
		WHERE id = ? AND status NOT IN ('done', 'error')`

	res, err := s.db.ExecContext(ctx, query,
		string(j.Status), j.Progress, nullable(j.Filename), nullable(j.Error),
		nullable(string(j.ErrorKind)), nullable(j.ResolvedSymbol), j.Rows,
		formatTime(j.UpdatedAt), j.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n == 1 {
		return nil
	}

	cur, err := s.Get(ctx, j.ID)
	if err != nil {
		return err
	}
	return apperror.New(apperror.Conflict, "job "+cur.ID+" already finished with status "+string(cur.Status))
}

// List returns the most recent jobs, newest first.
func (s *Store) List(ctx context.Context) ([]domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM jobs ORDER BY created_at DESC, id LIMIT 100`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	jobs := []domain.Job{}
	for rows.Next() {
		j, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// FailInterrupted moves jobs left unfinished by a previous process into
// the error state. Their work is not resumed.
func (s *Store) FailInterrupted(ctx context.Context) (int64, error) {
	const query = `UPDATE jobs SET status = 'error', error = 'interrupted by restart',
		error_kind = ?, filename = NULL, updated_at = ?
		WHERE status IN ('starting', 'running')`

	res, err := s.db.ExecContext(ctx, query, string(apperror.Cancelled), formatTime(time.Now().UTC()))
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*domain.Job, error) {
	var (
		j                                   domain.Job
		status, createdStr, updatedStr      string
		filename, errMsg, kind, resolvedSym sql.NullString
	)
	if err := row.Scan(
		&j.ID, &status, &j.Progress, &filename, &errMsg, &kind, &j.Symbol,
		&resolvedSym, &j.Timeframe, &j.Start, &j.End, &j.Rows, &createdStr, &updatedStr,
	); err != nil {
		return nil, err
	}

	j.Status = domain.Status(status)
	j.Filename = filename.String
	j.Error = errMsg.String
	j.ErrorKind = apperror.Code(kind.String)
	j.ResolvedSymbol = resolvedSym.String
	j.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	j.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
	return &j, nil
}

func args(j *domain.Job) []any {
	return []any{
		j.ID, string(j.Status), j.Progress, nullable(j.Filename), nullable(j.Error),
		nullable(string(j.ErrorKind)), j.Symbol, nullable(j.ResolvedSymbol), j.Timeframe,
		j.Start, j.End, j.Rows, formatTime(j.CreatedAt), formatTime(j.UpdatedAt),
	}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
