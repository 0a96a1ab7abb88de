package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/MimeLyc/quote-translator/internal/jobs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrNoRuns is returned when the journal holds no runs yet.
var ErrNoRuns = errors.New("no runs recorded")

// SQLiteStore is the run journal. It implements jobs.Journal.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ jobs.Journal = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" -> 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// StartRun inserts a run row and returns its id.
func (s *SQLiteStore) StartRun(ctx context.Context, info jobs.RunInfo) (string, error) {
	codes := make([]string, 0, len(info.Languages))
	for _, l := range info.Languages {
		codes = append(codes, l.Code)
	}
	langs, err := json.Marshal(codes)
	if err != nil {
		return "", fmt.Errorf("marshal languages: %w", err)
	}
	started := info.StartedAt
	if started.IsZero() {
		started = s.now()
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO runs (id, model, quotes, languages, total, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		info.Model,
		info.Quotes,
		string(langs),
		info.Total,
		started.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RecordResult upserts the outcome of one task.
func (s *SQLiteStore) RecordResult(ctx context.Context, runID string, res jobs.Result) error {
	var errText string
	if res.Err != nil {
		errText = res.Err.Error()
	}
	var rejected, detected string
	if res.Outcome != nil {
		rejected = res.Outcome.Rejected
		detected = res.Outcome.DetectedLanguage
	}
	finished := res.FinishedAt
	if finished.IsZero() {
		finished = s.now()
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO task_outcomes (
			run_id, quote_id, language, status, attempts, text, error, rejected, detected_language, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, quote_id, language) DO UPDATE SET
			status=excluded.status,
			attempts=excluded.attempts,
			text=excluded.text,
			error=excluded.error,
			rejected=excluded.rejected,
			detected_language=excluded.detected_language,
			finished_at=excluded.finished_at`,
		runID,
		res.QuoteID,
		res.Language.Code,
		string(res.Status),
		res.Attempts(),
		res.Text,
		errText,
		rejected,
		detected,
		finished.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record outcome for quote %d (%s): %w", res.QuoteID, res.Language.Code, err)
	}
	return nil
}

// FinishRun stores the final counters of a run.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, summary jobs.Summary) error {
	finished := summary.FinishedAt
	if finished.IsZero() {
		finished = s.now()
	}
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE runs SET succeeded = ?, failed = ?, finished_at = ? WHERE id = ?`,
		summary.Succeeded,
		summary.Failed,
		finished.UTC(),
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

const runColumns = `id, model, quotes, languages, total, succeeded, failed, started_at, finished_at`

// LatestRun returns the most recently started run.
func (s *SQLiteStore) LatestRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	return run, err
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	return run, err
}

func scanRun(row *sql.Row) (*Run, error) {
	var run Run
	var langs string
	var finished sql.NullTime
	if err := row.Scan(
		&run.ID,
		&run.Model,
		&run.Quotes,
		&langs,
		&run.Total,
		&run.Succeeded,
		&run.Failed,
		&run.StartedAt,
		&finished,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(langs), &run.Languages); err != nil {
		return nil, fmt.Errorf("decode run languages: %w", err)
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

// Failures lists the failed tasks of a run in quote order.
func (s *SQLiteStore) Failures(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT run_id, quote_id, language, status, attempts, text, error, rejected, detected_language, finished_at
		 FROM task_outcomes
		 WHERE run_id = ? AND status = ?
		 ORDER BY quote_id ASC, language ASC`,
		runID,
		string(jobs.StatusFailed),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]Outcome, 0)
	for rows.Next() {
		var item Outcome
		if err := rows.Scan(
			&item.RunID,
			&item.QuoteID,
			&item.Language,
			&item.Status,
			&item.Attempts,
			&item.Text,
			&item.Error,
			&item.Rejected,
			&item.DetectedLanguage,
			&item.FinishedAt,
		); err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}
