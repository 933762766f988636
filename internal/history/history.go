// Package history records backend launches in a small SQLite database so
// status and history commands can report what ran and how it ended.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was written by another schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrNotFound is returned when a run id has no record.
var ErrNotFound = errors.New("launch not found")

// Outcome classifies how a launch ended.
type Outcome string

const (
	OutcomeRunning     Outcome = "running"
	OutcomeExited      Outcome = "exited"
	OutcomeStopped     Outcome = "stopped"
	OutcomeSpawnFailed Outcome = "spawn_failed"
)

// Launch is one backend invocation.
type Launch struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt *time.Time
	Executable string
	Args       []string
	Mode       string
	ItemID     string
	PID        int
	Outcome    Outcome
	ExitCode   *int
	Detail     string
}

// Store persists launches.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset history)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Record inserts a launch.
func (s *Store) Record(ctx context.Context, l Launch) error {
	if l.RunID == "" {
		return errors.New("record launch: run id required")
	}
	if l.StartedAt.IsZero() {
		l.StartedAt = time.Now()
	}
	if l.Outcome == "" {
		l.Outcome = OutcomeRunning
	}
	argsJSON, err := json.Marshal(nonNil(l.Args))
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}
	var finished any
	if l.FinishedAt != nil {
		finished = l.FinishedAt.UTC().Format(time.RFC3339Nano)
	}
	var exitCode any
	if l.ExitCode != nil {
		exitCode = *l.ExitCode
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO launches (
            run_id, started_at, finished_at, executable, args_json, mode, item_id, pid, outcome, exit_code, detail
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.RunID,
		l.StartedAt.UTC().Format(time.RFC3339Nano),
		finished,
		l.Executable,
		string(argsJSON),
		l.Mode,
		l.ItemID,
		l.PID,
		string(l.Outcome),
		exitCode,
		l.Detail,
	)
	if err != nil {
		return fmt.Errorf("insert launch: %w", err)
	}
	return nil
}

// Finish marks a running launch as ended. Finishing an already finished launch
// keeps the first outcome.
func (s *Store) Finish(ctx context.Context, runID string, exitCode int, outcome Outcome, detail string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE launches SET finished_at = ?, exit_code = ?, outcome = ?, detail = ?
         WHERE run_id = ? AND outcome = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		exitCode,
		string(outcome),
		detail,
		runID,
		string(OutcomeRunning),
	)
	if err != nil {
		return fmt.Errorf("finish launch: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, getErr := s.Get(ctx, runID); errors.Is(getErr, ErrNotFound) {
			return fmt.Errorf("finish launch %s: %w", runID, ErrNotFound)
		}
	}
	return nil
}

// Get returns one launch.
func (s *Store) Get(ctx context.Context, runID string) (*Launch, error) {
	row := s.db.QueryRowContext(ctx, selectLaunch+" WHERE run_id = ?", runID)
	l, err := scanLaunch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return l, err
}

// Recent returns up to limit launches, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Launch, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectLaunch+" ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query launches: %w", err)
	}
	defer rows.Close()

	var out []Launch
	for rows.Next() {
		l, err := scanLaunch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// Prune deletes launches that started before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM launches WHERE started_at < ?", cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune launches: %w", err)
	}
	return res.RowsAffected()
}

const selectLaunch = `SELECT run_id, started_at, finished_at, executable, args_json, mode, item_id, pid, outcome, exit_code, detail FROM launches`

type scanner interface {
	Scan(dest ...any) error
}

func scanLaunch(row scanner) (*Launch, error) {
	var (
		l        Launch
		started  string
		finished sql.NullString
		argsJSON string
		outcome  string
		exitCode sql.NullInt64
	)
	if err := row.Scan(&l.RunID, &started, &finished, &l.Executable, &argsJSON, &l.Mode, &l.ItemID, &l.PID, &outcome, &exitCode, &l.Detail); err != nil {
		return nil, err
	}
	var err error
	if l.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if finished.Valid {
		ts, err := time.Parse(time.RFC3339Nano, finished.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		l.FinishedAt = &ts
	}
	if err := json.Unmarshal([]byte(argsJSON), &l.Args); err != nil {
		return nil, fmt.Errorf("decode args: %w", err)
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		l.ExitCode = &code
	}
	l.Outcome = Outcome(outcome)
	return &l, nil
}

func nonNil(args []string) []string {
	if args == nil {
		return []string{}
	}
	return args
}
