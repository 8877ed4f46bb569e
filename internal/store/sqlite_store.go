package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one recorded child process execution with its captured output.
type Run struct {
	ID        int64
	Command   string
	ExitCode  int
	StdOut    string
	StdErr    string
	StartedAt time.Time
	Duration  time.Duration
}

// Store keeps the history of forwarded runs.
type Store interface {
	// Save records a run and returns its assigned ID.
	Save(run Run) (int64, error)

	// Get loads a run by ID; found is false when it does not exist.
	Get(id int64) (Run, bool, error)

	// List returns up to limit runs, most recent first.
	List(limit int) ([]Run, error)

	// Delete removes a run by ID.
	Delete(id int64) error

	// Close closes the store and releases any resources
	Close() error
}

type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and applies migrations.
func NewSQLiteStore(dbPath string) (Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := ensureDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create directory for database: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Save(run Run) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO runs (command, exit_code, stdout, stderr, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.Command, run.ExitCode, run.StdOut, run.StdErr, run.StartedAt.UTC(), run.Duration.Milliseconds())
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	return id, nil
}

func (s *sqliteStore) Get(id int64) (Run, bool, error) {
	row := s.db.QueryRow(
		`SELECT id, command, exit_code, stdout, stderr, started_at, duration_ms FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, false, nil
		}
		return Run{}, false, fmt.Errorf("failed to load run: %w", err)
	}
	return run, true, nil
}

func (s *sqliteStore) List(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, command, exit_code, stdout, stderr, started_at, duration_ms
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *sqliteStore) Delete(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(r rowScanner) (Run, error) {
	var run Run
	var durationMs int64
	if err := r.Scan(&run.ID, &run.Command, &run.ExitCode, &run.StdOut, &run.StdErr, &run.StartedAt, &durationMs); err != nil {
		return Run{}, err
	}
	run.Duration = time.Duration(durationMs) * time.Millisecond
	return run, nil
}

// ensureDir makes sure a directory exists
func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
