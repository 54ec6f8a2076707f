package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/copyleftdev/optilab/internal/experiment"
)

// SQLiteStore keeps records in a SQLite database.
type SQLiteStore struct {
	dsn string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(dsn string) *SQLiteStore {
	return &SQLiteStore{dsn: dsn}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dsn == "" {
		return errors.New("sqlite dsn is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.dsn)
	if err != nil {
		return err
	}
	// A single connection keeps in-memory databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveResults(ctx context.Context, results *experiment.Results) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := encodeResults(results)
	if err != nil {
		return err
	}

	md := results.Metadata
	_, err = db.ExecContext(ctx, `
		INSERT INTO results (id, method, benchmark, time_begin, time_end, series, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			method = excluded.method,
			benchmark = excluded.benchmark,
			time_begin = excluded.time_begin,
			time_end = excluded.time_end,
			series = excluded.series,
			payload = excluded.payload
	`, md.ID, md.MethodName, md.BenchmarkName, md.TimeBegin, md.TimeEnd, len(results.Data), payload)
	return err
}

func (s *SQLiteStore) GetResults(ctx context.Context, id string) (*experiment.Results, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM results WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	results, err := experiment.DecodeJSON(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode results %s: %w", id, err)
	}
	return results, true, nil
}

func (s *SQLiteStore) ListResults(ctx context.Context) ([]Summary, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, method, benchmark, time_begin, time_end, series
		FROM results
		ORDER BY time_begin, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var summary Summary
		if err := rows.Scan(&summary.ID, &summary.Method, &summary.Benchmark,
			&summary.TimeBegin, &summary.TimeEnd, &summary.Series); err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS results (
			id TEXT PRIMARY KEY,
			method TEXT NOT NULL,
			benchmark TEXT NOT NULL,
			time_begin TEXT NOT NULL,
			time_end TEXT NOT NULL,
			series INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
	`)
	return err
}
