package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/okian/efast/internal/domain/model"
	"github.com/okian/efast/pkg/logger"
	"github.com/okian/efast/pkg/metrics"
)

//go:embed schema.sql
var schemaSQL string

var defaultPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	db      *sql.DB
	pragmas []string
	logger  logger.Logger

	mu     sync.RWMutex
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		pragmas: defaultPragmas,
		logger:  logger.Get().Named("repository"),
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps pragmas and in-memory databases consistent.
	db.SetMaxOpenConns(1)

	for _, pragma := range s.pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s.db = db
	s.logger.Info(ctx, "feature log opened", logger.String("path", path))
	return s, nil
}

// BeginRun registers a run. An empty info.ID gets a fresh UUID.
func (s *SQLiteStore) BeginRun(ctx context.Context, info RunInfo) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrClosed
	}

	if info.ID == "" {
		info.ID = uuid.NewString()
	}
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, width, height, channels, input, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		info.ID, info.Width, info.Height, info.Channels, info.Input, info.StartedAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return info.ID, nil
}

// RecordPacket stores one packet summary and its features in a transaction.
func (s *SQLiteStore) RecordPacket(ctx context.Context, runID string, r model.PacketResult) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordFeatureLogWrite(metrics.Milliseconds(time.Since(start)))
		if err != nil {
			metrics.RecordErrorByComponent("repository", "write_failed")
		}
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE run_id = ?`, runID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	if err != nil {
		return fmt.Errorf("lookup run: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO packets (run_id, packet_seq, events, rejected, features, duration_ns) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, int64(r.Seq), len(r.Events), r.Rejected, len(r.Features), r.Duration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert packet %d: %w", r.Seq, err)
	}

	if len(r.Features) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO features (run_id, packet_seq, x, y, t, polarity) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare feature insert: %w", err)
		}
		defer stmt.Close()

		for _, f := range r.Features {
			pol := model.PolarityOff
			if f.On {
				pol = model.PolarityOn
			}
			if _, err := stmt.ExecContext(ctx, runID, int64(r.Seq), f.X, f.Y, f.T, pol); err != nil {
				return fmt.Errorf("insert feature (%d,%d): %w", f.X, f.Y, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Features returns up to limit features of runID ordered by packet then insertion.
func (s *SQLiteStore) Features(ctx context.Context, runID string, limit int) ([]StoredFeature, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT packet_seq, x, y, t, polarity FROM features WHERE run_id = ? ORDER BY packet_seq, rowid LIMIT ?`,
		runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	defer rows.Close()

	var out []StoredFeature
	for rows.Next() {
		var (
			f   StoredFeature
			seq int64
			pol int
		)
		if err := rows.Scan(&seq, &f.X, &f.Y, &f.T, &pol); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		f.PacketSeq = uint64(seq)
		f.On = pol == model.PolarityOn
		out = append(out, f)
	}
	return out, rows.Err()
}

// Runs lists all runs, newest first.
func (s *SQLiteStore) Runs(ctx context.Context) ([]RunInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, width, height, channels, input, started_at FROM runs ORDER BY started_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var (
			r       RunInfo
			started int64
		)
		if err := rows.Scan(&r.ID, &r.Width, &r.Height, &r.Channels, &r.Input, &started); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database. Further calls return ErrClosed.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
