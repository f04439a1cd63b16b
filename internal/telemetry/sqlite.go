package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver" // SQLite driver (pure Go)
	_ "github.com/ncruces/go-sqlite3/embed"  // Embed SQLite WASM binary

	"github.com/bnema/cosmetic/internal/logging"
	"github.com/bnema/cosmetic/internal/migrations"
)

// SQLiteSink stores reports in a SQLite database.
type SQLiteSink struct {
	db *sql.DB
}

// SelectorHits is how many reports matched a selector.
type SelectorHits struct {
	Selector string
	Hits     int
}

// OpenSQLite opens (creating if needed) the database at dbPath and applies
// the embedded migrations.
func OpenSQLite(ctx context.Context, dbPath string) (*SQLiteSink, error) {
	const dbDirPerm = 0o750
	log := logging.FromContext(ctx)

	if dbPath == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), dbDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Pool settings must be in place before the first query.
	configurePool(db)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := migrations.Run(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("telemetry database ready")
	return &SQLiteSink{db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}
	return nil
}

// configurePool limits the pool to one connection: SQLite has a single
// writer.
func configurePool(db *sql.DB) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
}

func (s *SQLiteSink) LogCosmeticFilteringData(ctx context.Context, report Report) (err error) {
	if len(report.MatchedSelectors) == 0 {
		return ErrEmptyReport
	}
	at := report.At
	if at.IsZero() {
		at = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO reports (page_id, frame_url, frame_hostname, reported_at) VALUES (?, ?, ?, ?)",
		report.PageID, report.FrameURL, report.FrameHostname, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read report id: %w", err)
	}
	for _, sel := range report.MatchedSelectors {
		if _, err = tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO matched_selectors (report_id, selector) VALUES (?, ?)",
			id, sel,
		); err != nil {
			return fmt.Errorf("failed to insert matched selector: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}
	return nil
}

// Hits returns per-selector match counts for a hostname, most hit first.
// An empty hostname covers every site.
func (s *SQLiteSink) Hits(ctx context.Context, hostname string) ([]SelectorHits, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.selector, COUNT(*) AS hits
		FROM matched_selectors m
		JOIN reports r ON r.id = m.report_id
		WHERE ? = '' OR r.frame_hostname = ?
		GROUP BY m.selector
		ORDER BY hits DESC, m.selector`,
		hostname, hostname,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query selector hits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SelectorHits
	for rows.Next() {
		var h SelectorHits
		if err := rows.Scan(&h.Selector, &h.Hits); err != nil {
			return nil, fmt.Errorf("failed to scan selector hits: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
