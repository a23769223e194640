package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mapaq-pipeline/internal/model"
)

// Store is the durable SQLite destination: a keyed establishment table with
// upsert-by-identifier, transactional batch writes, an inspection history
// used for enrichment lookups, and the pipeline run history.
type Store struct {
	db   *sql.DB
	path string

	// Guards destructive writes: one persist (plus any triggered restore)
	// at a time per destination. Reads do not take it.
	writeMu sync.Mutex
}

// Open opens (or creates) the store at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}
	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS restaurants (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			address TEXT,
			address_confidence TEXT,
			theme TEXT,
			size_class TEXT,
			violations INTEGER,
			prior_violations INTEGER,
			amount REAL,
			status TEXT,
			status_date TEXT,
			risk_score REAL,
			risk_category TEXT,
			next_inspection TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS inspection_history (
			establishment_id TEXT,
			status_date TEXT,
			violations INTEGER,
			amount REAL,
			PRIMARY KEY (establishment_id, status_date)
		);`,
		`CREATE TABLE IF NOT EXISTS pipeline_runs (
			run_id TEXT PRIMARY KEY,
			status TEXT,
			started_at DATETIME,
			ended_at DATETIME,
			report TEXT
		);`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// LockWrites takes exclusive write access to the destination. The caller
// holds it across persist plus any triggered restore.
func (s *Store) LockWrites() { s.writeMu.Lock() }

// UnlockWrites releases exclusive write access.
func (s *Store) UnlockWrites() { s.writeMu.Unlock() }

// Persist writes a batch of valid records as one transaction: insert or
// update keyed by identifier, plus one history row per observation. Either
// every record lands or none do.
func (s *Store) Persist(ctx context.Context, records []*model.Record) (inserted, updated int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for _, rec := range records {
		var exists int
		if err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM restaurants WHERE id = ?`, rec.ID).Scan(&exists); err != nil {
			return 0, 0, fmt.Errorf("failed to check record %s: %w", rec.ID, err)
		}

		var score interface{}
		if rec.RiskScore != nil {
			score = *rec.RiskScore
		}
		if exists > 0 {
			_, err = tx.ExecContext(ctx, `UPDATE restaurants SET name=?, address=?, address_confidence=?,
				theme=?, size_class=?, violations=?, prior_violations=?, amount=?, status=?, status_date=?,
				risk_score=?, risk_category=?, next_inspection=?, updated_at=? WHERE id=?`,
				rec.Name, rec.Address, rec.AddressConfidence, rec.Theme, rec.SizeClass,
				rec.Violations, rec.PriorViolations, rec.Amount, rec.Status, rec.StatusDate,
				score, rec.RiskCategory, rec.NextInspection, now, rec.ID)
			updated++
		} else {
			_, err = tx.ExecContext(ctx, `INSERT INTO restaurants (id, name, address, address_confidence,
				theme, size_class, violations, prior_violations, amount, status, status_date,
				risk_score, risk_category, next_inspection, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				rec.ID, rec.Name, rec.Address, rec.AddressConfidence, rec.Theme, rec.SizeClass,
				rec.Violations, rec.PriorViolations, rec.Amount, rec.Status, rec.StatusDate,
				score, rec.RiskCategory, rec.NextInspection, now, now)
			inserted++
		}
		if err != nil {
			return 0, 0, fmt.Errorf("failed to write record %s: %w", rec.ID, err)
		}

		_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO inspection_history
			(establishment_id, status_date, violations, amount) VALUES (?, ?, ?, ?)`,
			rec.ID, rec.StatusDate, rec.Violations, rec.Amount)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to write history for %s: %w", rec.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit batch: %w", err)
	}
	return inserted, updated, nil
}

// ViolationHistory aggregates prior observations for an establishment.
// Read-only, safe to call concurrently with other runs' reads.
func (s *Store) ViolationHistory(ctx context.Context, establishmentID string) (int, float64, error) {
	var count int
	var amount sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(violations), 0), SUM(amount) FROM inspection_history WHERE establishment_id = ?`,
		establishmentID).Scan(&count, &amount)
	if err != nil {
		return 0, 0, fmt.Errorf("history lookup for %s: %w", establishmentID, err)
	}
	return count, amount.Float64, nil
}

// LoadRecords reads persisted establishments back into pipeline records,
// for runs whose source is the store itself. A limit of 0 means all.
func (s *Store) LoadRecords(ctx context.Context, table string, limit int) ([]*model.Record, error) {
	if table != "" && table != "restaurants" {
		return nil, fmt.Errorf("unknown store table %q", table)
	}
	query := `SELECT id, name, address, status, status_date, violations, amount FROM restaurants ORDER BY id`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*model.Record
	for rows.Next() {
		rec := &model.Record{}
		var address, status, date sql.NullString
		var amount sql.NullFloat64
		if err := rows.Scan(&rec.ID, &rec.Name, &address, &status, &date, &rec.Violations, &amount); err != nil {
			return nil, err
		}
		rec.RawAddress = address.String
		rec.Status = status.String
		rec.StatusDate = date.String
		rec.Amount = amount.Float64
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountRecords returns the number of persisted establishments.
func (s *Store) CountRecords(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM restaurants`).Scan(&n)
	return n, err
}

// SaveRunReport appends a run report to the run history.
func (s *Store) SaveRunReport(report *model.PipelineRunReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO pipeline_runs (run_id, status, started_at, ended_at, report)
		VALUES (?, ?, ?, ?, ?)`,
		report.RunID, report.Status, report.StartTime, report.EndTime, string(payload))
	return err
}

// ListRunReports returns the most recent run reports, newest first.
func (s *Store) ListRunReports(limit int) ([]*model.PipelineRunReport, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT report FROM pipeline_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*model.PipelineRunReport
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var report model.PipelineRunReport
		if err := json.Unmarshal([]byte(payload), &report); err != nil {
			return nil, err
		}
		reports = append(reports, &report)
	}
	return reports, rows.Err()
}

// SnapshotTo writes a transactionally consistent copy of the database to
// dest using VACUUM INTO.
func (s *Store) SnapshotTo(dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("snapshot target %s already exists", dest)
	}
	if _, err := s.db.Exec(`VACUUM INTO ?`, dest); err != nil {
		return fmt.Errorf("failed to snapshot store to %s: %w", dest, err)
	}
	return nil
}

// RestoreFrom replaces the live database with the snapshot at src. The
// connection is closed, the file swapped, and the connection reopened.
func (s *Store) RestoreFrom(src string) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close store for restore: %w", err)
	}
	if err := copyFile(src, s.path); err != nil {
		return fmt.Errorf("failed to restore store from %s: %w", src, err)
	}
	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return fmt.Errorf("failed to reopen store after restore: %w", err)
	}
	s.db = db
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
