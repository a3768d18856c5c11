// Package riskstore persists the risk register in SQLite.
package riskstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/risknetlabs/risknet/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS risk (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	cause TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT '',
	cost REAL,
	likelihood REAL,
	impact REAL,
	phase TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	updated_ts INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
`

// Store is a SQLite-backed risk register.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the register at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent upserts.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Upsert inserts or replaces the given records in one transaction.
func (s *Store) Upsert(ctx context.Context, risks []domain.RiskRecord) error {
	if len(risks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO risk (id, title, description, cause, url, cost, likelihood, impact, phase, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			cause = excluded.cause,
			url = excluded.url,
			cost = excluded.cost,
			likelihood = excluded.likelihood,
			impact = excluded.impact,
			phase = excluded.phase,
			status = excluded.status,
			updated_ts = strftime('%s', 'now')
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range risks {
		if r.ID == "" {
			return fmt.Errorf("record %q: %w", r.Title, domain.ErrInvalidParams)
		}
		_, err := stmt.ExecContext(ctx,
			r.ID, r.Title, r.Description, r.Cause, r.URL,
			nullFloat(r.Cost), nullFloat(r.Likelihood), nullFloat(r.Impact),
			r.Phase, r.Status,
		)
		if err != nil {
			return fmt.Errorf("upsert risk %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// List returns all records ordered by id.
func (s *Store) List(ctx context.Context) ([]domain.RiskRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, cause, url, cost, likelihood, impact, phase, status
		FROM risk ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list risks: %w", err)
	}
	defer rows.Close()

	risks := []domain.RiskRecord{}
	for rows.Next() {
		r, err := scanRisk(rows)
		if err != nil {
			return nil, err
		}
		risks = append(risks, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate risks: %w", err)
	}
	return risks, nil
}

// Get returns one record by id, or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (domain.RiskRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, cause, url, cost, likelihood, impact, phase, status
		FROM risk WHERE id = ?
	`, id)
	r, err := scanRisk(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.RiskRecord{}, fmt.Errorf("risk %s: %w", id, domain.ErrNotFound)
		}
		return domain.RiskRecord{}, err
	}
	return r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRisk(row scanner) (domain.RiskRecord, error) {
	var (
		r                      domain.RiskRecord
		cost, likelihood, impc sql.NullFloat64
	)
	err := row.Scan(&r.ID, &r.Title, &r.Description, &r.Cause, &r.URL,
		&cost, &likelihood, &impc, &r.Phase, &r.Status)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.RiskRecord{}, err
		}
		return domain.RiskRecord{}, fmt.Errorf("scan risk: %w", err)
	}
	r.Cost = floatPtr(cost)
	r.Likelihood = floatPtr(likelihood)
	r.Impact = floatPtr(impc)
	return r, nil
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
