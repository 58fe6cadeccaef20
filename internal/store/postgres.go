package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/sisilabsai/thesignal/internal/errors"
	"github.com/sisilabsai/thesignal/internal/record"
	"github.com/sisilabsai/thesignal/internal/store/migrations"
)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// OpenPostgres connects to dsn with the pgx driver and applies the embedded
// migrations.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := RunMigrations(ctx, database); err != nil {
		database.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return database, nil
}

// RunMigrations applies the embedded schema migrations to database.
func RunMigrations(ctx context.Context, database *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, database, ".")
}

// PostgresStore keeps the collection in PostgreSQL. It uses the same layout
// as the SQLite store: one row per record plus a single-row version counter.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps a migrated database.
func NewPostgresStore(database *sql.DB) *PostgresStore {
	return &PostgresStore{db: database}
}

const pgSelectRecords = `
	SELECT id, version, url, title, excerpt, content_hash, created_at,
		received_at, public_key, signature, fingerprint, canonical_message, author_json
	FROM records
	ORDER BY position`

const pgInsertRecord = `
	INSERT INTO records (
		id, position, version, url, title, excerpt, content_hash, created_at,
		received_at, public_key, signature, fingerprint, canonical_message, author_json
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

func (s *PostgresStore) GetAll(ctx context.Context) (*Snapshot, error) {
	// Repeatable read keeps the version and the rows from the same snapshot.
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, errors.NewPersistence(err)
	}
	defer tx.Rollback()

	var version int64
	if err := tx.QueryRowContext(ctx, "SELECT version FROM collection WHERE id = 1").Scan(&version); err != nil {
		return nil, errors.NewPersistence(err)
	}

	rows, err := tx.QueryContext(ctx, pgSelectRecords)
	if err != nil {
		return nil, errors.NewPersistence(err)
	}
	defer rows.Close()

	records := make([]record.Record, 0)
	for rows.Next() {
		var (
			r          record.Record
			authorJSON []byte
		)
		if err := rows.Scan(
			&r.ID, &r.Version, &r.URL, &r.Title, &r.Excerpt, &r.ContentHash, &r.CreatedAt,
			&r.ReceivedAt, &r.PublicKey, &r.Signature, &r.Fingerprint, &r.CanonicalMessage, &authorJSON,
		); err != nil {
			return nil, errors.NewPersistence(err)
		}
		if len(authorJSON) > 0 {
			var a record.AuthorProfile
			if err := json.Unmarshal(authorJSON, &a); err != nil {
				return nil, errors.NewPersistence(err)
			}
			r.Author = &a
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistence(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewPersistence(err)
	}

	return &Snapshot{Records: records, Version: version}, nil
}

func (s *PostgresStore) ReplaceAll(ctx context.Context, snap *Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewPersistence(err)
	}
	defer tx.Rollback()

	// The row lock taken by the UPDATE serializes concurrent writers.
	result, err := tx.ExecContext(ctx,
		"UPDATE collection SET version = version + 1 WHERE id = 1 AND version = $1", snap.Version)
	if err != nil {
		return errors.NewPersistence(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewPersistence(err)
	}
	if rowsAffected == 0 {
		return errors.NewConflict("record collection was modified concurrently")
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM records"); err != nil {
		return errors.NewPersistence(err)
	}

	for i := range snap.Records {
		r := &snap.Records[i]
		author, err := authorColumn(r.Author)
		if err != nil {
			return errors.NewInternal(err)
		}
		if _, err := tx.ExecContext(ctx, pgInsertRecord,
			r.ID, int64(i), r.Version, r.URL, r.Title, r.Excerpt, r.ContentHash, r.CreatedAt,
			r.ReceivedAt, r.PublicKey, r.Signature, r.Fingerprint, r.CanonicalMessage, author,
		); err != nil {
			return errors.NewPersistence(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewPersistence(err)
	}
	snap.Version++
	return nil
}

func (s *PostgresStore) Domains(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT domain FROM trusted_domains ORDER BY domain")
	if err != nil {
		return nil, errors.NewPersistence(err)
	}
	defer rows.Close()

	domains := make([]string, 0)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, errors.NewPersistence(err)
		}
		domains = append(domains, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistence(err)
	}
	return domains, nil
}

func (s *PostgresStore) AddDomain(ctx context.Context, domain string) (bool, error) {
	return s.execAffected(ctx,
		"INSERT INTO trusted_domains (domain) VALUES ($1) ON CONFLICT (domain) DO NOTHING", domain)
}

func (s *PostgresStore) RemoveDomain(ctx context.Context, domain string) (bool, error) {
	return s.execAffected(ctx, "DELETE FROM trusted_domains WHERE domain = $1", domain)
}

// execAffected runs query and reports whether it touched a row.
func (s *PostgresStore) execAffected(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, errors.NewPersistence(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewPersistence(err)
	}
	return n > 0, nil
}

// Close closes the underlying database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// authorColumn encodes an optional profile for the author_json column.
func authorColumn(a *record.AuthorProfile) (any, error) {
	if a == nil {
		return nil, nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
