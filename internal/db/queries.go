package db

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/sisilabsai/thesignal/internal/errors"
	"github.com/sisilabsai/thesignal/internal/record"
)

const selectRecords = `
	SELECT id, version, url, title, excerpt, content_hash, created_at,
		received_at, public_key, signature, fingerprint, canonical_message, author_json
	FROM records
	ORDER BY position
`

// LoadAll reads the whole record collection and its version in one
// transaction, so the pair is consistent.
func LoadAll(ctx context.Context, db *sql.DB) ([]record.Record, int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, errors.NewPersistence(err)
	}
	defer tx.Rollback()

	var version int64
	if err := tx.QueryRowContext(ctx, "SELECT version FROM collection WHERE id = 1").Scan(&version); err != nil {
		return nil, 0, errors.NewPersistence(err)
	}

	rows, err := tx.QueryContext(ctx, selectRecords)
	if err != nil {
		return nil, 0, errors.NewPersistence(err)
	}
	defer rows.Close()

	records := make([]record.Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, 0, errors.NewPersistence(err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewPersistence(err)
	}

	return records, version, nil
}

// ReplaceAll overwrites the collection if its stored version still equals
// expected, and bumps the version. A stale expected version yields CONFLICT
// and nothing is written.
func ReplaceAll(ctx context.Context, db *sql.DB, records []record.Record, expected int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewPersistence(err)
	}
	defer tx.Rollback()

	// The UPDATE takes the write lock, so the version check and the rewrite
	// below are atomic with respect to other writers.
	result, err := tx.ExecContext(ctx,
		"UPDATE collection SET version = version + 1 WHERE id = 1 AND version = ?", expected)
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

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (
			id, position, version, url, title, excerpt, content_hash, created_at,
			received_at, public_key, signature, fingerprint, canonical_message, author_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.NewPersistence(err)
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]
		authorJSON, err := toAuthorJSON(r.Author)
		if err != nil {
			return errors.NewInternal(err)
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, i, r.Version, r.URL, r.Title, r.Excerpt, r.ContentHash, r.CreatedAt,
			r.ReceivedAt, r.PublicKey, r.Signature, r.Fingerprint, r.CanonicalMessage, authorJSON,
		); err != nil {
			return errors.NewPersistence(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewPersistence(err)
	}
	return nil
}

// scanRecord scans a single row into a Record struct.
func scanRecord(rows *sql.Rows) (*record.Record, error) {
	var (
		r          record.Record
		authorJSON sql.NullString
	)

	err := rows.Scan(
		&r.ID, &r.Version, &r.URL, &r.Title, &r.Excerpt, &r.ContentHash, &r.CreatedAt,
		&r.ReceivedAt, &r.PublicKey, &r.Signature, &r.Fingerprint, &r.CanonicalMessage, &authorJSON,
	)
	if err != nil {
		return nil, err
	}

	// Parse author JSON
	if authorJSON.Valid && authorJSON.String != "" {
		var a record.AuthorProfile
		if err := json.Unmarshal([]byte(authorJSON.String), &a); err != nil {
			return nil, err
		}
		r.Author = &a
	}

	return &r, nil
}

// toAuthorJSON converts an optional author profile to a nullable JSON column.
func toAuthorJSON(a *record.AuthorProfile) (sql.NullString, error) {
	if a == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
