package store

import (
	"context"
	"database/sql"

	"github.com/sisilabsai/thesignal/internal/db"
)

// SQLiteStore keeps the collection in the records table of a SQLite database
// opened with db.Init.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an initialized database.
func NewSQLiteStore(database *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

func (s *SQLiteStore) GetAll(ctx context.Context) (*Snapshot, error) {
	records, version, err := db.LoadAll(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Records: records, Version: version}, nil
}

func (s *SQLiteStore) ReplaceAll(ctx context.Context, snap *Snapshot) error {
	if err := db.ReplaceAll(ctx, s.db, snap.Records, snap.Version); err != nil {
		return err
	}
	snap.Version++
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Domains(ctx context.Context) ([]string, error) {
	return db.ListDomains(ctx, s.db)
}

func (s *SQLiteStore) AddDomain(ctx context.Context, domain string) (bool, error) {
	return db.InsertDomain(ctx, s.db, domain)
}

func (s *SQLiteStore) RemoveDomain(ctx context.Context, domain string) (bool, error) {
	return db.DeleteDomain(ctx, s.db, domain)
}
