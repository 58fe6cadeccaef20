package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sisilabsai/thesignal/internal/config"
	_ "modernc.org/sqlite"
)

// migrations holds the schema steps in order. Entry i moves user_version
// from i to i+1. Append only; never edit an applied step.
var migrations = []string{
	// 1: records in insertion order plus the single-row collection version.
	`
	CREATE TABLE IF NOT EXISTS records (
	  id                TEXT PRIMARY KEY,
	  position          INTEGER NOT NULL,
	  version           TEXT NOT NULL,
	  url               TEXT NOT NULL,
	  title             TEXT NOT NULL,
	  excerpt           TEXT NOT NULL,
	  content_hash      TEXT NOT NULL,
	  created_at        TEXT NOT NULL,
	  received_at       TEXT NOT NULL,
	  public_key        TEXT NOT NULL,
	  signature         TEXT NOT NULL,
	  fingerprint       TEXT NOT NULL,
	  canonical_message TEXT NOT NULL,
	  author_json       TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_records_position ON records(position);
	CREATE INDEX IF NOT EXISTS idx_records_fingerprint ON records(fingerprint);

	CREATE TABLE IF NOT EXISTS collection (
	  id      INTEGER PRIMARY KEY CHECK (id = 1),
	  version INTEGER NOT NULL
	);

	INSERT OR IGNORE INTO collection (id, version) VALUES (1, 0);
	`,
	// 2: lookup index for duplicate detection.
	`
	CREATE INDEX IF NOT EXISTS idx_records_dedupe ON records(public_key, content_hash, url);
	`,
	// 3: trusted publisher domains.
	`
	CREATE TABLE IF NOT EXISTS trusted_domains (
	  domain TEXT PRIMARY KEY
	);
	`,
}

// CurrentSchemaVersion is the latest schema version.
var CurrentSchemaVersion = len(migrations)

// FileName is the database file created under the base directory.
const FileName = "thesignal.db"

// Init initializes the SQLite database at baseDir/thesignal.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.thesignal.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(baseDir, 0700)

	// Open database with pragmas in connection string (applies to all connections)
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify WAL mode is active
	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies every step above the stored user_version, each in its own
// transaction together with the version bump.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, len(migrations))
	}

	for v := version; v < len(migrations); v++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d failed: %w", v+1, err)
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", v+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version=%d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to set user_version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d failed: %w", v+1, err)
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
