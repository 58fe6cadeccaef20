package db

import (
	"context"
	"database/sql"

	"github.com/sisilabsai/thesignal/internal/errors"
)

// ListDomains returns the trusted domains in ascending order.
func ListDomains(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT domain FROM trusted_domains ORDER BY domain")
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

// InsertDomain adds domain and reports whether it was new.
func InsertDomain(ctx context.Context, db *sql.DB, domain string) (bool, error) {
	result, err := db.ExecContext(ctx, "INSERT OR IGNORE INTO trusted_domains (domain) VALUES (?)", domain)
	return affected(result, err)
}

// DeleteDomain removes domain and reports whether it existed.
func DeleteDomain(ctx context.Context, db *sql.DB, domain string) (bool, error) {
	result, err := db.ExecContext(ctx, "DELETE FROM trusted_domains WHERE domain = ?", domain)
	return affected(result, err)
}

func affected(result sql.Result, err error) (bool, error) {
	if err != nil {
		return false, errors.NewPersistence(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewPersistence(err)
	}
	return n > 0, nil
}
