package store

import (
	"context"
	"fmt"
	"io"

	"github.com/sisilabsai/thesignal/internal/config"
	"github.com/sisilabsai/thesignal/internal/db"
)

// New creates the Backend selected by cfg.Store. The returned closer releases
// backend resources and is never nil.
func New(ctx context.Context, cfg *config.Config, baseDir string) (Backend, io.Closer, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return NewMemoryStore(), nopCloser{}, nil
	case config.StoreSQLite, "":
		database, err := db.Init(baseDir)
		if err != nil {
			return nil, nil, err
		}
		db.ConfigurePool(database, cfg)
		s := NewSQLiteStore(database)
		return s, s, nil
	case config.StoreS3:
		if cfg.S3Bucket == "" {
			return nil, nil, fmt.Errorf("s3 store requires s3_bucket to be set")
		}
		client, err := NewS3Client(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to configure s3 client: %w", err)
		}
		return NewS3Store(client, cfg.S3Bucket, cfg.S3Key), nopCloser{}, nil
	case config.StorePostgres:
		if cfg.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("postgres store requires postgres_dsn to be set")
		}
		database, err := OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		db.ConfigurePool(database, cfg)
		s := NewPostgresStore(database)
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown store type: %s", cfg.Store)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
