package storage

import (
	"context"
	"fmt"

	"github.com/tgarchive/viewer/internal/config"
)

// Open picks the backend variant named by cfg.DBDriver. The change-event
// source is the sole branch point visible to callers beyond this
// function: both variants satisfy the same Adapter interface.
func Open(ctx context.Context, cfg *config.Config) (Adapter, error) {
	switch cfg.DBDriver {
	case config.DBDriverPostgres:
		if cfg.PostgresURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for db.driver=postgres")
		}
		return OpenPostgres(ctx, cfg.PostgresURL)
	case config.DBDriverSQLite, "":
		return OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported db driver %q: use %q or %q", cfg.DBDriver, config.DBDriverPostgres, config.DBDriverSQLite)
	}
}
