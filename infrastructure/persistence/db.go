// Package persistence provides the database backed result cache index.
package persistence

import (
	"context"

	"github.com/helixml/tileqc/internal/database"
)

// AutoMigrate creates or updates the tables of all persisted models.
func AutoMigrate(ctx context.Context, db database.Database) error {
	return db.AutoMigrate(ctx, &CacheEntryModel{})
}
