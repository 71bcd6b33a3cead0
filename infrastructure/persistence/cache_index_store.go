package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/helixml/tileqc/domain/cache"
	"github.com/helixml/tileqc/internal/database"
)

// CacheIndexStore implements cache.IndexStore using GORM.
type CacheIndexStore struct {
	database.Repository[cache.Entry, CacheEntryModel]
	db database.Database
}

// deleteBatch keeps IN lists below the SQLite host parameter limit.
const deleteBatch = 500

// NewCacheIndexStore creates a new CacheIndexStore.
func NewCacheIndexStore(db database.Database) CacheIndexStore {
	return CacheIndexStore{
		Repository: database.NewRepository[cache.Entry, CacheEntryModel](db, CacheEntryMapper{}, "cache entry"),
		db:         db,
	}
}

// All returns every entry, oldest first.
func (s CacheIndexStore) All(ctx context.Context) ([]cache.Entry, error) {
	return s.Find(ctx, database.NewQuery().OrderAsc("created_at").OrderAsc("id"))
}

// Get returns the entry of fp, or cache.ErrNotFound.
func (s CacheIndexStore) Get(ctx context.Context, fp cache.Fingerprint) (cache.Entry, error) {
	e, err := s.FindOne(ctx, database.NewQuery().Equal("fingerprint_key", fp.Key()))
	if errors.Is(err, database.ErrNotFound) {
		return cache.Entry{}, cache.ErrNotFound
	}
	return e, err
}

// Insert adds e unless its fingerprint already has an entry.
func (s CacheIndexStore) Insert(ctx context.Context, e cache.Entry) (bool, error) {
	model := s.Mapper().ToModel(e)
	result := s.DB(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "fingerprint_key"}}, DoNothing: true}).
		Create(&model)
	if result.Error != nil {
		return false, fmt.Errorf("insert cache entry: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Delete removes the entry of fp. A missing entry is not an error.
func (s CacheIndexStore) Delete(ctx context.Context, fp cache.Fingerprint) error {
	_, err := s.DeleteBy(ctx, database.NewQuery().Equal("fingerprint_key", fp.Key()))
	return err
}

// DeleteByBasename removes the entries pointing at any of basenames.
func (s CacheIndexStore) DeleteByBasename(ctx context.Context, basenames ...string) error {
	if len(basenames) == 0 {
		return nil
	}
	return database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		for start := 0; start < len(basenames); start += deleteBatch {
			batch := basenames[start:min(start+deleteBatch, len(basenames))]
			q := database.NewQuery().In("basename", batch)
			if err := q.ApplyConditions(tx).Delete(&CacheEntryModel{}).Error; err != nil {
				return fmt.Errorf("delete cache entries: %w", err)
			}
		}
		return nil
	})
}
