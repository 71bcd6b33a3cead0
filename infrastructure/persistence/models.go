package persistence

import "time"

// CacheEntryModel is the row of one result cache entry.
type CacheEntryModel struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	FingerprintKey   string `gorm:"uniqueIndex;not null"`
	Path             string `gorm:"index;not null"`
	Size             int64
	ModifiedMillis   int64
	MatrixSize       int
	QualityThreshold int
	Basename         string `gorm:"uniqueIndex;not null"`
	Tags             []byte
	CreatedAt        time.Time `gorm:"index"`
}

// TableName returns the table name.
func (CacheEntryModel) TableName() string { return "cache_entries" }
