package persistence

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/helixml/tileqc/domain/cache"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CacheEntryMapper maps between cache.Entry and CacheEntryModel.
type CacheEntryMapper struct{}

// ToDomain converts a CacheEntryModel to a cache.Entry.
func (CacheEntryMapper) ToDomain(m CacheEntryModel) (cache.Entry, error) {
	var tags []string
	if len(m.Tags) > 0 {
		if err := json.Unmarshal(m.Tags, &tags); err != nil {
			return cache.Entry{}, fmt.Errorf("decode tags of %s: %w", m.Basename, err)
		}
	}
	fp := cache.Fingerprint{
		Path:             m.Path,
		Size:             m.Size,
		ModifiedMillis:   m.ModifiedMillis,
		MatrixSize:       m.MatrixSize,
		QualityThreshold: m.QualityThreshold,
	}
	return cache.NewEntry(fp, m.Basename, tags, m.CreatedAt), nil
}

// ToModel converts a cache.Entry to a CacheEntryModel.
func (CacheEntryMapper) ToModel(e cache.Entry) CacheEntryModel {
	tags, _ := json.Marshal(e.Tags)
	return CacheEntryModel{
		FingerprintKey:   e.Fingerprint.Key(),
		Path:             e.Fingerprint.Path,
		Size:             e.Fingerprint.Size,
		ModifiedMillis:   e.Fingerprint.ModifiedMillis,
		MatrixSize:       e.Fingerprint.MatrixSize,
		QualityThreshold: e.Fingerprint.QualityThreshold,
		Basename:         e.Basename,
		Tags:             tags,
		CreatedAt:        e.CreatedAt,
	}
}
