// Package cache implements the content-addressed byte store (spec §4.9):
// get/put/has backed by an embedded KV engine with atomic write
// transactions, one transaction per commit-group, plus the eviction
// tracker's ordered-set/map consistency invariant. SPEC_FULL §4.9 adds two
// optional, feature-flagged tiers: a Redis read-through cache and an S3
// write-behind destination for large blobs.
package cache

import (
	"context"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/apex-build/corebuild/internal/builderrors"
	"github.com/apex-build/corebuild/internal/logging"
)

// blobRecord is the gorm-mapped row for one cache entry.
type blobRecord struct {
	Key         string `gorm:"column:key;primaryKey"`
	Data        []byte `gorm:"column:data"`
	Compressed  bool   `gorm:"column:compressed"`
	IsLargeBlob bool   `gorm:"column:is_large_blob"`
	Size        int64  `gorm:"column:size"`
	CreatedAt   time.Time
	LastUsedAt  time.Time
}

func (blobRecord) TableName() string { return "blobs" }

// Options configures a Cache.
type Options struct {
	// CompressMinSize is the smallest blob, in bytes, compressed before
	// storage; smaller blobs aren't worth the zstd frame overhead.
	CompressMinSize int64
	// LargeBlobMinSize is the smallest blob written through to the S3
	// tier (when enabled) rather than kept only in the embedded store.
	LargeBlobMinSize int64
	// MaxEntries bounds the eviction tracker (spec §4.9: "when the entry
	// count exceeds the configured maximum, the oldest N entries are
	// dropped").
	MaxEntries int

	Redis *RedisTier
	S3    *S3Tier
}

// Cache is the content-addressed store (spec §3, §4.9).
type Cache struct {
	db       *gorm.DB
	eviction *EvictionTracker
	opts     Options
}

// Open runs schema migrations against the sqlite file at dsn and returns a
// ready Cache.
func Open(dsn string, opts Options) (*Cache, error) {
	if err := migrateSchema(dsn); err != nil {
		return nil, &builderrors.CacheIOError{Operation: "migrate", Wrapped: err}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, &builderrors.CacheIOError{Operation: "open", Wrapped: err}
	}

	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 100000
	}
	if opts.CompressMinSize <= 0 {
		opts.CompressMinSize = 256
	}
	if opts.LargeBlobMinSize <= 0 {
		opts.LargeBlobMinSize = 1 << 20 // 1 MiB
	}

	c := &Cache{db: db, eviction: NewEvictionTracker(opts.MaxEntries), opts: opts}
	if err := c.primeEvictionTracker(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) primeEvictionTracker() error {
	var rows []struct {
		Key        string
		LastUsedAt time.Time
	}
	if err := c.db.Model(&blobRecord{}).Order("last_used_at asc").Select("key", "last_used_at").Find(&rows).Error; err != nil {
		return &builderrors.CacheIOError{Operation: "prime eviction tracker", Wrapped: err}
	}
	for _, r := range rows {
		c.eviction.Touch(r.Key, r.LastUsedAt.UnixNano())
	}
	return nil
}

// Has reports whether key is present, checking the Redis tier first when
// enabled.
func (c *Cache) Has(ctx context.Context, key string) (bool, error) {
	if c.opts.Redis != nil {
		if _, ok := c.opts.Redis.Get(ctx, key); ok {
			return true, nil
		}
	}
	var count int64
	if err := c.db.Model(&blobRecord{}).Where("key = ?", key).Count(&count).Error; err != nil {
		return false, &builderrors.CacheIOError{Operation: "has", Wrapped: err}
	}
	return count > 0, nil
}

// Get returns the bytes stored under key, or ok=false if absent.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c.opts.Redis != nil {
		if data, ok := c.opts.Redis.Get(ctx, key); ok {
			return data, true, nil
		}
	}

	var rec blobRecord
	err := c.db.Where("key = ?", key).First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			if c.opts.S3 != nil {
				if data, ok, serr := c.opts.S3.Get(ctx, key); serr == nil && ok {
					return c.finishRead(ctx, key, data, false)
				}
			}
			return nil, false, nil
		}
		return nil, false, &builderrors.CacheIOError{Operation: "get", Wrapped: err}
	}

	data := rec.Data
	if rec.Compressed {
		decoded, derr := decompress(data)
		if derr != nil {
			return nil, false, &builderrors.CacheIOError{Operation: "decompress", Wrapped: derr}
		}
		data = decoded
	}
	return c.finishRead(ctx, key, data, true)
}

func (c *Cache) finishRead(ctx context.Context, key string, data []byte, touchTracker bool) ([]byte, bool, error) {
	if touchTracker {
		c.eviction.Touch(key, time.Now().UnixNano())
		if err := c.db.Model(&blobRecord{}).Where("key = ?", key).Update("last_used_at", time.Now()).Error; err != nil {
			logging.S().Warnw("cache: failed to update last_used_at", "key", key, "error", err)
		}
	}
	if c.opts.Redis != nil {
		c.opts.Redis.Set(ctx, key, data)
	}
	return data, true, nil
}

// Put stores data under key. Equivalent to CommitGroup with a single entry.
func (c *Cache) Put(ctx context.Context, key string, data []byte) error {
	return c.CommitGroup(ctx, map[string][]byte{key: data})
}

// CommitGroup writes every entry in one atomic transaction (spec §4.9:
// "one transaction per commit-group"), applying eviction afterward.
func (c *Cache) CommitGroup(ctx context.Context, entries map[string][]byte) error {
	now := time.Now()

	err := c.db.Transaction(func(tx *gorm.DB) error {
		for key, raw := range entries {
			data := raw
			compressed := false
			if int64(len(raw)) >= c.opts.CompressMinSize {
				data = compress(raw)
				compressed = true
			}
			isLarge := int64(len(raw)) >= c.opts.LargeBlobMinSize

			rec := blobRecord{
				Key:         key,
				Data:        data,
				Compressed:  compressed,
				IsLargeBlob: isLarge,
				Size:        int64(len(raw)),
				CreatedAt:   now,
				LastUsedAt:  now,
			}
			if err := tx.Save(&rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &builderrors.CacheIOError{Operation: "commit group", Wrapped: err}
	}

	for key, raw := range entries {
		c.applyEviction(key, now)
		if c.opts.Redis != nil {
			c.opts.Redis.Set(ctx, key, raw)
		}
		if c.opts.S3 != nil && int64(len(raw)) >= c.opts.LargeBlobMinSize {
			if err := c.opts.S3.Put(ctx, key, raw); err != nil {
				logging.S().Warnw("cache: s3 write-behind failed", "key", key, "error", err)
			}
		}
	}
	return nil
}

func (c *Cache) applyEviction(key string, ts time.Time) {
	evicted := c.eviction.Touch(key, ts.UnixNano())
	if len(evicted) == 0 {
		return
	}
	if err := c.db.Where("key IN ?", evicted).Delete(&blobRecord{}).Error; err != nil {
		logging.S().Warnw("cache: failed to delete evicted entries", "keys", evicted, "error", err)
	}
}

// Close releases the underlying database handle and any tier connections.
func (c *Cache) Close() error {
	if c.opts.Redis != nil {
		c.opts.Redis.Close()
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
