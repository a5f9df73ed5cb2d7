// Package cache provides a read-through cache for document aggregates.
// Entries are written on read, replaced after every committed mutation, and
// expire on a short TTL so a missed invalidation heals itself.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	id "sevagate/pkg/domain"

	"sevagate/internal/workflow/metrics"
	"sevagate/internal/workflow/models"
)

const documentKeyPrefix = "doc:"

// DocumentCache caches serialized documents in Redis. A nil *DocumentCache is
// a valid no-op cache, which keeps call sites free of nil checks.
type DocumentCache struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
}

func NewDocumentCache(client *redis.Client, ttl time.Duration, m *metrics.Metrics) *DocumentCache {
	if client == nil {
		return nil
	}
	return &DocumentCache{client: client, ttl: ttl, metrics: m}
}

// Get returns the cached document, or nil on a miss. Cache failures are
// treated as misses; the store remains the source of truth.
func (c *DocumentCache) Get(ctx context.Context, documentID id.DocumentID) *models.Document {
	if c == nil {
		return nil
	}

	raw, err := c.client.Get(ctx, documentKeyPrefix+documentID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		c.metrics.IncrementCacheLookup("miss")
		return nil
	}
	if err != nil {
		c.metrics.IncrementCacheLookup("bypass")
		return nil
	}

	var doc models.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		c.metrics.IncrementCacheLookup("bypass")
		return nil
	}
	c.metrics.IncrementCacheLookup("hit")
	return &doc
}

// Set stores the document under its ID with the configured TTL.
func (c *DocumentCache) Set(ctx context.Context, doc *models.Document) {
	if c == nil || doc == nil {
		return
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, documentKeyPrefix+doc.ID.String(), raw, c.ttl).Err()
}

// Invalidate drops the cached entry for a document. Called after every
// committed mutation so readers never see a stale status for long.
func (c *DocumentCache) Invalidate(ctx context.Context, documentID id.DocumentID) {
	if c == nil {
		return
	}
	_ = c.client.Del(ctx, documentKeyPrefix+documentID.String()).Err()
}
