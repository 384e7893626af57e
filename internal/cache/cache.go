// Package cache provides the query-result cache consulted by the aggregation
// layer. Results must be identical with or without a configured backend.
package cache

import (
	"context"
	"time"
)

// QueryCache stores serialized aggregation responses keyed by canonical request key.
type QueryCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

type nopCache struct{}

// NewNop returns a cache that stores nothing. Callers never observe a
// difference beyond latency.
func NewNop() QueryCache { return nopCache{} }

func (nopCache) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (nopCache) Set(context.Context, string, []byte, time.Duration) {}
