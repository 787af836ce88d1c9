// Package kv defines the durable key-value substrate the entry store
// persists into. Implementations are expected to be fast local stores;
// every operation may still fail and callers must surface that.
package kv

import "context"

// Store is a string-keyed durable store. Get reports absence via the
// second return value rather than an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
