// Package storage provides the key-value stores that hold client-side state:
// carts, the discovered GraphQL port and saved auth tokens.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound = errors.New("key not found")
	ErrCorrupt  = errors.New("stored value is not valid JSON")
)

// KV is a flat key-value store. A zero ttl means the value never expires.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// GetJSON reads key into out. A payload that fails to decode yields ErrCorrupt
// so callers can fall back to their default state.
func GetJSON(ctx context.Context, kv KV, key string, out any) error {
	b, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return nil
}

func SetJSON(ctx context.Context, kv KV, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.Set(ctx, key, b, ttl)
}
