package tenant

import (
	"context"
	"errors"
)

// Package-level errors.
var (
	// ErrNotFound indicates the tenant has no registered descriptor. It is
	// a permanent condition until the registry changes; callers should not
	// retry.
	ErrNotFound = errors.New("tenant: not found")

	// ErrEmptyKey indicates a resolve was attempted with an empty tenant key.
	ErrEmptyKey = errors.New("tenant: empty tenant key")
)

// Store is the backing registry of tenant descriptors, typically the
// master database.
//
// Contract:
//   - Lookup returns (descriptor, true, nil) when the tenant exists and
//     (Descriptor{}, false, nil) when it does not. An error means the
//     store itself could not answer; absence is never an error.
//   - Implementations must be safe for concurrent use.
type Store interface {
	Lookup(ctx context.Context, key string) (Descriptor, bool, error)
}

// StoreFunc adapts a function to the Store interface.
type StoreFunc func(ctx context.Context, key string) (Descriptor, bool, error)

// Lookup calls f.
func (f StoreFunc) Lookup(ctx context.Context, key string) (Descriptor, bool, error) {
	return f(ctx, key)
}
