// Package cache defines the shared cache contract the tenant resolver
// depends on, with in-memory and Redis implementations.
//
// The contract is deliberately narrow: get, set with TTL, remove. A miss
// is (nil, false, nil); only backend failures surface as errors, and the
// resolver demotes those to misses so a down cache never fails a
// request. All operations are individually idempotent because the
// backend offers no transactions.
//
//	c, err := cache.NewRedis(ctx, cache.RedisConfig{URL: "redis://localhost:6379"})
//	if err != nil { ... }
//	defer c.Close()
//
//	val, ok, err := c.Get(ctx, "tenant:acme")
package cache
