// Package tenant maps tenant identifiers to database connection
// descriptors.
//
// The Resolver layers a shared cache over a backing Store (normally the
// master database) and guards store lookups with a resilience pipeline.
// Cache misses for the same tenant collapse into a single store lookup;
// cache outages degrade to uncached resolution rather than failing.
//
// # Usage
//
//	resolver, err := tenant.NewResolver(tenant.ResolverConfig{
//		Store:     masterStore,
//		Cache:     redisCache,
//		Pipelines: pipelines,
//		TTL:       5 * time.Minute,
//	})
//	if err != nil {
//		return err
//	}
//	desc, err := resolver.Resolve(ctx, "acme")
package tenant
