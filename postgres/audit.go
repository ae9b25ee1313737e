package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/triunai/tenantcore/audit"
	"github.com/triunai/tenantcore/tenant"
)

// DescriptorResolver yields connection descriptors for tenant keys.
// *tenant.Resolver satisfies this interface.
type DescriptorResolver interface {
	Resolve(ctx context.Context, key string) (tenant.Descriptor, error)
}

// AuditStore writes audit entries into each tenant's own database. Pools
// are opened lazily per DSN and kept until Close or Evict; tenant
// cardinality is bounded, so the map itself never needs size-based
// eviction. When a credential rotation changes a tenant's DSN, call
// Evict with the old DSN after invalidating the descriptor, otherwise
// the stale pool lingers until Close.
type AuditStore struct {
	resolver DescriptorResolver
	poolCfg  Config

	mu    sync.Mutex
	pools map[string]*DB
}

var _ audit.Store = (*AuditStore)(nil)

// NewAuditStore creates a store that resolves tenant connections through
// resolver. poolCfg supplies pool tuning for the per-tenant connections;
// its DSN field is ignored.
func NewAuditStore(resolver DescriptorResolver, poolCfg Config) (*AuditStore, error) {
	if resolver == nil {
		return nil, errors.New("postgres: audit store requires a resolver")
	}
	return &AuditStore{
		resolver: resolver,
		poolCfg:  poolCfg,
		pools:    make(map[string]*DB),
	}, nil
}

// BulkInsert writes entries into the tenant's audit_log table in one
// transaction. On error nothing is committed.
func (s *AuditStore) BulkInsert(ctx context.Context, tenantKey string, entries []audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	d, err := s.resolver.Resolve(ctx, tenantKey)
	if err != nil {
		return fmt.Errorf("audit insert: %w", err)
	}
	db, err := s.dbFor(ctx, d.DSN)
	if err != nil {
		return fmt.Errorf("audit insert tenant %q: %w", tenantKey, err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("audit insert tenant %q: begin: %w", tenantKey, err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO audit_log (
			id, correlation_id, actor_user_id, actor_client_id, actor_remote_ip,
			action, class, success, status_code, error_code, error_message,
			duration_ms, request, response, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("audit insert tenant %q: prepare: %w", tenantKey, err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.CorrelationID, e.Actor.UserID, e.Actor.ClientID, e.Actor.RemoteIP,
			e.Action, string(e.Class), e.Outcome.Success, e.Outcome.StatusCode,
			e.Outcome.ErrorCode, e.Outcome.ErrorMessage, e.Outcome.Duration.Milliseconds(),
			e.Request, e.Response, e.Timestamp,
		); err != nil {
			return fmt.Errorf("audit insert tenant %q entry %s: %w", tenantKey, e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("audit insert tenant %q: commit: %w", tenantKey, err)
	}
	return nil
}

// Evict closes and forgets the pool opened for dsn, if any. The next
// insert against that DSN opens a fresh pool.
func (s *AuditStore) Evict(dsn string) error {
	s.mu.Lock()
	db, ok := s.pools[dsn]
	delete(s.pools, dsn)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return db.Close()
}

// Close closes every opened tenant pool.
func (s *AuditStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var first error
	for dsn, db := range s.pools {
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
		delete(s.pools, dsn)
	}
	return first
}

func (s *AuditStore) dbFor(ctx context.Context, dsn string) (*DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.pools[dsn]; ok {
		return db, nil
	}
	cfg := s.poolCfg
	cfg.DSN = dsn
	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.pools[dsn] = db
	return db, nil
}
