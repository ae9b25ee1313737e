package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/triunai/tenantcore/tenant"
)

// MasterStore reads tenant descriptors from the master database.
type MasterStore struct {
	db *DB
}

var _ tenant.Store = (*MasterStore)(nil)

// NewMasterStore creates a store over an open master connection.
func NewMasterStore(db *DB) *MasterStore {
	return &MasterStore{db: db}
}

type tenantRow struct {
	TenantKey  string `db:"tenant_key"`
	DSN        string `db:"dsn"`
	Properties []byte `db:"properties"`
}

// Lookup fetches the descriptor row for key. A missing row is reported
// as absence, not as an error.
func (s *MasterStore) Lookup(ctx context.Context, key string) (tenant.Descriptor, bool, error) {
	const query = `
		SELECT tenant_key, dsn, COALESCE(properties, '{}'::jsonb) AS properties
		FROM tenants
		WHERE tenant_key = $1
	`

	var row tenantRow
	err := s.db.GetContext(ctx, &row, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return tenant.Descriptor{}, false, nil
	}
	if err != nil {
		return tenant.Descriptor{}, false, fmt.Errorf("lookup tenant %q: %w", key, err)
	}

	d, err := descriptorFromRow(row)
	if err != nil {
		return tenant.Descriptor{}, false, err
	}
	return d, true, nil
}

// Ping verifies the master connection for health checks.
func (s *MasterStore) Ping(ctx context.Context) error {
	return s.db.Health(ctx)
}

func descriptorFromRow(row tenantRow) (tenant.Descriptor, error) {
	var props map[string]string
	if len(row.Properties) > 0 {
		if err := json.Unmarshal(row.Properties, &props); err != nil {
			return tenant.Descriptor{}, fmt.Errorf("tenant %q: decode properties: %w", row.TenantKey, err)
		}
	}
	return tenant.Descriptor{
		Name:       row.TenantKey,
		DSN:        row.DSN,
		Properties: props,
	}, nil
}
