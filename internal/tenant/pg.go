package tenant

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewControlPlanePool connects to the control-plane database read-only
// replicaset the gateway polls for tenant state.
func NewControlPlanePool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse control-plane db config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create control-plane db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping control-plane db: %w", err)
	}

	return pool, nil
}

// PGSource polls the control plane's Postgres database for the tenant
// snapshot. Each instance is paired with its non-revoked API key hash; an
// instance without a usable key is unreachable by design and skipped.
type PGSource struct {
	Pool *pgxpool.Pool
}

func (s *PGSource) Load(ctx context.Context) ([]Record, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT i.id, i.backend_addr, k.key_hash, i.max_memory_mb, i.persistence_enabled, i.status
		FROM redis_instances i
		JOIN api_keys k ON k.redis_instance_id = i.id AND k.revoked_at IS NULL
		WHERE i.deleted_at IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("query redis instances: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.InstanceID, &rec.BackendAddr, &rec.APIKeyHash,
			&rec.MaxMemoryMB, &rec.PersistenceEnabled, &rec.Status); err != nil {
			return nil, fmt.Errorf("scan redis instance: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate redis instances: %w", err)
	}
	return records, nil
}
