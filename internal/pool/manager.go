package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cpool "github.com/jolestar/go-commons-pool/v2"
	"github.com/rs/zerolog"

	"github.com/redisgate/redisgate/internal/tenant"
)

var (
	// ErrInstanceUnavailable means the tenant is not in the running state;
	// no connection attempt is made.
	ErrInstanceUnavailable = errors.New("instance is not running")
	// ErrPoolExhausted means no free connection became available within
	// the acquire timeout.
	ErrPoolExhausted = errors.New("connection pool exhausted")
	// ErrBackendUnreachable means connection establishment failed after
	// bounded retries.
	ErrBackendUnreachable = errors.New("backend unreachable")
)

// Config bounds each per-tenant pool.
type Config struct {
	MinIdle          int
	MaxActive        int
	AcquireTimeout   time.Duration
	DialTimeout      time.Duration
	DialRetries      int
	DialBackoff      time.Duration
	IdleTimeout      time.Duration
	EvictionInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinIdle:          0,
		MaxActive:        8,
		AcquireTimeout:   2 * time.Second,
		DialTimeout:      2 * time.Second,
		DialRetries:      2,
		DialBackoff:      100 * time.Millisecond,
		IdleTimeout:      5 * time.Minute,
		EvictionInterval: time.Minute,
	}
}

type poolEntry struct {
	pool *cpool.ObjectPool
	addr string
}

// Manager owns one bounded connection pool per tenant. Pools are created
// lazily on first acquire and torn down when the tenant table evicts the
// instance. No lock spans multiple tenants during command execution, so
// tenants do not contend with each other's throughput.
type Manager struct {
	mu     sync.Mutex
	pools  map[string]*poolEntry
	cfg    Config
	logger zerolog.Logger
	closed bool
}

func NewManager(cfg Config, logger zerolog.Logger) *Manager {
	return &Manager{
		pools:  map[string]*poolEntry{},
		cfg:    cfg,
		logger: logger,
	}
}

func (m *Manager) entryFor(rec tenant.Record) (*poolEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.New("pool manager is closed")
	}

	entry, ok := m.pools[rec.InstanceID]
	if ok && entry.addr == rec.BackendAddr {
		return entry, nil
	}
	if ok {
		// Backend moved; drop the stale pool.
		go entry.pool.Close(context.Background())
	}

	factory := &connFactory{
		instanceID: rec.InstanceID,
		addr:       rec.BackendAddr,
		cfg:        m.cfg,
		logger:     m.logger,
	}
	poolCfg := cpool.NewDefaultPoolConfig()
	poolCfg.MaxTotal = m.cfg.MaxActive
	poolCfg.MaxIdle = m.cfg.MaxActive
	poolCfg.MinIdle = m.cfg.MinIdle
	poolCfg.TestOnBorrow = true
	poolCfg.BlockWhenExhausted = true
	poolCfg.MinEvictableIdleTime = m.cfg.IdleTimeout
	poolCfg.TimeBetweenEvictionRuns = m.cfg.EvictionInterval

	entry = &poolEntry{
		pool: cpool.NewObjectPool(context.Background(), factory, poolCfg),
		addr: rec.BackendAddr,
	}
	m.pools[rec.InstanceID] = entry
	return entry, nil
}

// Acquire borrows a connection for one command. It fails immediately with
// ErrInstanceUnavailable for non-running tenants, waits at most the acquire
// timeout for a free slot, and surfaces dial failures as
// ErrBackendUnreachable.
func (m *Manager) Acquire(ctx context.Context, rec tenant.Record) (*Conn, error) {
	if !rec.Running() {
		return nil, ErrInstanceUnavailable
	}

	entry, err := m.entryFor(rec)
	if err != nil {
		return nil, err
	}

	borrowCtx, cancel := context.WithTimeout(ctx, m.cfg.AcquireTimeout)
	defer cancel()

	obj, err := entry.pool.BorrowObject(borrowCtx)
	if err != nil {
		var dialErr *DialError
		if errors.As(err, &dialErr) {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnreachable, dialErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrPoolExhausted, err)
	}

	conn, ok := obj.(*Conn)
	if !ok {
		return nil, errors.New("pool returned unexpected object type")
	}
	return conn, nil
}

// Release returns a connection after one command. Unhealthy connections are
// destroyed; a replacement is opened lazily on the next acquire.
func (m *Manager) Release(instanceID string, conn *Conn, healthy bool) {
	m.mu.Lock()
	entry, ok := m.pools[instanceID]
	m.mu.Unlock()
	if !ok {
		conn.Close()
		return
	}

	ctx := context.Background()
	if healthy && conn.Healthy() {
		if err := entry.pool.ReturnObject(ctx, conn); err != nil {
			m.logger.Debug().Err(err).Str("instance_id", instanceID).Msg("return connection failed")
		}
		return
	}
	if err := entry.pool.InvalidateObject(ctx, conn); err != nil {
		m.logger.Debug().Err(err).Str("instance_id", instanceID).Msg("invalidate connection failed")
		conn.Close()
	}
}

// CloseInstance tears down a tenant's pool. Wired to the tenant table's
// evict hook so deleted or stopped instances drop their sockets.
func (m *Manager) CloseInstance(instanceID string) {
	m.mu.Lock()
	entry, ok := m.pools[instanceID]
	if ok {
		delete(m.pools, instanceID)
	}
	m.mu.Unlock()

	if ok {
		entry.pool.Close(context.Background())
		m.logger.Info().Str("instance_id", instanceID).Msg("closed instance pool")
	}
}

// OpenConnections reports live sockets (borrowed plus idle) for a tenant.
func (m *Manager) OpenConnections(instanceID string) int {
	m.mu.Lock()
	entry, ok := m.pools[instanceID]
	m.mu.Unlock()
	if !ok {
		return 0
	}
	return entry.pool.GetNumActive() + entry.pool.GetNumIdle()
}

// Close shuts down every pool.
func (m *Manager) Close() {
	m.mu.Lock()
	pools := m.pools
	m.pools = map[string]*poolEntry{}
	m.closed = true
	m.mu.Unlock()

	for _, entry := range pools {
		entry.pool.Close(context.Background())
	}
}
