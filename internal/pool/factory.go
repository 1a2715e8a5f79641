package pool

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	cpool "github.com/jolestar/go-commons-pool/v2"
	"github.com/rs/zerolog"

	"github.com/redisgate/redisgate/internal/metrics"
)

// DialError wraps a failed connection establishment so the manager can
// distinguish an unreachable backend from an exhausted pool.
type DialError struct {
	Addr string
	Err  error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("dial backend %s: %v", e.Addr, e.Err)
}

func (e *DialError) Unwrap() error {
	return e.Err
}

// connFactory creates, validates and destroys connections for one tenant's
// pool, implementing cpool.PooledObjectFactory.
type connFactory struct {
	instanceID string
	addr       string
	cfg        Config
	logger     zerolog.Logger
}

// MakeObject dials the backend with a fixed small number of retries and
// bounded backoff. It never retries indefinitely; request latency stays
// bounded by AcquireTimeout at the borrow site.
func (f *connFactory) MakeObject(ctx context.Context) (*cpool.PooledObject, error) {
	var lastErr error
	for attempt := 0; attempt <= f.cfg.DialRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &DialError{Addr: f.addr, Err: errors.Join(ctx.Err(), lastErr)}
			case <-time.After(time.Duration(attempt) * f.cfg.DialBackoff):
			}
		}

		nc, err := net.DialTimeout("tcp", f.addr, f.cfg.DialTimeout)
		if err != nil {
			lastErr = err
			continue
		}

		conn := newConn(nc, f.addr)
		metrics.PoolConnectionsOpen.WithLabelValues(f.instanceID).Inc()
		f.logger.Debug().
			Str("instance_id", f.instanceID).
			Str("conn_id", conn.ID).
			Str("backend", f.addr).
			Msg("opened backend connection")
		return cpool.NewPooledObject(conn), nil
	}
	return nil, &DialError{Addr: f.addr, Err: lastErr}
}

func (f *connFactory) DestroyObject(_ context.Context, object *cpool.PooledObject) error {
	conn, ok := object.Object.(*Conn)
	if !ok {
		return errors.New("pooled object is not a connection")
	}
	metrics.PoolConnectionsOpen.WithLabelValues(f.instanceID).Dec()
	f.logger.Debug().
		Str("instance_id", f.instanceID).
		Str("conn_id", conn.ID).
		Msg("closed backend connection")
	return conn.Close()
}

// ValidateObject runs on borrow (TestOnBorrow). The read probe weeds out
// idle connections whose backend restarted or closed them, so a stale
// socket is replaced transparently instead of failing its next command.
func (f *connFactory) ValidateObject(_ context.Context, object *cpool.PooledObject) bool {
	conn, ok := object.Object.(*Conn)
	return ok && conn.Healthy() && conn.probe()
}

func (f *connFactory) ActivateObject(_ context.Context, _ *cpool.PooledObject) error {
	return nil
}

func (f *connFactory) PassivateObject(_ context.Context, _ *cpool.PooledObject) error {
	return nil
}
