package pool

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redisgate/redisgate/internal/resp"
	"github.com/redisgate/redisgate/internal/tenant"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AcquireTimeout = 500 * time.Millisecond
	cfg.DialTimeout = 500 * time.Millisecond
	cfg.DialRetries = 1
	cfg.DialBackoff = 10 * time.Millisecond
	return cfg
}

func runningRecord(id, addr string) tenant.Record {
	return tenant.Record{
		InstanceID:  id,
		BackendAddr: addr,
		APIKeyHash:  tenant.HashAPIKey("k"),
		Status:      tenant.StatusRunning,
	}
}

func cmd(args ...string) [][]byte {
	out := make([][]byte, 0, len(args))
	for _, a := range args {
		out = append(out, []byte(a))
	}
	return out
}

func TestAcquireDoRelease(t *testing.T) {
	backend := miniredis.RunT(t)
	m := NewManager(testConfig(), zerolog.Nop())
	defer m.Close()
	rec := runningRecord("pool-t1", backend.Addr())

	conn, err := m.Acquire(context.Background(), rec)
	require.NoError(t, err)

	reply, err := conn.Do(context.Background(), cmd("PING"))
	require.NoError(t, err)
	status, ok := reply.(*resp.StatusReply)
	require.True(t, ok)
	assert.Equal(t, "PONG", status.Status)

	m.Release(rec.InstanceID, conn, true)
	assert.Equal(t, 1, m.OpenConnections(rec.InstanceID))

	// The freed connection is reused rather than a second one opened.
	again, err := m.Acquire(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, conn.ID, again.ID)
	assert.Equal(t, 1, m.OpenConnections(rec.InstanceID))
	m.Release(rec.InstanceID, again, true)
}

func TestAcquire_NotRunning(t *testing.T) {
	backend := miniredis.RunT(t)
	m := NewManager(testConfig(), zerolog.Nop())
	defer m.Close()

	rec := runningRecord("pool-t2", backend.Addr())
	rec.Status = tenant.StatusStopped

	_, err := m.Acquire(context.Background(), rec)
	assert.ErrorIs(t, err, ErrInstanceUnavailable)
	// No connection attempt is made for a stopped instance.
	assert.Zero(t, m.OpenConnections(rec.InstanceID))
}

func TestAcquire_PoolExhausted(t *testing.T) {
	backend := miniredis.RunT(t)
	cfg := testConfig()
	cfg.MaxActive = 1
	cfg.AcquireTimeout = 100 * time.Millisecond
	m := NewManager(cfg, zerolog.Nop())
	defer m.Close()
	rec := runningRecord("pool-t3", backend.Addr())

	conn, err := m.Acquire(context.Background(), rec)
	require.NoError(t, err)
	defer m.Release(rec.InstanceID, conn, true)

	_, err = m.Acquire(context.Background(), rec)
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

func TestAcquire_QueuesUntilReleased(t *testing.T) {
	backend := miniredis.RunT(t)
	cfg := testConfig()
	cfg.MaxActive = 1
	cfg.AcquireTimeout = time.Second
	m := NewManager(cfg, zerolog.Nop())
	defer m.Close()
	rec := runningRecord("pool-t4", backend.Addr())

	conn, err := m.Acquire(context.Background(), rec)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		second, err := m.Acquire(context.Background(), rec)
		if err == nil {
			m.Release(rec.InstanceID, second, true)
		}
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	m.Release(rec.InstanceID, conn, true)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("second acquire never completed")
	}
}

func TestAcquire_BackendUnreachable(t *testing.T) {
	m := NewManager(testConfig(), zerolog.Nop())
	defer m.Close()
	rec := runningRecord("pool-t5", "127.0.0.1:1")

	_, err := m.Acquire(context.Background(), rec)
	assert.ErrorIs(t, err, ErrBackendUnreachable)
}

func TestRelease_UnhealthyDiscardsConnection(t *testing.T) {
	backend := miniredis.RunT(t)
	m := NewManager(testConfig(), zerolog.Nop())
	defer m.Close()
	rec := runningRecord("pool-t6", backend.Addr())

	conn, err := m.Acquire(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 1, m.OpenConnections(rec.InstanceID))

	m.Release(rec.InstanceID, conn, false)
	assert.Zero(t, m.OpenConnections(rec.InstanceID))
}

func TestCloseInstance(t *testing.T) {
	backend := miniredis.RunT(t)
	m := NewManager(testConfig(), zerolog.Nop())
	defer m.Close()
	rec := runningRecord("pool-t7", backend.Addr())

	conn, err := m.Acquire(context.Background(), rec)
	require.NoError(t, err)
	m.Release(rec.InstanceID, conn, true)

	m.CloseInstance(rec.InstanceID)
	assert.Zero(t, m.OpenConnections(rec.InstanceID))
}

func TestAcquire_DiscardsStaleIdleConnection(t *testing.T) {
	backend := newFakeBackend(t, "+OK\r\n")
	m := NewManager(testConfig(), zerolog.Nop())
	defer m.Close()
	rec := runningRecord("pool-t9", backend.addr())

	conn, err := m.Acquire(context.Background(), rec)
	require.NoError(t, err)
	_, err = conn.Do(context.Background(), cmd("SET", "k", "v"))
	require.NoError(t, err)
	m.Release(rec.InstanceID, conn, true)
	require.Equal(t, 1, m.OpenConnections(rec.InstanceID))

	// Backend restart: the idle socket is dead but the pool doesn't know.
	backend.closeConns()
	time.Sleep(100 * time.Millisecond)

	// Borrow validation discards the stale connection and dials a fresh
	// one; the caller never sees the dead socket.
	again, err := m.Acquire(context.Background(), rec)
	require.NoError(t, err)
	assert.NotEqual(t, conn.ID, again.ID)

	_, err = again.Do(context.Background(), cmd("SET", "k", "v"))
	assert.NoError(t, err)
	m.Release(rec.InstanceID, again, true)
}

func TestConcurrentIncr_ExactlyOnce(t *testing.T) {
	backend := miniredis.RunT(t)
	cfg := testConfig()
	cfg.MaxActive = 4
	cfg.AcquireTimeout = 2 * time.Second
	m := NewManager(cfg, zerolog.Nop())
	defer m.Close()
	rec := runningRecord("pool-t8", backend.Addr())

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := m.Acquire(context.Background(), rec)
			if err != nil {
				errs <- err
				return
			}
			_, err = conn.Do(context.Background(), cmd("INCR", "counter"))
			m.Release(rec.InstanceID, conn, err == nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := backend.Get("counter")
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(workers), got)
	assert.LessOrEqual(t, m.OpenConnections(rec.InstanceID), cfg.MaxActive)
}
