// Package pool maintains per-tenant bounded sets of ready RESP connections
// and hands one out for the duration of a single command. It is the only
// part of the gateway permitted to open or close backend sockets.
package pool

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/redisgate/redisgate/internal/resp"
)

// Conn is one live session to a tenant's backend. It never escapes callers
// beyond a single command execution; the manager enforces the borrow/return
// discipline.
type Conn struct {
	// ID correlates this socket across log lines.
	ID string

	nc       net.Conn
	br       *bufio.Reader
	bw       *bufio.Writer
	addr     string
	lastUsed time.Time

	// broken marks the wire state indeterminate: a command was written but
	// no complete reply was read, or the reply stream desynced. A broken
	// connection must be destroyed, never reused.
	broken bool
}

func newConn(nc net.Conn, addr string) *Conn {
	return &Conn{
		ID:       uuid.NewString(),
		nc:       nc,
		br:       bufio.NewReader(nc),
		bw:       bufio.NewWriter(nc),
		addr:     addr,
		lastUsed: time.Now(),
	}
}

// Do executes exactly one command and reads its reply. No pipelining: the
// caller holds the connection exclusively until Do returns.
func (c *Conn) Do(ctx context.Context, args [][]byte) (resp.Reply, error) {
	if c.broken {
		return nil, fmt.Errorf("connection %s is broken", c.ID)
	}
	// Nothing written yet, so a pre-cancelled context leaves the
	// connection clean.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := c.nc.SetDeadline(deadline); err != nil {
		c.broken = true
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	// Watcher unblocks an in-flight read when the caller goes away, so a
	// client disconnect doesn't hold the connection until the command
	// timeout. The wire stays indeterminate either way; the connection is
	// destroyed, not reused.
	stop := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case <-ctx.Done():
			c.nc.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()
	defer func() {
		close(stop)
		<-watcherDone
	}()

	if err := resp.WriteCommand(c.bw, args); err != nil {
		c.broken = true
		return nil, fmt.Errorf("write command: %w", err)
	}
	if err := c.bw.Flush(); err != nil {
		c.broken = true
		return nil, fmt.Errorf("flush command: %w", err)
	}

	reply, err := resp.ReadReply(c.br)
	if err != nil {
		c.broken = true
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, fmt.Errorf("read reply: %w", err)
	}

	c.lastUsed = time.Now()
	return reply, nil
}

// Healthy reports whether the connection may be returned to the free set.
func (c *Conn) Healthy() bool {
	return !c.broken
}

// probe performs a non-blocking read on an idle connection to catch a peer
// close before the connection serves a request. An idle connection must have
// nothing to say: any readable byte means the stream desynced, and EOF means
// the backend went away.
func (c *Conn) probe() bool {
	if c.broken {
		return false
	}
	if err := c.nc.SetReadDeadline(time.Now()); err != nil {
		return false
	}
	defer c.nc.SetReadDeadline(time.Time{})
	var one [1]byte
	_, err := c.nc.Read(one[:])
	return err != nil && errors.Is(err, os.ErrDeadlineExceeded)
}

// Close tears down the socket.
func (c *Conn) Close() error {
	return c.nc.Close()
}
