package gateway

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/redisgate/redisgate/internal/command"
	"github.com/redisgate/redisgate/internal/metrics"
	"github.com/redisgate/redisgate/internal/pool"
	"github.com/redisgate/redisgate/internal/resp"
	"github.com/redisgate/redisgate/internal/tenant"
)

// Translate produces the command request for a dispatch. Deferred behind a
// closure so translation never runs before authorization succeeds.
type Translate func() (*command.Request, error)

// Dispatcher runs the per-request state machine:
// authorize -> translate -> liveness -> acquire -> execute -> release.
// It is stateless across requests.
type Dispatcher struct {
	table          *tenant.Table
	pools          *pool.Manager
	commandTimeout time.Duration
	logger         zerolog.Logger
}

func NewDispatcher(table *tenant.Table, pools *pool.Manager, commandTimeout time.Duration, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		table:          table,
		pools:          pools,
		commandTimeout: commandTimeout,
		logger:         logger,
	}
}

// Dispatch executes one operation. A request never reaches a backend
// without having passed authorization; liveness is checked after
// translation so a stopped instance with a bad command still reports the
// command error the client can fix.
func (d *Dispatcher) Dispatch(ctx context.Context, apiKey, instanceID string, translate Translate) (resp.Reply, *Error) {
	start := time.Now()

	rec, err := d.table.Authorize(apiKey, instanceID)
	if err != nil {
		return nil, d.fail("", err)
	}

	req, err := translate()
	if err != nil {
		return nil, d.fail("", err)
	}

	if !rec.Running() {
		return nil, d.fail(req.Verb, pool.ErrInstanceUnavailable)
	}

	conn, err := d.pools.Acquire(ctx, rec)
	if err != nil {
		return nil, d.fail(req.Verb, err)
	}

	// Release is deferred so a panic on the exchange path cannot leak the
	// borrowed slot out of the tenant's bounded pool. A connection is
	// returned healthy unless the exchange left the wire indeterminate;
	// Do tracks that itself, and healthy stays false if Do never returns.
	healthy := false
	defer func() { d.pools.Release(rec.InstanceID, conn, healthy) }()

	execCtx, cancel := context.WithTimeout(ctx, d.commandTimeout)
	defer cancel()
	reply, err := conn.Do(execCtx, req.Vector())
	healthy = err == nil

	if err != nil {
		return nil, d.fail(req.Verb, err)
	}

	if errReply, ok := reply.(*resp.ErrorReply); ok {
		// The backend executed the command and rejected it (wrong type,
		// bad argument). The exchange itself succeeded.
		gerr := newError(KindCommandRejected, errReply.Status, nil)
		d.observe(req.Verb, string(gerr.Kind), start)
		return nil, gerr
	}

	d.observe(req.Verb, "ok", start)
	return reply, nil
}

// fail classifies a leaf error into the fixed taxonomy and records it.
func (d *Dispatcher) fail(verb string, err error) *Error {
	gerr := classify(err)
	d.observe(verb, string(gerr.Kind), time.Time{})
	if gerr.Kind == KindInternal {
		d.logger.Error().Err(err).Msg("unexpected dispatch failure")
	} else {
		d.logger.Debug().Err(err).Str("kind", string(gerr.Kind)).Msg("dispatch failed")
	}
	return gerr
}

func (d *Dispatcher) observe(verb, outcome string, start time.Time) {
	if verb == "" {
		verb = "unknown"
	}
	metrics.CommandsTotal.WithLabelValues(verb, outcome).Inc()
	if !start.IsZero() {
		metrics.CommandDuration.WithLabelValues(verb).Observe(time.Since(start).Seconds())
	}
}

func classify(err error) *Error {
	var forbidden *command.ForbiddenError
	var invalid *command.InvalidError
	var protoErr *resp.ProtocolError
	var netErr net.Error

	switch {
	case errors.Is(err, tenant.ErrUnknownInstance):
		return newError(KindUnknownInstance, "unknown instance", nil)
	case errors.Is(err, tenant.ErrInvalidAPIKey):
		return newError(KindInvalidAPIKey, "invalid API key", nil)
	case errors.As(err, &forbidden):
		return newError(KindForbiddenCommand, forbidden.Error(), nil)
	case errors.As(err, &invalid):
		return newError(KindInvalidCommand, invalid.Error(), nil)
	case errors.Is(err, pool.ErrInstanceUnavailable):
		return newError(KindInstanceUnavailable, "instance is not running", err)
	case errors.Is(err, pool.ErrPoolExhausted):
		return newError(KindPoolExhausted, "no backend connection available, retry later", err)
	case errors.Is(err, pool.ErrBackendUnreachable):
		return newError(KindBackendUnreachable, "backend unreachable", err)
	case errors.As(err, &protoErr):
		return newError(KindBackendProtocol, "malformed reply from backend", err)
	case errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return newError(KindBackendUnreachable, "backend did not reply in time", err)
	case errors.As(err, &netErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return newError(KindBackendUnreachable, "backend connection lost", err)
	default:
		return newError(KindInternal, "internal error", err)
	}
}
