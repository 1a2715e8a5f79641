package tenant

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Refresher polls a Source on a fixed interval and swaps snapshots into the
// table. Refresh runs off the request path; on source failure the table
// keeps serving the last good snapshot.
type Refresher struct {
	table    *Table
	source   Source
	interval time.Duration
	logger   zerolog.Logger
}

func NewRefresher(table *Table, source Source, interval time.Duration, logger zerolog.Logger) *Refresher {
	return &Refresher{table: table, source: source, interval: interval, logger: logger}
}

// Run loads an initial snapshot, then refreshes until ctx is cancelled.
// The initial load is fatal if it fails: starting with an empty table would
// 401 every tenant until the first successful poll.
func (r *Refresher) Run(ctx context.Context) error {
	if err := r.refresh(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.refresh(ctx); err != nil {
				r.logger.Error().Err(err).Msg("tenant refresh failed, serving stale table")
			}
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) error {
	records, err := r.source.Load(ctx)
	if err != nil {
		return err
	}
	r.table.ReplaceAll(records)
	r.logger.Debug().Int("instances", len(records)).Msg("tenant table refreshed")
	return nil
}
