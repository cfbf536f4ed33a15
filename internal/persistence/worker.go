package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"PerpShare/internal/event"
	"PerpShare/internal/observability"
)

// Dumper produces a serializable snapshot of the current core state. It is
// invoked on the single-writer loop so it sees a consistent view.
type Dumper func() (*SnapshotData, error)

// SnapshotWorker periodically dumps core state and writes it to Postgres.
// Snapshot writes retry with backoff; the core never blocks on them.
type SnapshotWorker struct {
	manager  *SnapshotManager
	dump     Dumper
	interval time.Duration
	keep     int
	log      zerolog.Logger
	metrics  *observability.Metrics
}

func NewSnapshotWorker(db *sql.DB, dump Dumper, interval time.Duration, keep int, log zerolog.Logger, metrics *observability.Metrics) *SnapshotWorker {
	return &SnapshotWorker{
		manager:  NewSnapshotManager(db),
		dump:     dump,
		interval: interval,
		keep:     keep,
		log:      log,
		metrics:  metrics,
	}
}

func (sw *SnapshotWorker) Manager() *SnapshotManager { return sw.manager }

// Run snapshots on the interval until the context ends, then takes one final
// snapshot so a graceful shutdown loses nothing.
func (sw *SnapshotWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sw.snapshot(context.Background())
			return ctx.Err()
		case <-ticker.C:
			sw.snapshot(ctx)
		}
	}
}

func (sw *SnapshotWorker) snapshot(ctx context.Context) {
	start := time.Now()
	snap, err := sw.dump()
	if err != nil {
		sw.log.Error().Err(err).Msg("state dump failed")
		return
	}
	if err := sw.saveWithRetry(ctx, snap); err != nil {
		sw.log.Error().Err(err).Int64("sequence", snap.Sequence).Msg("snapshot write failed")
		return
	}
	if sw.keep > 0 {
		if err := sw.manager.PruneSnapshots(ctx, sw.keep); err != nil {
			sw.log.Warn().Err(err).Msg("snapshot prune failed")
		}
	}
	if sw.metrics != nil {
		sw.metrics.SnapshotsWritten.Inc()
		sw.metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
	}
	sw.log.Debug().Int64("sequence", snap.Sequence).Dur("took", time.Since(start)).Msg("snapshot written")
}

func (sw *SnapshotWorker) saveWithRetry(ctx context.Context, snap *SnapshotData) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 10 * time.Second
	const maxAttempts = 5

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return sw.manager.SaveSnapshot(context.Background(), snap)
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
		if err = sw.manager.SaveSnapshot(ctx, snap); err == nil {
			return nil
		}
	}
	return err
}

// EventLogWorker drains a second copy of the event stream into the Postgres
// event log. Batches flush when full or on the flush timeout, never dropping
// an envelope while the database stays reachable.
type EventLogWorker struct {
	writer       *EventLogWriter
	in           <-chan *event.Envelope
	batchSize    int
	flushTimeout time.Duration
	log          zerolog.Logger
}

func NewEventLogWorker(db *sql.DB, in <-chan *event.Envelope, batchSize int, flushTimeout time.Duration, log zerolog.Logger) *EventLogWorker {
	return &EventLogWorker{
		writer:       NewEventLogWriter(db),
		in:           in,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		log:          log,
	}
}

func (ew *EventLogWorker) Run(ctx context.Context) error {
	batch := make([]*event.Envelope, 0, ew.batchSize)

	timer := time.NewTimer(ew.flushTimeout)
	defer timer.Stop()

	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := ew.writer.WriteBatch(ctx, batch); err != nil {
			ew.log.Error().Err(err).Int("batch", len(batch)).Msg("event log flush failed")
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush(context.Background())
			return ctx.Err()

		case env, ok := <-ew.in:
			if !ok {
				flush(context.Background())
				return nil
			}
			batch = append(batch, env)
			if len(batch) >= ew.batchSize {
				flush(ctx)
				timer.Reset(ew.flushTimeout)
			}

		case <-timer.C:
			flush(ctx)
			timer.Reset(ew.flushTimeout)
		}
	}
}
