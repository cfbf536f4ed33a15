// Package publish ships committed domain events to NATS JetStream for
// downstream consumers. Publishing is best-effort and happens off the write
// path: a failed publish is logged and counted, never rolled back into the
// core.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"PerpShare/internal/event"
	"PerpShare/internal/observability"
)

const streamName = "PERPSHARE_EVENTS"

const subjectPrefix = "perpshare.events"

// Publisher drains the event channel into JetStream subjects
// perpshare.events.{type}.
type Publisher struct {
	js      jetstream.JetStream
	in      <-chan *event.Envelope
	log     zerolog.Logger
	metrics *observability.Metrics
}

func New(js jetstream.JetStream, in <-chan *event.Envelope, log zerolog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		js:      js,
		in:      in,
		log:     log,
		metrics: metrics,
	}
}

// Run drains the channel until it closes or the context ends.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env, ok := <-p.in:
			if !ok {
				return nil
			}
			if err := p.publish(ctx, env); err != nil {
				p.log.Warn().Err(err).
					Int64("sequence", env.Sequence).
					Str("type", env.Type.String()).
					Msg("outbound publish failed")
				if p.metrics != nil {
					p.metrics.PublishFailures.Inc()
				}
				continue
			}
			if p.metrics != nil {
				p.metrics.EventsPublished.WithLabelValues(env.Type.Subject()).Inc()
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, env *event.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	subject := fmt.Sprintf("%s.%s", subjectPrefix, env.Type.Subject())
	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// Recorder assigns sequences and feeds the publish channel. State-changing
// call sites emit through it after their change commits; a full channel
// drops the event rather than blocking the write path.
type Recorder struct {
	out     chan<- *event.Envelope
	seq     atomic.Int64
	log     zerolog.Logger
	metrics *observability.Metrics
}

func NewRecorder(out chan<- *event.Envelope, log zerolog.Logger, metrics *observability.Metrics) *Recorder {
	return &Recorder{out: out, log: log, metrics: metrics}
}

// Seed moves the sequence counter forward, used after a snapshot restore so
// envelope sequences continue from where the previous run stopped.
func (r *Recorder) Seed(seq int64) {
	if r == nil {
		return
	}
	r.seq.Store(seq)
}

// Emit wraps and enqueues the event. Safe to call with a nil recorder so
// call sites need no wiring guard.
func (r *Recorder) Emit(ev event.Event) {
	if r == nil || r.out == nil {
		return
	}
	env, err := event.Wrap(r.seq.Add(1), ev, time.Now())
	if err != nil {
		r.log.Error().Err(err).Str("type", ev.EventType().String()).Msg("event marshal failed")
		return
	}
	select {
	case r.out <- env:
	default:
		r.log.Warn().Str("type", ev.EventType().String()).Msg("event channel full, dropping")
		if r.metrics != nil {
			r.metrics.PublishFailures.Inc()
		}
	}
}

// ConnectNATS dials the server and opens a JetStream context. Reconnects
// forever; connection state changes are logged, not surfaced.
func ConnectNATS(url string, log zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	return nc, js, nil
}

// EnsureStream creates or updates the outbound events stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subjectPrefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	return nil
}
