package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"PerpShare/internal/event"
)

// EventLogWriter appends published event envelopes to perpshare.events using
// multi-row INSERT. Writes are idempotent on event_id so a replayed batch
// after a retry never duplicates rows.
type EventLogWriter struct {
	db *sql.DB
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteBatch writes a batch of envelopes in one statement.
func (w *EventLogWriter) WriteBatch(ctx context.Context, envs []*event.Envelope) error {
	if len(envs) == 0 {
		return nil
	}

	query := `INSERT INTO perpshare.events
		(event_id, sequence, event_type, payload, created_at)
		VALUES `

	values := make([]string, 0, len(envs))
	args := make([]interface{}, 0, len(envs)*5)

	for i, e := range envs {
		base := i * 5
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5,
		))
		args = append(args,
			e.EventID, e.Sequence, e.Type.String(), []byte(e.Payload), e.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (event_id) DO NOTHING"

	_, err := w.db.ExecContext(ctx, query, args...)
	return err
}

// LoadEventsFrom loads stored envelopes from a given sequence, oldest first.
func (w *EventLogWriter) LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]StoredEvent, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT event_id, sequence, event_type, payload, created_at
		FROM perpshare.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var e StoredEvent
		if err := rows.Scan(&e.EventID, &e.Sequence, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// StoredEvent is a row in perpshare.events.
type StoredEvent struct {
	EventID   string
	Sequence  int64
	EventType string
	Payload   []byte
	CreatedAt sql.NullTime
}
