package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-fieldio/internal/field"
)

// EventFilter controls which trigger events List returns.
type EventFilter struct {
	Moniker string // optional
	Field   string // optional
	Limit   int    // default 50, max 200
	Offset  int
}

// EventPage is a page of trigger events.
type EventPage struct {
	Events []field.TriggerEvent `json:"events"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// EventLog keeps fired trigger events in the field_events table.
type EventLog struct {
	db *sql.DB
}

// NewEventLog creates an event log on an open, migrated database.
func NewEventLog(db *sql.DB) *EventLog {
	return &EventLog{db: db}
}

// Append stores a fired event. Events are keyed by their ULID, so storing
// the same event twice is a no-op.
func (l *EventLog) Append(ctx context.Context, ev field.TriggerEvent) error {
	if ev.Moniker == "" || ev.Field == "" {
		return fmt.Errorf("%w: moniker and field are required", ErrInvalidRecord)
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO field_events (id, moniker, field, value, prev_in_error, serial, fired_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID.String(), ev.Moniker, ev.Field, ev.Value, ev.PrevInError, int64(ev.Serial),
		at.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting field event: %w", err)
	}
	return nil
}

// List returns events matching the filter, newest first.
func (l *EventLog) List(ctx context.Context, filter EventFilter) (*EventPage, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultHistoryLimit
	}
	if filter.Limit > maxHistoryLimit {
		filter.Limit = maxHistoryLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Moniker != "" {
		conditions = append(conditions, "moniker = ?")
		args = append(args, filter.Moniker)
	}
	if filter.Field != "" {
		conditions = append(conditions, "field = ?")
		args = append(args, filter.Field)
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM field_events " + where //nolint:gosec // conditions are placeholders only
	if err := l.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting field events: %w", err)
	}

	query := "SELECT id, moniker, field, value, prev_in_error, serial, fired_at FROM field_events " + //nolint:gosec // as above
		where + " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying field events: %w", err)
	}
	defer rows.Close()

	events := []field.TriggerEvent{}
	for rows.Next() {
		var ev field.TriggerEvent
		var id, at string
		var serial int64
		if err := rows.Scan(&id, &ev.Moniker, &ev.Field, &ev.Value, &ev.PrevInError, &serial, &at); err != nil {
			return nil, fmt.Errorf("scanning field event: %w", err)
		}
		if err := ev.ID.UnmarshalText([]byte(id)); err != nil {
			return nil, fmt.Errorf("field event id %q: %w", id, err)
		}
		ev.Serial = uint32(serial) //nolint:gosec // written from a uint32
		if ev.At, err = parseTimestamp(at); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating field events: %w", err)
	}

	return &EventPage{
		Events: events,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}
