package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-fieldio/internal/field"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	// timeLayout sorts lexicographically, which range deletes rely on.
	timeLayout = "2006-01-02T15:04:05.000Z"
)

// Record is one persisted field value.
type Record struct {
	Moniker string     `json:"moniker"`
	Field   string     `json:"field"`
	Type    field.Type `json:"type"`
	Text    string     `json:"value"`
	InError bool       `json:"in_error"`
	Serial  uint32     `json:"serial"`
	At      time.Time  `json:"at"`

	// Data is the binary value form, used to restore the field.
	Data []byte `json:"-"`
}

// RecordFromSnapshot converts a store snapshot to a Record.
func RecordFromSnapshot(s field.Snapshot) (Record, error) {
	data, err := s.Value.MarshalBinary()
	if err != nil {
		return Record{}, fmt.Errorf("encoding %s.%s: %w", s.Moniker, s.Field, err)
	}
	return Record{
		Moniker: s.Moniker,
		Field:   s.Field,
		Type:    s.Value.Type(),
		Text:    s.Value.FormatText(),
		InError: s.Value.InError(),
		Serial:  s.Value.SerialNum(),
		At:      s.At,
		Data:    data,
	}, nil
}

// Entry is one row of a field's change history.
type Entry struct {
	ID      int64     `json:"id"`
	Text    string    `json:"value"`
	InError bool      `json:"in_error"`
	Serial  uint32    `json:"serial"`
	At      time.Time `json:"at"`
}

// SQLiteRepository persists field values in SQLite.
//
// field_values holds the last value of every field and is what restores
// read at startup. field_history appends every change.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save upserts the last value of a field and appends it to the history,
// in one transaction.
func (r *SQLiteRepository) Save(ctx context.Context, rec Record) error {
	if rec.Moniker == "" || rec.Field == "" {
		return fmt.Errorf("%w: moniker and field are required", ErrInvalidRecord)
	}
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	at := rec.At.UTC().Format(timeLayout)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO field_values (moniker, field, type, value, text, in_error, serial, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (moniker, field) DO UPDATE SET
			type = excluded.type,
			value = excluded.value,
			text = excluded.text,
			in_error = excluded.in_error,
			serial = excluded.serial,
			updated_at = excluded.updated_at`,
		rec.Moniker, rec.Field, rec.Type.String(), rec.Data, rec.Text, rec.InError, int64(rec.Serial), at,
	)
	if err != nil {
		return fmt.Errorf("upserting field value: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO field_history (moniker, field, text, in_error, serial, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Moniker, rec.Field, rec.Text, rec.InError, int64(rec.Serial), at,
	)
	if err != nil {
		return fmt.Errorf("inserting field history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing field value: %w", err)
	}
	return nil
}

// LastValue returns the binary form of a field's last persisted value. It
// implements driver.Restorer.
func (r *SQLiteRepository) LastValue(ctx context.Context, moniker, name string) ([]byte, bool, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM field_values WHERE moniker = ? AND field = ?",
		moniker, name,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying field value: %w", err)
	}
	return data, true, nil
}

// Values returns the last persisted value of every field of a driver,
// ordered by field name.
func (r *SQLiteRepository) Values(ctx context.Context, moniker string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT field, type, value, text, in_error, serial, updated_at
		 FROM field_values WHERE moniker = ? ORDER BY field`,
		moniker,
	)
	if err != nil {
		return nil, fmt.Errorf("querying field values: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec := Record{Moniker: moniker}
		var typeName, at string
		var serial int64
		if err := rows.Scan(&rec.Field, &typeName, &rec.Data, &rec.Text, &rec.InError, &serial, &at); err != nil {
			return nil, fmt.Errorf("scanning field value: %w", err)
		}
		if rec.Type, err = field.ParseType(typeName); err != nil {
			return nil, fmt.Errorf("field %s: %w", rec.Field, err)
		}
		rec.Serial = uint32(serial) //nolint:gosec // written from a uint32
		if rec.At, err = parseTimestamp(at); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating field values: %w", err)
	}
	return out, nil
}

// History returns a field's recent changes, newest first. The limit
// defaults to 50 and is capped at 200.
func (r *SQLiteRepository) History(ctx context.Context, moniker, name string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, text, in_error, serial, recorded_at
		 FROM field_history
		 WHERE moniker = ? AND field = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		moniker, name, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying field history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var serial int64
		var at string
		if err := rows.Scan(&e.ID, &e.Text, &e.InError, &serial, &at); err != nil {
			return nil, fmt.Errorf("scanning field history: %w", err)
		}
		e.Serial = uint32(serial) //nolint:gosec // written from a uint32
		if e.At, err = parseTimestamp(at); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating field history: %w", err)
	}
	return entries, nil
}

// Prune deletes history rows older than olderThan. Last values are kept.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}
	cutoff := time.Now().UTC().Add(-olderThan).Format(timeLayout)
	result, err := r.db.ExecContext(ctx, "DELETE FROM field_history WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting field history: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// parseTimestamp reads a stored timestamp, accepting plain RFC 3339 too.
func parseTimestamp(value string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return t, nil
}
