package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"resboard/internal/board"
	"resboard/internal/realtime"
)

const boardPublishedKey = "board_published_at"

func delaysFetchedKey(stopID string) string { return "delays_fetched_at:" + stopID }

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetMetadata retrieves a value from the metadata table.
func (db *DB) GetMetadata(ctx context.Context, key string) (string, error) {
	return getMetadata(ctx, db, key)
}

// SetMetadata stores a key-value pair in the metadata table.
func (db *DB) SetMetadata(ctx context.Context, key, value string) error {
	return setMetadata(ctx, db, key, value)
}

func getMetadata(ctx context.Context, q querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func setMetadata(ctx context.Context, q querier, key, value string) error {
	_, err := q.ExecContext(ctx,
		`INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)`,
		key, value)
	return err
}

func (db *DB) timeMetadata(ctx context.Context, key string) (time.Time, error) {
	v, err := db.GetMetadata(ctx, key)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", key, err)
	}
	return time.Unix(sec, 0), nil
}

// SaveBoard replaces the stored board.
func (db *DB) SaveBoard(ctx context.Context, deps []board.Departure, publishedAt time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM departures`); err != nil {
		return fmt.Errorf("clear departures: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO departures (position, route_id, scheduled, line, track, type,
			destination, direction_flag, delay, updated, stop_sequence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert departure: %w", err)
	}
	defer stmt.Close()

	for i, d := range deps {
		var delay, updated, seq sql.NullInt64
		if d.Delay != nil {
			delay = sql.NullInt64{Int64: int64(*d.Delay), Valid: true}
		}
		if d.Updated != nil {
			updated = sql.NullInt64{Int64: d.Updated.Unix(), Valid: true}
		}
		if d.StopSequence != nil {
			seq = sql.NullInt64{Int64: int64(*d.StopSequence), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, i, d.RouteID, d.Scheduled.Unix(), d.Line, d.Track,
			d.Type, d.Destination, d.DirectionFlag, delay, updated, seq); err != nil {
			return fmt.Errorf("insert departure: %w", err)
		}
	}

	if err := setMetadata(ctx, tx, boardPublishedKey, strconv.FormatInt(publishedAt.Unix(), 10)); err != nil {
		return fmt.Errorf("set published_at: %w", err)
	}
	return tx.Commit()
}

// LoadBoard returns the stored board in published order with times in loc,
// and when it was published.
func (db *DB) LoadBoard(ctx context.Context, loc *time.Location) ([]board.Departure, time.Time, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT route_id, scheduled, line, track, type, destination, direction_flag,
		       delay, updated, stop_sequence
		FROM departures
		ORDER BY position`)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load departures query: %w", err)
	}
	defer rows.Close()

	var deps []board.Departure
	for rows.Next() {
		var d board.Departure
		var scheduled int64
		var delay, updated, seq sql.NullInt64
		if err := rows.Scan(&d.RouteID, &scheduled, &d.Line, &d.Track, &d.Type,
			&d.Destination, &d.DirectionFlag, &delay, &updated, &seq); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan departure: %w", err)
		}
		d.Scheduled = time.Unix(scheduled, 0).In(loc)
		if delay.Valid {
			v := int32(delay.Int64)
			d.Delay = &v
		}
		if updated.Valid {
			v := time.Unix(updated.Int64, 0).In(loc)
			d.Updated = &v
		}
		if seq.Valid {
			v := uint32(seq.Int64)
			d.StopSequence = &v
		}
		deps = append(deps, d)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, err
	}

	publishedAt, err := db.timeMetadata(ctx, boardPublishedKey)
	if err != nil {
		return nil, time.Time{}, err
	}
	return deps, publishedAt, nil
}

// SaveDelays replaces the stored delay snapshot for a stop.
func (db *DB) SaveDelays(ctx context.Context, stopID string, snap realtime.Snapshot) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM delay_samples WHERE stop_id = ?`, stopID); err != nil {
		return fmt.Errorf("clear delay samples: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO delay_samples (stop_id, stop_sequence, scheduled, realtime, delay)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert delay sample: %w", err)
	}
	defer stmt.Close()

	for _, s := range snap.Samples {
		if _, err := stmt.ExecContext(ctx, stopID, s.StopSequence, s.Scheduled, s.Realtime, s.Delay); err != nil {
			return fmt.Errorf("insert delay sample: %w", err)
		}
	}

	if err := setMetadata(ctx, tx, delaysFetchedKey(stopID), strconv.FormatInt(snap.FetchedAt.Unix(), 10)); err != nil {
		return fmt.Errorf("set fetched_at: %w", err)
	}
	return tx.Commit()
}

// LoadDelays returns the stored delay snapshot for a stop, in feed order.
func (db *DB) LoadDelays(ctx context.Context, stopID string) (realtime.Snapshot, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT stop_sequence, scheduled, realtime, delay
		FROM delay_samples
		WHERE stop_id = ?
		ORDER BY rowid`, stopID)
	if err != nil {
		return realtime.Snapshot{}, fmt.Errorf("load delay samples query: %w", err)
	}
	defer rows.Close()

	var samples []realtime.Sample
	for rows.Next() {
		s := realtime.Sample{StopID: stopID}
		if err := rows.Scan(&s.StopSequence, &s.Scheduled, &s.Realtime, &s.Delay); err != nil {
			return realtime.Snapshot{}, fmt.Errorf("scan delay sample: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return realtime.Snapshot{}, err
	}

	fetchedAt, err := db.timeMetadata(ctx, delaysFetchedKey(stopID))
	if err != nil {
		return realtime.Snapshot{}, err
	}
	return realtime.Snapshot{Samples: samples, FetchedAt: fetchedAt}, nil
}
