package storage

import "fmt"

// migrate creates the schema if it doesn't exist.
func (db *DB) migrate() error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	db.logger.Debug("board schema applied", "statements", len(migrations))
	return nil
}

var migrations = []string{
	// Last published board
	`CREATE TABLE IF NOT EXISTS departures (
		position       INTEGER PRIMARY KEY,
		route_id       INTEGER NOT NULL,
		scheduled      INTEGER NOT NULL,
		line           TEXT NOT NULL,
		track          TEXT NOT NULL DEFAULT '',
		type           TEXT NOT NULL DEFAULT '',
		destination    TEXT NOT NULL DEFAULT '',
		direction_flag TEXT NOT NULL DEFAULT '',
		delay          INTEGER,
		updated        INTEGER,
		stop_sequence  INTEGER
	)`,

	// Last delay snapshot, per watched stop
	`CREATE TABLE IF NOT EXISTS delay_samples (
		stop_id       TEXT NOT NULL,
		stop_sequence INTEGER NOT NULL,
		scheduled     INTEGER NOT NULL,
		realtime      INTEGER NOT NULL,
		delay         INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_delay_samples_stop ON delay_samples(stop_id)`,

	// board_published_at, delays_fetched_at:<stop>, ...
	`CREATE TABLE IF NOT EXISTS metadata (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}
