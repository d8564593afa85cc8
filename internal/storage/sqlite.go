package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

// DB keeps the last published board and the last delay snapshot so a
// restart can serve a board before the first refresh completes.
type DB struct {
	*sql.DB
	logger *slog.Logger
}

// dsn builds the go-sqlite3 connection string. Board and delay writes come
// from different goroutines, so WAL and a busy timeout are always on.
func dsn(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", "5000")
	q.Set("_synchronous", "NORMAL")
	return "file:" + path + "?" + q.Encode()
}

// Open opens the warm-start database at path, creating it and its tables
// if needed.
func Open(path string, logger *slog.Logger) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open board database %s: %w", path, err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connect board database %s: %w", path, err)
	}

	db := &DB{DB: sqlDB, logger: logger}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("create board schema: %w", err)
	}

	logger.Info("board database ready", "path", path)
	return db, nil
}
