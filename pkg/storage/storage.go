package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/otakuflix/adata/pkg/catalog"
	_ "modernc.org/sqlite"
)

// DefaultDocument is the document name used when none is configured.
const DefaultDocument = "catalog"

// DB is a sqlite-backed Store that also keeps a change log.
type DB struct {
	sql  *sql.DB
	name string
}

func Open(path, name string) (*DB, error) {
	if name == "" {
		name = DefaultDocument
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS documents (
  name        TEXT PRIMARY KEY,
  body        BLOB NOT NULL,
  version     TEXT NOT NULL,
  updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS catalog_changes (
  id          INTEGER PRIMARY KEY,
  occurred_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  document    TEXT NOT NULL,
  aid         INTEGER NOT NULL,
  name        TEXT NOT NULL,
  change_type TEXT NOT NULL CHECK (change_type IN ('added','updated','removed'))
);
CREATE INDEX IF NOT EXISTS idx_changes_time ON catalog_changes(occurred_at);
CREATE INDEX IF NOT EXISTS idx_changes_aid ON catalog_changes(aid, occurred_at);
    `); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db, name: name}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// Read returns the stored catalog. A missing document reads as empty with version "".
func (d *DB) Read(ctx context.Context) (catalog.Catalog, Version, error) {
	var body []byte
	var version string
	err := d.sql.QueryRowContext(ctx, "SELECT body, version FROM documents WHERE name = ?", d.name).Scan(&body, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Catalog{}, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	c, err := catalog.Decode(body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return c, Version(version), nil
}

// Write replaces the document when v matches the stored version. The check and
// the write are a single statement, so concurrent writers cannot both win.
func (d *DB) Write(ctx context.Context, c catalog.Catalog, v Version) (Version, error) {
	body, err := c.Encode()
	if err != nil {
		return "", err
	}
	next := contentVersion(body)

	var res sql.Result
	if v == "" {
		res, err = d.sql.ExecContext(ctx, `INSERT INTO documents(name, body, version, updated_at) VALUES(?,?,?,CURRENT_TIMESTAMP)
ON CONFLICT(name) DO NOTHING`, d.name, body, next)
	} else {
		res, err = d.sql.ExecContext(ctx, `UPDATE documents SET body = ?, version = ?, updated_at = CURRENT_TIMESTAMP WHERE name = ? AND version = ?`,
			body, next, d.name, string(v))
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if n == 0 {
		return "", ErrConflict
	}
	return Version(next), nil
}

// contentVersion derives the version from the document bytes.
func contentVersion(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// LogChanges appends change events to the change log.
func (d *DB) LogChanges(ctx context.Context, changes []Change) error {
	if len(changes) == 0 {
		return nil
	}
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	for _, c := range changes {
		occurred := c.OccurredAt
		if occurred.IsZero() {
			occurred = time.Now()
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO catalog_changes(occurred_at, document, aid, name, change_type) VALUES(?,?,?,?,?)`,
			occurred.UTC().Format("2006-01-02 15:04:05"), d.name, c.ID, c.Name, c.ChangeType); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ListRecentChanges returns the most recent N changes.
func (d *DB) ListRecentChanges(ctx context.Context, limit int) ([]Change, error) {
	if limit <= 0 {
		limit = 50
	}
	q := "SELECT occurred_at, aid, name, change_type FROM catalog_changes WHERE document = ? ORDER BY occurred_at DESC, id DESC LIMIT ?"
	rows, err := d.sql.QueryContext(ctx, q, d.name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	changes := []Change{}
	for rows.Next() {
		var c Change
		var occurredAtStr string
		if err := rows.Scan(&occurredAtStr, &c.ID, &c.Name, &c.ChangeType); err != nil {
			return nil, err
		}
		// Parse SQLite CURRENT_TIMESTAMP format
		// Try "2006-01-02 15:04:05" then RFC3339
		if t, perr := time.Parse("2006-01-02 15:04:05", occurredAtStr); perr == nil {
			c.OccurredAt = t
		} else if t2, perr2 := time.Parse(time.RFC3339, occurredAtStr); perr2 == nil {
			c.OccurredAt = t2
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return changes, nil
}
