/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "bulkimage/internal/log"
	"bulkimage/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// CacheDirName holds the workspace database under the workspace root.
	CacheDirName  = ".bulkimage"
	CacheFileName = "workspace.sqlite"

	// schemaVersion tracks the local SQLite schema.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// Workspace is an open workspace cache.
type Workspace struct {
	Root string
	db   *sql.DB
}

// CachePath returns the full path to the workspace database file.
func CachePath(root string) string {
	return filepath.Join(root, CacheDirName, CacheFileName)
}

// OpenWorkspace opens or creates the workspace cache under root. A database
// that cannot be opened or fails its integrity check is backed up to
// .bulkimage/backups and recreated empty.
func OpenWorkspace(ctx context.Context, root string) (*Workspace, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "workspace_open").With(
		slog.String("root", root),
	)
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace root is required")
	}
	db, err := openCache(ctx, root)
	if err == nil && !healthy(ctx, db) {
		_ = db.Close()
		err = errors.New("integrity check failed")
	}
	if err != nil {
		l.Warn("workspace cache unusable, recreating", slog.Any("err", err))
		path := CachePath(root)
		backupCacheFile(path)
		for _, suffix := range []string{"", "-wal", "-shm"} {
			_ = os.Remove(path + suffix)
		}
		db, err = openCache(ctx, root)
		if err != nil {
			l.Error("recreate workspace cache failed", slog.Any("err", err))
			return nil, err
		}
	}
	l.Debug("workspace ready", slog.String("path", CachePath(root)))
	return &Workspace{Root: root, db: db}, nil
}

// Close releases the database handle.
func (w *Workspace) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func openCache(ctx context.Context, root string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Join(root, CacheDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create %s dir: %w", CacheDirName, err)
	}
	// Use a URI with a busy timeout. Convert to forward slashes for SQLite URI.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(CachePath(root)))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func healthy(ctx context.Context, db *sql.DB) bool {
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(chk), "ok") {
		return false
	}
	_, err := db.ExecContext(ctx, `SELECT 1 FROM projects LIMIT 1;`)
	return err == nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep existing schema for migrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// SchemaVersion returns the schema recorded in the version table.
func (w *Workspace) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := w.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v)
	return v, err
}

// ensureSchema creates the current tables if they do not exist.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			phase      TEXT NOT NULL,
			snapshot   BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id         INTEGER PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			ts         TEXT NOT NULL,
			phase      TEXT NOT NULL DEFAULT 'input',
			snapshot   BLOB NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
// Steps are idempotent so a fresh database at the latest schema passes through them unchanged.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// Do not downgrade
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		if err := migrate(ctx, tx, next); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", next, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	// indexes are cheap to assert on every open
	for _, q := range []string{
		`CREATE INDEX IF NOT EXISTS idx_snapshots_project_ts ON snapshots(project_id, ts);`,
		`CREATE INDEX IF NOT EXISTS idx_projects_updated ON projects(updated_at);`,
	} {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure indexes: %w", err)
		}
	}
	return nil
}

func migrate(ctx context.Context, tx *sql.Tx, step int) error {
	switch step {
	case 2:
		// v1 snapshots did not record the phase
		has, err := hasColumn(ctx, tx, "snapshots", "phase")
		if err != nil {
			return err
		}
		if !has {
			if _, err := tx.ExecContext(ctx, `ALTER TABLE snapshots ADD COLUMN phase TEXT NOT NULL DEFAULT 'input'`); err != nil {
				return fmt.Errorf("add snapshots.phase: %w", err)
			}
		}
	}
	return nil
}

func hasColumn(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s);`, table))
	if err != nil {
		return false, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// backupCacheFile copies the current database file into a timestamped backup in .bulkimage/backups.
func backupCacheFile(path string) {
	bdir := filepath.Join(filepath.Dir(path), BackupsDirName)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
	if _, err := os.Stat(path); err == nil {
		_ = copyFile(path, bak)
	}
}
