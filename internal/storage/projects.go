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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bulkimage/internal/domain"
)

// ErrNotFound is returned when the cache has no matching project.
var ErrNotFound = errors.New("project not in workspace")

const metaCurrentProject = "current_project"

// tsLayout is fixed width so timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// language=SQL
// dialect=SQLite
const upsertProjectSQL = `INSERT INTO projects(id, name, phase, snapshot, updated_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, phase=excluded.phase, snapshot=excluded.snapshot, updated_at=excluded.updated_at`

// language=SQL
// dialect=SQLite
const insertSnapshotSQL = `INSERT INTO snapshots(project_id, ts, phase, snapshot) VALUES (?, ?, ?, ?)`

// Entry is one cached project row.
type Entry struct {
	Project   *domain.Project
	Phase     domain.Phase
	UpdatedAt time.Time
}

// SaveProject stores the snapshot and phase, records a history entry and marks
// the project as current. It runs in a single transaction.
func (w *Workspace) SaveProject(ctx context.Context, p *domain.Project, phase domain.Phase) error {
	if p == nil || p.ID == "" {
		return errors.New("project with id is required")
	}
	blob, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal project: %w", err)
	}
	now := time.Now().UTC().Format(tsLayout)
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, upsertProjectSQL, p.ID, p.Name, phase.String(), blob, now); err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insertSnapshotSQL, p.ID, now, phase.String(), blob); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	if err := setMeta(ctx, tx, metaCurrentProject, p.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// LoadProject returns the cached snapshot of the given project.
func (w *Workspace) LoadProject(ctx context.Context, id string) (Entry, error) {
	var phase, updated string
	var blob []byte
	err := w.db.QueryRowContext(ctx, `SELECT phase, snapshot, updated_at FROM projects WHERE id = ?`, id).Scan(&phase, &blob, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("query project: %w", err)
	}
	return decodeEntry(phase, blob, updated)
}

// CurrentProject returns the project most recently saved or selected with SetCurrent.
func (w *Workspace) CurrentProject(ctx context.Context) (Entry, error) {
	id, err := w.meta(ctx, metaCurrentProject)
	if err != nil {
		return Entry{}, err
	}
	if id == "" {
		return Entry{}, ErrNotFound
	}
	return w.LoadProject(ctx, id)
}

// Latest returns the current project, falling back to the newest crash backup
// under the workspace root when the cache has none.
func (w *Workspace) Latest(ctx context.Context) (Entry, error) {
	e, err := w.CurrentProject(ctx)
	if !errors.Is(err, ErrNotFound) {
		return e, err
	}
	p, phase, berr := LatestCrashSnapshot(w.Root)
	if berr != nil {
		return Entry{}, ErrNotFound
	}
	return Entry{Project: p, Phase: phase}, nil
}

// SetCurrent marks a cached project as current.
func (w *Workspace) SetCurrent(ctx context.Context, id string) error {
	if _, err := w.LoadProject(ctx, id); err != nil {
		return err
	}
	return setMeta(ctx, w.db, metaCurrentProject, id)
}

// ClearCurrent forgets the current project; cached rows are kept.
func (w *Workspace) ClearCurrent(ctx context.Context) error {
	_, err := w.db.ExecContext(ctx, `DELETE FROM meta WHERE key = ?`, metaCurrentProject)
	return err
}

// ListProjects returns every cached project, most recently updated first.
func (w *Workspace) ListProjects(ctx context.Context) ([]Entry, error) {
	rows, err := w.db.QueryContext(ctx, `SELECT phase, snapshot, updated_at FROM projects ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Entry
	for rows.Next() {
		var phase, updated string
		var blob []byte
		if err := rows.Scan(&phase, &blob, &updated); err != nil {
			return nil, err
		}
		e, err := decodeEntry(phase, blob, updated)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func decodeEntry(phase string, blob []byte, updated string) (Entry, error) {
	var p domain.Project
	if err := json.Unmarshal(blob, &p); err != nil {
		return Entry{}, fmt.Errorf("decode cached project: %w", err)
	}
	ph, err := domain.ParsePhase(phase)
	if err != nil {
		return Entry{}, err
	}
	ts, _ := time.Parse(tsLayout, updated)
	return Entry{Project: &p, Phase: ph, UpdatedAt: ts}, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setMeta(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

func (w *Workspace) meta(ctx context.Context, key string) (string, error) {
	var v string
	err := w.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read meta %s: %w", key, err)
	}
	return v, nil
}
