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
	"encoding/json"
	"fmt"
	"time"

	"bulkimage/internal/domain"
)

// language=SQL
// dialect=SQLite
const listSnapshotsSQL = `SELECT id, ts, phase, snapshot FROM snapshots WHERE project_id = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldSnapshotsSQL = `DELETE FROM snapshots WHERE project_id = ? AND id NOT IN (
	SELECT id FROM snapshots WHERE project_id = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

// Snapshot is one history entry of a project.
type Snapshot struct {
	ID      int64
	TS      time.Time
	Phase   domain.Phase
	Project *domain.Project
}

// ListSnapshots returns up to limit most recent snapshots for a project.
func (w *Workspace) ListSnapshots(ctx context.Context, projectID string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := w.db.QueryContext(ctx, listSnapshotsSQL, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		var tsStr, phase string
		var blob []byte
		if err := rows.Scan(&s.ID, &tsStr, &phase, &blob); err != nil {
			return nil, err
		}
		s.TS, _ = time.Parse(tsLayout, tsStr)
		if s.Phase, err = domain.ParsePhase(phase); err != nil {
			return nil, err
		}
		var p domain.Project
		if err := json.Unmarshal(blob, &p); err != nil {
			return nil, fmt.Errorf("decode snapshot %d: %w", s.ID, err)
		}
		s.Project = &p
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneSnapshots keeps at most keepLast snapshots for the project and deletes older ones.
func (w *Workspace) PruneSnapshots(ctx context.Context, projectID string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := w.db.ExecContext(ctx, pruneOldSnapshotsSQL, projectID, projectID, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
