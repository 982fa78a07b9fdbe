/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gostorybuilder/internal/script"
)

// language=SQL
// dialect=SQLite
const insertSourceSnapshotSQL = `INSERT INTO source_snapshots(build_id, name, ts, text) VALUES (?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestSourceTextSQL = `SELECT text FROM source_snapshots WHERE name = ? ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listSourceSnapshotsSQL = `SELECT build_id, name, ts, text FROM source_snapshots WHERE name = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneSourceSnapshotsSQL = `DELETE FROM source_snapshots WHERE id NOT IN (
	SELECT id FROM (
		SELECT id, ROW_NUMBER() OVER (PARTITION BY name ORDER BY ts DESC, id DESC) AS rn FROM source_snapshots
	) WHERE rn <= ?
)`

// Snapshot is the text of one source file as seen by a build.
type Snapshot struct {
	BuildID string
	Name    string
	TS      time.Time
	Text    string
}

// SnapshotSources stores the text of every source that changed since its last
// snapshot. It returns the number of snapshots written.
func SnapshotSources(ctx context.Context, projectRoot, buildID string, srcs []script.Source, ts time.Time) (int, error) {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	stamp := ts.UTC().Format(time.RFC3339Nano)
	n := 0
	for _, s := range srcs {
		var prev string
		err := tx.QueryRowContext(ctx, selectLatestSourceTextSQL, s.Name).Scan(&prev)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			_ = tx.Rollback()
			return 0, fmt.Errorf("read snapshot %s: %w", s.Name, err)
		case prev == s.Text:
			continue
		}
		if _, err := tx.ExecContext(ctx, insertSourceSnapshotSQL, buildID, s.Name, stamp, s.Text); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert snapshot %s: %w", s.Name, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// Snapshots returns up to limit most recent snapshots of one source.
func Snapshots(ctx context.Context, projectRoot, name string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, listSourceSnapshotsSQL, name, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		var tsStr string
		if err := rows.Scan(&s.BuildID, &s.Name, &tsStr, &s.Text); err != nil {
			return nil, err
		}
		s.TS, _ = time.Parse(time.RFC3339Nano, tsStr)
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneSnapshots keeps at most keepLast snapshots per source and deletes older ones.
func PruneSnapshots(ctx context.Context, projectRoot string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, pruneSourceSnapshotsSQL, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
