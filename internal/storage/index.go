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
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "gostorybuilder/internal/log"
	"gostorybuilder/internal/story"
	"gostorybuilder/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName stores all per-project derived data under the project root.
	IndexDirName  = ".gsb"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema for the embedded index.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// IndexPath returns the full path to the project's embedded index database file.
func IndexPath(projectRoot string) string {
	return filepath.Join(projectRoot, IndexDirName, IndexFileName)
}

// InitOrOpenIndex ensures that the per-project SQLite index exists at .gsb/index.sqlite,
// opens the database, enables WAL mode, and ensures the schema is current.
// Callers close the returned *sql.DB.
func InitOrOpenIndex(projectRoot string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("index"), "index_init").With(
		slog.String("root", projectRoot),
	)
	if strings.TrimSpace(projectRoot) == "" {
		return nil, errors.New("project root is required")
	}
	if err := os.MkdirAll(filepath.Join(projectRoot, IndexDirName), 0o755); err != nil {
		l.Error("create .gsb dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create .gsb dir: %w", err)
	}

	path := IndexPath(projectRoot)
	// SQLite URIs want forward slashes.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready", slog.String("path", path))
	return db, nil
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
		// keep the stored schema for runMigrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
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
		switch next {
		case 2:
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin migration %d: %w", next, err)
			}
			stmts := []string{
				`CREATE INDEX IF NOT EXISTS idx_beats_act ON beats(act);`,
				`CREATE INDEX IF NOT EXISTS idx_beats_subject ON beats(subject);`,
			}
			for _, q := range stmts {
				if _, err := tx.ExecContext(ctx, q); err != nil {
					_ = tx.Rollback()
					return fmt.Errorf("migration %d stmt failed: %w", next, err)
				}
			}
			if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d update version: %w", next, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("migration %d commit: %w", next, err)
			}
		}
		cur = next
	}
	// best effort
	_, _ = db.ExecContext(ctx, `INSERT INTO fts_beats(fts_beats) VALUES('optimize')`)
	return nil
}

// ensureIndexSchema creates core index tables and FTS structures if they do not exist.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS builds (
			id         TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			entry      TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scenes (
			id       INTEGER PRIMARY KEY,
			build_id TEXT    NOT NULL,
			seq      INTEGER NOT NULL,
			tag      TEXT    NOT NULL,
			level    INTEGER NOT NULL,
			title    TEXT,
			stage    TEXT,
			time     TEXT,
			FOREIGN KEY(build_id) REFERENCES builds(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scenes_tag ON scenes(tag);`,
		`CREATE TABLE IF NOT EXISTS beats (
			id       INTEGER PRIMARY KEY,
			build_id TEXT    NOT NULL,
			seq      INTEGER NOT NULL,
			scene    TEXT    NOT NULL,
			level    INTEGER NOT NULL,
			act      TEXT    NOT NULL,
			subject  TEXT,
			text     TEXT,
			FOREIGN KEY(build_id) REFERENCES builds(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_beats_scene ON beats(scene);`,
		`CREATE INDEX IF NOT EXISTS idx_beats_act ON beats(act);`,
		`CREATE INDEX IF NOT EXISTS idx_beats_subject ON beats(subject);`,

		// External-content FTS5 over beats.text. Trigram tokenizing handles
		// text without word separators.
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_beats USING fts5(
			text,
			content='beats',
			content_rowid='id',
			tokenize = 'trigram'
		);`,

		`CREATE TABLE IF NOT EXISTS source_snapshots (
			id       INTEGER PRIMARY KEY,
			build_id TEXT NOT NULL,
			name     TEXT NOT NULL,
			ts       TEXT NOT NULL,
			text     TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_source_snapshots_name_ts ON source_snapshots(name, ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS beats_ai AFTER INSERT ON beats BEGIN
			INSERT INTO fts_beats(rowid, text) VALUES (new.id, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS beats_ad AFTER DELETE ON beats BEGIN
			INSERT INTO fts_beats(fts_beats, rowid, text) VALUES ('delete', old.id, old.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS beats_au AFTER UPDATE OF text ON beats BEGIN
			INSERT INTO fts_beats(fts_beats, rowid, text) VALUES ('delete', old.id, old.text);
			INSERT INTO fts_beats(rowid, text) VALUES (new.id, new.text);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// SceneRow is one indexed scene occurrence of a timeline.
type SceneRow struct {
	Seq   int
	Tag   string
	Level int
	Title string
	Stage string
	Time  string
}

// Beat is one indexed action. Text is the joined descriptions, or the outline
// when the action has none.
type Beat struct {
	Seq     int
	Scene   string
	Level   int
	Act     string
	Subject string
	Text    string
}

// Flatten turns a compiled timeline into index rows. Beats are attributed to
// the innermost open scene.
func Flatten(tl story.Timeline) ([]SceneRow, []Beat) {
	var (
		scenes []SceneRow
		beats  []Beat
		open   []story.SceneInfo
	)
	for _, n := range tl {
		switch v := n.(type) {
		case story.SceneInfo:
			open = append(open, v)
			scenes = append(scenes, SceneRow{Seq: len(scenes), Tag: v.Tag, Level: v.Level, Title: v.Title, Stage: v.Stage, Time: v.Time})
		case story.SceneEnd:
			if len(open) > 0 {
				open = open[:len(open)-1]
			}
		case story.Action:
			switch v.Type {
			case story.ActNone, story.ActSame, story.ActBR:
				continue
			}
			b := Beat{Seq: len(beats), Act: v.Type.String(), Subject: v.Subject}
			if len(open) > 0 {
				cur := open[len(open)-1]
				b.Scene, b.Level = cur.Tag, cur.Level
			}
			b.Text = strings.TrimSpace(strings.Join(v.Descs, "\n"))
			if b.Text == "" {
				b.Text = strings.TrimSpace(v.Outline)
			}
			if b.Text == "" {
				continue
			}
			beats = append(beats, b)
		}
	}
	return scenes, beats
}

// IndexTimeline records a build and replaces the indexed scenes and beats with
// those of tl. Earlier build rows are kept as history.
func IndexTimeline(ctx context.Context, projectRoot, buildID, entry string, tl story.Timeline) error {
	l := applog.WithOperation(applog.WithComponent("index"), "index_timeline").With(
		slog.String("root", projectRoot), slog.String("build", buildID),
	)
	if strings.TrimSpace(buildID) == "" {
		return errors.New("build id is required")
	}
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return err
	}
	defer db.Close()

	scenes, beats := Flatten(tl)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, `INSERT INTO builds(id, created_at, entry) VALUES(?,?,?)`, buildID, now, entry); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert build: %w", err)
	}
	for _, q := range []string{"DELETE FROM beats;", "DELETE FROM scenes;"} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("clear previous build: %w", err)
		}
	}
	insScene, err := tx.PrepareContext(ctx, `INSERT INTO scenes(build_id, seq, tag, level, title, stage, time) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare scene insert: %w", err)
	}
	defer insScene.Close()
	for _, s := range scenes {
		if _, err := insScene.ExecContext(ctx, buildID, s.Seq, s.Tag, s.Level, s.Title, s.Stage, s.Time); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert scene: %w", err)
		}
	}
	insBeat, err := tx.PrepareContext(ctx, `INSERT INTO beats(build_id, seq, scene, level, act, subject, text) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare beat insert: %w", err)
	}
	defer insBeat.Close()
	for _, b := range beats {
		if _, err := insBeat.ExecContext(ctx, buildID, b.Seq, b.Scene, b.Level, b.Act, b.Subject, b.Text); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert beat: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	l.Info("timeline indexed", slog.Int("scenes", len(scenes)), slog.Int("beats", len(beats)))
	return nil
}

// BuildInfo is one row of the build history.
type BuildInfo struct {
	ID        string
	CreatedAt time.Time
	Entry     string
}

// Builds lists recorded builds, newest first.
func Builds(ctx context.Context, projectRoot string, limit int) ([]BuildInfo, error) {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `SELECT id, created_at, entry FROM builds ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	defer rows.Close()
	var out []BuildInfo
	for rows.Next() {
		var b BuildInfo
		var ts string
		if err := rows.Scan(&b.ID, &ts, &b.Entry); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		b.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, b)
	}
	return out, rows.Err()
}

// DetectAndRebuildIndex checks for corruption or a missing schema. A broken
// index is backed up to .gsb/backups and recreated empty; the next build
// repopulates it. It returns true when the index was recreated.
func DetectAndRebuildIndex(ctx context.Context, projectRoot string) (bool, error) {
	path := IndexPath(projectRoot)
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return recreateIndex(path, projectRoot, err)
	}
	needs := false
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	if !needs {
		if _, err := db.ExecContext(ctx, `SELECT 1 FROM beats LIMIT 1;`); err != nil {
			needs = true
		}
	}
	_ = db.Close()
	if !needs {
		return false, nil
	}
	return recreateIndex(path, projectRoot, nil)
}

func recreateIndex(path, projectRoot string, cause error) (bool, error) {
	applog.WithComponent("index").Warn("rebuilding index", slog.String("path", path), slog.Any("cause", cause))
	backupIndexFile(path)
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		if cause != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", err, cause)
		}
		return false, err
	}
	_ = db.Close()
	return true, nil
}

// backupIndexFile copies the current index file into a timestamped backup in .gsb/backups.
func backupIndexFile(indexPath string) {
	if _, err := os.Stat(indexPath); err != nil {
		return
	}
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	_ = copyFile(indexPath, bak)
}
