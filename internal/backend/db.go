/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backend publishes compiled timelines to a shared Postgres index and
// searches it with the same query model as the local sqlite index.
package backend

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	applog "gostorybuilder/internal/log"
	"gostorybuilder/internal/storage"
	"gostorybuilder/internal/story"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// WithPassword returns dsn with password set. URL-form DSNs get it in the
// userinfo; keyword/value DSNs get a password= pair. An empty password leaves
// dsn unchanged.
func WithPassword(dsn, password string) (string, error) {
	if password == "" {
		return dsn, nil
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse dsn: %w", err)
		}
		user := ""
		if u.User != nil {
			user = u.User.Username()
		}
		u.User = url.UserPassword(user, password)
		return u.String(), nil
	}
	q := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(password)
	return strings.TrimSpace(dsn) + " password='" + q + "'", nil
}

// Open connects through the pgx stdlib driver and applies pending migrations.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// applyMigrations applies embedded SQL migrations in filename order.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	l := applog.WithOperation(applog.WithComponent("backend"), "migrate")
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	// dialect=PostgreSQL
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s: %w", fname, err)
		}
		if strings.TrimSpace(string(b)) != "" {
			if _, err := tx.ExecContext(ctx, string(b)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("apply %s: %w", fname, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES($1, $2)`, version, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
		l.Info("migration applied", slog.String("file", fname))
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	prefix, _, ok := strings.Cut(base, "_")
	if !ok {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}

// Publish stores tl as the current build of project, replacing the beats of
// any earlier build. It returns the number of beats written.
func Publish(ctx context.Context, db *sql.DB, project, buildID string, tl story.Timeline) (int, error) {
	l := applog.WithOperation(applog.WithComponent("backend"), "publish").With(
		slog.String("project", project), slog.String("build", buildID),
	)
	if strings.TrimSpace(project) == "" || strings.TrimSpace(buildID) == "" {
		return 0, errors.New("project and build id are required")
	}
	_, beats := storage.Flatten(tl)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	var pid int64
	err = tx.QueryRowContext(ctx, `INSERT INTO projects(name) VALUES($1)
		ON CONFLICT (name) DO UPDATE SET updated_at = now()
		RETURNING id`, project).Scan(&pid)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("upsert project: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO builds(id, project_id) VALUES($1, $2)`, buildID, pid); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("insert build: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM beats WHERE project_id = $1`, pid); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("clear beats: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, `INSERT INTO beats(project_id, build_id, seq, scene, level, act, subject, text) VALUES($1,$2,$3,$4,$5,$6,$7,$8)`)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prepare beat insert: %w", err)
	}
	defer func() { _ = ins.Close() }()
	for _, b := range beats {
		if _, err := ins.ExecContext(ctx, pid, buildID, b.Seq, b.Scene, b.Level, b.Act, b.Subject, b.Text); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert beat: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	l.Info("published", slog.Int("beats", len(beats)))
	return len(beats), nil
}
