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
	"strings"
	"unicode/utf8"
)

// minFTSRunes is the shortest text the trigram tokenizer can match.
const minFTSRunes = 3

// Query describes a beat search. Text is matched as a literal phrase; an empty
// Text lists beats by filter only. Act is an act name (TALK, DO, ...), Subject
// the subject tag and Scene the scene tag; all filters are exact and optional.
// Limit defaults to 100.
type Query struct {
	Text    string
	Act     string
	Subject string
	Scene   string
	Limit   int
	Offset  int
}

// Result is one matching beat. Snippet marks hits with [ ] when the FTS index
// served the query and is the plain text otherwise.
type Result struct {
	BeatID  int64
	Seq     int
	Scene   string
	Level   int
	Act     string
	Subject string
	Text    string
	Snippet string
}

// Search runs q against the latest indexed build of the project.
func Search(ctx context.Context, projectRoot string, q Query) ([]Result, error) {
	if strings.TrimSpace(projectRoot) == "" {
		return nil, errors.New("project root is required")
	}
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return searchDB(ctx, db, q)
}

func searchDB(ctx context.Context, db *sql.DB, q Query) ([]Result, error) {
	var args []any
	var sb strings.Builder
	text := strings.TrimSpace(q.Text)
	switch {
	case utf8.RuneCountInString(text) >= minFTSRunes:
		sb.WriteString("SELECT b.id, b.seq, b.scene, b.level, b.act, COALESCE(b.subject,''), b.text, snippet(fts_beats, 0, '[', ']', '…', 16)\n")
		sb.WriteString("FROM fts_beats JOIN beats b ON fts_beats.rowid = b.id\n")
		sb.WriteString("WHERE fts_beats MATCH ?\n")
		args = append(args, ftsPhrase(text))
	case text != "":
		// too short for trigrams
		sb.WriteString("SELECT b.id, b.seq, b.scene, b.level, b.act, COALESCE(b.subject,''), b.text, b.text\n")
		sb.WriteString("FROM beats b\nWHERE b.text LIKE ? ESCAPE '\\'\n")
		args = append(args, likeContains(escapeLike(text)))
	default:
		sb.WriteString("SELECT b.id, b.seq, b.scene, b.level, b.act, COALESCE(b.subject,''), b.text, b.text\n")
		sb.WriteString("FROM beats b\nWHERE 1=1\n")
	}
	if s := strings.TrimSpace(q.Act); s != "" {
		sb.WriteString(" AND b.act = ?\n")
		args = append(args, strings.ToUpper(s))
	}
	if s := strings.TrimSpace(q.Subject); s != "" {
		sb.WriteString(" AND b.subject = ?\n")
		args = append(args, s)
	}
	if s := strings.TrimSpace(q.Scene); s != "" {
		sb.WriteString(" AND b.scene = ?\n")
		args = append(args, s)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString("ORDER BY b.seq\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []Result
	for rows.Next() {
		var r Result
		var sn sql.NullString
		if err := rows.Scan(&r.BeatID, &r.Seq, &r.Scene, &r.Level, &r.Act, &r.Subject, &r.Text, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Snippet = sn.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// ftsPhrase quotes s as a single FTS5 phrase.
func ftsPhrase(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func likeContains(s string) string { return "%" + s + "%" }
