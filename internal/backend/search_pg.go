/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gostorybuilder/internal/storage"
)

// SearchPG runs q over the beats published for project. Text matches as a
// case-insensitive substring, the same hits the sqlite trigram index yields,
// and the snippet brackets the first hit.
func SearchPG(ctx context.Context, db *sql.DB, project string, q storage.Query) ([]storage.Result, error) {
	var (
		args []any
		b    strings.Builder
	)
	// Helper to add parameter and return placeholder like $n
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	text := strings.TrimSpace(q.Text)
	b.WriteString("SELECT b.id, b.seq, b.scene, b.level, b.act, COALESCE(b.subject,''), b.text, ")
	if text != "" {
		p := place(text)
		b.WriteString("CASE WHEN strpos(lower(b.text), lower(" + p + ")) > 0 THEN ")
		b.WriteString("substr(b.text, 1, strpos(lower(b.text), lower(" + p + ")) - 1) || '[' || ")
		b.WriteString("substr(b.text, strpos(lower(b.text), lower(" + p + ")), char_length(" + p + ")) || ']' || ")
		b.WriteString("substr(b.text, strpos(lower(b.text), lower(" + p + ")) + char_length(" + p + ")) ")
		b.WriteString("ELSE b.text END ")
	} else {
		b.WriteString("b.text ")
	}
	b.WriteString("FROM beats b JOIN projects p ON p.id = b.project_id WHERE p.name = " + place(project) + " ")
	if text != "" {
		b.WriteString(" AND strpos(lower(b.text), lower($1)) > 0 ")
	}
	if s := strings.TrimSpace(q.Act); s != "" {
		b.WriteString(" AND b.act = " + place(strings.ToUpper(s)) + " ")
	}
	if s := strings.TrimSpace(q.Subject); s != "" {
		b.WriteString(" AND b.subject = " + place(s) + " ")
	}
	if s := strings.TrimSpace(q.Scene); s != "" {
		b.WriteString(" AND b.scene = " + place(s) + " ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	b.WriteString(" ORDER BY b.seq ")
	b.WriteString(" LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.Result
	for rows.Next() {
		var r storage.Result
		if err := rows.Scan(&r.BeatID, &r.Seq, &r.Scene, &r.Level, &r.Act, &r.Subject, &r.Text, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
