/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"log/slog"
	"strconv"
	"strings"

	applog "gostorybuilder/internal/log"
	"gostorybuilder/internal/names"
	"gostorybuilder/internal/story"
)

type outlineRecord struct {
	level    int
	index    int
	title    string
	subtitle string
	text     string
}

// Outline lists every scene's outline grouped by call level: all level-0 scenes
// first, then level 1 and so on, numbered per level in story order.
func Outline(tl story.Timeline, tables *names.Tables) (Fragments, error) {
	l := applog.WithOperation(applog.WithComponent("render"), "outline")
	var recs []outlineRecord
	for _, n := range tl {
		if info, ok := n.(story.SceneInfo); ok {
			recs = append(recs, outlineRecord{level: info.Level, title: info.Title, text: info.Outline})
		}
	}
	if len(recs) == 0 {
		return nil, ErrEmptyTarget
	}
	frags := formatOutline(reorderByLevel(recs))
	l.Debug("rendered", slog.Int("records", len(recs)))
	return finish(tables, frags), nil
}

// Plot lists PLOT actions under the title of the scene they occur in, grouped and
// numbered like Outline.
func Plot(tl story.Timeline, tables *names.Tables) (Fragments, error) {
	l := applog.WithOperation(applog.WithComponent("render"), "plot")
	var recs []outlineRecord
	level, title := 0, ""
	for _, n := range tl {
		switch v := n.(type) {
		case story.SceneInfo:
			level, title = v.Level, v.Title
		case story.Action:
			if v.Type == story.ActPlot {
				recs = append(recs, outlineRecord{level: level, title: title, subtitle: v.Outline, text: strings.Join(v.Descs, "\n")})
			}
		}
	}
	if len(recs) == 0 {
		return nil, ErrEmptyTarget
	}
	frags := formatOutline(reorderByLevel(recs))
	l.Debug("rendered", slog.Int("records", len(recs)))
	return finish(tables, frags), nil
}

// reorderByLevel is a stable grouping by level with per-level numbering.
func reorderByLevel(recs []outlineRecord) []outlineRecord {
	deepest := 0
	for _, r := range recs {
		if r.level > deepest {
			deepest = r.level
		}
	}
	out := make([]outlineRecord, 0, len(recs))
	for lv := 0; lv <= deepest; lv++ {
		idx := 1
		for _, r := range recs {
			if r.level == lv {
				r.index = idx
				out = append(out, r)
				idx++
			}
		}
	}
	return out
}

func formatOutline(recs []outlineRecord) []string {
	var out []string
	current := 0
	for _, r := range recs {
		if r.level != current {
			out = append(out, Breakline())
			current = r.level
		}
		out = append(out, strconv.Itoa(r.index)+". "+r.title+"\n")
		if r.subtitle != "" {
			out = append(out, "** "+r.subtitle+" **\n")
		}
		out = append(out, indentText(r.text), br(2))
	}
	return out
}

// Contents is the table of contents placed in front of the other targets.
// Level-0 scenes become the document title; deeper scenes are numbered per level
// and indented four spaces per level below 1.
func Contents(tl story.Timeline, tables *names.Tables) (Fragments, error) {
	var out []string
	var idx levelIndex
	for _, n := range tl {
		info, ok := n.(story.SceneInfo)
		if !ok {
			continue
		}
		if info.Level == 0 {
			out = append(out, info.Title+"\n===\n\n", br(1))
			continue
		}
		i := idx.next(info.Level)
		out = append(out, strings.Repeat("    ", info.Level-1)+strconv.Itoa(i)+". "+info.Title, br(1))
	}
	if len(out) == 0 {
		return nil, ErrEmptyTarget
	}
	out = append(out, Breakline())
	return finish(tables, out), nil
}
