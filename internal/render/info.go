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

// Info renders the scene data tables: transitions, people, items and flags.
func Info(tl story.Timeline, tables *names.Tables) (Fragments, error) {
	l := applog.WithOperation(applog.WithComponent("render"), "info")
	if !hasScene(tl) {
		return nil, ErrEmptyTarget
	}
	nt := tables.NameTranslator()
	var transitions, persons, items, flags []string
	var idx levelIndex
	level, index := 0, 0

	for _, n := range tl {
		switch v := n.(type) {
		case story.SceneInfo:
			level, index = v.Level, idx.next(v.Level)
			if v.NoSpin() {
				continue
			}
			transitions = append(transitions, infoRow(
				cell(strconv.Itoa(level), 4), cell(strconv.Itoa(index), 4),
				cell(nt.Translate(v.Title), 16), cell(nt.ReplaceWhole(v.Stage), 16),
				cell(nt.ReplaceWhole(v.Time), 6), cell(v.Clock, 6),
				cell(nt.Translate(v.Date), 6), cell(nt.Translate(v.Year), 6),
				cell(nt.ReplaceWhole(v.Camera), 16),
			))
		case story.Action:
			lv, ix := cell(strconv.Itoa(level), 4), cell(strconv.Itoa(index), 4)
			_, conv := subjectOf(tables, v.Subject)
			switch v.Type {
			case story.ActBe, story.ActCome, story.ActGo, story.ActWear:
				marks := [4]string{}
				switch v.Type {
				case story.ActBe:
					marks[0] = "BE"
				case story.ActCome:
					marks[1] = "IN"
				case story.ActGo:
					marks[2] = "OUT"
				case story.ActWear:
					marks[3] = "WEAR"
				}
				persons = append(persons, infoRow(lv, ix, cell(nt.ReplaceWhole(v.Subject), 16),
					cell(marks[0], 4), cell(marks[1], 4), cell(marks[2], 4), cell(marks[3], 4),
					cell(nt.Translate(conv(v.Outline)), 16)))
			case story.ActHave:
				items = append(items, infoRow(lv, ix, cell(nt.ReplaceWhole(v.Subject), 16),
					cell(nt.Translate(conv(v.Outline)), 16)))
			case story.ActForeshadow, story.ActPayoff:
				var fs, po string
				if v.Type == story.ActForeshadow {
					fs = v.Outline
				} else {
					po = v.Outline
				}
				flags = append(flags, infoRow(lv, ix, cell(nt.Translate(tables.SubjectName(v.Subject)), 16),
					cell(nt.Translate(conv(fs)), 24), cell(nt.Translate(conv(po)), 24)))
			}
		}
	}

	out := []string{"SCENE INFO DATA\n===\n\n"}
	for _, sec := range []struct {
		title string
		rows  []string
	}{
		{"TRANSITION INFO", transitions},
		{"PERSON INFO", persons},
		{"ITEM INFO", items},
		{"FLAG INFO", flags},
	} {
		out = append(out, Breakline(), "## "+sec.title, br(2))
		for _, r := range sec.rows {
			out = append(out, r, br(1))
		}
	}
	l.Debug("rendered", slog.Int("transitions", len(transitions)), slog.Int("persons", len(persons)),
		slog.Int("items", len(items)), slog.Int("flags", len(flags)))
	return finish(tables, out), nil
}

func cell(s string, w int) string { return Justify(s, w, false) }

func infoRow(cells ...string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}
