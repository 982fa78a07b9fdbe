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
	"strings"

	applog "gostorybuilder/internal/log"
	"gostorybuilder/internal/names"
	"gostorybuilder/internal/story"
)

// Lighting levels synthesised for scenes without an explicit LIGHT action.
const (
	InteriorLux = "500lx"
	ExteriorLux = "10000lx"
)

type structKind int

const (
	structTitle structKind = iota
	structSpin
	structAct
	structLight
	structEnd
)

type structRecord struct {
	kind    structKind
	act     story.ActType
	level   int
	index   int
	subject string
	outline string
	spin    spinInfo

	// filled on structEnd
	persons []string
	objects []string
	lux     string
}

type spinInfo struct {
	camera, stage, year, date, time, clock string
}

func spinOf(info story.SceneInfo) spinInfo {
	return spinInfo{info.Camera, info.Stage, info.Year, info.Date, info.Time, info.Clock}
}

// structScene collects per-scene state until the scene's SceneEnd.
type structScene struct {
	interior bool
	noSpin   bool
	lit      bool
	persons  orderedSet
	objects  orderedSet
}

type orderedSet struct {
	seen  map[string]bool
	items []string
}

func (s *orderedSet) add(v string) {
	if v == "" || s.seen[v] {
		return
	}
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	s.seen[v] = true
	s.items = append(s.items, v)
}

// Struct renders the beat sheet: scene headings, one spin line per scene, one line
// per beat and, at the end of each scene, a pack line of the people and objects seen
// and a lighting line when the scene set none.
func Struct(tl story.Timeline, tables *names.Tables, opts Options) (Fragments, error) {
	l := applog.WithOperation(applog.WithComponent("render"), "struct")
	recs := structRecords(tl)
	if len(recs) == 0 {
		return nil, ErrEmptyTarget
	}
	recs = structTags(recs, tables)
	frags := formatStruct(recs)
	l.Debug("rendered", slog.Int("records", len(recs)), slog.Bool("comment", opts.Comment))
	return finish(tables, frags), nil
}

func structRecords(tl story.Timeline) []structRecord {
	var out []structRecord
	var idx levelIndex
	var stack []*structScene

	for _, n := range tl {
		switch v := n.(type) {
		case story.SceneInfo:
			out = append(out, structRecord{kind: structTitle, level: v.Level, index: idx.next(v.Level), subject: v.Title})
			if !v.NoSpin() {
				out = append(out, structRecord{kind: structSpin, spin: spinOf(v)})
			}
			stack = append(stack, &structScene{interior: v.Interior(), noSpin: v.NoSpin()})
		case story.Action:
			var sc *structScene
			if len(stack) > 0 {
				sc = stack[len(stack)-1]
			}
			switch {
			case v.Type == story.ActLight:
				if sc != nil {
					sc.lit = true
				}
				out = append(out, structRecord{kind: structLight, lux: v.Outline})
			case v.Type.IsObject():
				if sc != nil {
					sc.objects.add(v.Outline)
				}
			case v.Type.IsNormal():
				if sc != nil && (v.Type == story.ActBe || v.Type == story.ActCome) {
					sc.persons.add(v.Subject)
				}
				out = append(out, structRecord{kind: structAct, act: v.Type, subject: v.Subject, outline: v.Outline})
			}
		case story.SceneEnd:
			rec := structRecord{kind: structEnd}
			if len(stack) > 0 {
				sc := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				rec.persons = sc.persons.items
				rec.objects = sc.objects.items
				if !sc.lit && !sc.noSpin {
					rec.lux = ExteriorLux
					if sc.interior {
						rec.lux = InteriorLux
					}
				}
			}
			out = append(out, rec)
		}
	}
	return out
}

func structTags(recs []structRecord, tables *names.Tables) []structRecord {
	nt := tables.NameTranslator()
	out := make([]structRecord, len(recs))
	for i, r := range recs {
		switch r.kind {
		case structSpin:
			r.spin = spinInfo{
				camera: nt.ReplaceWhole(r.spin.camera),
				stage:  nt.ReplaceWhole(r.spin.stage),
				year:   nt.ReplaceWhole(r.spin.year),
				date:   nt.ReplaceWhole(r.spin.date),
				time:   nt.ReplaceWhole(r.spin.time),
				clock:  r.spin.clock,
			}
		case structAct:
			subject, conv := subjectOf(tables, r.subject)
			r.subject, r.outline = subject, conv(r.outline)
		case structEnd:
			persons := make([]string, len(r.persons))
			for j, p := range r.persons {
				persons[j] = tables.SubjectName(p)
			}
			objects := make([]string, len(r.objects))
			for j, o := range r.objects {
				objects[j] = nt.ReplaceWhole(o)
			}
			r.persons, r.objects = persons, objects
		}
		out[i] = r
	}
	return out
}

func formatStruct(recs []structRecord) []string {
	var out []string
	for _, r := range recs {
		switch r.kind {
		case structTitle:
			out = append(out, heading(r.level, r.index, r.subject), br(2))
		case structSpin:
			s := r.spin
			out = append(out, "○"+s.stage+"（"+s.time+"/"+s.clock+"） - "+s.date+"/"+s.year+" - ["+s.camera+"]", br(1))
		case structLight:
			out = append(out, indent(2)+"（光量）"+orNoValue(r.lux), br(1))
		case structAct:
			if line := structActLine(r); line != "" {
				out = append(out, line, br(1))
			}
		case structEnd:
			if len(r.persons) > 0 || len(r.objects) > 0 {
				out = append(out, indent(2)+">> 人物："+orNoValue(strings.Join(r.persons, "/"))+" ／ 物品："+orNoValue(strings.Join(r.objects, "/")), br(1))
			}
			if r.lux != "" {
				out = append(out, indent(2)+"（光量）"+r.lux, br(1))
			}
			out = append(out, br(2))
		}
	}
	return out
}

func structActLine(r structRecord) string {
	subject, outline, ind := orNoValue(r.subject), orNoValue(r.outline), indent(2)
	switch r.act {
	case story.ActBe, story.ActCome, story.ActDo, story.ActFace, story.ActFeel, story.ActGo, story.ActWear:
		label := map[story.ActType]string{
			story.ActBe: "いる", story.ActCome: "来る", story.ActDo: "行動", story.ActFace: "表情",
			story.ActFeel: "感情", story.ActGo: "去る", story.ActWear: "服装",
		}[r.act]
		return ind + "[" + subject + "]（" + label + "）" + outline
	case story.ActDraw:
		return ind + "（描画）[" + subject + "]" + outline
	case story.ActExplain:
		return ind + "（説明）[" + subject + "]" + outline
	case story.ActTalk:
		return subject + "「" + outline + "」"
	case story.ActThink:
		return subject + "『" + outline + "』"
	case story.ActVoice:
		return subject + "（声）『" + outline + "』"
	}
	return ""
}
