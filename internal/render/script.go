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

// Script renders the screenplay form: scene headings, a stage line per scene,
// indented descriptions and speaker-prefixed dialogue.
func Script(tl story.Timeline, tables *names.Tables, opts Options) (Fragments, error) {
	l := applog.WithOperation(applog.WithComponent("render"), "script")
	if !hasScene(tl) {
		return nil, ErrEmptyTarget
	}
	nt := tables.NameTranslator()
	var out []string
	var idx levelIndex

	for _, n := range tl {
		switch v := n.(type) {
		case story.SceneInfo:
			out = append(out, heading(v.Level, idx.next(v.Level), v.Title), br(2))
			if !v.NoSpin() {
				out = append(out, br(1), "○"+nt.ReplaceWhole(v.Stage)+"（"+nt.ReplaceWhole(v.Time)+"）", br(2))
			}
		case story.SceneEnd:
			out = append(out, br(1))
		case story.Action:
			out = append(out, scriptAction(v, tables, opts)...)
		}
	}
	l.Debug("rendered", slog.Int("fragments", len(out)))
	return finish(tables, out), nil
}

func scriptAction(a story.Action, tables *names.Tables, opts Options) []string {
	switch a.Type {
	case story.ActBR, story.ActPlot, story.ActNone, story.ActSame:
		return nil
	case story.ActNote:
		if !opts.Comment {
			return nil
		}
		return []string{comment(strings.Join(a.Descs, "。")), br(1)}
	case story.ActMark:
		return []string{br(1), strings.Join(a.Descs, "\n"), br(2)}
	case story.ActTitle:
		return []string{heading(-1, 0, a.Subject), br(2)}
	}

	subject, conv := subjectOf(tables, a.Subject)
	descs := mapStrings(a.Descs, conv)
	switch a.Type {
	case story.ActTalk:
		return dialogueLine(subject, descs, "「", "」")
	case story.ActThink, story.ActExplain:
		return dialogueLine(subject+"Ｍ", descs, "『", "』")
	case story.ActVoice:
		return dialogueLine(subject, descs, "『", "』")
	}
	text := joinDescs(descs)
	if text == "" {
		return nil
	}
	return []string{indent(3), text, br(1)}
}

func dialogueLine(subject string, descs []string, open, close string) []string {
	if len(descs) == 0 {
		return nil
	}
	text := strings.TrimSuffix(joinDescs(descs), "。")
	if !strings.HasPrefix(text, open) {
		text = open + text + close
	}
	return []string{subject + text, br(1)}
}
