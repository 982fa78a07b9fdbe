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
	"regexp"
	"strings"

	applog "gostorybuilder/internal/log"
	"gostorybuilder/internal/names"
	"gostorybuilder/internal/story"
)

var reSpeakerPrefix = regexp.MustCompile(`^[a-zA-Z0-9]*:`)

// novelState tracks an open !P paragraph: descriptions and dialogue are joined
// on one line and only the first gets an indent.
type novelState struct {
	nobr     bool
	indented bool
}

// Novel renders prose. Actions without descriptions are dropped except BR and MARK.
func Novel(tl story.Timeline, tables *names.Tables, opts Options) (Fragments, error) {
	l := applog.WithOperation(applog.WithComponent("render"), "novel")
	if !hasScene(tl) {
		return nil, ErrEmptyTarget
	}
	var out []string
	var idx levelIndex
	var st novelState

	for _, n := range tl {
		switch v := n.(type) {
		case story.SceneInfo:
			out = append(out, heading(v.Level, idx.next(v.Level), v.Title), br(2))
		case story.SceneEnd:
			out = append(out, br(1))
		case story.Instruction:
			switch v.Type {
			case story.InstParagraphStart:
				st = novelState{nobr: true}
			case story.InstParagraphEnd:
				st.nobr = false
				out = append(out, br(1))
			}
		case story.Action:
			out = append(out, st.action(v, tables, opts)...)
		}
	}
	l.Debug("rendered", slog.Int("fragments", len(out)))
	return finish(tables, out), nil
}

func (st *novelState) action(a story.Action, tables *names.Tables, opts Options) []string {
	switch a.Type {
	case story.ActBR:
		return []string{br(1)}
	case story.ActMark:
		return []string{br(1), a.Outline, br(2)}
	}
	if len(a.Descs) == 0 {
		return nil
	}
	switch a.Type {
	case story.ActNote:
		if !opts.Comment {
			return nil
		}
		return []string{comment(strings.Join(a.Descs, "。")), br(1)}
	case story.ActPlot, story.ActNone, story.ActSame:
		return nil
	case story.ActTitle:
		return []string{a.Subject, br(2)}
	}

	_, conv := subjectOf(tables, a.Subject)
	descs := mapStrings(a.Descs, conv)
	switch a.Type {
	case story.ActTalk:
		return st.dialogue(novelDialogue(descs, "「", "」"))
	case story.ActVoice:
		return st.dialogue(novelDialogue(descs, "『", "』"))
	}
	text := joinDescs(quoteMarked(descs))
	if text == "" {
		return nil
	}
	if st.nobr {
		if st.indented {
			return []string{text}
		}
		st.indented = true
		return []string{indent(1), text}
	}
	return []string{indent(1), text, br(1)}
}

func (st *novelState) dialogue(text string) []string {
	if st.nobr {
		st.indented = true
		return []string{text}
	}
	return []string{text, br(1)}
}

// quoteMarked turns ":line" into a quoted line.
func quoteMarked(descs []string) []string {
	out := make([]string, len(descs))
	for i, d := range descs {
		if rest, ok := strings.CutPrefix(d, ":"); ok {
			d = "「" + rest + "」"
		}
		out[i] = d
	}
	return out
}

func novelDialogue(descs []string, open, close string) string {
	lines := make([]string, len(descs))
	for i, d := range descs {
		switch {
		case strings.HasPrefix(d, ":"):
			d = "「" + d[1:] + "」"
		case reSpeakerPrefix.MatchString(d):
			d = "「" + d[len(reSpeakerPrefix.FindString(d)):] + "」"
		}
		lines[i] = d
	}
	text := strings.TrimRight(joinDescs(lines), "。")
	switch {
	case strings.HasPrefix(text, open) && !strings.HasSuffix(text, close):
		if hasAnySuffix(text, "、", "。", "！", "？", "!", "?") {
			return text
		}
		return text + "。"
	case !strings.HasPrefix(text, open):
		return open + text + close
	}
	return text
}
