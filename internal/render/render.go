/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render projects a compiled timeline into the text targets: outline, plot,
// struct (beat sheet), script, novel, scene info and table of contents.
//
// Every renderer runs the same three steps over its own record type: a converter that
// picks records out of the timeline, a tag converter that applies calling tables to
// subjects and text, and a formatter that emits fragments. The fragments are finally
// passed through the flat name table so any remaining "$tag" becomes a display name.
// Renderers only read the timeline and the tables.
package render

import (
	"errors"
	"strconv"
	"strings"

	"golang.org/x/text/width"

	"gostorybuilder/internal/names"
	"gostorybuilder/internal/story"
)

// ErrEmptyTarget is returned when a target has nothing to render.
var ErrEmptyTarget = errors.New("render: empty target")

// Fragments is the ordered text output of one target; concatenated it forms the
// artifact.
type Fragments []string

// Target names one build artifact.
type Target string

const (
	TargetOutline   Target = "outline"
	TargetPlot      Target = "plot"
	TargetStruct    Target = "struct"
	TargetScript    Target = "script"
	TargetNovel     Target = "novel"
	TargetInfo      Target = "info"
	TargetNovelRubi Target = "novel_rubi"
	TargetContents  Target = "contents"
	TargetBase      Target = "base"
)

// Targets is the default build selection in output order.
var Targets = []Target{TargetOutline, TargetPlot, TargetStruct, TargetScript, TargetNovel, TargetInfo}

// ParseTarget accepts a target name or its one-letter short form.
func ParseTarget(s string) (Target, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "outline", "o":
		return TargetOutline, true
	case "plot", "p":
		return TargetPlot, true
	case "struct", "t":
		return TargetStruct, true
	case "script", "s":
		return TargetScript, true
	case "novel", "n":
		return TargetNovel, true
	case "info", "i":
		return TargetInfo, true
	}
	return "", false
}

func (f Fragments) String() string { return strings.Join(f, "") }

// Options apply to the struct, script and novel targets.
type Options struct {
	// Comment makes NOTE actions visible as Markdown comments.
	Comment bool
}

const (
	fullSpace = "　"
	noValue   = "――"
)

func br(n int) string { return strings.Repeat("\n", n) }

// Breakline separates levels and sections.
func Breakline() string { return strings.Repeat("--------", 8) + "\n" }

func indent(n int) string { return strings.Repeat(fullSpace, n) }

// indentText prefixes every line of s with one full-width space.
func indentText(s string) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = fullSpace + l
	}
	return strings.Join(lines, "\n")
}

var sentenceEnds = []string{"。", "、", "」", "』", "？", "！"}

// joinDescs concatenates description lines, closing each with "。" unless it already
// ends in sentence punctuation or a closing bracket.
func joinDescs(descs []string) string {
	var b strings.Builder
	for _, d := range descs {
		b.WriteString(d)
		if !hasAnySuffix(d, sentenceEnds...) {
			b.WriteString("。")
		}
	}
	return b.String()
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, x := range suffixes {
		if strings.HasSuffix(s, x) {
			return true
		}
	}
	return false
}

func comment(text string) string { return "<!--" + text + "-->\n" }

// heading returns "## 3. title" for level 1, index 3. A negative level drops the
// marker and the index.
func heading(level, index int, title string) string {
	if level < 0 {
		return title
	}
	return strings.Repeat("#", level+1) + " " + strconv.Itoa(index) + ". " + title
}

func orNoValue(s string) string {
	if s == "" {
		return noValue
	}
	return s
}

// DisplayWidth counts East Asian wide and full-width runes as two columns.
func DisplayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

// Justify pads s with spaces to w display columns. Longer text is not cut.
func Justify(s string, w int, right bool) string {
	pad := w - DisplayWidth(s)
	if pad <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", pad) + s
	}
	return s + strings.Repeat(" ", pad)
}

// levelIndex keeps one running counter per call level.
type levelIndex []int

func (li *levelIndex) next(level int) int {
	for len(*li) <= level {
		*li = append(*li, 0)
	}
	(*li)[level]++
	return (*li)[level]
}

// subjectOf returns the display subject and the text converter for an action
// subject: persons use their calling table, everything else passes text through.
func subjectOf(tables *names.Tables, subject string) (string, func(string) string) {
	if ct, ok := tables.CallingTranslator(subject); ok {
		return tables.SubjectName(subject), ct.Translate
	}
	return tables.SubjectName(subject), func(s string) string { return s }
}

func mapStrings(in []string, fn func(string) string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = fn(s)
	}
	return out
}

func finish(tables *names.Tables, frags []string) Fragments {
	return Fragments(tables.NameTranslator().TranslateAll(frags))
}

func hasScene(tl story.Timeline) bool {
	for _, n := range tl {
		if _, ok := n.(story.SceneInfo); ok {
			return true
		}
	}
	return false
}
