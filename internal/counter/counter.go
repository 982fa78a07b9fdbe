/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package counter computes character, line and page counts for rendered targets.
package counter

import (
	"errors"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	applog "gostorybuilder/internal/log"
	"gostorybuilder/internal/render"
)

// ErrNoRecords is returned when a target yields no titled sections.
var ErrNoRecords = errors.New("counter: no sections")

// Record is the count of one titled section.
type Record struct {
	Level int
	Title string
	Total int
	Space int
	Lines float64
	Pages float64
}

// Real is the number of non-space characters.
func (r Record) Real() int { return r.Total - r.Space }

var (
	reOutlineTitle = regexp.MustCompile(`^[0-9]+\. `)
	reHeading      = regexp.MustCompile(`^#+ `)
	reNumbered     = regexp.MustCompile(`^[0-9]+\.`)
)

// sections accumulates per-level titles and text. Index 0 of each level is the
// untitled prefix and is never reported.
type sections struct {
	titles [][]string
	texts  [][]string
	cur    []int
}

func newSections() *sections {
	return &sections{titles: [][]string{{""}}, texts: [][]string{{""}}, cur: []int{0}}
}

func (s *sections) grow(level int) {
	for len(s.cur) <= level {
		s.cur = append(s.cur, 0)
		s.titles = append(s.titles, []string{""})
		s.texts = append(s.texts, []string{""})
	}
}

func (s *sections) open(level int, title string) {
	s.grow(level)
	s.cur[level]++
	s.titles[level] = append(s.titles[level], title)
	s.texts[level] = append(s.texts[level], "")
}

func (s *sections) add(text string) {
	for lv := range s.cur {
		s.texts[lv][s.cur[lv]] += text
	}
}

func (s *sections) records(cols, rows int) []Record {
	var out []Record
	for lv := range s.cur {
		for i := 1; i < len(s.titles[lv]); i++ {
			out = append(out, newRecord(lv, s.titles[lv][i], s.texts[lv][i], cols, rows))
		}
	}
	return out
}

func stripNewlines(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

// Count scans the fragments of one target. Outline and plot use their numbered
// titles and level separators; the other targets use Markdown heading depth.
func Count(target render.Target, frags render.Fragments, cols, rows int) ([]Record, error) {
	l := applog.WithOperation(applog.WithComponent("counter"), "count")
	if cols <= 0 || rows <= 0 {
		return nil, errors.New("counter: columns and rows must be positive")
	}
	secs := newSections()
	switch target {
	case render.TargetOutline, render.TargetPlot:
		level := 0
		for _, f := range frags {
			switch {
			case strings.HasPrefix(f, "----"):
				level++
				secs.grow(level)
			case reOutlineTitle.MatchString(f):
				secs.open(level, stripNewlines(f))
			case strings.HasPrefix(f, "#"), strings.HasPrefix(f, "<!--"), strings.HasPrefix(f, "** "):
			default:
				secs.add(stripNewlines(f))
			}
		}
	case render.TargetScript, render.TargetNovel, render.TargetStruct:
		for _, f := range frags {
			switch {
			case strings.HasPrefix(f, "#"):
				secs.open(strings.Count(f, "#"), reHeading.ReplaceAllString(f, ""))
			case reNumbered.MatchString(f), strings.HasPrefix(f, "<!--"), strings.HasPrefix(f, "----"):
			case target == render.TargetStruct && structMeta(f):
			default:
				secs.add(stripNewlines(f))
			}
		}
	default:
		return nil, errors.New("counter: unsupported target " + string(target))
	}
	recs := secs.records(cols, rows)
	if len(recs) == 0 {
		return nil, ErrNoRecords
	}
	l.Debug("counted", slog.String("target", string(target)), slog.Int("records", len(recs)))
	return recs, nil
}

// structMeta reports pack and lighting lines of the beat sheet.
func structMeta(f string) bool {
	t := strings.TrimLeft(f, "　")
	return strings.HasPrefix(t, ">>") || strings.HasPrefix(t, "（光量）")
}

func newRecord(level int, title, text string, cols, rows int) Record {
	lines := countLines(text, cols)
	return Record{
		Level: level,
		Title: title,
		Total: utf8.RuneCountInString(text),
		Space: countSpace(text),
		Lines: lines,
		Pages: lines / float64(rows),
	}
}

// countLines counts physical lines, a line longer than cols counting as
// len/cols manuscript lines.
func countLines(text string, cols int) float64 {
	n := 0.0
	for _, line := range strings.Split(text, "\n") {
		if c := utf8.RuneCountInString(line); c > cols {
			n += float64(c) / float64(cols)
		} else {
			n++
		}
	}
	return n
}

func countSpace(text string) int {
	n := 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func formatFloat(v float64) string {
	s := strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

var headers = map[render.Target]string{
	render.TargetOutline: "## OUTLINE Char counts",
	render.TargetPlot:    "## PLOT Char counts",
	render.TargetScript:  "## SCRIPT Char counts",
	render.TargetNovel:   "## NOVEL Char Counts",
	render.TargetStruct:  "## STRUCT Char Counts",
}

// Format renders the count table of one target.
func Format(target render.Target, recs []Record) render.Fragments {
	head, ok := headers[target]
	if !ok {
		head = "## Char Counts"
	}
	out := render.Fragments{head, "\n\n"}
	current := 0
	for _, r := range recs {
		if r.Level != current {
			current = r.Level
			out = append(out, "\n", render.Breakline())
		}
		out = append(out, FormatRecord(r), "\n")
	}
	return append(out, "\n\n")
}

// FormatRecord renders one table row.
func FormatRecord(r Record) string {
	right := func(s string) string { return render.Justify(s, 8, true) }
	return "- " + render.Justify(r.Title, 20, false) + ": " +
		right(formatFloat(r.Pages)) + "p/" + right(formatFloat(r.Lines)) + "n [" +
		right(strconv.Itoa(r.Total)) + "c (" + right(strconv.Itoa(r.Real())) + "/" + right(strconv.Itoa(r.Space)) + ")c]"
}

// BaseInfo counts every given target in the order of render.Targets and joins
// the tables. Targets that cannot be counted are skipped.
func BaseInfo(outputs map[render.Target]render.Fragments, cols, rows int) render.Fragments {
	l := applog.WithOperation(applog.WithComponent("counter"), "base")
	out := render.Fragments{"BASE INFO\n===\n\n"}
	for _, t := range render.Targets {
		frags, ok := outputs[t]
		if !ok {
			continue
		}
		recs, err := Count(t, frags, cols, rows)
		if err != nil {
			l.Debug("skip target", slog.String("target", string(t)), slog.Any("err", err))
			continue
		}
		out = append(out, Format(t, recs)...)
	}
	return out
}
