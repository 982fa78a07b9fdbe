/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"bufio"
	"log/slog"
	"strings"

	applog "gostorybuilder/internal/log"
	"gostorybuilder/internal/story"
)

// GlobalTag collects lines that precede the first scene header.
const GlobalTag = "global"

const metaMarker = "#!SMS"

// Split cuts one raw text into per-scene line groups.
// "## tag" starts a group; meta marker lines and blank lines are dropped; other lines
// are kept verbatim without their line ending. Groups with no lines are not emitted.
func Split(text string) []story.RawSrc {
	var out []story.RawSrc
	cur := story.RawSrc{Tag: GlobalTag}

	flush := func() {
		if len(cur.Lines) > 0 {
			out = append(out, cur)
		}
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case strings.HasPrefix(line, metaMarker):
			continue
		case strings.HasPrefix(line, "## "):
			flush()
			cur = story.RawSrc{Tag: strings.TrimSpace(line[3:])}
		case strings.TrimSpace(line) == "":
			continue
		default:
			cur.Lines = append(cur.Lines, line)
		}
	}
	flush()
	return out
}

// SplitAll splits every source in order and concatenates the groups.
func SplitAll(srcs []Source) []story.RawSrc {
	l := applog.WithComponent("script")
	var out []story.RawSrc
	for _, s := range srcs {
		groups := Split(s.Text)
		l.Debug("split source", slog.String("source", s.Name), slog.Int("scenes", len(groups)))
		out = append(out, groups...)
	}
	return out
}
