/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package passes holds the ordered rewrite passes run over a resolved timeline.
// Every pass is a single left-to-right scan that returns a new timeline; the input is
// never modified.
package passes

import (
	"fmt"
	"log/slog"

	applog "gostorybuilder/internal/log"
	"gostorybuilder/internal/names"
	"gostorybuilder/internal/story"
)

// TagStage decides when "$tag" references in action text are replaced by names.
type TagStage int

const (
	// TagStageRender leaves references in the timeline; each renderer translates them.
	TagStageRender TagStage = iota
	// TagStageCompile translates action text once, at the end of Compile.
	TagStageCompile
)

func ParseTagStage(s string) (TagStage, error) {
	switch s {
	case "", "render":
		return TagStageRender, nil
	case "compile":
		return TagStageCompile, nil
	}
	return TagStageRender, fmt.Errorf("unknown tag stage %q", s)
}

func (s TagStage) String() string {
	if s == TagStageCompile {
		return "compile"
	}
	return "render"
}

type Options struct {
	TagStage TagStage
	// Tables supplies time clocks and, for TagStageCompile, the name tables.
	Tables *names.Tables
}

// Compile runs alias, info-same, action-same, next, time-clock and instruction passes
// in that order, followed by tag conversion when opts.TagStage is TagStageCompile.
func Compile(tl story.Timeline, opts Options) story.Timeline {
	l := applog.WithOperation(applog.WithComponent("passes"), "compile")
	steps := []struct {
		name string
		fn   func(story.Timeline) story.Timeline
	}{
		{"alias", ApplyAlias},
		{"info_same", ApplyInfoSame},
		{"action_same", ApplyActionSame},
		{"next", ApplyNext},
		{"time_clock", func(t story.Timeline) story.Timeline {
			var clocks map[string]string
			if opts.Tables != nil {
				clocks = opts.Tables.Clocks
			}
			return ApplyTimeClock(t, clocks)
		}},
		{"instructions", ApplyInstructions},
	}
	if opts.TagStage == TagStageCompile {
		steps = append(steps, struct {
			name string
			fn   func(story.Timeline) story.Timeline
		}{"tags", func(t story.Timeline) story.Timeline { return ApplyTags(t, opts.Tables) }})
	}
	out := tl
	for _, s := range steps {
		out = s.fn(out)
		l.Debug("pass done", slog.String("pass", s.name), slog.Int("nodes", len(out)))
	}
	return out
}

// copyNode returns n with its slices detached from the input timeline.
func copyNode(n story.Node) story.Node {
	switch v := n.(type) {
	case story.SceneInfo:
		return v.Clone()
	case story.Action:
		return v.Clone()
	case story.Instruction:
		v.Args = append([]string(nil), v.Args...)
		return v
	case story.SceneEnd:
		return v
	}
	return n
}
