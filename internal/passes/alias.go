/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package passes

import (
	"sort"
	"strings"
	"unicode/utf8"

	"gostorybuilder/internal/names"
	"gostorybuilder/internal/story"
)

// aliasScope is one immutable level of the alias stack.
type aliasScope map[string]string

// ApplyAlias substitutes aliases defined by "! name = target" instructions.
// Each SceneInfo opens a scope and its SceneEnd closes it, so an alias is visible in
// the rest of its scene and in scenes called from there, but not after the scene
// returns. Inner scopes shadow outer ones. The subject is replaced on an exact match;
// outline, descriptions and note have "$name" replaced with "$target".
func ApplyAlias(tl story.Timeline) story.Timeline {
	out := make(story.Timeline, 0, len(tl))
	var stack []aliasScope
	var rep *aliasReplacer

	for _, n := range tl {
		switch v := n.(type) {
		case story.SceneInfo:
			stack = append(stack, aliasScope{})
			out = append(out, v.Clone())
		case story.SceneEnd:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
				rep = nil
			}
			out = append(out, v)
		case story.Instruction:
			if v.Type == story.InstAlias && len(stack) > 0 && v.Arg(0) != "" {
				top := stack[len(stack)-1]
				next := make(aliasScope, len(top)+1)
				for k, val := range top {
					next[k] = val
				}
				next[v.Arg(0)] = v.Arg(2)
				stack[len(stack)-1] = next
				rep = nil
			}
			out = append(out, copyNode(v))
		case story.Action:
			if rep == nil {
				rep = newAliasReplacer(stack)
			}
			out = append(out, rep.apply(v))
		default:
			out = append(out, n)
		}
	}
	return out
}

type aliasReplacer struct {
	active map[string]string
	text   *strings.Replacer
}

func newAliasReplacer(stack []aliasScope) *aliasReplacer {
	active := map[string]string{}
	for _, s := range stack {
		for k, v := range s {
			active[k] = v
		}
	}
	keys := make([]string, 0, len(active))
	for k := range active {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(keys[i]), utf8.RuneCountInString(keys[j])
		if li != lj {
			return li > lj
		}
		return keys[i] < keys[j]
	})
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, names.TagPrefix+k, names.TagPrefix+active[k])
	}
	return &aliasReplacer{active: active, text: strings.NewReplacer(pairs...)}
}

func (r *aliasReplacer) apply(a story.Action) story.Action {
	out := a.Clone()
	if len(r.active) == 0 {
		return out
	}
	if t, ok := r.active[out.Subject]; ok {
		out.Subject = t
	}
	out.Outline = r.text.Replace(out.Outline)
	out.Note = r.text.Replace(out.Note)
	for i, d := range out.Descs {
		out.Descs[i] = r.text.Replace(d)
	}
	return out
}
