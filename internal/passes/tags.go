/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package passes

import (
	"gostorybuilder/internal/names"
	"gostorybuilder/internal/story"
)

// ApplyTags replaces "$tag" references in action outline, descriptions and note.
// When the subject is a person, its calling table is applied first so "$M" and
// relationship keys resolve from the speaker's point of view. Subjects stay tags;
// renderers still need them to pick calling tables.
func ApplyTags(tl story.Timeline, tables *names.Tables) story.Timeline {
	nt := tables.NameTranslator()
	out := make(story.Timeline, 0, len(tl))
	for _, n := range tl {
		act, ok := n.(story.Action)
		if !ok {
			out = append(out, copyNode(n))
			continue
		}
		act = act.Clone()
		conv := nt.Translate
		if ct, ok := tables.CallingTranslator(act.Subject); ok {
			conv = func(s string) string { return nt.Translate(ct.Translate(s)) }
		}
		act.Outline = conv(act.Outline)
		act.Note = conv(act.Note)
		for i, d := range act.Descs {
			act.Descs[i] = conv(d)
		}
		out = append(out, act)
	}
	return out
}
