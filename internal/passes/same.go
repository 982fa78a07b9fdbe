/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package passes

import "gostorybuilder/internal/story"

// SameMarker is the resolved form of an elided year or date; ApplyNext replaces it
// with the previous scene's value.
const SameMarker = "same"

func isElided(s string) bool { return s == "" || s == "-" }

// ApplyInfoSame fills elided scene fields from the previous spinning scene.
// Camera, stage and time (with its clock) are copied; year and date become
// SameMarker. Nospin scenes pass through and leave the cache alone.
func ApplyInfoSame(tl story.Timeline) story.Timeline {
	out := make(story.Timeline, 0, len(tl))
	var cache *story.SceneInfo

	for _, n := range tl {
		info, ok := n.(story.SceneInfo)
		if !ok {
			out = append(out, copyNode(n))
			continue
		}
		info = info.Clone()
		if info.NoSpin() || cache == nil {
			if !info.NoSpin() {
				c := info
				cache = &c
			}
			out = append(out, info)
			continue
		}
		if isElided(info.Camera) {
			info.Camera = cache.Camera
		}
		if isElided(info.Stage) {
			info.Stage = cache.Stage
		}
		if isElided(info.Year) {
			info.Year = SameMarker
		}
		if isElided(info.Date) {
			info.Date = SameMarker
		}
		if isElided(info.Time) {
			info.Time = cache.Time
			info.Clock = cache.Clock
		}
		c := info
		cache = &c
		out = append(out, info)
	}
	return out
}

// ApplyActionSame resolves SAME act types and elided subjects ("-" or empty) from the
// previous action.
func ApplyActionSame(tl story.Timeline) story.Timeline {
	out := make(story.Timeline, 0, len(tl))
	var cache *story.Action

	for _, n := range tl {
		act, ok := n.(story.Action)
		if !ok {
			out = append(out, copyNode(n))
			continue
		}
		act = act.Clone()
		if cache != nil {
			if act.Type == story.ActSame {
				act.Type = cache.Type
			}
			if isElided(act.Subject) {
				act.Subject = cache.Subject
			}
		}
		c := act
		cache = &c
		out = append(out, act)
	}
	return out
}
