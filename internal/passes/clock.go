/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package passes

import (
	"strings"

	"gostorybuilder/internal/story"
)

// ApplyTimeClock gives scenes without a clock reading the clock of their time label,
// e.g. time "morning" with clocks{"morning": "7:00"}.
func ApplyTimeClock(tl story.Timeline, clocks map[string]string) story.Timeline {
	out := make(story.Timeline, 0, len(tl))
	for _, n := range tl {
		info, ok := n.(story.SceneInfo)
		if !ok {
			out = append(out, copyNode(n))
			continue
		}
		info = info.Clone()
		if !strings.Contains(info.Clock, ":") {
			if c, ok := clocks[info.Time]; ok {
				info.Clock = c
			}
		}
		out = append(out, info)
	}
	return out
}
