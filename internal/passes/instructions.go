/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package passes

import (
	"log/slog"

	applog "gostorybuilder/internal/log"
	"gostorybuilder/internal/story"
)

// ApplyInstructions is the hook for instructions that act on the timeline itself.
// None do yet: calls are inlined by the resolver, aliases are consumed by ApplyAlias
// and paragraph markers are read by the novel renderer, so the timeline is copied
// through unchanged.
func ApplyInstructions(tl story.Timeline) story.Timeline {
	out := make(story.Timeline, 0, len(tl))
	var n int
	for _, node := range tl {
		if _, ok := node.(story.Instruction); ok {
			n++
		}
		out = append(out, copyNode(node))
	}
	applog.WithComponent("passes").Debug("instructions passed through", slog.Int("instructions", n))
	return out
}
