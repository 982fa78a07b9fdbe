/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"strings"

	"gostorybuilder/internal/names"
)

// ApplyRubi replaces pronunciation tags with their readings. Without Always an
// entry is applied to its first eligible occurrence only, counted over all
// fragments of this call. An occurrence inside one of the entry's exclusion
// strings is left untouched.
func ApplyRubi(frags Fragments, entries []names.RubiEntry) Fragments {
	applied := make([]bool, len(entries))
	out := make(Fragments, len(frags))
	for i, f := range frags {
		for j, e := range entries {
			if e.Tag == "" || (applied[j] && !e.Always) {
				continue
			}
			var hit bool
			f, hit = replaceRubi(f, e)
			applied[j] = applied[j] || hit
		}
		out[i] = f
	}
	return out
}

func replaceRubi(s string, e names.RubiEntry) (string, bool) {
	var b strings.Builder
	hit := false
	pos := 0
	for {
		k := strings.Index(s[pos:], e.Tag)
		if k < 0 {
			break
		}
		at := pos + k
		if excluded(s, at, e) {
			b.WriteString(s[pos : at+len(e.Tag)])
			pos = at + len(e.Tag)
			continue
		}
		b.WriteString(s[pos:at])
		b.WriteString(e.Reading)
		pos = at + len(e.Tag)
		hit = true
		if !e.Always {
			break
		}
	}
	if !hit {
		return s, false
	}
	b.WriteString(s[pos:])
	return b.String(), true
}

// excluded reports whether the tag found at at sits inside an exclusion string.
func excluded(s string, at int, e names.RubiEntry) bool {
	for _, ex := range e.Exclusions {
		off := 0
		for {
			k := strings.Index(ex[off:], e.Tag)
			if k < 0 {
				break
			}
			start := at - (off + k)
			if start >= 0 && strings.HasPrefix(s[start:], ex) {
				return true
			}
			off += k + 1
		}
	}
	return false
}
