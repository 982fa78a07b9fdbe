/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package names

import (
	"sort"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TagPrefix marks a tag reference inside free text.
const TagPrefix = "$"

const cacheSize = 2048

// Translator replaces "$key" references using one table. Longer keys win over their
// prefixes ("$taro2" before "$taro"). Results are memoised; a Translator is safe for
// concurrent use.
type Translator struct {
	table map[string]string
	rep   *strings.Replacer
	cache *lru.Cache[string, string]
}

// NewTranslator copies table.
func NewTranslator(table map[string]string) *Translator {
	tb := make(map[string]string, len(table))
	for k, v := range table {
		if k != "" {
			tb[k] = v
		}
	}
	keys := make([]string, 0, len(tb))
	for k := range tb {
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
		pairs = append(pairs, TagPrefix+k, tb[k])
	}
	c, _ := lru.New[string, string](cacheSize)
	return &Translator{table: tb, rep: strings.NewReplacer(pairs...), cache: c}
}

// Translate replaces every "$key" occurrence in s.
func (t *Translator) Translate(s string) string {
	if t == nil || !strings.Contains(s, TagPrefix) || len(t.table) == 0 {
		return s
	}
	if v, ok := t.cache.Get(s); ok {
		return v
	}
	out := t.rep.Replace(s)
	t.cache.Add(s, out)
	return out
}

// ReplaceWhole is used for single-value fields (stage, camera, time): a field that is
// exactly a key is replaced whole, anything else goes through Translate.
func (t *Translator) ReplaceWhole(s string) string {
	if t == nil {
		return s
	}
	if v, ok := t.table[s]; ok {
		return v
	}
	return t.Translate(s)
}

// Lookup returns the raw table value for key.
func (t *Translator) Lookup(key string) (string, bool) {
	if t == nil {
		return "", false
	}
	v, ok := t.table[key]
	return v, ok
}

// TranslateAll returns a translated copy of frags.
func (t *Translator) TranslateAll(frags []string) []string {
	out := make([]string, len(frags))
	for i, f := range frags {
		out[i] = t.Translate(f)
	}
	return out
}
