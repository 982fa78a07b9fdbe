/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package names builds the tag lookup tables used to turn "$tag" references into
// display text, and the per-character calling tables.
package names

import (
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/text/width"

	"gostorybuilder/internal/assets"
	applog "gostorybuilder/internal/log"
)

// Calling keys filled in for every person.
const (
	CallingSelf = "S" // the person's own display name
	CallingMe   = "M" // how the person refers to themself
	callingMeIn = "me"
	defaultMe   = "私"
)

// Tables is read only after Build.
type Tables struct {
	Names    map[string]string
	Callings map[string]map[string]string
	Clocks   map[string]string

	names    *Translator
	callings map[string]*Translator
}

// RubiEntry is a pronunciation override as used by the rubi pass.
type RubiEntry struct {
	Tag        string
	Reading    string
	Exclusions []string
	Always     bool
}

// Build derives the tables from a set. mobs is the number of numbered variants
// generated for each entry of type "mob".
func Build(set assets.Set, mobs int) *Tables {
	l := applog.WithOperation(applog.WithComponent("names"), "build")
	t := &Tables{
		Names:    map[string]string{},
		Callings: map[string]map[string]string{},
		Clocks:   map[string]string{},
	}
	for _, p := range set.Persons {
		first, last := p.FirstLast()
		t.Names[p.Tag] = p.Name
		t.Names[prefixed("n", p.Tag)] = p.Name
		t.Names[prefixed("fn", p.Tag)] = first
		t.Names[prefixed("ln", p.Tag)] = last
		t.Names[prefixed("full", p.Tag)] = last + first
		t.Names[prefixed("efull", p.Tag)] = first + "・" + last

		c := make(map[string]string, len(p.Calling)+2)
		for k, v := range p.Calling {
			c[k] = v
		}
		c[CallingSelf] = p.Name
		if me, ok := p.Calling[callingMeIn]; ok {
			c[CallingMe] = me
		} else {
			c[CallingMe] = defaultMe
		}
		t.Callings[p.Tag] = c
	}
	for _, s := range set.Stages {
		t.Names[s.Tag] = s.Name
		t.Names[prefixed("t", s.Tag)] = s.Name
	}
	for _, it := range set.Items {
		t.Names[it.Tag] = it.Name
		t.Names[prefixed("i", it.Tag)] = it.Name
	}
	for _, g := range set.Groups {
		for _, e := range g.Entries {
			t.Names[e.Tag] = e.Name
			switch g.Kind {
			case assets.KindMob:
				if e.Type == "mob" {
					for i := 0; i < mobs; i++ {
						t.Names[e.Tag+strconv.Itoa(i)] = e.Name + Zenkaku(strconv.Itoa(i))
					}
				}
			case assets.KindTime:
				if e.Clock != "" {
					t.Clocks[e.Tag] = e.Clock
				}
			}
		}
	}

	t.names = NewTranslator(t.Names)
	t.callings = make(map[string]*Translator, len(t.Callings))
	for tag, c := range t.Callings {
		t.callings[tag] = NewTranslator(c)
	}
	l.Debug("tables built", slog.Int("names", len(t.Names)), slog.Int("callings", len(t.Callings)), slog.Int("clocks", len(t.Clocks)))
	return t
}

// Rubis returns the pronunciation entries of a set in load order.
func Rubis(set assets.Set) []RubiEntry {
	out := make([]RubiEntry, 0, len(set.Rubis))
	for _, r := range set.Rubis {
		out = append(out, RubiEntry{
			Tag:        r.Tag,
			Reading:    r.Reading,
			Exclusions: append([]string(nil), r.Exclusions...),
			Always:     r.Always,
		})
	}
	return out
}

// NameTranslator translates "$tag" references with the flat name table.
func (t *Tables) NameTranslator() *Translator {
	if t == nil || t.names == nil {
		return NewTranslator(nil)
	}
	return t.names
}

// CallingTranslator returns the calling table of subject, if subject is a person.
func (t *Tables) CallingTranslator(subject string) (*Translator, bool) {
	if t == nil {
		return nil, false
	}
	tr, ok := t.callings[subject]
	return tr, ok
}

// SubjectName is the display name of an action subject: the person's own calling
// name, else the flat table entry, else the subject unchanged.
func (t *Tables) SubjectName(subject string) string {
	if t == nil {
		return subject
	}
	if c, ok := t.Callings[subject]; ok {
		return c[CallingSelf]
	}
	if n, ok := t.Names[subject]; ok {
		return n
	}
	return subject
}

// Zenkaku widens ASCII digits and letters to their full-width forms.
func Zenkaku(s string) string { return width.Widen.String(s) }

func prefixed(prefix, tag string) string { return fmt.Sprintf("%s_%s", prefix, tag) }
