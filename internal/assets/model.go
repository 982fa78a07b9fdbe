/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package assets decodes the declarative story assets (persons, stages, items, name
// groups and pronunciation entries) kept as YAML documents under assets/.
package assets

import "strings"

// Kind is the top-level key of an asset document.
type Kind string

const (
	KindPerson Kind = "person"
	KindStage  Kind = "stage"
	KindItem   Kind = "item"
	KindMob    Kind = "mob"
	KindTime   Kind = "time"
	KindWord   Kind = "word"
	KindRubi   Kind = "rubi"
)

// Kinds lists every accepted top-level key in lookup order.
var Kinds = []Kind{KindPerson, KindStage, KindItem, KindMob, KindTime, KindWord, KindRubi}

type Person struct {
	Tag      string
	Name     string
	Fullname string // "last,first"
	Age      string
	Sex      string
	Job      string
	Belong   string
	Calling  map[string]string
	Note     string
	Face     string
	Fashion  string
	History  string
}

// FirstLast splits Fullname. Without a comma the person has no last name and the
// display name is the first name.
func (p Person) FirstLast() (first, last string) {
	if l, f, ok := strings.Cut(p.Fullname, ","); ok {
		return f, l
	}
	return p.Name, ""
}

type Stage struct {
	Tag  string
	Name string
	Note string
}

type Item struct {
	Tag  string
	Name string
	Note string
}

// NameEntry is one row of a mob, time or word group.
type NameEntry struct {
	Tag   string
	Name  string
	Type  string
	Clock string
}

// NameGroup keeps entries in document order.
type NameGroup struct {
	Kind    Kind
	Entries []NameEntry
}

// Rubi is a pronunciation override: every Tag in rendered novel text is replaced by
// Reading, once per build unless Always is set. Occurrences that sit inside one of the
// Exclusions strings are left alone.
type Rubi struct {
	Tag        string
	Reading    string
	Exclusions []string
	Always     bool
}

// Asset is one decoded document. Exactly one of the kind-specific fields is set.
type Asset struct {
	Kind   Kind
	Source string
	Person *Person
	Stage  *Stage
	Item   *Item
	Group  *NameGroup
	Rubis  []Rubi
}

// Set is the full asset collection of a project, in load order.
type Set struct {
	Persons []Person
	Stages  []Stage
	Items   []Item
	Groups  []NameGroup
	Rubis   []Rubi
}

// Add files a into the set.
func (s *Set) Add(a Asset) {
	switch a.Kind {
	case KindPerson:
		if a.Person != nil {
			s.Persons = append(s.Persons, *a.Person)
		}
	case KindStage:
		if a.Stage != nil {
			s.Stages = append(s.Stages, *a.Stage)
		}
	case KindItem:
		if a.Item != nil {
			s.Items = append(s.Items, *a.Item)
		}
	case KindMob, KindTime, KindWord:
		if a.Group != nil {
			s.Groups = append(s.Groups, *a.Group)
		}
	case KindRubi:
		s.Rubis = append(s.Rubis, a.Rubis...)
	}
}

// Len counts assets, treating each group entry and each rubi as one.
func (s Set) Len() int {
	n := len(s.Persons) + len(s.Stages) + len(s.Items) + len(s.Rubis)
	for _, g := range s.Groups {
		n += len(g.Entries)
	}
	return n
}
