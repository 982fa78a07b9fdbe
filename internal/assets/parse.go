/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package assets

import (
	"errors"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrUnknownKind is returned when a document has none of the known top-level keys.
var ErrUnknownKind = errors.New("assets: unknown asset kind")

// Parse decodes one YAML asset document. name identifies the document in warnings.
// Unknown fields are reported as warnings and ignored.
func Parse(name string, data []byte) (Asset, []string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Asset{}, nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return Asset{}, nil, fmt.Errorf("parse %s: top level must be a mapping: %w", name, ErrUnknownKind)
	}
	top := doc.Content[0]

	var body *yaml.Node
	var kind Kind
	for _, k := range Kinds {
		if v := lookup(top, string(k)); v != nil {
			kind, body = k, v
			break
		}
	}
	if body == nil {
		return Asset{}, nil, fmt.Errorf("parse %s: keys %v: %w", name, keysOf(top), ErrUnknownKind)
	}
	if body.Kind != yaml.MappingNode {
		return Asset{}, nil, fmt.Errorf("parse %s: %s must be a mapping", name, kind)
	}

	p := parser{name: name}
	a := Asset{Kind: kind, Source: name}
	switch kind {
	case KindPerson:
		a.Person = p.person(body)
	case KindStage:
		tag, nm, note := p.simple(body)
		a.Stage = &Stage{Tag: tag, Name: nm, Note: note}
	case KindItem:
		tag, nm, note := p.simple(body)
		a.Item = &Item{Tag: tag, Name: nm, Note: note}
	case KindMob, KindTime, KindWord:
		a.Group = p.group(kind, body)
	case KindRubi:
		a.Rubis = p.rubis(body)
	}
	if p.err != nil {
		return Asset{}, p.warns, p.err
	}
	return a, p.warns, nil
}

type parser struct {
	name  string
	warns []string
	err   error
}

func (p *parser) warnf(format string, args ...any) {
	p.warns = append(p.warns, p.name+": "+fmt.Sprintf(format, args...))
}

func (p *parser) person(m *yaml.Node) *Person {
	out := &Person{Calling: map[string]string{}}
	eachPair(m, func(key string, v *yaml.Node) {
		switch key {
		case "tag":
			out.Tag = scalar(v)
		case "name":
			out.Name = scalar(v)
		case "fullname":
			out.Fullname = scalar(v)
		case "age":
			out.Age = scalar(v)
		case "sex":
			out.Sex = scalar(v)
		case "job":
			out.Job = scalar(v)
		case "belong":
			out.Belong = scalar(v)
		case "calling":
			if v.Kind != yaml.MappingNode {
				if scalar(v) != "" {
					p.warnf("calling must be a mapping")
				}
				return
			}
			eachPair(v, func(rel string, c *yaml.Node) { out.Calling[rel] = scalar(c) })
		case "note":
			out.Note = scalar(v)
		case "face":
			out.Face = scalar(v)
		case "fashion":
			out.Fashion = scalar(v)
		case "history":
			out.History = scalar(v)
		default:
			p.warnf("unknown person field %q", key)
		}
	})
	p.requireTag(out.Tag)
	return out
}

func (p *parser) simple(m *yaml.Node) (tag, name, note string) {
	eachPair(m, func(key string, v *yaml.Node) {
		switch key {
		case "tag":
			tag = scalar(v)
		case "name":
			name = scalar(v)
		case "note":
			note = scalar(v)
		default:
			p.warnf("unknown field %q", key)
		}
	})
	p.requireTag(tag)
	return tag, name, note
}

func (p *parser) group(kind Kind, m *yaml.Node) *NameGroup {
	g := &NameGroup{Kind: kind}
	eachPair(m, func(tag string, v *yaml.Node) {
		e := NameEntry{Tag: tag}
		if v.Kind != yaml.MappingNode {
			// "tag: name" shorthand
			e.Name = scalar(v)
			g.Entries = append(g.Entries, e)
			return
		}
		eachPair(v, func(key string, f *yaml.Node) {
			switch key {
			case "name":
				e.Name = scalar(f)
			case "type":
				e.Type = scalar(f)
			case "clock":
				e.Clock = scalar(f)
			default:
				p.warnf("unknown %s field %q in %q", kind, key, tag)
			}
		})
		g.Entries = append(g.Entries, e)
	})
	return g
}

func (p *parser) rubis(m *yaml.Node) []Rubi {
	var out []Rubi
	eachPair(m, func(tag string, v *yaml.Node) {
		r := Rubi{Tag: tag}
		if v.Kind != yaml.MappingNode {
			r.Reading = scalar(v)
			out = append(out, r)
			return
		}
		eachPair(v, func(key string, f *yaml.Node) {
			switch key {
			case "name":
				r.Reading = scalar(f)
			case "exclusions":
				if f.Kind == yaml.SequenceNode {
					for _, x := range f.Content {
						if s := scalar(x); s != "" {
							r.Exclusions = append(r.Exclusions, s)
						}
					}
				} else if s := scalar(f); s != "" {
					r.Exclusions = append(r.Exclusions, s)
				}
			case "always":
				b, err := strconv.ParseBool(scalar(f))
				if err != nil && scalar(f) != "" {
					p.warnf("rubi %q: always must be a boolean", tag)
				}
				r.Always = b
			default:
				p.warnf("unknown rubi field %q in %q", key, tag)
			}
		})
		out = append(out, r)
	})
	return out
}

func (p *parser) requireTag(tag string) {
	if tag == "" && p.err == nil {
		p.err = fmt.Errorf("parse %s: missing tag", p.name)
	}
}

func lookup(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func keysOf(m *yaml.Node) []string {
	var out []string
	for i := 0; i+1 < len(m.Content); i += 2 {
		out = append(out, m.Content[i].Value)
	}
	return out
}

func eachPair(m *yaml.Node, fn func(key string, v *yaml.Node)) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		fn(m.Content[i].Value, m.Content[i+1])
	}
}

// scalar returns the text of a scalar node; null and non-scalars yield "".
func scalar(n *yaml.Node) string {
	if n == nil || n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return ""
	}
	return n.Value
}
