/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package story holds the data model shared by the parser, the resolver, the rewrite
// passes and the renderers.
//
// A compiled story is a Timeline: a flat slice of Node values. Node is a closed set
// (SceneInfo, Action, Instruction, SceneEnd); consumers dispatch with a type switch.
// All nodes are values, and helpers that rewrite a node copy its slices so that no two
// timelines share backing storage.
package story

import "strings"

// Node is implemented only by the types in this package.
type Node interface {
	isNode()
}

// InstType enumerates non-narrative directives.
type InstType int

const (
	InstNone InstType = iota
	InstCall
	InstAlias
	InstParagraphStart
	InstParagraphEnd
)

func (t InstType) String() string {
	switch t {
	case InstCall:
		return "CALL"
	case InstAlias:
		return "ALIAS"
	case InstParagraphStart:
		return "PARAGRAPH_START"
	case InstParagraphEnd:
		return "PARAGRAPH_END"
	}
	return "NONE"
}

// Action is one story beat.
type Action struct {
	Type    ActType
	Subject string
	Outline string
	Descs   []string
	Note    string
}

// Clone returns a copy that does not share Descs with a.
func (a Action) Clone() Action {
	a.Descs = cloneStrings(a.Descs)
	return a
}

// Inherit returns a copy of a with every non-zero field of o applied on top.
// ActNone in o.Type and a nil o.Descs mean "keep".
func (a Action) Inherit(o Action) Action {
	out := a.Clone()
	if o.Type != ActNone {
		out.Type = o.Type
	}
	if o.Subject != "" {
		out.Subject = o.Subject
	}
	if o.Outline != "" {
		out.Outline = o.Outline
	}
	if o.Descs != nil {
		out.Descs = cloneStrings(o.Descs)
	}
	if o.Note != "" {
		out.Note = o.Note
	}
	return out
}

// Instruction is a control directive inside a scene body.
// CALL carries the callee tag in Args[0]; ALIAS carries name, "=", target.
type Instruction struct {
	Type InstType
	Args []string
	Note string
}

// Arg returns Args[i] or "" when out of range.
func (in Instruction) Arg(i int) string {
	if i < 0 || i >= len(in.Args) {
		return ""
	}
	return in.Args[i]
}

// SceneInfo opens a scene in a timeline. Level is the call depth, root = 0.
type SceneInfo struct {
	Level    int
	Tag      string
	Title    string
	Camera   string
	Stage    string
	Location string
	Year     string
	Date     string
	Time     string
	Clock    string
	Outline  string
	Flags    []string
	Note     string
}

// FlagNoSpin exempts a scene from transition output and from same/next caching.
const FlagNoSpin = "nospin"

func (s SceneInfo) HasFlag(f string) bool {
	for _, v := range s.Flags {
		if v == f {
			return true
		}
	}
	return false
}

func (s SceneInfo) NoSpin() bool { return s.HasFlag(FlagNoSpin) }

// Interior reports whether the scene is staged indoors. Anything that is not an
// explicit exterior marker counts as interior.
func (s SceneInfo) Interior() bool {
	switch strings.ToLower(strings.TrimSpace(s.Location)) {
	case "ext", "exterior", "out", "outside", "外", "屋外":
		return false
	}
	return true
}

func (s SceneInfo) clone() SceneInfo {
	s.Flags = cloneStrings(s.Flags)
	return s
}

// Clone returns a copy that does not share Flags with s.
func (s SceneInfo) Clone() SceneInfo { return s.clone() }

// SceneEnd closes the scene opened by the matching SceneInfo.
type SceneEnd struct {
	Tag string
}

func (SceneInfo) isNode()   {}
func (Action) isNode()      {}
func (Instruction) isNode() {}
func (SceneEnd) isNode()    {}

// Timeline is the resolved, call-inlined node sequence.
type Timeline []Node

// RawSrc is the unparsed line group of one scene.
type RawSrc struct {
	Tag   string
	Lines []string
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
