/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package story

import "strings"

// SceneCode is a parsed scene: header attributes plus body nodes (Action | Instruction).
type SceneCode struct {
	Tag      string
	Title    string
	Camera   string
	Stage    string
	Location string
	Year     string
	Date     string
	Time     string
	Outline  string
	Flags    []string
	Note     string
	Body     []Node
}

// HeaderKeys lists the attribute names accepted in "::key=value" lines.
var HeaderKeys = []string{"title", "camera", "stage", "location", "year", "date", "time", "outline", "flags", "note"}

// SetHeader assigns a header attribute and reports whether key is known.
// Flags are comma separated; empty entries are dropped.
func (c *SceneCode) SetHeader(key, value string) bool {
	switch key {
	case "title":
		c.Title = value
	case "camera":
		c.Camera = value
	case "stage":
		c.Stage = value
	case "location":
		c.Location = value
	case "year":
		c.Year = value
	case "date":
		c.Date = value
	case "time":
		c.Time = value
	case "outline":
		c.Outline = value
	case "flags":
		c.Flags = nil
		for _, f := range strings.Split(value, ",") {
			if f = strings.TrimSpace(f); f != "" {
				c.Flags = append(c.Flags, f)
			}
		}
	case "note":
		c.Note = value
	default:
		return false
	}
	return true
}

// Info builds the timeline header for this scene at the given level.
// Clock is taken from Time when it looks like a clock reading, otherwise "-".
func (c SceneCode) Info(level int) SceneInfo {
	clock := "-"
	if strings.Contains(c.Time, ":") {
		clock = c.Time
	}
	return SceneInfo{
		Level:    level,
		Tag:      c.Tag,
		Title:    c.Title,
		Camera:   c.Camera,
		Stage:    c.Stage,
		Location: c.Location,
		Year:     c.Year,
		Date:     c.Date,
		Time:     c.Time,
		Clock:    clock,
		Outline:  c.Outline,
		Flags:    cloneStrings(c.Flags),
		Note:     c.Note,
	}
}

// Calls returns the callee tags in body order.
func (c SceneCode) Calls() []string {
	var out []string
	for _, n := range c.Body {
		if in, ok := n.(Instruction); ok && in.Type == InstCall {
			out = append(out, in.Arg(0))
		}
	}
	return out
}
