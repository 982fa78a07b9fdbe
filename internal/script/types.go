/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import "fmt"

// Error is a recoverable parse problem with position context. Line is 1-based within
// the scene's line group; Column is 1-based and 1 when the whole line is affected.
type Error struct {
	Scene   string
	Line    int
	Column  int
	Message string
}

func (e Error) String() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Scene, e.Line, e.Column, e.Message)
}

// Source is one named raw text, typically one file under src/.
type Source struct {
	Name string
	Text string
}
