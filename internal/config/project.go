/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProjectFile is the project config document at the project root.
const ProjectFile = "config.yml"

// Project defaults for missing numeric values.
const (
	DefaultColumns = 20
	DefaultRows    = 20
	DefaultMobs    = 5
)

// ErrNoEntrypoint is returned when the project config names no entry scene.
var ErrNoEntrypoint = errors.New("config: project has no entrypoint")

// ProjectConfig is read once before compiling.
type ProjectConfig struct {
	Entrypoint string `yaml:"entrypoint"`
	Columns    int    `yaml:"columns"`
	Rows       int    `yaml:"rows"`
	Mobs       int    `yaml:"mobs"`
}

type projectDoc struct {
	Config ProjectConfig `yaml:"config"`
}

// LoadProject reads <root>/config.yml.
func LoadProject(root string) (ProjectConfig, error) {
	data, err := os.ReadFile(filepath.Join(root, ProjectFile))
	if err != nil {
		return ProjectConfig{}, fmt.Errorf("read project config: %w", err)
	}
	return ParseProject(data)
}

// ParseProject decodes a project config document and fills defaults.
func ParseProject(data []byte) (ProjectConfig, error) {
	var doc projectDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ProjectConfig{}, fmt.Errorf("parse project config: %w", err)
	}
	pc := doc.Config
	pc.Entrypoint = strings.TrimSpace(pc.Entrypoint)
	if pc.Entrypoint == "" {
		return pc, ErrNoEntrypoint
	}
	if pc.Columns <= 0 {
		pc.Columns = DefaultColumns
	}
	if pc.Rows <= 0 {
		pc.Rows = DefaultRows
	}
	if pc.Mobs <= 0 {
		pc.Mobs = DefaultMobs
	}
	return pc, nil
}

// MarshalProject renders a project config document.
func MarshalProject(pc ProjectConfig) ([]byte, error) {
	return yaml.Marshal(projectDoc{Config: pc})
}
