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
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	applog "gostorybuilder/internal/log"
)

// LoadDir reads every *.yml / *.yaml file below dir in lexical path order.
// Documents that fail to decode are logged and skipped; schema violations and unknown
// fields are logged as warnings. Only I/O failures are returned.
func LoadDir(dir string) (Set, error) {
	l := applog.WithOperation(applog.WithComponent("assets"), "load").With(slog.String("dir", dir))
	var set Set
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yml" && ext != ".yaml" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read asset %s: %w", path, err)
		}
		rel, _ := filepath.Rel(dir, path)
		if issues, verr := Validate(rel, data); verr != nil {
			l.Warn("schema check failed", slog.String("file", rel), slog.Any("err", verr))
		} else {
			for _, m := range issues {
				l.Warn("asset schema violation", slog.String("detail", m))
			}
		}
		a, warns, perr := Parse(rel, data)
		for _, w := range warns {
			l.Warn("asset field ignored", slog.String("detail", w))
		}
		if perr != nil {
			l.Warn("asset skipped", slog.String("file", rel), slog.Any("err", perr))
			return nil
		}
		set.Add(a)
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Set{}, fmt.Errorf("asset dir %s: %w", dir, err)
		}
		return Set{}, err
	}
	l.Debug("assets loaded", slog.Int("count", set.Len()))
	return set, nil
}
