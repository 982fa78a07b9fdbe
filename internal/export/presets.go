/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	applog "gostorybuilder/internal/log"
	"gostorybuilder/internal/render"
	"gostorybuilder/internal/storage"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetPrint PresetName = "print"
	PresetEbook PresetName = "ebook"
)

// ExportsDirName is the project subfolder receiving exported files.
const ExportsDirName = "exports"

// BatchOptions controls Artifacts.
//
// Path semantics:
//   - If OutDir is empty or relative, it is created under <project>/exports/<preset>/.
//   - Each artifact becomes <OutDir>/<format>/<name>.<format>.
type BatchOptions struct {
	Preset      PresetName
	OutDir      string
	Title       string
	Author      string
	Language    string
	Publisher   string
	Description string
	Columns     int
	Rows        int
	FontFile    string
	Vertical    bool
}

// Artifacts exports the built artifacts build/<name>.md of the project at root
// in every format (pdf, epub). Empty formats take the preset defaults. It
// returns the written paths.
func Artifacts(root string, names, formats []string, opt BatchOptions) ([]string, error) {
	l := applog.WithOperation(applog.WithComponent("export"), "artifacts").With(slog.String("root", root))
	if len(names) == 0 {
		return nil, fmt.Errorf("no artifacts named")
	}
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	baseOut := opt.OutDir
	if baseOut == "" {
		baseOut = string(opt.Preset)
		if baseOut == "" {
			baseOut = string(PresetPrint)
		}
	}
	if !filepath.IsAbs(baseOut) {
		baseOut = filepath.Join(root, ExportsDirName, baseOut)
	}

	var written []string
	for _, name := range names {
		b, err := os.ReadFile(storage.ArtifactPath(root, name))
		if err != nil {
			return written, fmt.Errorf("read artifact %s: %w", name, err)
		}
		frags := render.Fragments{string(b)}
		title := opt.Title
		if title == "" {
			title = name
		}
		for _, f := range formats {
			f = strings.ToLower(strings.TrimSpace(f))
			out := filepath.Join(baseOut, f, name+"."+f)
			switch f {
			case "pdf":
				err = PDF(frags, out, PDFOptions{Title: title, Author: opt.Author, Columns: opt.Columns, Rows: opt.Rows, FontFile: opt.FontFile})
			case "epub":
				err = EPUB(frags, out, EPUBOptions{
					Title: title, Author: opt.Author, Language: opt.Language,
					Publisher: opt.Publisher, Description: opt.Description, Vertical: opt.Vertical,
				})
			default:
				return written, fmt.Errorf("unknown format: %s", f)
			}
			if err != nil {
				return written, fmt.Errorf("%s %s: %w", f, name, err)
			}
			written = append(written, out)
			l.Info("exported", slog.String("artifact", name), slog.String("format", f), slog.String("path", out))
		}
	}
	return written, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetEbook:
		return []string{"epub"}
	case PresetPrint:
		return []string{"pdf"}
	default:
		return []string{"pdf", "epub"}
	}
}
