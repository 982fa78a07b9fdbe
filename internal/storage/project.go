/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gostorybuilder/internal/assets"
	"gostorybuilder/internal/config"
	applog "gostorybuilder/internal/log"
	"gostorybuilder/internal/script"
	"gostorybuilder/internal/version"
)

const (
	AssetsDirName  = "assets"
	CommonDirName  = "common"
	SourceDirName  = "src"
	BuildDirName   = "build"
	TempDirName    = "temp"
	BackupsDirName = ".backups"

	BookFileName    = "book.yml"
	ProjectFileName = "project.yml"
)

// Standard subfolders of a story project.
var standardSubDirs = []string{
	AssetsDirName,
	SourceDirName,
	BuildDirName,
	TempDirName,
	filepath.Join(AssetsDirName, CommonDirName),
}

//go:embed templates
var templates embed.FS

// Project is an opened story project: its config, assets and ordered sources.
type Project struct {
	Root    string
	Config  config.ProjectConfig
	Assets  assets.Set
	Sources []script.Source
}

// Init scaffolds a project at root. Existing files are kept; only the files in
// temp/ are refreshed.
func Init(root string) error {
	l := applog.WithOperation(applog.WithComponent("storage"), "init").With(slog.String("root", root))
	if strings.TrimSpace(root) == "" {
		return errors.New("root path is required")
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	type placement struct {
		tmpl, dst string
		always    bool
	}
	var files []placement
	for _, f := range []string{BookFileName, config.ProjectFile, ProjectFileName} {
		files = append(files, placement{tmpl: "templates/" + f, dst: f})
	}
	add := func(dir, dst string, always bool) error {
		ents, err := templates.ReadDir("templates/" + dir)
		if err != nil {
			return err
		}
		for _, e := range ents {
			files = append(files, placement{tmpl: path.Join("templates", dir, e.Name()), dst: filepath.Join(dst, e.Name()), always: always})
		}
		return nil
	}
	if err := add("common", filepath.Join(AssetsDirName, CommonDirName), false); err != nil {
		return err
	}
	if err := add("example", AssetsDirName, false); err != nil {
		return err
	}
	if err := add("temp", TempDirName, true); err != nil {
		return err
	}

	created := 0
	for _, f := range files {
		dst := f.dst
		if filepath.Ext(dst) == ".md" && !f.always {
			dst = filepath.Join(SourceDirName, filepath.Base(dst))
		}
		full := filepath.Join(root, dst)
		if _, err := os.Stat(full); err == nil && !f.always {
			continue
		}
		data, err := templates.ReadFile(f.tmpl)
		if err != nil {
			return fmt.Errorf("read template %s: %w", f.tmpl, err)
		}
		if f.dst == ProjectFileName {
			data = []byte(strings.NewReplacer("{APPNAME}", "gostorybuilder", "{VERSION}", version.String()).Replace(string(data)))
		}
		if err := atomicWrite(full, data); err != nil {
			return fmt.Errorf("write %s: %w", dst, err)
		}
		created++
	}
	l.Info("project initialised", slog.Int("files", created))
	return nil
}

// Open loads config, assets and sources of the project at root.
func Open(root string) (*Project, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(slog.String("root", root))
	pc, err := config.LoadProject(root)
	if err != nil {
		return nil, err
	}
	set, err := assets.LoadDir(filepath.Join(root, AssetsDirName))
	if err != nil {
		return nil, fmt.Errorf("load assets: %w", err)
	}
	srcs, err := LoadSources(filepath.Join(root, SourceDirName))
	if err != nil {
		return nil, err
	}
	l.Debug("project opened", slog.Int("assets", set.Len()), slog.Int("sources", len(srcs)))
	return &Project{Root: root, Config: pc, Assets: set, Sources: srcs}, nil
}

// LoadSources reads every .md and .txt file under dir in lexical path order.
// Source names are slash-separated paths relative to dir.
func LoadSources(dir string) ([]script.Source, error) {
	var names []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".md", ".txt":
			names = append(names, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan sources: %w", err)
	}
	sort.Strings(names)
	out := make([]script.Source, 0, len(names))
	for _, p := range names {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		rel, _ := filepath.Rel(dir, p)
		out = append(out, script.Source{Name: filepath.ToSlash(rel), Text: string(b)})
	}
	return out, nil
}

// ArtifactPath returns build/<name>.md under root.
func ArtifactPath(root, name string) string {
	return filepath.Join(root, BuildDirName, name+".md")
}

// WriteArtifact replaces build/<name>.md transactionally. A previous version is
// copied to build/.backups/<name>.md.<stamp>.bak first.
func WriteArtifact(root, name, content string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("artifact name is required")
	}
	dst := ArtifactPath(root, name)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("ensure build dir: %w", err)
	}
	if _, statErr := os.Stat(dst); statErr == nil {
		stamp := time.Now().Format("20060102-150405.000")
		bpath := filepath.Join(root, BuildDirName, BackupsDirName, fmt.Sprintf("%s.md.%s.bak", name, stamp))
		if cerr := copyFile(dst, bpath); cerr != nil {
			return "", fmt.Errorf("backup %s: %w", name, cerr)
		}
	}
	if err := atomicWrite(dst, []byte(content)); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return dst, nil
}

// Backups lists the backup files of one artifact, oldest first.
func Backups(root, name string) ([]string, error) {
	bdir := filepath.Join(root, BuildDirName, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var out []string
	for _, e := range ents {
		n := e.Name()
		if strings.HasPrefix(n, name+".md.") && strings.HasSuffix(n, ".bak") {
			out = append(out, filepath.Join(bdir, n))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out, nil
}

// atomicWrite writes to a temp file in the same directory, then renames it over path.
func atomicWrite(p string, data []byte) error {
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(p), os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, data); err != nil {
		return err
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(p); err == nil {
		_ = os.Remove(p)
	}
	if err := os.Rename(temp, p); err != nil {
		_ = os.Remove(temp)
		return err
	}
	return nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
