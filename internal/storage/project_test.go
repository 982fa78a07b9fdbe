/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"gostorybuilder/internal/script"
)

func TestInitCreatesStructureAndTemplates(t *testing.T) {
	root := t.TempDir()
	if err := Init(root); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	for _, d := range []string{"assets", "assets/common", "src", "build", "temp"} {
		if fi, err := os.Stat(filepath.Join(root, d)); err != nil || !fi.IsDir() {
			t.Fatalf("expected directory %s to exist", d)
		}
	}
	for _, f := range []string{"config.yml", "book.yml", "project.yml", "src/main.md", "assets/common/mob.yml", "assets/taro.yml", "temp/scene.md"} {
		if _, err := os.Stat(filepath.Join(root, f)); err != nil {
			t.Fatalf("expected file %s: %v", f, err)
		}
	}
	b, err := os.ReadFile(filepath.Join(root, "project.yml"))
	if err != nil {
		t.Fatalf("read project.yml: %v", err)
	}
	if strings.Contains(string(b), "{VERSION}") || strings.Contains(string(b), "{APPNAME}") {
		t.Fatalf("placeholders not replaced: %s", b)
	}
}

func TestInitKeepsExistingFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	mine := "# mine\n"
	if err := os.WriteFile(filepath.Join(root, "src", "main.md"), []byte(mine), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Init(root); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	b, _ := os.ReadFile(filepath.Join(root, "src", "main.md"))
	if string(b) != mine {
		t.Fatalf("existing source overwritten: %q", b)
	}
}

func TestOpenLoadsProject(t *testing.T) {
	root := t.TempDir()
	if err := Init(root); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	p, err := Open(root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if p.Config.Entrypoint != "main" {
		t.Fatalf("entrypoint = %q", p.Config.Entrypoint)
	}
	if p.Assets.Len() == 0 {
		t.Fatalf("expected sample assets to load")
	}
	if len(p.Sources) != 1 || p.Sources[0].Name != "main.md" {
		t.Fatalf("sources = %+v", p.Sources)
	}
}

func TestLoadSourcesOrderAndFilter(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"b.md":           "b",
		"a.txt":          "a",
		"ch1/01.md":      "c",
		"notes.yml":      "skip",
		".drafts/x.md":   "hidden",
		"ch1/.hidden.md": "dot file",
	}
	for name, text := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := LoadSources(dir)
	if err != nil {
		t.Fatalf("LoadSources: %v", err)
	}
	want := []script.Source{
		{Name: "a.txt", Text: "a"},
		{Name: "b.md", Text: "b"},
		{Name: "ch1/.hidden.md", Text: "dot file"},
		{Name: "ch1/01.md", Text: "c"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("sources mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteArtifactCreatesTimestampedBackup(t *testing.T) {
	root := t.TempDir()
	if _, err := WriteArtifact(root, "novel", "first\n"); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if bs, _ := Backups(root, "novel"); len(bs) != 0 {
		t.Fatalf("no backup expected on first write, got %v", bs)
	}
	time.Sleep(5 * time.Millisecond)
	dst, err := WriteArtifact(root, "novel", "second\n")
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	b, _ := os.ReadFile(dst)
	if string(b) != "second\n" {
		t.Fatalf("artifact content = %q", b)
	}
	bs, err := Backups(root, "novel")
	if err != nil {
		t.Fatalf("Backups: %v", err)
	}
	if len(bs) != 1 {
		t.Fatalf("expected 1 backup, got %v", bs)
	}
	old, _ := os.ReadFile(bs[0])
	if string(old) != "first\n" {
		t.Fatalf("backup content = %q", old)
	}
	// no temp files left behind
	ents, _ := os.ReadDir(filepath.Join(root, BuildDirName))
	for _, e := range ents {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left: %s", e.Name())
		}
	}
}

func TestWriteArtifactRequiresName(t *testing.T) {
	if _, err := WriteArtifact(t.TempDir(), " ", "x"); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestLoadBook(t *testing.T) {
	root := t.TempDir()
	b, err := LoadBook(root)
	if err != nil || b != (Book{}) {
		t.Fatalf("missing book: %+v %v", b, err)
	}
	if err := Init(root); err != nil {
		t.Fatalf("Init: %v", err)
	}
	b, err = LoadBook(root)
	if err != nil {
		t.Fatalf("LoadBook: %v", err)
	}
	if b.Title != "作品タイトル" || b.Author != "作者名" || b.Language != "ja" {
		t.Fatalf("unexpected book: %+v", b)
	}
	if err := os.WriteFile(filepath.Join(root, BookFileName), []byte("book: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadBook(root); err == nil {
		t.Fatalf("expected parse error")
	}
}
