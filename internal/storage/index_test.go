/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"gostorybuilder/internal/script"
	"gostorybuilder/internal/story"

	_ "modernc.org/sqlite"
)

func sampleTimeline() story.Timeline {
	return story.Timeline{
		story.SceneInfo{Level: 0, Tag: "main", Title: "本編"},
		story.SceneInfo{Level: 1, Tag: "opening", Title: "始まり", Stage: "Classroom", Time: "morning"},
		story.Action{Type: story.ActBe, Subject: "taro", Outline: "教室にいる"},
		story.Action{Type: story.ActTalk, Subject: "taro", Descs: []string{"おはよう。"}},
		story.Action{Type: story.ActBR},
		story.Action{Type: story.ActTalk, Subject: "hana", Descs: []string{"おはよう、太郎くん。"}},
		story.SceneEnd{Tag: "opening"},
		story.Action{Type: story.ActDo, Subject: "hana", Descs: []string{"窓を開ける"}},
		story.SceneEnd{Tag: "main"},
	}
}

func TestFlattenAttributesBeatsToInnermostScene(t *testing.T) {
	scenes, beats := Flatten(sampleTimeline())
	if len(scenes) != 2 || scenes[1].Tag != "opening" || scenes[1].Level != 1 {
		t.Fatalf("scenes = %+v", scenes)
	}
	want := []Beat{
		{Seq: 0, Scene: "opening", Level: 1, Act: "BE", Subject: "taro", Text: "教室にいる"},
		{Seq: 1, Scene: "opening", Level: 1, Act: "TALK", Subject: "taro", Text: "おはよう。"},
		{Seq: 2, Scene: "opening", Level: 1, Act: "TALK", Subject: "hana", Text: "おはよう、太郎くん。"},
		{Seq: 3, Scene: "main", Level: 0, Act: "DO", Subject: "hana", Text: "窓を開ける"},
	}
	if diff := cmp.Diff(want, beats); diff != "" {
		t.Fatalf("beats mismatch (-want +got):\n%s", diff)
	}
}

func TestIndexInitCreatesWALAndSchema(t *testing.T) {
	root := t.TempDir()
	db, err := InitOrOpenIndex(root)
	if err != nil {
		t.Fatalf("InitOrOpenIndex: %v", err)
	}
	_ = db.Close()

	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(2000)", filepath.ToSlash(IndexPath(root)))
	raw, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer raw.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var mode string
	if err := raw.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&mode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Fatalf("expected WAL mode, got %s", mode)
	}
	var cnt int
	if err := raw.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('meta','version','builds','scenes','beats','fts_beats','source_snapshots')").Scan(&cnt); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if cnt != 7 {
		t.Fatalf("expected 7 tables, got %d", cnt)
	}
	var schema int
	if err := raw.QueryRowContext(ctx, "SELECT schema FROM version WHERE id=1").Scan(&schema); err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if schema != schemaVersion {
		t.Fatalf("schema = %d, want %d", schema, schemaVersion)
	}
}

func TestIndexTimelineReplacesBeatsKeepsBuilds(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	if err := IndexTimeline(ctx, root, "b1", "main", sampleTimeline()); err != nil {
		t.Fatalf("IndexTimeline b1: %v", err)
	}
	if err := IndexTimeline(ctx, root, "b2", "main", sampleTimeline()); err != nil {
		t.Fatalf("IndexTimeline b2: %v", err)
	}
	res, err := Search(ctx, root, Query{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 4 {
		t.Fatalf("expected 4 beats from latest build, got %d", len(res))
	}
	builds, err := Builds(ctx, root, 0)
	if err != nil {
		t.Fatalf("Builds: %v", err)
	}
	if len(builds) != 2 || builds[0].ID != "b2" {
		t.Fatalf("builds = %+v", builds)
	}
	if err := IndexTimeline(ctx, root, "", "main", sampleTimeline()); err == nil {
		t.Fatalf("expected error for empty build id")
	}
}

func TestSearchFTSAndFilters(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	if err := IndexTimeline(ctx, root, "b1", "main", sampleTimeline()); err != nil {
		t.Fatalf("IndexTimeline: %v", err)
	}

	res, err := Search(ctx, root, Query{Text: "おはよう"})
	if err != nil {
		t.Fatalf("fts search: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 hits, got %+v", res)
	}
	if !strings.Contains(res[0].Snippet, "[") {
		t.Fatalf("expected highlighted snippet, got %q", res[0].Snippet)
	}

	res, err = Search(ctx, root, Query{Text: "おはよう", Subject: "hana"})
	if err != nil {
		t.Fatalf("subject search: %v", err)
	}
	if len(res) != 1 || res[0].Subject != "hana" {
		t.Fatalf("subject filter = %+v", res)
	}

	// shorter than a trigram: LIKE scan
	res, err = Search(ctx, root, Query{Text: "窓"})
	if err != nil {
		t.Fatalf("short search: %v", err)
	}
	if len(res) != 1 || res[0].Scene != "main" || res[0].Snippet != "窓を開ける" {
		t.Fatalf("short search = %+v", res)
	}

	res, err = Search(ctx, root, Query{Act: "talk", Scene: "opening"})
	if err != nil {
		t.Fatalf("filter search: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("act/scene filter = %+v", res)
	}

	res, err = Search(ctx, root, Query{Text: `"quoted"`})
	if err != nil {
		t.Fatalf("quoted text must not break FTS syntax: %v", err)
	}
	if len(res) != 0 {
		t.Fatalf("unexpected hits %+v", res)
	}

	res, err = Search(ctx, root, Query{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("paged search: %v", err)
	}
	if len(res) != 1 || res[0].Seq != 1 {
		t.Fatalf("paging = %+v", res)
	}
}

func TestDetectAndRebuildIndexRecreatesCorruptFile(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, IndexDirName), 0o755); err != nil {
		t.Fatal(err)
	}
	junk := []byte(strings.Repeat("not a database ", 300))
	if err := os.WriteFile(IndexPath(root), junk, 0o644); err != nil {
		t.Fatal(err)
	}
	rebuilt, err := DetectAndRebuildIndex(context.Background(), root)
	if err != nil {
		t.Fatalf("DetectAndRebuildIndex: %v", err)
	}
	if !rebuilt {
		t.Fatalf("expected rebuild")
	}
	ents, _ := os.ReadDir(filepath.Join(root, IndexDirName, "backups"))
	if len(ents) != 1 {
		t.Fatalf("expected one backup, got %d", len(ents))
	}
	rebuilt, err = DetectAndRebuildIndex(context.Background(), root)
	if err != nil || rebuilt {
		t.Fatalf("healthy index rebuilt=%v err=%v", rebuilt, err)
	}
}

func TestSnapshotSourcesOnlyOnChange(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	srcs := []script.Source{{Name: "main.md", Text: "v1"}, {Name: "side.md", Text: "s"}}
	n, err := SnapshotSources(ctx, root, "b1", srcs, time.Now())
	if err != nil || n != 2 {
		t.Fatalf("first snapshot n=%d err=%v", n, err)
	}
	srcs[0].Text = "v2"
	n, err = SnapshotSources(ctx, root, "b2", srcs, time.Now().Add(time.Second))
	if err != nil || n != 1 {
		t.Fatalf("second snapshot n=%d err=%v", n, err)
	}
	snaps, err := Snapshots(ctx, root, "main.md", 0)
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(snaps) != 2 || snaps[0].Text != "v2" || snaps[0].BuildID != "b2" {
		t.Fatalf("snapshots = %+v", snaps)
	}
	removed, err := PruneSnapshots(ctx, root, 1)
	if err != nil || removed != 1 {
		t.Fatalf("prune removed=%d err=%v", removed, err)
	}
}
