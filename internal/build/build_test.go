/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gostorybuilder/internal/config"
	"gostorybuilder/internal/passes"
	"gostorybuilder/internal/render"
	"gostorybuilder/internal/storage"
	"gostorybuilder/internal/timeline"
)

func sampleProject(t *testing.T) *storage.Project {
	t.Helper()
	root := t.TempDir()
	if err := storage.Init(root); err != nil {
		t.Fatalf("Init: %v", err)
	}
	p, err := storage.Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return p
}

func readArtifact(t *testing.T, root, name string) string {
	t.Helper()
	b, err := os.ReadFile(storage.ArtifactPath(root, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(b)
}

func TestRunWritesTargetsAndReportsEmptyOnes(t *testing.T) {
	p := sampleProject(t)
	res, err := Run(context.Background(), p, Request{Rubi: true})
	// the sample story has no PLOT beats
	if !errors.Is(err, render.ErrEmptyTarget) {
		t.Fatalf("expected empty plot target error, got %v", err)
	}
	if !strings.Contains(err.Error(), "plot") {
		t.Fatalf("error should name the target: %v", err)
	}
	for _, name := range []render.Target{render.TargetOutline, render.TargetStruct, render.TargetScript, render.TargetNovel, render.TargetInfo, render.TargetNovelRubi, render.TargetBase} {
		if _, ok := res.Written[name]; !ok {
			t.Fatalf("%s not written; written=%v", name, res.Written)
		}
	}
	if _, ok := res.Written[render.TargetPlot]; ok {
		t.Fatalf("plot must not be written")
	}
	if res.BuildID == "" || len(res.Timeline) == 0 {
		t.Fatalf("result incomplete: %+v", res)
	}

	novel := readArtifact(t, p.Root, "novel")
	if !strings.HasPrefix(novel, "物語のはじまり\n===\n\n") {
		t.Fatalf("novel should start with contents, got %q", novel[:min(len(novel), 60)])
	}
	if !strings.Contains(novel, "「おはよう、太郎くん」") {
		t.Fatalf("calling not translated in novel:\n%s", novel)
	}
	rubi := readArtifact(t, p.Root, "novel_rubi")
	if strings.Count(rubi, "｜太郎《たろう》") != 1 {
		t.Fatalf("rubi should annotate the first occurrence only:\n%s", rubi)
	}
	info := readArtifact(t, p.Root, "info")
	if !strings.HasPrefix(info, "SCENE INFO DATA\n===\n\n") {
		t.Fatalf("info must not carry contents: %q", info[:min(len(info), 40)])
	}
	base := readArtifact(t, p.Root, "base")
	if !strings.HasPrefix(base, "BASE INFO\n===\n\n") {
		t.Fatalf("base info header missing: %q", base)
	}
}

func TestRunIndexesBuild(t *testing.T) {
	p := sampleProject(t)
	res, err := Run(context.Background(), p, Request{Targets: []render.Target{render.TargetNovel}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	hits, err := storage.Search(context.Background(), p.Root, storage.Query{Text: "おはよう", Act: "TALK"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 dialogue hits, got %+v", hits)
	}
	builds, err := storage.Builds(context.Background(), p.Root, 1)
	if err != nil || len(builds) != 1 || builds[0].ID != res.BuildID {
		t.Fatalf("builds=%+v err=%v", builds, err)
	}
	snaps, err := storage.Snapshots(context.Background(), p.Root, "main.md", 0)
	if err != nil || len(snaps) != 1 {
		t.Fatalf("snapshots=%+v err=%v", snaps, err)
	}
}

func TestRunOnlyRequestedTargets(t *testing.T) {
	p := sampleProject(t)
	res, err := Run(context.Background(), p, Request{Targets: []render.Target{render.TargetScript}, SkipIndex: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var got []render.Target
	for k := range res.Outputs {
		got = append(got, k)
	}
	if diff := cmp.Diff([]render.Target{render.TargetScript}, got); diff != "" {
		t.Fatalf("outputs (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(storage.IndexPath(p.Root)); !os.IsNotExist(err) {
		t.Fatalf("index should not be created with SkipIndex, stat err=%v", err)
	}
}

func TestRunMissingEntrypointIsFatal(t *testing.T) {
	p := sampleProject(t)
	p.Config.Entrypoint = "nowhere"
	res, err := Run(context.Background(), p, Request{})
	if !errors.Is(err, timeline.ErrMissingScene) {
		t.Fatalf("expected missing scene, got %v", err)
	}
	if len(res.Written) != 0 {
		t.Fatalf("nothing may be written on fatal error: %v", res.Written)
	}
	if _, err := os.Stat(filepath.Join(p.Root, "build", "novel.md")); !os.IsNotExist(err) {
		t.Fatalf("novel.md must not exist")
	}
}

func TestRequestFromConfig(t *testing.T) {
	req, err := RequestFromConfig(config.BuildConfig{Comment: true, TagStage: "compile", CyclePolicy: "depth", MaxDepth: 4})
	if err != nil {
		t.Fatalf("RequestFromConfig: %v", err)
	}
	want := Request{Comment: true, TagStage: passes.TagStageCompile, CyclePolicy: timeline.CycleDepth, MaxDepth: 4}
	if diff := cmp.Diff(want, req); diff != "" {
		t.Fatalf("request (-want +got):\n%s", diff)
	}
	if _, err := RequestFromConfig(config.BuildConfig{TagStage: "later"}); err == nil {
		t.Fatalf("expected error for unknown tag stage")
	}
}
