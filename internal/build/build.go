/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package build runs one compile of a story project and writes the requested
// artifacts into build/.
package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"gostorybuilder/internal/config"
	"gostorybuilder/internal/counter"
	applog "gostorybuilder/internal/log"
	"gostorybuilder/internal/names"
	"gostorybuilder/internal/passes"
	"gostorybuilder/internal/render"
	"gostorybuilder/internal/script"
	"gostorybuilder/internal/storage"
	"gostorybuilder/internal/story"
	"gostorybuilder/internal/timeline"
)

// Request selects targets and compile options. An empty Targets builds all.
type Request struct {
	Targets     []render.Target
	Comment     bool
	Rubi        bool
	TagStage    passes.TagStage
	CyclePolicy timeline.CyclePolicy
	MaxDepth    int
	// SkipIndex leaves the local sqlite index untouched.
	SkipIndex bool
}

// RequestFromConfig maps the build section of the app config onto a Request.
func RequestFromConfig(bc config.BuildConfig) (Request, error) {
	ts, err := passes.ParseTagStage(bc.TagStage)
	if err != nil {
		return Request{}, err
	}
	cp, err := timeline.ParseCyclePolicy(bc.CyclePolicy)
	if err != nil {
		return Request{}, err
	}
	return Request{Comment: bc.Comment, Rubi: bc.Rubi, TagStage: ts, CyclePolicy: cp, MaxDepth: bc.MaxDepth}, nil
}

// Result describes a finished build.
type Result struct {
	BuildID  string
	Timeline story.Timeline
	// Outputs holds each rendered target without the contents prefix.
	Outputs  map[render.Target]render.Fragments
	Written  map[render.Target]string
	Warnings []string
}

// countedTargets feed the base info document.
var countedTargets = []render.Target{render.TargetOutline, render.TargetPlot, render.TargetScript, render.TargetNovel}

// Compile splits, parses, resolves and rewrites the project sources. Parse
// problems come back as warnings; a resolver error is fatal.
func Compile(p *storage.Project, req Request) (story.Timeline, *names.Tables, []string, error) {
	l := applog.WithOperation(applog.WithComponent("build"), "compile")
	raws := script.SplitAll(p.Sources)
	scenes, perrs := script.ParseAll(raws)
	warnings := make([]string, 0, len(perrs))
	for _, e := range perrs {
		warnings = append(warnings, e.String())
		applog.WithScene(l, e.Scene).Warn("parse problem", slog.Int("line", e.Line), slog.String("msg", e.Message))
	}
	tables := names.Build(p.Assets, p.Config.Mobs)
	tl, err := timeline.Resolve(p.Config.Entrypoint, scenes, timeline.Options{CyclePolicy: req.CyclePolicy, MaxDepth: req.MaxDepth})
	if err != nil {
		return nil, nil, warnings, fmt.Errorf("resolve %q: %w", p.Config.Entrypoint, err)
	}
	tl = passes.Compile(tl, passes.Options{TagStage: req.TagStage, Tables: tables})
	l.Debug("compiled", slog.Int("scenes", len(scenes)), slog.Int("nodes", len(tl)))
	return tl, tables, warnings, nil
}

// RenderTarget produces one target from a compiled timeline.
func RenderTarget(t render.Target, tl story.Timeline, tables *names.Tables, opts render.Options) (render.Fragments, error) {
	switch t {
	case render.TargetOutline:
		return render.Outline(tl, tables)
	case render.TargetPlot:
		return render.Plot(tl, tables)
	case render.TargetStruct:
		return render.Struct(tl, tables, opts)
	case render.TargetScript:
		return render.Script(tl, tables, opts)
	case render.TargetNovel:
		return render.Novel(tl, tables, opts)
	case render.TargetInfo:
		return render.Info(tl, tables)
	case render.TargetContents:
		return render.Contents(tl, tables)
	}
	return nil, fmt.Errorf("unknown target %q", t)
}

// Run compiles p once and writes every requested target. Per-target failures
// do not stop sibling targets and are returned joined alongside a populated
// Result.
func Run(ctx context.Context, p *storage.Project, req Request) (Result, error) {
	res := Result{
		BuildID: uuid.NewString(),
		Outputs: map[render.Target]render.Fragments{},
		Written: map[render.Target]string{},
	}
	ctx = applog.ContextWithBuild(ctx, res.BuildID)
	l := applog.WithOperation(applog.WithComponent("build"), "run").With(
		slog.String("root", p.Root), slog.String("build", res.BuildID),
	)
	start := time.Now()

	tl, tables, warnings, err := Compile(p, req)
	res.Warnings = warnings
	if err != nil {
		l.ErrorContext(ctx, "compile failed", slog.Any("err", err))
		return res, err
	}
	res.Timeline = tl

	contents, err := render.Contents(tl, tables)
	if err != nil {
		return res, fmt.Errorf("contents: %w", err)
	}
	targets := req.Targets
	if len(targets) == 0 {
		targets = render.Targets
	}
	opts := render.Options{Comment: req.Comment}

	var errs []error
	write := func(name render.Target, frags render.Fragments) {
		path, err := storage.WriteArtifact(p.Root, string(name), strings.Join(frags, ""))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		res.Written[name] = path
	}
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		frags, err := RenderTarget(t, tl, tables, opts)
		if err != nil {
			l.WarnContext(ctx, "target failed", slog.String("target", string(t)), slog.Any("err", err))
			errs = append(errs, fmt.Errorf("%s: %w", t, err))
			continue
		}
		res.Outputs[t] = frags
		if t == render.TargetInfo {
			write(t, frags)
			continue
		}
		write(t, withContents(contents, frags))
		if t == render.TargetNovel && req.Rubi {
			write(render.TargetNovelRubi, withContents(contents, render.ApplyRubi(frags, names.Rubis(p.Assets))))
		}
	}

	counted := map[render.Target]render.Fragments{}
	for _, t := range countedTargets {
		if frags, ok := res.Outputs[t]; ok {
			counted[t] = frags
		}
	}
	if len(counted) > 0 {
		write(render.TargetBase, counter.BaseInfo(counted, p.Config.Columns, p.Config.Rows))
	}

	if !req.SkipIndex {
		if err := storage.IndexTimeline(ctx, p.Root, res.BuildID, p.Config.Entrypoint, tl); err != nil {
			errs = append(errs, fmt.Errorf("index: %w", err))
		} else if _, err := storage.SnapshotSources(ctx, p.Root, res.BuildID, p.Sources, start); err != nil {
			errs = append(errs, fmt.Errorf("snapshot: %w", err))
		}
	}

	l.InfoContext(ctx, "build finished",
		slog.Int("written", len(res.Written)),
		slog.Int("failed", len(errs)),
		slog.Duration("took", time.Since(start)),
	)
	return res, errors.Join(errs...)
}

func withContents(contents, frags render.Fragments) render.Fragments {
	out := make(render.Fragments, 0, len(contents)+len(frags))
	out = append(out, contents...)
	return append(out, frags...)
}
