/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gostorybuilder/internal/backend"
	"gostorybuilder/internal/build"
	"gostorybuilder/internal/config"
	"gostorybuilder/internal/crash"
	"gostorybuilder/internal/export"
	applog "gostorybuilder/internal/log"
	"gostorybuilder/internal/render"
	"gostorybuilder/internal/storage"
	"gostorybuilder/internal/telemetry"
)

type cliEnv struct {
	cfg      config.AppConfig
	password string
	stdout   io.Writer
	stderr   io.Writer
}

func (e cliEnv) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func (e cliEnv) fail(l *slog.Logger, msg string, err error) int {
	l.Error(msg, slog.Any("err", err))
	_, _ = fmt.Fprintln(e.stderr, "Error:", err)
	return 1
}

// projectDir resolves the optional leading directory argument.
func projectDir(args []string) string {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	return abs
}

func (e cliEnv) cmdBuild(args []string) int {
	fs := e.flagSet("build")
	var outline, plot, structure, script, novel, info, rubi, comment, debug bool
	boolFlag := func(p *bool, short, long, help string) {
		fs.BoolVar(p, short, false, help)
		fs.BoolVar(p, long, false, help)
	}
	boolFlag(&outline, "o", "outline", "outline output")
	boolFlag(&plot, "p", "plot", "plot output")
	boolFlag(&structure, "t", "struct", "struct output")
	boolFlag(&script, "s", "script", "script output")
	boolFlag(&novel, "n", "novel", "novel output")
	boolFlag(&info, "i", "info", "scene info output")
	boolFlag(&rubi, "r", "rubi", "also write the novel with rubi")
	fs.BoolVar(&comment, "comment", false, "keep comments in the output")
	fs.BoolVar(&debug, "debug", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if debug {
		applog.Init(applog.Options{Level: "debug", Format: e.cfg.Logging.Format, File: e.cfg.Logging.File, Writer: e.stderr})
	}
	root := projectDir(fs.Args())
	defer crash.Recover(root)

	req, err := build.RequestFromConfig(e.cfg.Build)
	if err != nil {
		return e.fail(applog.WithComponent("cli"), "bad build config", err)
	}
	req.Comment = req.Comment || comment
	req.Rubi = req.Rubi || rubi
	selected := []struct {
		on bool
		t  render.Target
	}{
		{outline, render.TargetOutline}, {plot, render.TargetPlot}, {structure, render.TargetStruct},
		{script, render.TargetScript}, {novel, render.TargetNovel}, {info, render.TargetInfo},
	}
	for _, s := range selected {
		if s.on {
			req.Targets = append(req.Targets, s.t)
		}
	}
	if rubi && len(req.Targets) > 0 && !novel {
		req.Targets = append(req.Targets, render.TargetNovel)
	}
	_, code := e.runBuild(root, req)
	return code
}

// runBuild opens root, builds it, prints the outcome and sends the opt-in
// build event. A non-zero code means the caller must stop.
func (e cliEnv) runBuild(root string, req build.Request) (build.Result, int) {
	l := applog.WithOperation(applog.WithComponent("cli"), "build").With(slog.String("root", root))
	p, err := storage.Open(root)
	if err != nil {
		return build.Result{}, e.fail(l, "open project failed", err)
	}
	start := time.Now()
	res, err := build.Run(context.Background(), p, req)
	for _, w := range res.Warnings {
		_, _ = fmt.Fprintln(e.stderr, "warning:", w)
	}
	written := make([]string, 0, len(res.Written))
	for _, path := range res.Written {
		written = append(written, path)
	}
	sort.Strings(written)
	for _, path := range written {
		_, _ = fmt.Fprintln(e.stdout, "wrote", path)
	}

	empty, other := splitErrors(err)
	for _, err := range empty {
		_, _ = fmt.Fprintln(e.stderr, "skipped:", err)
	}
	sendBuildEvent(req, res, len(other) > 0, time.Since(start))
	if len(other) > 0 {
		return res, e.fail(l, "build failed", errors.Join(other...))
	}
	return res, 0
}

// splitErrors separates empty-target notices from real failures.
func splitErrors(err error) (empty, other []error) {
	if err == nil {
		return nil, nil
	}
	errs := []error{err}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		errs = j.Unwrap()
	}
	for _, e := range errs {
		if errors.Is(e, render.ErrEmptyTarget) {
			empty = append(empty, e)
		} else {
			other = append(other, e)
		}
	}
	return empty, other
}

func sendBuildEvent(req build.Request, res build.Result, failed bool, took time.Duration) {
	c := telemetry.Default()
	if !c.Enabled() {
		return
	}
	targets := len(req.Targets)
	if targets == 0 {
		targets = len(render.Targets)
	}
	scenes, _ := storage.Flatten(res.Timeline)
	c.Build(telemetry.BuildEvent{
		Targets:  targets,
		Written:  len(res.Written),
		Scenes:   len(scenes),
		Warnings: len(res.Warnings),
		Failed:   failed,
		Duration: took,
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.Flush(ctx)
}

func (e cliEnv) cmdInit(args []string) int {
	fs := e.flagSet("init")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	root := projectDir(fs.Args())
	defer crash.Recover(root)
	l := applog.WithOperation(applog.WithComponent("cli"), "init").With(slog.String("root", root))
	if err := storage.Init(root); err != nil {
		return e.fail(l, "init failed", err)
	}
	l.Info("project initialized")
	_, _ = fmt.Fprintln(e.stdout, "Created project at", root)
	return 0
}

func (e cliEnv) cmdSearch(args []string) int {
	fs := e.flagSet("search")
	var q storage.Query
	fs.StringVar(&q.Act, "act", "", "only beats of this act (e.g. TALK)")
	fs.StringVar(&q.Subject, "subject", "", "only beats of this subject")
	fs.StringVar(&q.Scene, "scene", "", "only beats of this scene tag")
	fs.IntVar(&q.Limit, "limit", 50, "maximum results")
	fs.IntVar(&q.Offset, "offset", 0, "skip this many results")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 || len(rest) > 2 {
		_, _ = fmt.Fprintln(e.stderr, "search requires [dir] <text>")
		return 2
	}
	q.Text = rest[len(rest)-1]
	root := projectDir(rest[:len(rest)-1])
	defer crash.Recover(root)
	l := applog.WithOperation(applog.WithComponent("cli"), "search").With(slog.String("root", root))

	ctx := context.Background()
	var (
		results []storage.Result
		err     error
	)
	if strings.EqualFold(e.cfg.Index.Backend, "postgres") {
		results, err = e.searchShared(ctx, root, q)
	} else {
		results, err = storage.Search(ctx, root, q)
	}
	if err != nil {
		return e.fail(l, "search failed", err)
	}
	for _, r := range results {
		subject := r.Subject
		if subject == "" {
			subject = "-"
		}
		_, _ = fmt.Fprintf(e.stdout, "%s#%d\t%s\t%s\t%s\n", r.Scene, r.Seq, r.Act, subject, r.Snippet)
	}
	if len(results) == 0 {
		_, _ = fmt.Fprintln(e.stdout, "no matches")
	}
	return 0
}

func (e cliEnv) searchShared(ctx context.Context, root string, q storage.Query) ([]storage.Result, error) {
	dsn, err := backend.WithPassword(e.cfg.Index.DSN, e.password)
	if err != nil {
		return nil, err
	}
	db, err := backend.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return backend.SearchPG(ctx, db, filepath.Base(root), q)
}

func (e cliEnv) cmdExport(args []string) int {
	fs := e.flagSet("export")
	var opt export.BatchOptions
	var preset string
	fs.StringVar(&preset, "preset", "", "print or ebook")
	fs.StringVar(&opt.OutDir, "out", "", "output folder (relative to <project>/exports)")
	fs.StringVar(&opt.Title, "title", "", "document title")
	fs.StringVar(&opt.Author, "author", "", "document author")
	fs.BoolVar(&opt.Vertical, "vertical", false, "vertical writing in EPUB")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) < 2 || len(rest) > 3 {
		_, _ = fmt.Fprintln(e.stderr, "export requires [dir] <pdf|epub> <target>")
		return 2
	}
	format, target := rest[len(rest)-2], rest[len(rest)-1]
	root := projectDir(rest[:len(rest)-2])
	defer crash.Recover(root)
	l := applog.WithOperation(applog.WithComponent("cli"), "export").With(slog.String("root", root))

	p, err := storage.Open(root)
	if err != nil {
		return e.fail(l, "open project failed", err)
	}
	book, err := storage.LoadBook(root)
	if err != nil {
		return e.fail(l, "read book failed", err)
	}
	opt.Preset = export.PresetName(preset)
	opt.Columns, opt.Rows = p.Config.Columns, p.Config.Rows
	opt.FontFile = e.cfg.Export.FontFile
	opt.Language = firstNonEmpty(book.Language, e.cfg.Export.Language)
	opt.Title = firstNonEmpty(opt.Title, book.Title)
	opt.Author = firstNonEmpty(opt.Author, book.Author)
	opt.Publisher = book.Publisher
	opt.Description = book.Description
	paths, err := export.Artifacts(root, []string{target}, []string{format}, opt)
	if err != nil {
		return e.fail(l, "export failed", err)
	}
	for _, path := range paths {
		_, _ = fmt.Fprintln(e.stdout, "exported", path)
	}
	return 0
}

func (e cliEnv) cmdPublish(args []string) int {
	fs := e.flagSet("publish")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	root := projectDir(fs.Args())
	defer crash.Recover(root)
	l := applog.WithOperation(applog.WithComponent("cli"), "publish").With(slog.String("root", root))

	if strings.TrimSpace(e.cfg.Index.DSN) == "" {
		return e.fail(l, "publish needs a postgres DSN", fmt.Errorf("set index.dsn in %s or %s", configPathHint(), config.EnvIndexDSN))
	}
	req, err := build.RequestFromConfig(e.cfg.Build)
	if err != nil {
		return e.fail(l, "bad build config", err)
	}
	res, code := e.runBuild(root, req)
	if code != 0 {
		return code
	}

	ctx := context.Background()
	dsn, err := backend.WithPassword(e.cfg.Index.DSN, e.password)
	if err != nil {
		return e.fail(l, "bad dsn", err)
	}
	db, err := backend.Open(ctx, dsn)
	if err != nil {
		return e.fail(l, "connect failed", err)
	}
	defer db.Close()
	n, err := backend.Publish(ctx, db, filepath.Base(root), res.BuildID, res.Timeline)
	if err != nil {
		return e.fail(l, "publish failed", err)
	}
	l.Info("published", slog.String("build", res.BuildID), slog.Int("beats", n))
	_, _ = fmt.Fprintf(e.stdout, "published build %s (%d beats)\n", res.BuildID, n)
	return 0
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func configPathHint() string {
	if p, err := config.ConfigPath(); err == nil {
		return p
	}
	return "the config file"
}
