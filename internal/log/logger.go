/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log provides centralized slog-based logging for gostorybuilder.
// It wraps slog with a small configuration surface and a handler that
// enriches records with the component, the operation and, when the
// context carries one, the id of the running build.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"gostorybuilder/internal/version"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger initialization.
// Values can be provided directly or via environment variables:
//   - GSB_LOG_LEVEL=debug|info|warn|error
//   - GSB_LOG_FORMAT=console|json
//   - GSB_LOG_FILE=<path> (enables file logging with rotation)
//   - GSB_LOG_SOURCE=true|false (include source)
//
// Defaults: INFO level, console format, no source.
type Options struct {
	Level     string
	Format    string // "console" or "json"
	AddSource bool
	File      string // optional path for file logging (rotated)
	Writer    io.Writer
}

const (
	EnvLevel  = "GSB_LOG_LEVEL"
	EnvFormat = "GSB_LOG_FORMAT"
	EnvSource = "GSB_LOG_SOURCE"
	EnvFile   = "GSB_LOG_FILE"
)

var (
	defaultLoggerMu sync.RWMutex
	defaultLogger   *slog.Logger
)

// L returns the default application logger, initializing from env if needed.
func L() *slog.Logger {
	defaultLoggerMu.RLock()
	l := defaultLogger
	defaultLoggerMu.RUnlock()
	if l != nil {
		return l
	}
	Init(FromEnv())
	defaultLoggerMu.RLock()
	l = defaultLogger
	defaultLoggerMu.RUnlock()
	return l
}

// Init configures the global logger and sets slog.Default as well.
func Init(opts Options) {
	lvl := parseLevel(opts.Level)
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}
	out := opts.Writer
	if out == nil {
		out = os.Stderr
	}

	var handlers []slog.Handler
	var consoleHandler slog.Handler
	if format == "json" {
		consoleHandler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource})
	} else {
		consoleHandler = &prettyTextHandler{opts: prettyOpts{Level: lvl, AddSource: opts.AddSource}, w: out, mu: &sync.Mutex{}}
	}
	handlers = append(handlers, withEnricher(consoleHandler))

	if strings.TrimSpace(opts.File) != "" {
		w := &lj.Logger{Filename: opts.File, MaxSize: 10, MaxBackups: 3, MaxAge: 28, Compress: true}
		fh := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource})
		handlers = append(handlers, withEnricher(fh))
	}

	var h slog.Handler
	if len(handlers) == 1 {
		h = handlers[0]
	} else {
		h = multiHandler(handlers...)
	}

	logger := slog.New(h).With(
		slog.String("app", "gostorybuilder"),
		slog.String("ver", version.String()),
		slog.Time("ts_init", time.Now()),
	)

	defaultLoggerMu.Lock()
	defaultLogger = logger
	defaultLoggerMu.Unlock()
	slog.SetDefault(logger)
}

// FromEnv builds Options from environment variables.
func FromEnv() Options {
	return Options{
		Level:     getenv(EnvLevel, "info"),
		Format:    getenv(EnvFormat, "console"),
		AddSource: strings.EqualFold(getenv(EnvSource, "false"), "true"),
		File:      os.Getenv(EnvFile),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// WithComponent returns a logger with the component attribute pre-set.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation annotates the logger with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

// WithScene annotates the logger with the scene tag being processed.
func WithScene(l *slog.Logger, tag string) *slog.Logger { return l.With(slog.String("scene", tag)) }

type buildKey struct{}

// ContextWithBuild returns a context whose log records carry the build id.
func ContextWithBuild(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, buildKey{}, id)
}

// BuildFromContext returns the build id stored by ContextWithBuild.
func BuildFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(buildKey{}).(string)
	return id, ok && id != ""
}

func parseLevel(s string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// multiHandler fans out log records to multiple handlers.
func multiHandler(handlers ...slog.Handler) slog.Handler { return &multi{hs: handlers} }

type multi struct{ hs []slog.Handler }

func (m *multi) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.hs {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multi) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m.hs {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *multi) WithAttrs(attrs []slog.Attr) slog.Handler {
	res := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		res[i] = h.WithAttrs(attrs)
	}
	return &multi{hs: res}
}

func (m *multi) WithGroup(name string) slog.Handler {
	res := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		res[i] = h.WithGroup(name)
	}
	return &multi{hs: res}
}

func withEnricher(h slog.Handler) slog.Handler { return &enrich{next: h} }

// enrich copies the build id from the context onto each record.
type enrich struct{ next slog.Handler }

func (e *enrich) Enabled(ctx context.Context, level slog.Level) bool {
	return e.next.Enabled(ctx, level)
}

func (e *enrich) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := BuildFromContext(ctx); ok {
		r = r.Clone()
		r.AddAttrs(slog.String("build", id))
	}
	return e.next.Handle(ctx, r)
}

func (e *enrich) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &enrich{next: e.next.WithAttrs(attrs)}
}
func (e *enrich) WithGroup(name string) slog.Handler { return &enrich{next: e.next.WithGroup(name)} }

// prettyTextHandler prints compact console records shaped like compiler
// diagnostics:
//
//	15:04:05 WRN script main:12 unknown act "jump" k=v
//
// The component attribute follows the level and scene/line become a position.
// Process-wide attributes (app, ver, ts_init) are left to the file sink.
type prettyTextHandler struct {
	opts   prettyOpts
	w      io.Writer
	mu     *sync.Mutex
	attrs  []prefixedAttr
	groups []string
}

type prettyOpts struct {
	Level     slog.Leveler
	AddSource bool
}

// prefixedAttr remembers the group path that was open when the attr was added.
type prefixedAttr struct {
	prefix string
	attr   slog.Attr
}

var consoleHidden = map[string]bool{"app": true, "ver": true, "ts_init": true}

func (h *prettyTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level()
}

func (h *prettyTextHandler) level() slog.Level {
	if h.opts.Level == nil {
		return slog.LevelInfo
	}
	return h.opts.Level.Level()
}

func (h *prettyTextHandler) prefix() string {
	if len(h.groups) == 0 {
		return ""
	}
	return strings.Join(h.groups, ".") + "."
}

func (h *prettyTextHandler) Handle(_ context.Context, r slog.Record) error {
	all := make([]prefixedAttr, 0, len(h.attrs)+r.NumAttrs())
	all = append(all, h.attrs...)
	recPrefix := h.prefix()
	r.Attrs(func(a slog.Attr) bool {
		all = append(all, prefixedAttr{prefix: recPrefix, attr: a})
		return true
	})

	var component, scene, line string
	var rest []prefixedAttr
	for _, pa := range all {
		if pa.prefix == "" {
			switch pa.attr.Key {
			case "component":
				component = pa.attr.Value.String()
				continue
			case "scene":
				scene = pa.attr.Value.String()
				continue
			case "line":
				if pa.attr.Value.Kind() == slog.KindInt64 {
					line = strconv.FormatInt(pa.attr.Value.Int64(), 10)
					continue
				}
			}
			if consoleHidden[pa.attr.Key] {
				continue
			}
		}
		rest = append(rest, pa)
	}

	b := &strings.Builder{}
	b.Grow(256)
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString(ts.Format(time.TimeOnly))
	b.WriteString(" ")
	b.WriteString(levelString(r.Level))
	if component != "" {
		b.WriteString(" ")
		b.WriteString(component)
	}
	if scene != "" {
		b.WriteString(" ")
		b.WriteString(scene)
		if line != "" {
			b.WriteString(":")
			b.WriteString(line)
		}
	}
	if r.Message != "" {
		b.WriteString(" ")
		b.WriteString(r.Message)
	}
	for _, pa := range rest {
		b.WriteString(" ")
		b.WriteString(pa.prefix)
		b.WriteString(pa.attr.Key)
		b.WriteString("=")
		b.WriteString(attrValueString(pa.attr.Value))
	}
	if h.opts.AddSource && r.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		if f, _ := fs.Next(); f.File != "" {
			b.WriteString(" src=")
			b.WriteString(filepath.Base(f.File))
			b.WriteString(":")
			b.WriteString(strconv.Itoa(f.Line))
		}
	}
	b.WriteString("\n")
	if h.mu != nil {
		h.mu.Lock()
		defer h.mu.Unlock()
	}
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *prettyTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	na := make([]prefixedAttr, 0, len(h.attrs)+len(attrs))
	na = append(na, h.attrs...)
	p := h.prefix()
	for _, a := range attrs {
		na = append(na, prefixedAttr{prefix: p, attr: a})
	}
	return &prettyTextHandler{opts: h.opts, w: h.w, mu: h.mu, attrs: na, groups: append([]string(nil), h.groups...)}
}

func (h *prettyTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	ng := append([]string(nil), h.groups...)
	ng = append(ng, name)
	return &prettyTextHandler{opts: h.opts, w: h.w, mu: h.mu, attrs: append([]prefixedAttr(nil), h.attrs...), groups: ng}
}

func levelString(l slog.Level) string {
	switch l {
	case slog.LevelDebug:
		return "DBG"
	case slog.LevelInfo:
		return "INF"
	case slog.LevelWarn:
		return "WRN"
	case slog.LevelError:
		return "ERR"
	default:
		return l.String()
	}
}

func attrValueString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if strings.ContainsAny(s, " \t\n") {
			return strconv.Quote(s)
		}
		return s
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	default:
		return v.String()
	}
}
