/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package timeline expands the scene-call graph into one linear story.Timeline.
package timeline

import (
	"errors"
	"fmt"
	"log/slog"

	applog "gostorybuilder/internal/log"
	"gostorybuilder/internal/story"
)

var (
	ErrMissingScene = errors.New("timeline: scene not found")
	ErrSelfCall     = errors.New("timeline: scene calls itself")
	ErrCallCycle    = errors.New("timeline: scene call cycle")
	ErrCallDepth    = errors.New("timeline: call depth exceeded")
)

// CallError describes a structural failure at one call site. It unwraps to one of
// the sentinel errors above.
type CallError struct {
	Caller string
	Callee string
	Depth  int
	Path   []string
	Err    error
}

func (e *CallError) Error() string {
	if e.Caller == "" {
		return fmt.Sprintf("%v: %q (entry)", e.Err, e.Callee)
	}
	return fmt.Sprintf("%v: %q -> %q at depth %d", e.Err, e.Caller, e.Callee, e.Depth)
}

func (e *CallError) Unwrap() error { return e.Err }

// CyclePolicy selects how indirect call cycles (a -> b -> a) are treated.
type CyclePolicy int

const (
	// CycleFatal rejects a call to any scene already on the active call path.
	CycleFatal CyclePolicy = iota
	// CycleDepth allows re-entry and only fails past Options.MaxDepth.
	CycleDepth
)

// DefaultMaxDepth bounds recursion under CycleDepth when Options.MaxDepth is zero.
const DefaultMaxDepth = 32

// ParseCyclePolicy accepts "fatal" and "depth".
func ParseCyclePolicy(s string) (CyclePolicy, error) {
	switch s {
	case "", "fatal":
		return CycleFatal, nil
	case "depth":
		return CycleDepth, nil
	}
	return CycleFatal, fmt.Errorf("unknown cycle policy %q", s)
}

func (p CyclePolicy) String() string {
	if p == CycleDepth {
		return "depth"
	}
	return "fatal"
}

type Options struct {
	CyclePolicy CyclePolicy
	MaxDepth    int
}

// Resolve expands entry depth-first. Each scene yields SceneInfo, its body with calls
// spliced in at level+1, and SceneEnd. scenes is read only.
func Resolve(entry string, scenes map[string]story.SceneCode, opts Options) (story.Timeline, error) {
	l := applog.WithOperation(applog.WithComponent("timeline"), "resolve")
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	r := &resolver{scenes: scenes, opts: opts}
	if _, ok := scenes[entry]; !ok {
		return nil, &CallError{Callee: entry, Err: ErrMissingScene}
	}
	if err := r.expand(0, "", entry); err != nil {
		l.Error("resolve failed", slog.String("entry", entry), slog.Any("err", err))
		return nil, err
	}
	l.Debug("resolved", slog.String("entry", entry), slog.Int("nodes", len(r.out)))
	return r.out, nil
}

type resolver struct {
	scenes map[string]story.SceneCode
	opts   Options
	path   []string
	out    story.Timeline
}

func (r *resolver) onPath(tag string) bool {
	for _, p := range r.path {
		if p == tag {
			return true
		}
	}
	return false
}

func (r *resolver) fail(caller, callee string, level int, err error) error {
	return &CallError{Caller: caller, Callee: callee, Depth: level, Path: append([]string(nil), r.path...), Err: err}
}

func (r *resolver) expand(level int, caller, tag string) error {
	code, ok := r.scenes[tag]
	if !ok {
		return r.fail(caller, tag, level, ErrMissingScene)
	}
	if caller == tag {
		return r.fail(caller, tag, level, ErrSelfCall)
	}
	if r.onPath(tag) {
		if r.opts.CyclePolicy == CycleFatal {
			return r.fail(caller, tag, level, ErrCallCycle)
		}
	}
	if level > r.opts.MaxDepth {
		return r.fail(caller, tag, level, ErrCallDepth)
	}

	r.path = append(r.path, tag)
	defer func() { r.path = r.path[:len(r.path)-1] }()

	r.out = append(r.out, code.Info(level))
	for _, n := range code.Body {
		switch v := n.(type) {
		case story.Instruction:
			if v.Type == story.InstCall {
				if err := r.expand(level+1, tag, v.Arg(0)); err != nil {
					return err
				}
				continue
			}
			v.Args = append([]string(nil), v.Args...)
			r.out = append(r.out, v)
		case story.Action:
			r.out = append(r.out, v.Clone())
		case story.SceneInfo, story.SceneEnd:
			// parser never emits these inside a body
		}
	}
	r.out = append(r.out, story.SceneEnd{Tag: tag})
	return nil
}
