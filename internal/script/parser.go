/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	applog "gostorybuilder/internal/log"
	"gostorybuilder/internal/story"
)

var reSpeaker = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]*:`)

// Parse converts one scene's raw lines into a SceneCode.
// Supported lines:
//   - <tag>                    call another scene
//   - ::key=value, :: key = v  header attribute
//   - ! name = target          alias for the rest of the scene
//   - !P / !PE                 paragraph start / end
//   - [subject:act:outline]    open a new action
//   - anything else            description line of the open action
//
// Problems never abort parsing; they are returned as Errors and logged.
func Parse(raw story.RawSrc) (story.SceneCode, []Error) {
	l := applog.WithScene(applog.WithComponent("script"), raw.Tag)
	code := story.SceneCode{Tag: raw.Tag}
	var errs []Error

	var open *story.Action
	warn := func(lineNo int, format string, args ...any) {
		e := Error{Scene: raw.Tag, Line: lineNo, Column: 1, Message: fmt.Sprintf(format, args...)}
		errs = append(errs, e)
		l.Warn(e.Message, slog.Int("line", lineNo))
	}
	flush := func() {
		if open != nil {
			code.Body = append(code.Body, open.Clone())
			open = nil
		}
	}

	for i, line := range raw.Lines {
		lineNo := i + 1
		line = strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(line, "<"):
			tag := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(line, "<"), ">"))
			if tag == "" {
				warn(lineNo, "empty scene call")
				continue
			}
			flush()
			code.Body = append(code.Body, story.Instruction{Type: story.InstCall, Args: []string{tag}})

		case strings.HasPrefix(line, "::"):
			key, val, ok := headerTokens(line)
			if !ok {
				warn(lineNo, "malformed header line %q", line)
				continue
			}
			if !code.SetHeader(key, val) {
				warn(lineNo, "unknown header key %q", key)
			}

		case strings.HasPrefix(line, "!"):
			in, ok := instruction(line)
			if !ok {
				warn(lineNo, "unknown instruction %q", line)
				continue
			}
			flush()
			code.Body = append(code.Body, in)

		case strings.HasPrefix(line, "["):
			flush()
			act, known, token := actionHeader(line)
			if !known {
				warn(lineNo, "unknown act %q", token)
			}
			open = &act

		case strings.TrimSpace(line) == "":
			continue

		default:
			if open == nil {
				l.Debug("description outside of an action dropped", slog.Int("line", lineNo))
				continue
			}
			open.Descs = append(open.Descs, line)
		}
	}
	flush()

	code.Body = splitDialogues(code.Body)
	return code, errs
}

// ParseAll parses every group into a tag-keyed table. A later group with the same
// tag replaces an earlier one and is reported.
func ParseAll(raws []story.RawSrc) (map[string]story.SceneCode, []Error) {
	scenes := make(map[string]story.SceneCode, len(raws))
	var errs []Error
	for _, raw := range raws {
		code, e := Parse(raw)
		errs = append(errs, e...)
		if _, dup := scenes[code.Tag]; dup {
			msg := fmt.Sprintf("duplicate scene tag %q, later definition wins", code.Tag)
			errs = append(errs, Error{Scene: code.Tag, Line: 0, Column: 1, Message: msg})
			applog.WithScene(applog.WithComponent("script"), code.Tag).Warn(msg)
		}
		scenes[code.Tag] = code
	}
	return scenes, errs
}

// headerTokens splits a "::" line. The "=" form is used when the key token itself
// contains "="; otherwise the line must read "key = value".
func headerTokens(line string) (string, string, bool) {
	body := strings.TrimSpace(line[2:])
	if !strings.Contains(body, "=") {
		return "", "", false
	}
	first, _, _ := strings.Cut(body, " ")
	if strings.Contains(first, "=") || !strings.Contains(body, " ") {
		parts := strings.Split(body, "=")
		key := strings.TrimSpace(parts[0])
		if key == "" {
			return "", "", false
		}
		return key, strings.Join(parts[1:], "="), true
	}
	tokens := strings.Split(body, " ")
	if len(tokens) < 3 || tokens[1] != "=" || tokens[0] == "" {
		return "", "", false
	}
	return tokens[0], strings.Join(tokens[2:], " "), true
}

func instruction(line string) (story.Instruction, bool) {
	rest := line[1:]
	switch {
	case strings.HasPrefix(rest, " ") && strings.Contains(rest, " = "):
		name, target, _ := strings.Cut(strings.TrimSpace(rest), " = ")
		name, target = strings.TrimSpace(name), strings.TrimSpace(target)
		if name == "" {
			return story.Instruction{}, false
		}
		return story.Instruction{Type: story.InstAlias, Args: []string{name, "=", target}}, true
	case strings.HasPrefix(rest, "PE"):
		return story.Instruction{Type: story.InstParagraphEnd}, true
	case strings.HasPrefix(rest, "P"):
		return story.Instruction{Type: story.InstParagraphStart}, true
	}
	return story.Instruction{}, false
}

// actionHeader parses "[...]". It returns the new action, whether the act token was
// recognised, and the raw act token.
func actionHeader(line string) (story.Action, bool, string) {
	base := strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
	var subject, act, outline string
	tokens := strings.SplitN(base, ":", 3)
	switch len(tokens) {
	case 3:
		subject, act, outline = tokens[0], tokens[1], tokens[2]
	case 2:
		subject, act = tokens[0], tokens[1]
		if t, ok := story.ActTypeOf(subject); ok && subject != "" && (t.IsNoSubject() || t.IsFlag()) {
			act, outline, subject = subject, act, ""
		}
	default:
		act = tokens[0]
	}
	t, ok := story.ActTypeOf(act)
	return story.Action{Type: t, Subject: subject, Outline: outline}, ok, act
}

// splitDialogues breaks a TALK action with embedded "name:" lines into one action per
// line. ":text" keeps the declared speaker; unprefixed lines become DO actions.
func splitDialogues(body []story.Node) []story.Node {
	out := make([]story.Node, 0, len(body))
	for _, n := range body {
		act, ok := n.(story.Action)
		if !ok || act.Type != story.ActTalk || !hasSpeakerLine(act.Descs) {
			out = append(out, n)
			continue
		}
		for _, d := range act.Descs {
			switch {
			case strings.HasPrefix(d, ":"):
				out = append(out, act.Inherit(story.Action{Descs: []string{d[1:]}}))
			case reSpeaker.MatchString(d):
				m := reSpeaker.FindString(d)
				out = append(out, act.Inherit(story.Action{Subject: m[:len(m)-1], Descs: []string{d[len(m):]}}))
			default:
				out = append(out, act.Inherit(story.Action{Type: story.ActDo, Descs: []string{d}}))
			}
		}
	}
	return out
}

func hasSpeakerLine(descs []string) bool {
	for _, d := range descs {
		if reSpeaker.MatchString(d) {
			return true
		}
	}
	return false
}
