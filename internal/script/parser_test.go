/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"gostorybuilder/internal/story"
)

func TestSplitGroupsAndGlobal(t *testing.T) {
	input := "#!SMS version 1\r\npreamble line\n\n## main\r\n::title=Main\n\n[taro:be]\n## sub \nhello\n## empty\n"
	got := Split(input)
	want := []story.RawSrc{
		{Tag: "global", Lines: []string{"preamble line"}},
		{Tag: "main", Lines: []string{"::title=Main", "[taro:be]"}},
		{Tag: "sub", Lines: []string{"hello"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Split mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitAllKeepsSourceOrder(t *testing.T) {
	got := SplitAll([]Source{{Name: "b.md", Text: "## b\nx"}, {Name: "a.md", Text: "## a\ny"}})
	if len(got) != 2 || got[0].Tag != "b" || got[1].Tag != "a" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestParseHeaderForms(t *testing.T) {
	raw := story.RawSrc{Tag: "s1", Lines: []string{
		"::title=A=B",
		":: stage = Old Classroom",
		"::camera=taro",
		"::flags=nospin,draft",
		"::weather=rain",
		"::nothing",
	}}
	code, errs := Parse(raw)
	if code.Title != "A=B" {
		t.Fatalf("title = %q", code.Title)
	}
	if code.Stage != "Old Classroom" {
		t.Fatalf("stage = %q", code.Stage)
	}
	if code.Camera != "taro" {
		t.Fatalf("camera = %q", code.Camera)
	}
	if diff := cmp.Diff([]string{"nospin", "draft"}, code.Flags); diff != "" {
		t.Fatalf("flags (-want +got):\n%s", diff)
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 warnings (unknown key, malformed), got %+v", errs)
	}
	if errs[0].Line != 5 || errs[1].Line != 6 {
		t.Fatalf("warning lines wrong: %+v", errs)
	}
}

func TestParseBody(t *testing.T) {
	raw := story.RawSrc{Tag: "main", Lines: []string{
		"stray text before any action",
		"[taro:be:standing]",
		"Taro stands by the window.",
		"<sub>",
		"! A = taro",
		"!P",
		"[sky:clear]",
		"[hana:talk]",
		"Hello.",
		"!PE",
		"[taro:jump]",
		"[]",
		"!unknown",
	}}
	code, errs := Parse(raw)
	want := []story.Node{
		story.Action{Type: story.ActBe, Subject: "taro", Outline: "standing", Descs: []string{"Taro stands by the window."}},
		story.Instruction{Type: story.InstCall, Args: []string{"sub"}},
		story.Instruction{Type: story.InstAlias, Args: []string{"A", "=", "taro"}},
		story.Instruction{Type: story.InstParagraphStart},
		story.Action{Type: story.ActSky, Outline: "clear"},
		story.Action{Type: story.ActTalk, Subject: "hana", Descs: []string{"Hello."}},
		story.Instruction{Type: story.InstParagraphEnd},
		story.Action{Type: story.ActNone, Subject: "taro"},
		story.Action{Type: story.ActSame},
	}
	if diff := cmp.Diff(want, code.Body); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}
	if len(errs) != 2 {
		t.Fatalf("expected warnings for unknown act and instruction, got %+v", errs)
	}
}

func TestParseOutlineKeepsColons(t *testing.T) {
	code, _ := Parse(story.RawSrc{Tag: "x", Lines: []string{"[taro:do:at 10:30]"}})
	act := code.Body[0].(story.Action)
	if act.Outline != "at 10:30" || act.Type != story.ActDo {
		t.Fatalf("unexpected action %+v", act)
	}
}

func TestDialogueSplit(t *testing.T) {
	raw := story.RawSrc{Tag: "x", Lines: []string{
		"[taro:talk:greeting]",
		":Good morning.",
		"hana:Morning!",
		"They both laugh.",
	}}
	code, errs := Parse(raw)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	want := []story.Node{
		story.Action{Type: story.ActTalk, Subject: "taro", Outline: "greeting", Descs: []string{"Good morning."}},
		story.Action{Type: story.ActTalk, Subject: "hana", Outline: "greeting", Descs: []string{"Morning!"}},
		story.Action{Type: story.ActDo, Subject: "taro", Outline: "greeting", Descs: []string{"They both laugh."}},
	}
	if diff := cmp.Diff(want, code.Body); diff != "" {
		t.Fatalf("dialogue split mismatch (-want +got):\n%s", diff)
	}
}

func TestTalkWithoutSpeakersStaysWhole(t *testing.T) {
	code, _ := Parse(story.RawSrc{Tag: "x", Lines: []string{"[taro:talk]", "「Hi」", ":colon only"}})
	if len(code.Body) != 1 {
		t.Fatalf("expected a single action, got %d", len(code.Body))
	}
}

func TestParseAllReportsDuplicates(t *testing.T) {
	scenes, errs := ParseAll([]story.RawSrc{
		{Tag: "a", Lines: []string{"::title=first"}},
		{Tag: "a", Lines: []string{"::title=second"}},
	})
	if scenes["a"].Title != "second" {
		t.Fatalf("later definition should win, got %q", scenes["a"].Title)
	}
	if len(errs) != 1 {
		t.Fatalf("expected a duplicate warning, got %+v", errs)
	}
}
