/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gostorybuilder/internal/assets"
	"gostorybuilder/internal/names"
	"gostorybuilder/internal/story"
)

func testTables() *names.Tables {
	return names.Build(assets.Set{
		Persons: []assets.Person{
			{Tag: "taro", Name: "太郎", Calling: map[string]string{"hana": "はなちゃん"}},
			{Tag: "hana", Name: "花子"},
		},
		Stages: []assets.Stage{{Tag: "Classroom", Name: "教室"}},
		Items:  []assets.Item{{Tag: "pen", Name: "ペン"}},
		Groups: []assets.NameGroup{
			{Kind: assets.KindTime, Entries: []assets.NameEntry{{Tag: "morning", Name: "朝", Clock: "7:00"}}},
		},
	}, 0)
}

func opening() story.SceneInfo {
	return story.SceneInfo{
		Level: 0, Tag: "opening", Title: "Opening", Stage: "Classroom", Time: "morning",
		Clock: "7:00", Date: "4/1", Year: "2020", Camera: "taro", Outline: "root text",
	}
}

func TestNovelEndToEnd(t *testing.T) {
	tl := story.Timeline{
		opening(),
		story.Action{Type: story.ActTalk, Subject: "taro", Descs: []string{"おはよう"}},
		story.Action{Type: story.ActDo, Subject: "taro", Descs: []string{"$hanaと歩く"}},
		story.SceneEnd{Tag: "opening"},
	}
	got, err := Novel(tl, testTables(), Options{})
	if err != nil {
		t.Fatalf("Novel: %v", err)
	}
	want := "# 1. Opening\n\n" + "「おはよう」\n" + "　はなちゃんと歩く。\n" + "\n"
	if diff := cmp.Diff(want, got.String()); diff != "" {
		t.Fatalf("novel mismatch (-want +got):\n%s", diff)
	}
}

func TestNovelParagraphAndDialogueMarks(t *testing.T) {
	tl := story.Timeline{
		opening(),
		story.Instruction{Type: story.InstParagraphStart},
		story.Action{Type: story.ActDo, Subject: "taro", Descs: []string{"立つ"}},
		story.Action{Type: story.ActDo, Subject: "taro", Descs: []string{"座る"}},
		story.Instruction{Type: story.InstParagraphEnd},
		story.Action{Type: story.ActTalk, Subject: "hana", Descs: []string{"hana:やあ"}},
		story.Action{Type: story.ActTalk, Subject: "hana", Descs: []string{"「ええと"}},
		story.Action{Type: story.ActVoice, Subject: "hana", Descs: []string{"もしもし"}},
		story.Action{Type: story.ActPlot, Subject: "hana", Descs: []string{"hidden"}},
		story.Action{Type: story.ActDo, Subject: "hana"},
		story.Action{Type: story.ActBR},
		story.Action{Type: story.ActMark, Outline: "＊"},
		story.SceneEnd{Tag: "opening"},
	}
	got, err := Novel(tl, testTables(), Options{})
	if err != nil {
		t.Fatalf("Novel: %v", err)
	}
	want := "# 1. Opening\n\n" +
		"　立つ。座る。" + "\n" +
		"「やあ」\n" +
		"「ええと。\n" +
		"『もしもし』\n" +
		"\n" +
		"\n＊\n\n" +
		"\n"
	if diff := cmp.Diff(want, got.String()); diff != "" {
		t.Fatalf("novel mismatch (-want +got):\n%s", diff)
	}
}

func TestNovelNoteOnlyWithComment(t *testing.T) {
	tl := story.Timeline{
		opening(),
		story.Action{Type: story.ActNote, Descs: []string{"a", "b"}},
		story.SceneEnd{},
	}
	plain, _ := Novel(tl, nil, Options{})
	if strings.Contains(plain.String(), "<!--") {
		t.Fatalf("note leaked without comment option: %q", plain)
	}
	commented, _ := Novel(tl, nil, Options{Comment: true})
	if !strings.Contains(commented.String(), "<!--a。b-->\n\n") {
		t.Fatalf("comment missing: %q", commented)
	}
}

func TestStruct(t *testing.T) {
	tl := story.Timeline{
		opening(),
		story.Action{Type: story.ActBe, Subject: "taro", Outline: "座る"},
		story.Action{Type: story.ActPut, Outline: "pen"},
		story.Action{Type: story.ActTalk, Subject: "hana", Outline: "おはよう"},
		story.Action{Type: story.ActDraw, Subject: "taro"},
		story.SceneEnd{Tag: "opening"},
	}
	got, err := Struct(tl, testTables(), Options{})
	if err != nil {
		t.Fatalf("Struct: %v", err)
	}
	want := "# 1. Opening\n\n" +
		"○教室（朝/7:00） - 4/1/2020 - [太郎]\n" +
		"　　[太郎]（いる）座る\n" +
		"花子「おはよう」\n" +
		"　　（描画）[太郎]――\n" +
		"　　>> 人物：太郎 ／ 物品：ペン\n" +
		"　　（光量）500lx\n" +
		"\n\n"
	if diff := cmp.Diff(want, got.String()); diff != "" {
		t.Fatalf("struct mismatch (-want +got):\n%s", diff)
	}
}

func TestStructLighting(t *testing.T) {
	outside := opening()
	outside.Location = "ext"
	nospin := opening()
	nospin.Flags = []string{story.FlagNoSpin}

	tests := []struct {
		name string
		tl   story.Timeline
		want string
	}{
		{"exterior", story.Timeline{outside, story.SceneEnd{}}, "（光量）10000lx"},
		{"explicit", story.Timeline{opening(), story.Action{Type: story.ActLight, Outline: "dim"}, story.SceneEnd{}}, "（光量）dim"},
	}
	for _, tc := range tests {
		got, err := Struct(tc.tl, nil, Options{})
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if !strings.Contains(got.String(), tc.want) {
			t.Fatalf("%s: missing %q in %q", tc.name, tc.want, got)
		}
		if n := strings.Count(got.String(), "（光量）"); n != 1 {
			t.Fatalf("%s: %d lighting lines", tc.name, n)
		}
	}

	got, _ := Struct(story.Timeline{nospin, story.SceneEnd{}}, nil, Options{})
	if s := got.String(); strings.Contains(s, "○") || strings.Contains(s, "光量") || strings.Contains(s, ">>") {
		t.Fatalf("nospin scene rendered spin data: %q", s)
	}
}

func TestScript(t *testing.T) {
	tl := story.Timeline{
		opening(),
		story.Action{Type: story.ActDo, Subject: "taro", Descs: []string{"座る"}},
		story.Action{Type: story.ActTalk, Subject: "taro", Descs: []string{"おはよう"}},
		story.Action{Type: story.ActThink, Subject: "hana", Descs: []string{"眠い"}},
		story.Action{Type: story.ActTalk, Subject: "hana"},
		story.Action{Type: story.ActNote, Descs: []string{"memo"}},
		story.Action{Type: story.ActPlot, Descs: []string{"hidden"}},
		story.SceneEnd{Tag: "opening"},
	}
	got, err := Script(tl, testTables(), Options{Comment: true})
	if err != nil {
		t.Fatalf("Script: %v", err)
	}
	want := "# 1. Opening\n\n" +
		"\n○教室（朝）\n\n" +
		"　　　座る。\n" +
		"太郎「おはよう」\n" +
		"花子Ｍ『眠い』\n" +
		"<!--memo-->\n\n" +
		"\n"
	if diff := cmp.Diff(want, got.String()); diff != "" {
		t.Fatalf("script mismatch (-want +got):\n%s", diff)
	}
}

func outlineTimeline() story.Timeline {
	a := story.SceneInfo{Level: 1, Title: "A", Outline: "a"}
	b := story.SceneInfo{Level: 1, Title: "B", Outline: "b"}
	return story.Timeline{
		opening(),
		a, story.Action{Type: story.ActPlot, Outline: "turn", Descs: []string{"x", "y"}}, story.SceneEnd{},
		b, story.SceneEnd{},
		story.SceneEnd{},
	}
}

func TestOutlineReordersByLevel(t *testing.T) {
	got, err := Outline(outlineTimeline(), nil)
	if err != nil {
		t.Fatalf("Outline: %v", err)
	}
	want := "1. Opening\n" + "　root text\n\n" +
		Breakline() +
		"1. A\n" + "　a\n\n" +
		"2. B\n" + "　b\n\n"
	if diff := cmp.Diff(want, got.String()); diff != "" {
		t.Fatalf("outline mismatch (-want +got):\n%s", diff)
	}
}

func TestPlot(t *testing.T) {
	got, err := Plot(outlineTimeline(), nil)
	if err != nil {
		t.Fatalf("Plot: %v", err)
	}
	want := Breakline() + "1. A\n** turn **\n" + "　x\n　y\n\n"
	if diff := cmp.Diff(want, got.String()); diff != "" {
		t.Fatalf("plot mismatch (-want +got):\n%s", diff)
	}
	if _, err := Plot(story.Timeline{opening(), story.SceneEnd{}}, nil); !errors.Is(err, ErrEmptyTarget) {
		t.Fatalf("Plot without PLOT actions: err = %v", err)
	}
}

func TestContents(t *testing.T) {
	got, err := Contents(outlineTimeline(), nil)
	if err != nil {
		t.Fatalf("Contents: %v", err)
	}
	want := "Opening\n===\n\n\n" + "1. A\n" + "2. B\n" + Breakline()
	if diff := cmp.Diff(want, got.String()); diff != "" {
		t.Fatalf("contents mismatch (-want +got):\n%s", diff)
	}
}

func TestInfo(t *testing.T) {
	tl := story.Timeline{
		opening(),
		story.Action{Type: story.ActCome, Subject: "taro", Outline: "入る"},
		story.Action{Type: story.ActHave, Subject: "hana", Outline: "pen"},
		story.Action{Type: story.ActForeshadow, Subject: "taro", Outline: "secret"},
		story.SceneEnd{},
	}
	got, err := Info(tl, testTables())
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	s := got.String()
	if !strings.HasPrefix(s, "SCENE INFO DATA\n===\n\n"+Breakline()+"## TRANSITION INFO\n\n") {
		t.Fatalf("info header: %q", s)
	}
	rows := []string{
		"| 0    | 1    | " + Justify("Opening", 16, false) + " | " + Justify("教室", 16, false) + " |",
		"| 0    | 1    | " + Justify("太郎", 16, false) + " |      | IN   |      |      | " + Justify("入る", 16, false) + " |",
		"| 0    | 1    | " + Justify("花子", 16, false) + " | " + Justify("pen", 16, false) + " |",
		"| 0    | 1    | " + Justify("太郎", 16, false) + " | " + Justify("secret", 24, false) + " | " + strings.Repeat(" ", 24) + " |",
	}
	for _, r := range rows {
		if !strings.Contains(s, r) {
			t.Errorf("missing row %q", r)
		}
	}
	for _, h := range []string{"## PERSON INFO", "## ITEM INFO", "## FLAG INFO"} {
		if !strings.Contains(s, h) {
			t.Errorf("missing section %q", h)
		}
	}
	if _, err := Info(story.Timeline{story.Action{Type: story.ActDo}}, nil); !errors.Is(err, ErrEmptyTarget) {
		t.Fatalf("Info without scenes: err = %v", err)
	}
}

func TestApplyRubi(t *testing.T) {
	frags := Fragments{"太郎が来た。", "太郎は太郎。"}
	once := ApplyRubi(frags, []names.RubiEntry{{Tag: "太郎", Reading: "｜太郎《たろう》"}})
	if want := "｜太郎《たろう》が来た。太郎は太郎。"; once.String() != want {
		t.Fatalf("first-match: %q", once)
	}
	if frags[0] != "太郎が来た。" {
		t.Fatalf("input mutated: %q", frags[0])
	}

	always := ApplyRubi(frags, []names.RubiEntry{{Tag: "太郎", Reading: "T", Always: true}})
	if want := "Tが来た。TはT。"; always.String() != want {
		t.Fatalf("always: %q", always)
	}

	excl := ApplyRubi(Fragments{"山田太郎と太郎"}, []names.RubiEntry{{Tag: "太郎", Reading: "T", Exclusions: []string{"山田太郎"}}})
	if want := "山田太郎とT"; excl.String() != want {
		t.Fatalf("exclusion: %q", excl)
	}

	// the reading contains the tag; scanning resumes after it
	self := ApplyRubi(Fragments{"太郎太郎"}, []names.RubiEntry{{Tag: "太郎", Reading: "｜太郎《たろう》", Always: true}})
	if want := "｜太郎《たろう》｜太郎《たろう》"; self.String() != want {
		t.Fatalf("self-containing reading: %q", self)
	}
}

func TestJustifyUsesDisplayWidth(t *testing.T) {
	if got := Justify("太郎", 6, false); got != "太郎  " {
		t.Fatalf("left: %q", got)
	}
	if got := Justify("ab", 4, true); got != "  ab" {
		t.Fatalf("right: %q", got)
	}
	if got := Justify("toolong", 3, false); got != "toolong" {
		t.Fatalf("overflow: %q", got)
	}
}

func TestRenderersRejectEmptyTimeline(t *testing.T) {
	var tl story.Timeline
	if _, err := Outline(tl, nil); !errors.Is(err, ErrEmptyTarget) {
		t.Errorf("outline: %v", err)
	}
	if _, err := Struct(tl, nil, Options{}); !errors.Is(err, ErrEmptyTarget) {
		t.Errorf("struct: %v", err)
	}
	if _, err := Script(tl, nil, Options{}); !errors.Is(err, ErrEmptyTarget) {
		t.Errorf("script: %v", err)
	}
	if _, err := Novel(tl, nil, Options{}); !errors.Is(err, ErrEmptyTarget) {
		t.Errorf("novel: %v", err)
	}
	if _, err := Contents(tl, nil); !errors.Is(err, ErrEmptyTarget) {
		t.Errorf("contents: %v", err)
	}
}
