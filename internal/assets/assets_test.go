/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package assets

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const taroYAML = `person:
  tag: taro
  name: 太郎
  fullname: 山田,太郎
  age: 17
  calling:
    hana: はなちゃん
    me: 俺
  hobby: soccer
`

func TestParsePerson(t *testing.T) {
	a, warns, err := Parse("taro.yml", []byte(taroYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.Kind != KindPerson || a.Person == nil {
		t.Fatalf("unexpected asset: %+v", a)
	}
	p := a.Person
	if p.Tag != "taro" || p.Name != "太郎" || p.Age != "17" {
		t.Fatalf("unexpected person: %+v", p)
	}
	if p.Calling["hana"] != "はなちゃん" || p.Calling["me"] != "俺" {
		t.Fatalf("calling not decoded: %+v", p.Calling)
	}
	first, last := p.FirstLast()
	if first != "太郎" || last != "山田" {
		t.Fatalf("FirstLast = %q %q", first, last)
	}
	if len(warns) != 1 || !strings.Contains(warns[0], "hobby") {
		t.Fatalf("expected one warning for hobby, got %v", warns)
	}
}

func TestParseGroupsKeepOrder(t *testing.T) {
	src := "time:\n  morning: {name: 朝, clock: \"7:00\"}\n  noon:\n    name: 昼\n    clock: \"12:00\"\n  night: 夜\n"
	a, warns, err := Parse("time.yml", []byte(src))
	if err != nil || len(warns) != 0 {
		t.Fatalf("parse: %v %v", err, warns)
	}
	g := a.Group
	if g == nil || g.Kind != KindTime || len(g.Entries) != 3 {
		t.Fatalf("unexpected group: %+v", g)
	}
	if g.Entries[0].Tag != "morning" || g.Entries[1].Clock != "12:00" || g.Entries[2].Name != "夜" {
		t.Fatalf("entries: %+v", g.Entries)
	}
}

func TestParseRubi(t *testing.T) {
	src := "rubi:\n  太郎:\n    name: ｜太郎《たろう》\n    exclusions: [山田太郎]\n    always: false\n"
	a, _, err := Parse("rubi.yml", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Rubis) != 1 || a.Rubis[0].Reading != "｜太郎《たろう》" || a.Rubis[0].Exclusions[0] != "山田太郎" {
		t.Fatalf("rubi: %+v", a.Rubis)
	}
}

func TestParseErrors(t *testing.T) {
	if _, _, err := Parse("x.yml", []byte("vehicle:\n  tag: car\n")); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if _, _, err := Parse("x.yml", []byte("stage:\n  name: nowhere\n")); err == nil {
		t.Fatalf("expected missing tag error")
	}
	if _, _, err := Parse("x.yml", []byte("person: [\n")); err == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestValidate(t *testing.T) {
	issues, err := Validate("taro.yml", []byte(taroYAML))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("valid person reported issues: %v", issues)
	}
	issues, err = Validate("bad.yml", []byte("stage:\n  name: x\nitem:\n  tag: y\n  name: z\n"))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(issues) == 0 {
		t.Fatalf("expected violations for two kinds and a missing tag")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, body string) {
		p := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("taro.yml", taroYAML)
	write("Classroom.yaml", "stage:\n  tag: Classroom\n  name: 教室\n")
	write("common/mob.yml", "mob:\n  student: {name: 生徒, type: mob}\n")
	write("broken.yml", "vehicle: {}\n")
	write("notes.txt", "ignored")
	write(".hidden/x.yml", "item:\n  tag: secret\n  name: s\n")

	set, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(set.Persons) != 1 || len(set.Stages) != 1 || len(set.Groups) != 1 || len(set.Items) != 0 {
		t.Fatalf("unexpected set: %+v", set)
	}
	if _, err := LoadDir(filepath.Join(dir, "missing")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}
