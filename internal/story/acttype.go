/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package story

// ActType enumerates the kinds of story beats an action can carry.
type ActType int

const (
	ActNone ActType = iota
	ActDo
	ActBe
	ActCome
	ActGo
	ActFace
	ActWear
	ActFeel
	ActDiscard
	ActHave
	ActPut
	ActRid
	ActDraw
	ActExplain
	ActSky
	ActLight
	ActTalk
	ActThink
	ActVoice
	ActKnow
	ActPromise
	ActRemember
	ActState
	ActPlot
	ActForeshadow
	ActPayoff
	ActTitle
	ActNote
	ActMark
	ActBR
	ActSame

	actCount
)

// Group is the renderer-facing category an act belongs to. Every act is in exactly one group.
type Group int

const (
	GroupControl Group = iota
	GroupPerson
	GroupObject
	GroupView
	GroupDialogue
	GroupInfo
	GroupData
	GroupSymbol
)

func (g Group) String() string {
	switch g {
	case GroupControl:
		return "control"
	case GroupPerson:
		return "person"
	case GroupObject:
		return "object"
	case GroupView:
		return "view"
	case GroupDialogue:
		return "dialogue"
	case GroupInfo:
		return "info"
	case GroupData:
		return "data"
	case GroupSymbol:
		return "symbol"
	}
	return "unknown"
}

type trait uint8

const (
	traitNormal trait = 1 << iota
	traitNoSubject
	traitFlag
	traitObject
)

type actSpec struct {
	name     string
	aliases  []string
	category string
	group    Group
	traits   trait
}

// actTable is the single source of act metadata; renderers must not keep their own lists.
var actTable = [actCount]actSpec{
	ActNone:       {"NONE", []string{"none"}, "なし", GroupControl, 0},
	ActDo:         {"DO", []string{"do"}, "行動", GroupPerson, traitNormal},
	ActBe:         {"BE", []string{"be"}, "いる", GroupPerson, traitNormal},
	ActCome:       {"COME", []string{"come"}, "来る", GroupPerson, traitNormal},
	ActGo:         {"GO", []string{"go"}, "行く", GroupPerson, traitNormal},
	ActFace:       {"FACE", []string{"face"}, "表情", GroupPerson, traitNormal},
	ActWear:       {"WEAR", []string{"wear"}, "衣装", GroupPerson, traitNormal},
	ActFeel:       {"FEEL", []string{"feel"}, "感情", GroupPerson, traitNormal},
	ActDiscard:    {"DISCARD", []string{"discard", "dis"}, "廃棄", GroupObject, traitNormal},
	ActHave:       {"HAVE", []string{"have"}, "持つ", GroupObject, traitNormal},
	ActPut:        {"PUT", []string{"put"}, "設置", GroupObject, traitObject},
	ActRid:        {"RID", []string{"rid"}, "削除", GroupObject, traitObject},
	ActDraw:       {"DRAW", []string{"draw"}, "描画", GroupView, traitNormal},
	ActExplain:    {"EXPLAIN", []string{"explain"}, "説明", GroupView, traitNormal},
	ActSky:        {"SKY", []string{"sky"}, "空", GroupView, traitNoSubject},
	ActLight:      {"LIGHT", []string{"light"}, "光量", GroupView, traitNoSubject},
	ActTalk:       {"TALK", []string{"talk"}, "会話", GroupDialogue, traitNormal},
	ActThink:      {"THINK", []string{"think"}, "思考", GroupDialogue, traitNormal},
	ActVoice:      {"VOICE", []string{"voice"}, "音声", GroupDialogue, traitNormal},
	ActKnow:       {"KNOW", []string{"know"}, "知る", GroupInfo, traitNormal},
	ActPromise:    {"PROMISE", []string{"promise", "prom"}, "約束", GroupInfo, traitNormal},
	ActRemember:   {"REMEMBER", []string{"remember", "rem"}, "想起", GroupInfo, traitNormal},
	ActState:      {"STATE", []string{"state"}, "状態", GroupInfo, 0},
	ActPlot:       {"PLOT", []string{"plot"}, "ＰＬ", GroupData, traitNoSubject},
	ActForeshadow: {"FORESHADOW", []string{"foreshadow", "FS"}, "伏線", GroupData, traitFlag},
	ActPayoff:     {"PAYOFF", []string{"payoff", "PO"}, "回収", GroupData, traitFlag},
	ActTitle:      {"TITLE", []string{"title"}, "ＴＴ", GroupSymbol, 0},
	ActNote:       {"NOTE", []string{"note"}, "備考", GroupSymbol, traitNoSubject},
	ActMark:       {"MARK", []string{"mark"}, "記号", GroupSymbol, traitNoSubject},
	ActBR:         {"BR", []string{"br"}, "改行", GroupSymbol, 0},
	ActSame:       {"SAME", []string{"same", "-"}, "同じ", GroupControl, 0},
}

var aliasIndex = func() map[string]ActType {
	m := make(map[string]ActType, 48)
	for i := range actTable {
		for _, a := range actTable[i].aliases {
			m[a] = ActType(i)
		}
	}
	return m
}()

// ActTypeOf resolves a source token to its act. Matching is exact and case-sensitive.
// An empty token means SAME; an unknown token yields ActNone and false.
func ActTypeOf(token string) (ActType, bool) {
	if token == "" {
		return ActSame, true
	}
	if t, ok := aliasIndex[token]; ok {
		return t, true
	}
	return ActNone, false
}

// AllActTypes returns every act in declaration order.
func AllActTypes() []ActType {
	out := make([]ActType, 0, actCount)
	for i := ActType(0); i < actCount; i++ {
		out = append(out, i)
	}
	return out
}

func (t ActType) valid() bool { return t >= 0 && t < actCount }

func (t ActType) String() string {
	if !t.valid() {
		return "UNKNOWN"
	}
	return actTable[t].name
}

// Aliases returns a copy of the source tokens accepted for t.
func (t ActType) Aliases() []string {
	if !t.valid() {
		return nil
	}
	return append([]string(nil), actTable[t].aliases...)
}

// Category is the short Japanese label used in tables and beat sheets.
func (t ActType) Category() string {
	if !t.valid() {
		return ""
	}
	return actTable[t].category
}

func (t ActType) Group() Group {
	if !t.valid() {
		return GroupControl
	}
	return actTable[t].group
}

func (t ActType) has(tr trait) bool { return t.valid() && actTable[t].traits&tr != 0 }

// IsNormal reports whether t is a beat kind that appears in struct output.
func (t ActType) IsNormal() bool { return t.has(traitNormal) }

// IsNoSubject reports whether t is written without a subject, e.g. [sky:clear].
func (t ActType) IsNoSubject() bool { return t.has(traitNoSubject) }

func (t ActType) IsFlag() bool { return t.has(traitFlag) }

func (t ActType) IsObject() bool { return t.has(traitObject) }
