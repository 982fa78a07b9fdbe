/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"gostorybuilder/internal/render"
)

// PDFOptions controls PDF export.
//
// Pages are A5 in millimetres. The text area is divided into Columns fullwidth
// characters per line and Rows lines per page, the manuscript grid also used
// by the counter. Lines longer than a row wrap; Markdown comment lines are
// dropped and breaklines become rules.
type PDFOptions struct {
	Title    string
	Author   string
	Columns  int
	Rows     int
	FontFile string // UTF-8 TTF; without one the core Helvetica font is used
	Margin   float64
}

const (
	a5Width       = 148.0
	a5Height      = 210.0
	defaultMargin = 15.0
	mmPerPt       = 25.4 / 72.0
	bodyFont      = "body"
)

// Line is one laid-out row of a page.
type Line struct {
	Text    string
	Rule    bool
	Heading bool
}

// Paginate lays frags out on a columns×rows grid and returns the pages.
func Paginate(frags render.Fragments, columns, rows int) [][]Line {
	if columns <= 0 || rows <= 0 {
		return nil
	}
	var rowsOut []Line
	inComment := false
	for _, raw := range strings.Split(strings.Join(frags, ""), "\n") {
		trimmed := strings.TrimSpace(raw)
		if inComment || strings.HasPrefix(trimmed, "<!--") {
			inComment = !strings.Contains(trimmed, "-->")
			continue
		}
		switch {
		case strings.HasPrefix(trimmed, "---"), strings.HasPrefix(trimmed, "==="):
			rowsOut = append(rowsOut, Line{Rule: true})
			continue
		case strings.HasPrefix(trimmed, "#"):
			rowsOut = append(rowsOut, Line{Text: strings.TrimSpace(strings.TrimLeft(trimmed, "#")), Heading: true})
			continue
		}
		for _, w := range wrapWidth(raw, columns*2) {
			rowsOut = append(rowsOut, Line{Text: w})
		}
	}
	var pages [][]Line
	for len(rowsOut) > 0 {
		n := min(rows, len(rowsOut))
		pages = append(pages, rowsOut[:n])
		rowsOut = rowsOut[n:]
	}
	return pages
}

// wrapWidth splits s into chunks of at most width display cells. An empty s
// yields one empty row.
func wrapWidth(s string, width int) []string {
	if s == "" {
		return []string{""}
	}
	var out []string
	var cur strings.Builder
	used := 0
	for _, r := range s {
		w := render.DisplayWidth(string(r))
		if used+w > width && used > 0 {
			out = append(out, cur.String())
			cur.Reset()
			used = 0
		}
		cur.WriteRune(r)
		used += w
	}
	return append(out, cur.String())
}

// PDF writes frags to outPath as a paginated A5 document.
func PDF(frags render.Fragments, outPath string, opt PDFOptions) error {
	if len(frags) == 0 {
		return errors.New("nothing to export")
	}
	if opt.Columns <= 0 {
		opt.Columns = 20
	}
	if opt.Rows <= 0 {
		opt.Rows = 20
	}
	if opt.Margin <= 0 {
		opt.Margin = defaultMargin
	}
	pages := Paginate(frags, opt.Columns, opt.Rows)

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "mm",
		Size:    gofpdf.SizeType{Wd: a5Width, Ht: a5Height},
	})
	pdf.SetMargins(opt.Margin, opt.Margin, opt.Margin)
	pdf.SetAutoPageBreak(false, opt.Margin)
	if opt.Title != "" {
		pdf.SetTitle(opt.Title, true)
	}
	if opt.Author != "" {
		pdf.SetAuthor(opt.Author, true)
	}

	family := "Helvetica"
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if opt.FontFile != "" {
		if _, err := os.Stat(opt.FontFile); err != nil {
			return fmt.Errorf("font file: %w", err)
		}
		pdf.AddUTF8Font(bodyFont, "", opt.FontFile)
		family = bodyFont
		tr = func(s string) string { return s }
	}

	cellW := (a5Width - 2*opt.Margin) / float64(opt.Columns)
	lineH := (a5Height - 2*opt.Margin) / float64(opt.Rows)
	fontPt := min(cellW, lineH*0.8) / mmPerPt

	for _, pg := range pages {
		pdf.AddPage()
		y := opt.Margin
		for _, ln := range pg {
			switch {
			case ln.Rule:
				pdf.SetLineWidth(0.2)
				pdf.Line(opt.Margin, y+lineH/2, a5Width-opt.Margin, y+lineH/2)
			case ln.Text != "":
				size := fontPt
				if ln.Heading {
					size = fontPt * 1.1
				}
				pdf.SetFont(family, "", size)
				pdf.Text(opt.Margin, y+lineH*0.8, tr(ln.Text))
			}
			y += lineH
		}
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("layout pdf: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
