/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"gostorybuilder/internal/render"
)

// EPUBOptions controls EPUB export.
type EPUBOptions struct {
	Title       string
	Author      string
	Language    string // e.g. "ja"
	Publisher   string
	Description string
	Identifier  string // defaults to a random urn:uuid
	Vertical    bool   // vertical-rl writing and right-to-left page progression
}

// Chapter is one spine document of the package.
type Chapter struct {
	Title    string
	Markdown string
}

// SplitChapters cuts Markdown into chapters at top-level "# " headings. Text
// before the first heading becomes a chapter titled lead when non-blank.
func SplitChapters(md, lead string) []Chapter {
	var out []Chapter
	cur := Chapter{Title: lead}
	var body strings.Builder
	flush := func() {
		cur.Markdown = body.String()
		if strings.TrimSpace(cur.Markdown) != "" {
			out = append(out, cur)
		}
		body.Reset()
	}
	for _, ln := range strings.SplitAfter(md, "\n") {
		if strings.HasPrefix(ln, "# ") {
			flush()
			cur = Chapter{Title: strings.TrimSpace(strings.TrimPrefix(ln, "# "))}
		}
		body.WriteString(ln)
	}
	flush()
	return out
}

var markdown = goldmark.New(goldmark.WithRendererOptions(html.WithXHTML(), html.WithHardWraps()))

// EPUB writes frags to outPath as an EPUB 3 reflowable package.
func EPUB(frags render.Fragments, outPath string, opt EPUBOptions) error {
	if opt.Language == "" {
		opt.Language = "ja"
	}
	if opt.Title == "" {
		opt.Title = strings.TrimSuffix(filepath.Base(outPath), filepath.Ext(outPath))
	}
	if opt.Identifier == "" {
		opt.Identifier = "urn:uuid:" + uuid.NewString()
	}
	chapters := SplitChapters(strings.Join(frags, ""), opt.Title)
	if len(chapters) == 0 {
		return errors.New("nothing to export")
	}
	if !strings.HasSuffix(strings.ToLower(outPath), ".epub") {
		outPath += ".epub"
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create epub: %w", err)
	}
	defer func() { _ = f.Close() }()
	zw := zip.NewWriter(f)

	// mimetype must come first and uncompressed
	if err := addStoredZipFile(zw, "mimetype", []byte("application/epub+zip")); err != nil {
		_ = zw.Close()
		return fmt.Errorf("write mimetype: %w", err)
	}
	containerXML := "" +
		"<?xml version=\"1.0\" encoding=\"utf-8\"?>\n" +
		"<container version=\"1.0\" xmlns=\"urn:oasis:names:tc:opendocument:xmlns:container\">\n" +
		"  <rootfiles>\n" +
		"    <rootfile full-path=\"OEBPS/content.opf\" media-type=\"application/oebps-package+xml\"/>\n" +
		"  </rootfiles>\n" +
		"</container>\n"
	if err := addZipFile(zw, "META-INF/container.xml", []byte(containerXML)); err != nil {
		_ = zw.Close()
		return fmt.Errorf("write container.xml: %w", err)
	}

	css := "body { margin: 0 1em; line-height: 1.8; }\n" +
		"p { margin: 0; text-indent: 0; }\n" +
		"hr { border: none; border-top: 1px solid #888; }\n"
	if opt.Vertical {
		css += "html { writing-mode: vertical-rl; -epub-writing-mode: vertical-rl; }\n"
	}
	if err := addZipFile(zw, "OEBPS/styles/book.css", []byte(css)); err != nil {
		_ = zw.Close()
		return fmt.Errorf("write css: %w", err)
	}

	pad := 1
	if n := len(chapters); n >= 100 {
		pad = 3
	} else if n >= 10 {
		pad = 2
	}
	ids := make([]string, 0, len(chapters))
	navBuf := &bytes.Buffer{}
	navBuf.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	navBuf.WriteString("<html xmlns=\"http://www.w3.org/1999/xhtml\" xmlns:epub=\"http://www.idpf.org/2007/ops\">\n<head><title>Table of Contents</title></head>\n<body>\n")
	navBuf.WriteString("<nav epub:type=\"toc\" id=\"toc\"><ol>\n")

	body := &bytes.Buffer{}
	for i, ch := range chapters {
		body.Reset()
		if err := markdown.Convert([]byte(ch.Markdown), body); err != nil {
			_ = zw.Close()
			return fmt.Errorf("convert chapter %d: %w", i+1, err)
		}
		id := fmt.Sprintf("chap-%0*d", pad, i+1)
		ids = append(ids, id)
		page := fmt.Sprintf("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n"+
			"<html xmlns=\"http://www.w3.org/1999/xhtml\" xml:lang=\"%s\">\n<head>\n"+
			"<meta charset=\"utf-8\"/>\n"+
			"<title>%s</title>\n"+
			"<link rel=\"stylesheet\" type=\"text/css\" href=\"styles/book.css\"/>\n"+
			"</head>\n<body>\n%s</body>\n</html>\n", xmlEsc(opt.Language), xmlEsc(ch.Title), body.String())
		if err := addZipFile(zw, "OEBPS/"+id+".xhtml", []byte(page)); err != nil {
			_ = zw.Close()
			return fmt.Errorf("write chapter xhtml: %w", err)
		}
		fmt.Fprintf(navBuf, "<li><a href=\"%s.xhtml\">%s</a></li>\n", id, xmlEsc(ch.Title))
	}
	navBuf.WriteString("</ol></nav>\n</body>\n</html>\n")
	if err := addZipFile(zw, "OEBPS/nav.xhtml", navBuf.Bytes()); err != nil {
		_ = zw.Close()
		return fmt.Errorf("write nav.xhtml: %w", err)
	}

	ppd := "ltr"
	if opt.Vertical {
		ppd = "rtl"
	}
	mod := time.Now().UTC().Format("2006-01-02T15:04:05Z")
	manifest := &bytes.Buffer{}
	manifest.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	manifest.WriteString("<package version=\"3.0\" unique-identifier=\"pub-id\" xmlns=\"http://www.idpf.org/2007/opf\">\n")
	manifest.WriteString("  <metadata xmlns:dc=\"http://purl.org/dc/elements/1.1/\" xmlns:opf=\"http://www.idpf.org/2007/opf\">\n")
	fmt.Fprintf(manifest, "    <dc:identifier id=\"pub-id\">%s</dc:identifier>\n", xmlEsc(opt.Identifier))
	fmt.Fprintf(manifest, "    <dc:title>%s</dc:title>\n", xmlEsc(opt.Title))
	fmt.Fprintf(manifest, "    <dc:language>%s</dc:language>\n", xmlEsc(opt.Language))
	if strings.TrimSpace(opt.Author) != "" {
		fmt.Fprintf(manifest, "    <dc:creator>%s</dc:creator>\n", xmlEsc(opt.Author))
	}
	if strings.TrimSpace(opt.Publisher) != "" {
		fmt.Fprintf(manifest, "    <dc:publisher>%s</dc:publisher>\n", xmlEsc(opt.Publisher))
	}
	if strings.TrimSpace(opt.Description) != "" {
		fmt.Fprintf(manifest, "    <dc:description>%s</dc:description>\n", xmlEsc(opt.Description))
	}
	fmt.Fprintf(manifest, "    <meta property=\"dcterms:modified\">%s</meta>\n", mod)
	manifest.WriteString("  </metadata>\n")
	manifest.WriteString("  <manifest>\n")
	manifest.WriteString("    <item id=\"nav\" href=\"nav.xhtml\" media-type=\"application/xhtml+xml\" properties=\"nav\"/>\n")
	manifest.WriteString("    <item id=\"css\" href=\"styles/book.css\" media-type=\"text/css\"/>\n")
	for _, id := range ids {
		fmt.Fprintf(manifest, "    <item id=\"%s\" href=\"%s.xhtml\" media-type=\"application/xhtml+xml\"/>\n", id, id)
	}
	manifest.WriteString("  </manifest>\n")
	fmt.Fprintf(manifest, "  <spine page-progression-direction=\"%s\">\n", ppd)
	for _, id := range ids {
		fmt.Fprintf(manifest, "    <itemref idref=\"%s\"/>\n", id)
	}
	manifest.WriteString("  </spine>\n")
	manifest.WriteString("</package>\n")
	if err := addZipFile(zw, "OEBPS/content.opf", manifest.Bytes()); err != nil {
		_ = zw.Close()
		return fmt.Errorf("write content.opf: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

// addStoredZipFile writes an entry with STORE method (no compression), required for EPUB mimetype.
func addStoredZipFile(zw *zip.Writer, name string, data []byte) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Store}
	hdr.Modified = time.Now()
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func xmlEsc(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;").Replace(s)
}
