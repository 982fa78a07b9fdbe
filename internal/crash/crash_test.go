/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gostorybuilder/internal/telemetry"
)

func TestWriteReportCreatesFileInTemp(t *testing.T) {
	path, err := writeReport("", formatReport("", "boom", []byte("stacktrace")))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.HasPrefix(s, "GoStoryBuilder Crash Report\n") {
		t.Fatalf("report header missing: %s", s)
	}
	if !strings.Contains(s, "Panic: boom") || !strings.Contains(s, "stacktrace") {
		t.Fatalf("panic content missing: %s", s)
	}
	if strings.Contains(s, "ProjectRoot:") {
		t.Fatalf("no project root expected: %s", s)
	}
}

func TestWriteReportCreatesFileInProject(t *testing.T) {
	root := t.TempDir()
	path, err := writeReport(root, formatReport(root, "kaboom", []byte("stack")))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(root, ".gsb", "crash") {
		t.Fatalf("expected crash report under .gsb/crash, got %s", path)
	}
	b, _ := os.ReadFile(path)
	if !strings.Contains(string(b), "ProjectRoot: "+root) {
		t.Fatalf("project root missing: %s", b)
	}
}

func silenceStderr(t *testing.T) {
	t.Helper()
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(io.Discard, r)
		close(done)
	}()
	t.Cleanup(func() {
		_ = w.Close()
		<-done
		os.Stderr = oldStderr
	})
}

// TestRecoverWritesReportAndExits ensures Recover handles a panic, writes a report,
// uploads it when enabled and does not terminate the test process.
func TestRecoverWritesReportAndExits(t *testing.T) {
	silenceStderr(t)

	var mu sync.Mutex
	var uploaded []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		uploaded = b
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	client := telemetry.New(telemetry.Config{OptIn: true, CrashURL: srv.URL, Timeout: time.Second})
	defer client.Close()
	oldUploader := uploader
	uploader = func() *telemetry.Client { return client }
	defer func() { uploader = oldUploader }()

	called := 0
	oldExit := exitFn
	exitFn = func(code int) { called = code }
	defer func() { exitFn = oldExit }()

	root := t.TempDir()
	func() {
		defer Recover(root)
		panic("boom")
	}()

	files, _ := os.ReadDir(ReportDir(root))
	var found string
	for _, f := range files {
		if strings.HasPrefix(f.Name(), "crash-") && strings.HasSuffix(f.Name(), ".log") {
			found = filepath.Join(ReportDir(root), f.Name())
			break
		}
	}
	if found == "" {
		t.Fatalf("expected crash report file under %s", ReportDir(root))
	}
	b, err := os.ReadFile(found)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !bytes.Contains(b, []byte("Panic: boom")) {
		t.Fatalf("report does not contain panic: %s", string(b))
	}
	if called != 2 {
		t.Fatalf("expected exit code 2, got %d", called)
	}
	mu.Lock()
	defer mu.Unlock()
	if !bytes.Equal(uploaded, b) {
		t.Fatalf("uploaded report differs from file")
	}
}

func TestRecoverWithoutPanicIsNoop(t *testing.T) {
	called := false
	oldExit := exitFn
	exitFn = func(int) { called = true }
	defer func() { exitFn = oldExit }()
	func() {
		defer Recover(t.TempDir())
	}()
	if called {
		t.Fatalf("exit must not be called without a panic")
	}
}
