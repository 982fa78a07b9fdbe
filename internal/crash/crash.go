/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic in the CLI into a crash report file.
package crash

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "gostorybuilder/internal/log"
	"gostorybuilder/internal/storage"
	"gostorybuilder/internal/telemetry"
	"gostorybuilder/internal/version"
)

// DirName is the crash report folder below the project's index dir.
const DirName = "crash"

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// uploader is replaced in tests.
var uploader = func() *telemetry.Client { return telemetry.Default() }

// Recover captures a panic, logs it with its stack, writes a report under
// <root>/.gsb/crash (or the temp dir when root is empty) and exits with code 2.
// The report is uploaded when the user opted in to crash uploads.
//
// Usage: defer crash.Recover(root)
func Recover(root string) {
	if r := recover(); r != nil {
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		report := formatReport(root, r, stack)
		reportPath, err := writeReport(root, report)
		if err != nil {
			l.Error("write crash report failed", slog.Any("err", err))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := uploader().UploadCrash(ctx, report); err != nil {
			l.Warn("crash upload failed", slog.Any("err", err))
		}
		cancel()

		if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
			l.Error("failed to write crash message to stderr", slog.Any("err", err))
		}
		if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
			l.Error("failed to write version info to stderr", slog.Any("err", err))
		}
		exitFn(2)
	}
}

// ReportDir returns where reports for root are written.
func ReportDir(root string) string {
	if root == "" {
		return os.TempDir()
	}
	return filepath.Join(root, storage.IndexDirName, DirName)
}

func formatReport(root string, panicVal any, stack []byte) []byte {
	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "GoStoryBuilder Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if root != "" {
		_, _ = fmt.Fprintf(&buf, "ProjectRoot: %s\n", root)
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))
	return buf.Bytes()
}

func writeReport(root string, report []byte) (string, error) {
	dir := ReportDir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	stamp := time.Now().Format("20060102-150405.000")
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", stamp))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()
	if _, err := f.Write(report); err != nil {
		return path, err
	}
	_ = f.Sync()
	return path, nil
}
