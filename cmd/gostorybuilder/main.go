/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"gostorybuilder/internal/config"
	"gostorybuilder/internal/crash"
	applog "gostorybuilder/internal/log"
	"gostorybuilder/internal/version"
)

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "GoStoryBuilder: story markup compiler")
	_, _ = fmt.Fprintf(w, "Version: %s\n", version.String())
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  gostorybuilder build|b [-o -p -t -s -n -i -r --comment] [dir]  Build artifacts (all targets without flags)")
	_, _ = fmt.Fprintln(w, "  gostorybuilder init|i [dir]                                   Create a project skeleton")
	_, _ = fmt.Fprintln(w, "  gostorybuilder search [-act A -subject S -scene T] [dir] <text> Search the last build")
	_, _ = fmt.Fprintln(w, "  gostorybuilder export [-preset P] [dir] <pdf|epub> <target>    Export a built artifact")
	_, _ = fmt.Fprintln(w, "  gostorybuilder publish [dir]                                  Build and publish to the shared index")
	_, _ = fmt.Fprintln(w, "  gostorybuilder version|-v|--version                           Show version")
}

func main() {
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	defer crash.Recover("")

	cfg, password, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "Warning: config:", err)
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
		Writer:    stderr,
	})
	l := applog.WithComponent("cli")
	l.Debug("start", slog.Int("args", len(args)))

	if len(args) == 0 {
		usage(stdout)
		return 0
	}
	env := cliEnv{cfg: cfg, password: password, stdout: stdout, stderr: stderr}
	switch args[0] {
	case "version", "--version", "-v":
		_, _ = fmt.Fprintln(stdout, "GoStoryBuilder")
		_, _ = fmt.Fprintln(stdout, version.String())
		return 0
	case "build", "b":
		return env.cmdBuild(args[1:])
	case "init", "i":
		return env.cmdInit(args[1:])
	case "search":
		return env.cmdSearch(args[1:])
	case "export":
		return env.cmdExport(args[1:])
	case "publish":
		return env.cmdPublish(args[1:])
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	}
	_, _ = fmt.Fprintf(stderr, "unknown command %q\n", args[0])
	usage(stderr)
	return 2
}
