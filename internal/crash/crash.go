/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a report file, an optional telemetry upload
// and an autosave of the current project before exiting.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"bulkimage/internal/domain"
	applog "bulkimage/internal/log"
	"bulkimage/internal/storage"
	"bulkimage/internal/telemetry"
	"bulkimage/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Target names the workspace and the state to autosave when a panic is
// recovered. A nil Target or empty Root writes the report to the temp dir only.
type Target struct {
	Root  string
	State func() (*domain.Project, domain.Phase)
}

// Recover captures a panic, logs it with a stacktrace, writes a report and
// attempts an autosave of the current project, then exits with code 2.
//
// Usage: defer crash.Recover(target)
func Recover(t *Target) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	var project *domain.Project
	var phase domain.Phase
	if t != nil && t.State != nil {
		project, phase = t.State()
	}
	reportPath, err := writeReport(t, project, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	if t != nil && t.Root != "" && project != nil {
		if path, err := storage.AutosaveCrashSnapshot(t.Root, project, phase); err != nil {
			l.Error("autosave crash snapshot failed", slog.Any("err", err))
		} else {
			l.Info("autosave crash snapshot written", slog.String("path", path))
		}
	}

	if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
		l.Error("failed to write crash message to stderr", slog.Any("err", err))
	}
	if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
		l.Error("failed to write version info to stderr", slog.Any("err", err))
	}
	exitFn(2)
}

func writeReport(t *Target, p *domain.Project, panicVal any, stack []byte) (string, error) {
	dir := os.TempDir()
	if t != nil && t.Root != "" {
		dir = filepath.Join(t.Root, storage.BackupsDirName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			dir = os.TempDir()
		}
	}
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", time.Now().Format("20060102-150405.000")))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "bulkimage Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if t != nil && t.Root != "" {
		_, _ = fmt.Fprintf(&buf, "Workspace: %s\n", t.Root)
	}
	if p != nil {
		_, _ = fmt.Fprintf(&buf, "Project: %s (%d cards)\n", p.ID, len(p.Cards))
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if err := storage.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return path, err
	}
	// optionally upload the report (opt-in via env)
	telemetry.Default().UploadCrash(buf.Bytes())
	return path, nil
}
