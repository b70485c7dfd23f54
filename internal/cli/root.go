/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package cli implements the bulkimage command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"bulkimage/internal/backend"
	"bulkimage/internal/config"
	"bulkimage/internal/crash"
	"bulkimage/internal/domain"
	applog "bulkimage/internal/log"
	"bulkimage/internal/session"
	"bulkimage/internal/storage"
	"bulkimage/internal/telemetry"
	"bulkimage/internal/version"
)

// env is the per-invocation state shared by subcommands. Workspace, client
// and session are opened lazily by commands that need them.
type env struct {
	cfg   config.AppConfig
	token string
	log   *slog.Logger

	workspaceFlag string
	backendFlag   string

	root   string
	ws     *storage.Workspace
	client *backend.Client
	sess   *session.Session
	tel    *telemetry.Client
	crash  *crash.Target
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRoot()
	return cmd
}

// Execute runs the command tree through fang. A panic is turned into a crash
// report and an autosave of the current project.
func Execute(ctx context.Context) error {
	root, e := newRoot()
	defer crash.Recover(e.crash)
	// post-run hooks are skipped when a command fails
	defer e.close()
	return fang.Execute(ctx, root,
		fang.WithVersion(version.String()),
		fang.WithNotifySignal(os.Interrupt),
	)
}

func newRoot() (*cobra.Command, *env) {
	e := &env{}
	e.crash = &crash.Target{State: func() (*domain.Project, domain.Phase) {
		if e.sess == nil {
			return nil, domain.PhaseInput
		}
		st := e.sess.State()
		return st.Project, st.Phase
	}}
	cmd := &cobra.Command{
		Use:   "bulkimage",
		Short: "Bulk product image processing client",
		Long: `bulkimage drives the Project Service workflow for a batch of products:
enter product names or images, generate candidate images, choose or upload one
per product, then process and download the results.

The current project is cached in the workspace so each command picks up where
the previous one left off.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return e.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) { e.close() },
	}
	cmd.PersistentFlags().StringVarP(&e.workspaceFlag, "workspace", "w", "", "workspace directory holding the local cache (default: config or current dir)")
	cmd.PersistentFlags().StringVar(&e.backendFlag, "backend", "", "Project Service base URL (overrides config)")

	cmd.AddCommand(
		newNewCmd(e),
		newGenerateCmd(e),
		newStatusCmd(e),
		newRefreshCmd(e),
		newSelectCmd(e),
		newUploadCmd(e),
		newProcessCmd(e),
		newDownloadCmd(e),
		newExportPDFCmd(e),
		newHistoryCmd(e),
		newConfigCmd(e),
		newDevserverCmd(e),
		newUICmd(e),
		newVersionCmd(),
	)
	return cmd, e
}

func (e *env) init(cmd *cobra.Command) error {
	cfg, token, err := config.Load()
	e.cfg, e.token = cfg, token
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
		Console:   cmd.ErrOrStderr(),
	})
	e.log = applog.WithComponent("cli")
	if err != nil {
		e.log.Warn("config file ignored", slog.Any("err", err))
	}
	if e.backendFlag != "" {
		e.cfg.Backend.BaseURL = e.backendFlag
	}
	if e.workspaceFlag != "" {
		e.cfg.Workspace.Dir = e.workspaceFlag
	}
	return nil
}

// open prepares the workspace, backend client and session and restores the
// cached project.
func (e *env) open(ctx context.Context) error {
	if e.sess != nil {
		return nil
	}
	root, err := e.cfg.Workspace.WorkspaceRoot()
	if err != nil {
		return fmt.Errorf("resolve workspace: %w", err)
	}
	ws, err := storage.OpenWorkspace(ctx, root)
	if err != nil {
		return fmt.Errorf("open workspace: %w", err)
	}
	tcfg := telemetry.FromEnv()
	tcfg.OptIn = tcfg.OptIn || e.cfg.General.TelemetryOptIn
	e.tel = telemetry.New(tcfg)
	telemetry.SetDefault(e.tel)

	e.root, e.ws = root, ws
	e.crash.Root = root
	e.client = backend.New(backend.Options{
		BaseURL:     e.cfg.Backend.BaseURL,
		Token:       e.token,
		Timeout:     e.cfg.Backend.Timeout(),
		InsecureTLS: e.cfg.Backend.TLSInsecure,
		Strict:      e.cfg.Backend.Strict,
	})
	e.sess = session.New(session.Options{
		API:           e.client,
		Store:         ws,
		Events:        e.tel,
		KeepSnapshots: e.cfg.Workspace.KeepSnapshots,
	})
	if _, err := e.sess.Resume(ctx); err != nil {
		e.log.Warn("resume failed", slog.Any("err", err))
	}
	return nil
}

// current opens the session and requires a cached project.
func (e *env) current(ctx context.Context) (*domain.Project, error) {
	if err := e.open(ctx); err != nil {
		return nil, err
	}
	p := e.sess.Current()
	if p == nil {
		return nil, fmt.Errorf("%w: run 'bulkimage new' first", session.ErrNoProject)
	}
	return p, nil
}

// close releases what open acquired. It is safe to call more than once.
func (e *env) close() {
	if e.tel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		e.tel.Flush(ctx)
		cancel()
		e.tel.Close()
		e.tel = nil
	}
	if e.ws != nil {
		if err := e.ws.Close(); err != nil && e.log != nil {
			e.log.Warn("close workspace failed", slog.Any("err", err))
		}
		e.ws = nil
	}
	_ = applog.Close()
}

// progress runs fn while a one-line message is shown on w.
func progress(w io.Writer, fn func() error) error {
	_, _ = fmt.Fprintln(w, "Processing your images...")
	return fn()
}

// describe turns a backend failure into a one-line message with the request detail.
func describe(err error) error {
	var re *backend.RequestError
	if errors.As(err, &re) {
		return fmt.Errorf("%w: %s %s returned %d", err, re.Method, re.Path, re.Status)
	}
	return err
}
