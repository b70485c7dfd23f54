/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"bulkimage/internal/devserver"
	"bulkimage/internal/session"
	"bulkimage/internal/ui"
	"bulkimage/internal/version"
)

func newDevserverCmd(_ *env) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run an in-memory stand-in for the Project Service",
		Long: `Run an in-memory stand-in for the Project Service for local UI work.
Product names are split from lines and commas, image search returns generated
placeholders and processing copies the chosen image. Nothing is persisted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return devserver.New().ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8000", "listen address")
	return cmd
}

func newUICmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Launch the desktop UI (build with -tags fyne)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.open(cmd.Context()); err != nil {
				return err
			}
			return ui.Run(ui.Options{
				Session:       e.sess,
				Media:         e.client,
				WorkspaceRoot: e.root,
				Generate:      session.GenerateOptions{CountPerProduct: e.cfg.Generate.ImagesPerProduct, Size: e.cfg.Generate.ImageSize},
				Process: session.ProcessOptions{
					RemoveBackground: e.cfg.Process.RemoveBackground,
					AddBackground:    e.cfg.Process.AddBackground,
					Format:           e.cfg.Process.OutputFormat,
				},
			})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bulkimage %s %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
