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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"bulkimage/internal/export"
)

func newDownloadCmd(e *env) *cobra.Command {
	var parallel int
	cmd := &cobra.Command{
		Use:   "download <dir>",
		Short: "Download every processed image into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := e.current(ctx); err != nil {
				return err
			}
			e.sess.Refresh(ctx)
			p := e.sess.Current()
			res, err := export.DownloadFinals(ctx, e.client, p, args[0], parallel)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range res.Downloaded {
				fmt.Fprintf(out, "saved   %s\n", d.Path)
			}
			for _, s := range res.Skipped {
				reason := "not processed"
				if s.Err != nil && !errors.Is(s.Err, export.ErrNoFinalImage) {
					reason = describe(s.Err).Error()
				}
				fmt.Fprintf(out, "skipped %s (%s)\n", s.Name, reason)
			}
			fmt.Fprintf(out, "%d saved, %d skipped\n", len(res.Downloaded), len(res.Skipped))
			return nil
		},
	}
	cmd.Flags().IntVarP(&parallel, "parallel", "p", export.DefaultParallel, "concurrent downloads")
	return cmd
}

func newExportPDFCmd(e *env) *cobra.Command {
	var (
		title    string
		noImages bool
	)
	cmd := &cobra.Command{
		Use:   "export-pdf <file>",
		Short: "Write a PDF contact sheet of the current project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := e.current(ctx); err != nil {
				return err
			}
			e.sess.Refresh(ctx)
			p := e.sess.Current()
			var downloads map[string]string
			if !noImages {
				tmp, err := os.MkdirTemp("", "bulkimage-pdf-")
				if err != nil {
					return err
				}
				defer func() { _ = os.RemoveAll(tmp) }()
				res, err := export.DownloadFinals(ctx, e.client, p, tmp, 0)
				if err != nil {
					return err
				}
				downloads = res.ByCard()
			}
			out, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if err := export.ProjectPDF(p, downloads, out, export.PDFOptions{Title: title, NoImages: noImages}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "document title (default: project name)")
	cmd.Flags().BoolVar(&noImages, "no-images", false, "skip downloading and embedding final images")
	return cmd
}
