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
	"os"
	"strings"

	"github.com/spf13/cobra"

	"bulkimage/internal/imaging"
	"bulkimage/internal/session"
	"bulkimage/internal/workflow"
)

func newNewCmd(e *env) *cobra.Command {
	var (
		text     string
		textFile string
		images   []string
		fresh    bool
	)
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Submit product names and images as a new batch",
		Long: `Submit product names (one per line or comma separated) and/or images with
product names. A project is created when none is cached; otherwise the input is
parsed into the cached project. Use --fresh to start a new project.`,
		Example: `  bulkimage new --text "Red mug, Blue mug"
  bulkimage new --text-file products.txt --image label1.jpg --image label2.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if textFile != "" {
				b, err := os.ReadFile(textFile)
				if err != nil {
					return fmt.Errorf("read text file: %w", err)
				}
				text = strings.TrimSpace(text + "\n" + string(b))
			}
			form := workflow.InputForm{RawText: text}
			for _, path := range images {
				u, err := imaging.LoadUpload(path)
				if err != nil {
					return err
				}
				form.Images = append(form.Images, u)
			}
			if err := form.Validate(); err != nil {
				return err
			}
			if err := e.open(ctx); err != nil {
				return err
			}
			if fresh {
				if err := e.sess.Reset(); err != nil {
					return err
				}
			}
			err := progress(cmd.ErrOrStderr(), func() error {
				_, err := form.Submit(ctx, e.sess)
				return err
			})
			if err != nil {
				return describe(err)
			}
			printState(cmd.OutOrStdout(), e.sess.State())
			return nil
		},
	}
	cmd.Flags().StringVarP(&text, "text", "t", "", "product names, one per line or comma separated")
	cmd.Flags().StringVar(&textFile, "text-file", "", "read product names from a file")
	cmd.Flags().StringArrayVarP(&images, "image", "i", nil, "image with a product name (jpeg, png or webp; repeatable)")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "forget the cached project and create a new one")
	return cmd
}

func newGenerateCmd(e *env) *cobra.Command {
	var count int
	var size string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Search images for every card that still needs them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, err := e.current(ctx); err != nil {
				return err
			}
			opts := session.GenerateOptions{CountPerProduct: e.cfg.Generate.ImagesPerProduct, Size: e.cfg.Generate.ImageSize}
			if cmd.Flags().Changed("count") {
				opts.CountPerProduct = count
			}
			if cmd.Flags().Changed("size") {
				opts.Size = size
			}
			st := e.sess.State()
			if !workflow.CanGenerate(st.Phase, st.Cards()) {
				return fmt.Errorf("nothing to generate in %s phase: %w", st.Phase, session.ErrNotAllowed)
			}
			err := progress(cmd.ErrOrStderr(), func() error {
				ack, err := e.sess.GenerateImages(ctx, opts)
				if err == nil && ack.Message() != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), ack.Message())
				}
				return err
			})
			if err != nil {
				return describe(err)
			}
			printState(cmd.OutOrStdout(), e.sess.State())
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 5, "images per product (1-50)")
	cmd.Flags().StringVar(&size, "size", "medium", "image size: small, medium or large")
	return cmd
}

func newProcessCmd(e *env) *cobra.Command {
	var (
		removeBG bool
		addBG    bool
		format   string
	)
	cmd := &cobra.Command{
		Use:     "process",
		Aliases: []string{"save"},
		Short:   "Save selections and process every card with a chosen image",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, err := e.current(ctx); err != nil {
				return err
			}
			opts := session.ProcessOptions{
				RemoveBackground: e.cfg.Process.RemoveBackground,
				AddBackground:    e.cfg.Process.AddBackground,
				Format:           e.cfg.Process.OutputFormat,
			}
			if cmd.Flags().Changed("remove-background") {
				opts.RemoveBackground = removeBG
			}
			if cmd.Flags().Changed("add-background") {
				opts.AddBackground = addBG
			}
			if cmd.Flags().Changed("format") {
				opts.Format = format
			}
			st := e.sess.State()
			if !workflow.CanProcess(st.Phase, st.Cards()) {
				return fmt.Errorf("select or upload an image for at least one card first: %w", session.ErrNotAllowed)
			}
			err := progress(cmd.ErrOrStderr(), func() error {
				ack, err := e.sess.SaveAndProcess(ctx, opts)
				if err == nil && ack.Message() != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), ack.Message())
				}
				return err
			})
			if err != nil {
				return describe(err)
			}
			printState(cmd.OutOrStdout(), e.sess.State())
			return nil
		},
	}
	cmd.Flags().BoolVar(&removeBG, "remove-background", true, "remove the original background")
	cmd.Flags().BoolVar(&addBG, "add-background", true, "add a generated background")
	cmd.Flags().StringVar(&format, "format", "png", "output format: png, jpg, jpeg or webp")
	return cmd
}

func newRefreshCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Re-fetch the cached project from the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, err := e.current(ctx); err != nil {
				return err
			}
			if !e.sess.Refresh(ctx) {
				fmt.Fprintln(cmd.ErrOrStderr(), "refresh failed; showing cached project")
			}
			printState(cmd.OutOrStdout(), e.sess.State())
			return nil
		},
	}
}

func newSelectCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "select <card-id> <option-id>",
		Short: "Choose one of a card's image options",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := e.current(ctx); err != nil {
				return err
			}
			if err := e.sess.SelectImage(ctx, args[0], args[1]); err != nil {
				return describe(err)
			}
			if c, ok := e.sess.Current().Card(args[0]); ok {
				printCard(cmd.OutOrStdout(), c, e.sess.Phase())
			}
			return nil
		},
	}
}

func newUploadCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <card-id> <file>",
		Short: "Use a custom image for a card",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			img, err := imaging.LoadUpload(args[1])
			if err != nil {
				return err
			}
			if _, err := e.current(ctx); err != nil {
				return err
			}
			if err := e.sess.UploadImage(ctx, args[0], img); err != nil {
				return describe(err)
			}
			if c, ok := e.sess.Current().Card(args[0]); ok {
				printCard(cmd.OutOrStdout(), c, e.sess.Phase())
			}
			return nil
		},
	}
}
