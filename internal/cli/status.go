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
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"bulkimage/internal/domain"
	"bulkimage/internal/session"
	"bulkimage/internal/workflow"
)

func printState(w io.Writer, st session.State) {
	if st.Project == nil {
		fmt.Fprintln(w, "No project yet. Run 'bulkimage new' to start.")
		return
	}
	g := workflow.Evaluate(st.Phase, st.Cards())
	fmt.Fprintf(w, "Project %s (%s)\n", st.Project.Name, st.Project.ID)
	fmt.Fprintf(w, "Phase:   %s\n", st.Phase)
	if !st.Phase.ShowsCards() {
		return
	}
	if g.Message != "" {
		fmt.Fprintln(w, g.Message)
	}
	actions := []string{}
	if g.CanGenerate {
		actions = append(actions, g.GenerateLabel+" (bulkimage generate)")
	}
	if g.CanProcess {
		actions = append(actions, "Save & Process (bulkimage process)")
	}
	for _, a := range actions {
		fmt.Fprintf(w, "  > %s\n", a)
	}
	fmt.Fprintf(w, "\nProduct Cards (%d)\n", len(st.Cards()))
	if len(st.Cards()) == 0 {
		fmt.Fprintln(w, workflow.EmptyGridMessage)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "CARD\tPRODUCT\tSTATUS\tIMAGES\tCHOSEN")
	for _, c := range st.Cards() {
		badge, _ := c.Status.Badge()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", c.ID, c.ProductName, badge, len(c.ImageOptions), dash(workflow.SelectionBadge(c)))
	}
	_ = tw.Flush()
}

func printCard(w io.Writer, c domain.ProductCard, phase domain.Phase) {
	badge, _ := c.Status.Badge()
	fmt.Fprintf(w, "%s  %s  [%s]\n", c.ID, c.ProductName, badge)
	if s := workflow.SelectionBadge(c); s != "" {
		fmt.Fprintf(w, "  %s: %s\n", s, workflow.MainImage(c))
	} else if u := workflow.MainImage(c); u != "" {
		fmt.Fprintf(w, "  Preview: %s\n", u)
	} else {
		fmt.Fprintf(w, "  No image selected. %s\n", workflow.PlaceholderHint(c))
	}
	if s := workflow.ImageCountLabel(c); s != "" {
		fmt.Fprintf(w, "  %s\n", s)
	}
	for _, o := range c.ImageOptions {
		mark := " "
		if o.IsSelected {
			mark = "*"
		}
		fmt.Fprintf(w, "  %s %s  %s\n", mark, o.ID, workflow.ThumbnailURL(o))
	}
	if c.FinalImageURL != "" {
		fmt.Fprintf(w, "  Final: %s (%s)\n", c.FinalImageURL, workflow.DownloadName(c))
	}
	if n := workflow.Notice(c, phase); n != "" {
		fmt.Fprintf(w, "  %s\n", n)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

type statusJSON struct {
	Phase   domain.Phase    `json:"phase"`
	Gates   workflow.Gates  `json:"gates"`
	Project *domain.Project `json:"project"`
}

func newStatusCmd(e *env) *cobra.Command {
	var (
		asJSON bool
		cardID string
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the cached project, phase, available actions and cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.open(cmd.Context()); err != nil {
				return err
			}
			st := e.sess.State()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(statusJSON{Phase: st.Phase, Gates: workflow.Evaluate(st.Phase, st.Cards()), Project: st.Project})
			}
			if cardID != "" {
				c, ok := st.Project.Card(cardID)
				if !ok {
					return fmt.Errorf("%s: %w", cardID, session.ErrUnknownCard)
				}
				printCard(out, c, st.Phase)
				return nil
			}
			printState(out, st)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print phase, gates and project as JSON")
	cmd.Flags().StringVar(&cardID, "card", "", "show one card with its options")
	return cmd
}

func newHistoryCmd(e *env) *cobra.Command {
	var (
		limit int
		all   bool
		prune int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List cached snapshots of the current project, or all cached projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := e.open(ctx); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			defer func() { _ = tw.Flush() }()
			if all {
				entries, err := e.ws.ListProjects(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "PROJECT\tNAME\tPHASE\tCARDS\tUPDATED")
				for _, en := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", en.Project.ID, en.Project.Name, en.Phase, len(en.Project.Cards), en.UpdatedAt.Local().Format(time.DateTime))
				}
				return nil
			}
			p := e.sess.Current()
			if p == nil {
				return fmt.Errorf("%w: run 'bulkimage new' first", session.ErrNoProject)
			}
			if cmd.Flags().Changed("prune") {
				n, err := e.ws.PruneSnapshots(ctx, p.ID, prune)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "pruned %d snapshots\n", n)
			}
			snaps, err := e.ws.ListSnapshots(ctx, p.ID, limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "ID\tTIME\tPHASE\tCARDS\tCHOSEN\tCOMPLETED")
			for _, s := range snaps {
				counts := s.Project.StatusCounts()
				chosen := counts[domain.StatusImageSelected] + counts[domain.StatusImageUploaded]
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\n", s.ID, s.TS.Local().Format(time.DateTime), s.Phase, len(s.Project.Cards), chosen, counts[domain.StatusCompleted])
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of snapshots to list")
	cmd.Flags().BoolVar(&all, "all", false, "list every cached project instead")
	cmd.Flags().IntVar(&prune, "prune", 0, "keep only the newest N snapshots before listing")
	return cmd
}
