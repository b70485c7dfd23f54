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
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"bulkimage/internal/config"
)

func newConfigCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
	}
	cmd.AddCommand(newConfigShowCmd(e), newConfigSetTokenCmd(e), newConfigInitCmd(e))
	return cmd
}

func newConfigShowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration and where overrides come from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			path, err := config.ConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "# file: %s\n", path)
			for _, key := range []string{"backend.base_url", "backend.timeout_ms", "backend.tls_insecure", "backend.strict", "general.telemetry_opt_in", "workspace.dir", "logging.level", "logging.format", "logging.source", "logging.file"} {
				if name, ok := config.EnvOverrideFor(key); ok {
					fmt.Fprintf(out, "# %s overridden by %s\n", key, name)
				}
			}
			token := "not set"
			if e.token != "" {
				token = "set"
			}
			fmt.Fprintf(out, "# backend token: %s\n", token)
			if err := e.cfg.Validate(); err != nil {
				fmt.Fprintf(out, "# invalid: %v\n", err)
			}
			b, err := yaml.Marshal(e.cfg)
			if err != nil {
				return err
			}
			_, err = out.Write(b)
			return err
		},
	}
}

func newConfigSetTokenCmd(e *env) *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:   "set-token [token]",
		Short: "Store the Project Service token in the OS keyring",
		Long:  "Store the Project Service token in the OS keyring. Without an argument the token is read from stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := ""
			switch {
			case remove:
			case len(args) == 1:
				token = args[0]
			default:
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token: %w", err)
				}
				token = line
			}
			token = strings.TrimSpace(token)
			if token == "" && !remove {
				return fmt.Errorf("token is empty; use --clear to remove the stored token")
			}
			if err := config.SetToken(token); err != nil {
				return fmt.Errorf("keyring: %w", err)
			}
			e.token = token
			if remove {
				fmt.Fprintln(cmd.OutOrStdout(), "token removed")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "token stored")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remove, "clear", false, "remove the stored token")
	return cmd
}

func newConfigInitCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the current configuration to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Save(e.cfg, ""); err != nil {
				return err
			}
			path, _ := config.ConfigPath()
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return nil
		},
	}
}
