/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloudwego/buddy/buddy"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newDumpCmd())
}

type arenaInfo struct {
	ArenaSize int    `json:"arena_size"`
	PageSize  int    `json:"page_size"`
	Pages     int    `json:"pages"`
	MinOrder  int    `json:"min_order"`
	MaxOrder  int    `json:"max_order"`
	Backing   string `json:"backing"`
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the arena geometry",
		Long: `The info command builds an allocator from the global flags and
shows the arena size, the page (minimum block) size and the order range.

Example:
  buddyctl info
  buddyctl info --min-order 12 --max-order 14 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buddy.NewWithOption(newOption())
			if err != nil {
				return err
			}
			defer a.Close()

			info := arenaInfo{
				ArenaSize: a.Size(),
				PageSize:  1 << uint(a.MinOrder()),
				Pages:     a.Size() >> uint(a.MinOrder()),
				MinOrder:  a.MinOrder(),
				MaxOrder:  a.MaxOrder(),
				Backing:   a.Backing().String(),
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, info)
			}
			fmt.Fprintf(out, "arena:   %s\n", formatBytes(info.ArenaSize))
			fmt.Fprintf(out, "page:    %s\n", formatBytes(info.PageSize))
			fmt.Fprintf(out, "pages:   %s\n", printer.Sprintf("%d", info.Pages))
			fmt.Fprintf(out, "orders:  %d..%d\n", info.MinOrder, info.MaxOrder)
			fmt.Fprintf(out, "backing: %s\n", info.Backing)
			return nil
		},
	}
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print the free lists of a fresh allocator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buddy.NewWithOption(newOption())
			if err != nil {
				return err
			}
			defer a.Close()
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), a.Stats())
			}
			return a.WriteDump(cmd.OutOrStdout())
		},
	}
}
