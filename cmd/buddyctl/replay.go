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
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/cloudwego/buddy/buddy"
	"github.com/cloudwego/buddy/internal/replay"
)

type replayFlags struct {
	rate           float64
	jaegerEndpoint string
	stopOnError    bool
}

func init() {
	rootCmd.AddCommand(newReplayCmd())
	rootCmd.AddCommand(newDemoCmd())
}

func newReplayCmd() *cobra.Command {
	var f replayFlags
	cmd := &cobra.Command{
		Use:   "replay <script>",
		Short: "Run an allocation script against a fresh allocator",
		Long: `The replay command parses a script of named allocations and frees
and runs it against a fresh allocator, printing one line per operation.
Use "-" to read the script from stdin.

Script lines:
  alloc <name> <size>   size accepts K, M and G suffixes
  free <name>
  dump | check | reset

Example:
  buddyctl replay workload.txt --rate 100
  buddyctl replay - --jaeger-endpoint http://localhost:14268/api/traces < workload.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer file.Close()
				in = file
			}
			ops, err := replay.Parse(in)
			if err != nil {
				return err
			}
			return runScript(cmd, newOption(), ops, f)
		},
	}
	cmd.Flags().Float64Var(&f.rate, "rate", 0, "Operations per second (0: unlimited)")
	cmd.Flags().StringVar(&f.jaegerEndpoint, "jaeger-endpoint", "", "Jaeger collector endpoint for operation spans")
	cmd.Flags().BoolVar(&f.stopOnError, "stop-on-error", false, "Stop at the first failed operation")
	return cmd
}

const demoScript = `
# 16KB arena, 4KB pages
dump
alloc a 5000
dump
alloc b 4096
dump
free a
dump
free b
dump
check
`

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Walk through splits and merges on a 16KB arena",
		Long: `The demo command allocates 5000 and 4096 bytes from a 16KB arena
with 4KB pages, frees both and prints the free lists after each step.
The order flags are ignored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := replay.Parse(strings.NewReader(demoScript))
			if err != nil {
				return err
			}
			opt := newOption()
			opt.MinOrder, opt.MaxOrder = 12, 14
			return runScript(cmd, opt, ops, replayFlags{})
		},
	}
}

func runScript(cmd *cobra.Command, opt *buddy.Option, ops []replay.Op, f replayFlags) error {
	a, err := buddy.NewWithOption(opt)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	r := &replay.Runner{
		Allocator:   a,
		Out:         out,
		Logger:      opt.Logger.WithName("replay"),
		StopOnError: f.stopOnError,
	}
	if f.rate > 0 {
		r.Limiter = rate.NewLimiter(replay.Rate(f.rate), 1)
	}
	if f.jaegerEndpoint != "" {
		tp, err := tracerProvider(f.jaegerEndpoint, a.Backing().String())
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(ctx)
		}()
		r.Tracer = tp.Tracer("github.com/cloudwego/buddy/cmd/buddyctl")
	}

	res, err := r.Run(cmd.Context(), ops)
	if jsonOut {
		if jerr := printJSON(out, struct {
			replay.Result
			Stats buddy.Stats `json:"stats"`
		}{res, a.Stats()}); jerr != nil {
			return jerr
		}
	} else {
		fmt.Fprintln(out, printer.Sprintf("%d ops, %d allocs, %d frees, %d failures in %v",
			res.Ops, res.Allocs, res.Frees, res.Failures, res.Elapsed.Round(time.Microsecond)))
	}
	return err
}
