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
	"errors"
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/cloudwego/buddy/buddy"
	"github.com/cloudwego/buddy/internal/replay"
)

func init() {
	rootCmd.AddCommand(newStressCmd())
}

type stressReport struct {
	Seed       int64 `json:"seed"`
	Ops        int   `json:"ops"`
	Allocs     int   `json:"allocs"`
	Frees      int   `json:"frees"`
	OOM        int   `json:"oom"`
	PeakLive   int   `json:"peak_live"`
	PeakUsed   int   `json:"peak_used"`
	Requested  int64 `json:"requested"`
	Checks     int   `json:"checks"`
	FinalFree  int   `json:"final_free"`
	ArenaSize  int   `json:"arena_size"`
	Fragmented int   `json:"fragmented"`
}

func newStressCmd() *cobra.Command {
	var (
		ops        int
		seed       int64
		maxSize    string
		checkEvery int
	)
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run seeded random alloc/free churn and verify the arena",
		Long: `The stress command allocates and frees random sizes, validating
the allocator every --check-every operations. At the end every live block is
freed and the arena must coalesce back into a single free block.

Example:
  buddyctl stress --ops 100000 --seed 7 --max-size 64K`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := replay.ParseSize(maxSize)
			if err != nil {
				return err
			}
			if limit <= 0 {
				return fmt.Errorf("--max-size must be positive")
			}
			a, err := buddy.NewWithOption(newOption())
			if err != nil {
				return err
			}
			defer a.Close()
			if limit > a.Size() {
				return fmt.Errorf("--max-size %s exceeds the %s arena", maxSize, formatBytes(a.Size()))
			}

			rep, err := stress(cmd, a, rand.New(rand.NewSource(seed)), ops, limit, checkEvery)
			rep.Seed = seed
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, rep)
			}
			fmt.Fprintln(out, printer.Sprintf("%d ops (seed %d): %d allocs, %d frees, %d out of memory",
				rep.Ops, rep.Seed, rep.Allocs, rep.Frees, rep.OOM))
			fmt.Fprintln(out, printer.Sprintf("peak: %d live blocks, %s in use", rep.PeakLive, formatBytes(rep.PeakUsed)))
			if rep.Allocs > 0 {
				fmt.Fprintln(out, printer.Sprintf("internal fragmentation: %.1f%%",
					100*float64(rep.Fragmented)/float64(rep.Fragmented+int(rep.Requested))))
			}
			fmt.Fprintln(out, printer.Sprintf("%d checks passed, arena coalesced to %s", rep.Checks, formatBytes(rep.FinalFree)))
			return nil
		},
	}
	cmd.Flags().IntVar(&ops, "ops", 10000, "Number of operations")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Random seed")
	cmd.Flags().StringVar(&maxSize, "max-size", "16K", "Largest request size")
	cmd.Flags().IntVar(&checkEvery, "check-every", 1000, "Validate every n operations (0: only at the end)")
	return cmd
}

// stress runs n random operations against a and frees everything at the end.
func stress(cmd *cobra.Command, a *buddy.Allocator, rnd *rand.Rand, n, maxSize, checkEvery int) (stressReport, error) {
	rep := stressReport{ArenaSize: a.Size()}
	var live []buddy.Addr
	ctx := cmd.Context()

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Ops++
		if len(live) == 0 || rnd.Intn(5) < 3 {
			size := 1 + rnd.Intn(maxSize)
			addr, err := a.Alloc(size)
			switch {
			case errors.Is(err, buddy.ErrOutOfMemory):
				rep.OOM++
			case err != nil:
				return rep, err
			default:
				rep.Allocs++
				rep.Requested += int64(size)
				granted, err := a.SizeOf(addr)
				if err != nil {
					return rep, err
				}
				rep.Fragmented += granted - size
				live = append(live, addr)
			}
		} else {
			j := rnd.Intn(len(live))
			if err := a.Free(live[j]); err != nil {
				return rep, err
			}
			rep.Frees++
			live[j] = live[len(live)-1]
			live = live[:len(live)-1]
		}

		if len(live) > rep.PeakLive {
			rep.PeakLive = len(live)
		}
		if used := a.Size() - a.Available(); used > rep.PeakUsed {
			rep.PeakUsed = used
		}
		if checkEvery > 0 && rep.Ops%checkEvery == 0 {
			if err := a.Validate(); err != nil {
				return rep, fmt.Errorf("after %d ops: %w", rep.Ops, err)
			}
			rep.Checks++
		}
	}

	for _, addr := range live {
		if err := a.Free(addr); err != nil {
			return rep, err
		}
		rep.Frees++
	}
	if err := a.Validate(); err != nil {
		return rep, err
	}
	rep.Checks++
	rep.FinalFree = a.Available()
	if a.FreeBlocks(a.MaxOrder()) != 1 {
		return rep, fmt.Errorf("%w: arena did not coalesce: %s", buddy.ErrCorrupted, a.Dump())
	}
	return rep, nil
}
