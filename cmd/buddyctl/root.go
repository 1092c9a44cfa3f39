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
	"encoding/json"
	"io"
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cloudwego/buddy/buddy"
)

var (
	// Global flags
	minOrder int
	maxOrder int
	useMmap  bool
	verbose  int
	jsonOut  bool
)

var rootCmd = &cobra.Command{
	Use:   "buddyctl",
	Short: "Drive and inspect a fixed-arena buddy allocator",
	Long: `buddyctl builds a buddy allocator over a fixed arena and runs
allocation workloads against it: scripted replays, a seeded random stress run,
or a walk-through of a 16KB arena. Free list state is printed as one
"<free blocks>:<block size>" entry per order.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().IntVar(&minOrder, "min-order", buddy.DefaultMinOrder, "log2 of the minimum block size")
	rootCmd.PersistentFlags().IntVar(&maxOrder, "max-order", buddy.DefaultMaxOrder, "log2 of the arena size")
	rootCmd.PersistentFlags().BoolVar(&useMmap, "mmap", false, "Back the arena with an anonymous mapping")
	rootCmd.PersistentFlags().IntVarP(&verbose, "verbose", "v", 0, "Log verbosity (1: operations, 2: splits and merges)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

// newLogger returns a stdr logger on stderr honoring --verbose.
func newLogger() logr.Logger {
	stdr.SetVerbosity(verbose)
	return stdr.New(log.New(os.Stderr, "buddyctl ", log.LstdFlags))
}

// newOption builds the allocator options from the global flags.
func newOption() *buddy.Option {
	opt := buddy.DefaultOption()
	opt.MinOrder = minOrder
	opt.MaxOrder = maxOrder
	if useMmap {
		opt.Backing = buddy.MmapBacking
	}
	opt.Logger = newLogger()
	return opt
}

// printer formats numbers with thousands separators.
var printer = message.NewPrinter(language.English)

func formatBytes(n int) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return printer.Sprintf("%d bytes (%dMB)", n, n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return printer.Sprintf("%d bytes (%dKB)", n, n>>10)
	}
	return printer.Sprintf("%d bytes", n)
}

// printJSON outputs data as indented JSON
func printJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
