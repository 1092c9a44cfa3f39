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
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/buddy/buddy"
	"github.com/cloudwego/buddy/internal/replay"
)

// execute runs the root command with args and returns its output.
// Global flags are reset first since they outlive a single Execute.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	minOrder, maxOrder = buddy.DefaultMinOrder, buddy.DefaultMaxOrder
	useMmap, verbose, jsonOut = false, 0, false

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInfo(t *testing.T) {
	out, err := execute(t, "", "info", "--min-order", "12", "--max-order", "14")
	require.NoError(t, err)
	assert.Contains(t, out, "arena:   16,384 bytes (16KB)\n")
	assert.Contains(t, out, "page:    4,096 bytes (4KB)\n")
	assert.Contains(t, out, "pages:   4\n")
	assert.Contains(t, out, "orders:  12..14\n")
	assert.Contains(t, out, "backing: heap\n")
}

func TestInfoJSON(t *testing.T) {
	out, err := execute(t, "", "info", "--json", "--mmap", "--max-order", "22")
	require.NoError(t, err)

	var info arenaInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, arenaInfo{
		ArenaSize: 4 << 20,
		PageSize:  4096,
		Pages:     1024,
		MinOrder:  12,
		MaxOrder:  22,
		Backing:   "mmap",
	}, info)
}

func TestInvalidOrders(t *testing.T) {
	_, err := execute(t, "", "info", "--min-order", "15", "--max-order", "14")
	assert.ErrorIs(t, err, buddy.ErrInvalidOption)
}

func TestDump(t *testing.T) {
	out, err := execute(t, "", "dump", "--min-order", "12", "--max-order", "14")
	require.NoError(t, err)
	assert.Equal(t, "0:4K 0:8K 1:16K \n", out)

	out, err = execute(t, "", "dump", "--min-order", "12", "--max-order", "14", "--json")
	require.NoError(t, err)
	var st buddy.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, 16384, st.FreeBytes)
	assert.Len(t, st.Orders, 3)
}

func TestDemo(t *testing.T) {
	// order flags are ignored
	out, err := execute(t, "", "demo", "--max-order", "20")
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 11)
	assert.Equal(t, []string{
		"0:4K 0:8K 1:16K ",
		"alloc a 5000 -> 0x0 (8192)",
		"0:4K 1:8K 0:16K ",
		"alloc b 4096 -> 0x2000 (4096)",
		"1:4K 0:8K 0:16K ",
		"free a 0x0",
		"1:4K 1:8K 0:16K ",
		"free b 0x2000",
		"0:4K 0:8K 1:16K ",
		"check: ok",
	}, lines[:10])
	assert.Contains(t, lines[10], "10 ops, 2 allocs, 2 frees, 0 failures in ")
}

func TestReplayFile(t *testing.T) {
	script := filepath.Join(t.TempDir(), "workload.txt")
	require.NoError(t, os.WriteFile(script, []byte("alloc x 16K\nalloc y 1\nfree x\ncheck\n"), 0o644))

	out, err := execute(t, "", "replay", script, "--min-order", "12", "--max-order", "14")
	require.NoError(t, err)
	assert.Contains(t, out, "alloc x 16384 -> 0x0 (16384)\n")
	assert.Contains(t, out, "alloc y 1: buddy: out of memory: no free block of order >= 12\n")
	assert.Contains(t, out, "4 ops, 1 allocs, 1 frees, 1 failures in ")
}

func TestReplayStdinJSON(t *testing.T) {
	out, err := execute(t, "alloc x 4K\n", "replay", "-", "--json", "--min-order", "12", "--max-order", "13")
	require.NoError(t, err)

	// the operation line precedes the JSON summary
	line, body, ok := strings.Cut(out, "\n")
	require.True(t, ok)
	assert.Equal(t, "alloc x 4096 -> 0x0 (4096)", line)
	var res struct {
		Ops    int
		Allocs int
		Stats  buddy.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.Equal(t, 1, res.Ops)
	assert.Equal(t, 1, res.Allocs)
	assert.Equal(t, 1, res.Stats.Live)
	assert.Equal(t, 4096, res.Stats.FreeBytes)
}

func TestReplayErrors(t *testing.T) {
	_, err := execute(t, "", "replay", filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = execute(t, "grow x 1\n", "replay", "-")
	assert.ErrorIs(t, err, replay.ErrSyntax)

	out, err := execute(t, "free nobody\nalloc x 1\n", "replay", "-", "--stop-on-error")
	assert.ErrorIs(t, err, replay.ErrUnknownName)
	assert.NotContains(t, out, "alloc x")
	assert.Contains(t, out, "1 ops, 0 allocs, 0 frees, 1 failures")
}

func TestStress(t *testing.T) {
	out, err := execute(t, "", "stress", "--min-order", "12", "--max-order", "16",
		"--ops", "2000", "--seed", "3", "--max-size", "8K", "--check-every", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "2,000 ops (seed 3)")
	assert.Contains(t, out, "21 checks passed, arena coalesced to 65,536 bytes (64KB)")
}

func TestStressJSON(t *testing.T) {
	out, err := execute(t, "", "stress", "--min-order", "10", "--max-order", "14",
		"--ops", "500", "--seed", "9", "--max-size", "3K", "--check-every", "0", "--json")
	require.NoError(t, err)

	var rep stressReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, int64(9), rep.Seed)
	assert.Equal(t, 500, rep.Ops)
	assert.Equal(t, 1, rep.Checks)
	assert.Equal(t, 16384, rep.FinalFree)
	assert.Equal(t, rep.Allocs, rep.Frees)
	assert.Positive(t, rep.OOM)
	assert.LessOrEqual(t, rep.PeakUsed, rep.ArenaSize)
}

func TestStressMaxSize(t *testing.T) {
	_, err := execute(t, "", "stress", "--min-order", "12", "--max-order", "14", "--max-size", "32K")
	assert.ErrorContains(t, err, "exceeds")

	_, err = execute(t, "", "stress", "--max-size", "0")
	assert.ErrorContains(t, err, "must be positive")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "100 bytes", formatBytes(100))
	assert.Equal(t, "1,536 bytes", formatBytes(1536))
	assert.Equal(t, "8,192 bytes (8KB)", formatBytes(8192))
	assert.Equal(t, "1,048,576 bytes (1MB)", formatBytes(1<<20))
}
