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

package replay

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/time/rate"

	"github.com/cloudwego/buddy/buddy"
)

func newTestRunner(t *testing.T) (*Runner, *bytes.Buffer, *tracetest.SpanRecorder) {
	t.Helper()
	a, err := buddy.NewWithOption(&buddy.Option{MinOrder: 12, MaxOrder: 14})
	require.NoError(t, err)

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	out := &bytes.Buffer{}
	return &Runner{
		Allocator: a,
		Out:       out,
		Tracer:    tp.Tracer("test"),
	}, out, sr
}

func mustParse(t *testing.T, script string) []Op {
	t.Helper()
	ops, err := Parse(strings.NewReader(script))
	require.NoError(t, err)
	return ops
}

func TestRunScenario(t *testing.T) {
	r, out, sr := newTestRunner(t)
	ops := mustParse(t, `
alloc a 5000
alloc b 4096
dump
free a
free b
dump
check
`)
	res, err := r.Run(context.Background(), ops)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Ops)
	assert.Equal(t, 2, res.Allocs)
	assert.Equal(t, 2, res.Frees)
	assert.Equal(t, 0, res.Failures)

	assert.Equal(t, strings.Join([]string{
		"alloc a 5000 -> 0x0 (8192)",
		"alloc b 4096 -> 0x2000 (4096)",
		"1:4K 0:8K 0:16K ",
		"free a 0x0",
		"free b 0x2000",
		"0:4K 0:8K 1:16K ",
		"check: ok",
		"",
	}, "\n"), out.String())

	spans := sr.Ended()
	require.Len(t, spans, 7)
	assert.Equal(t, "buddy.alloc", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.Int64("buddy.addr", 0))
	assert.Contains(t, spans[1].Attributes(), attribute.Int64("buddy.addr", 8192))
	assert.Equal(t, "buddy.dump", spans[2].Name())
	assert.Equal(t, "buddy.free", spans[3].Name())
	assert.Equal(t, "buddy.check", spans[6].Name())
	for _, s := range spans {
		assert.NotEqual(t, codes.Error, s.Status().Code, s.Name())
	}
}

func TestRunFailures(t *testing.T) {
	r, out, sr := newTestRunner(t)
	ops := mustParse(t, `
alloc big 16K
alloc more 1
alloc huge 1M
free nobody
alloc big 4K
free big
free big
`)
	res, err := r.Run(context.Background(), ops)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Ops)
	assert.Equal(t, 1, res.Allocs)
	assert.Equal(t, 1, res.Frees)
	assert.Equal(t, 5, res.Failures)

	text := out.String()
	assert.Contains(t, text, "alloc more 1: buddy: out of memory")
	assert.Contains(t, text, "alloc huge 1048576: buddy: request too large")
	assert.Contains(t, text, "free nobody: replay: unknown name")
	assert.Contains(t, text, "alloc big 4096: replay: name already bound")
	assert.Contains(t, text, "free big: replay: unknown name")

	spans := sr.Ended()
	require.Len(t, spans, 7)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	for _, i := range []int{1, 2, 3, 4, 6} {
		assert.Equal(t, codes.Error, spans[i].Status().Code, "span %d", i)
	}
	assert.Equal(t, 1, r.Allocator.FreeBlocks(14))
}

func TestRunStopOnError(t *testing.T) {
	r, _, _ := newTestRunner(t)
	r.StopOnError = true
	ops := mustParse(t, `
alloc x 4K
free y
alloc z 4K
`)
	res, err := r.Run(context.Background(), ops)
	assert.ErrorIs(t, err, ErrUnknownName)
	assert.Contains(t, err.Error(), "line 3")
	assert.Equal(t, 2, res.Ops)
	_, ok := r.Addr("z")
	assert.False(t, ok)
}

func TestRunReset(t *testing.T) {
	r, _, _ := newTestRunner(t)
	ops := mustParse(t, `
alloc x 8K
alloc y 8K
reset
alloc x 16K
`)
	res, err := r.Run(context.Background(), ops)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Failures)
	addr, ok := r.Addr("x")
	require.True(t, ok)
	assert.Equal(t, buddy.Addr(0), addr)
	_, ok = r.Addr("y")
	assert.False(t, ok)
}

func TestRunCanceled(t *testing.T) {
	r, _, _ := newTestRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := r.Run(ctx, mustParse(t, "alloc x 1"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, res.Ops)
}

func TestRunLimiter(t *testing.T) {
	r, _, _ := newTestRunner(t)
	r.Limiter = rate.NewLimiter(Rate(200), 1)

	ops := mustParse(t, strings.Repeat("alloc x 4K\nfree x\n", 3))
	res, err := r.Run(context.Background(), ops)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Ops)
	// 5 waits of 5ms after the initial burst
	assert.GreaterOrEqual(t, res.Elapsed, 20*time.Millisecond)
}

func TestRunLimiterDeadline(t *testing.T) {
	r, _, _ := newTestRunner(t)
	r.Limiter = rate.NewLimiter(Rate(1), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res, err := r.Run(ctx, mustParse(t, "dump\ndump\ndump"))
	assert.Error(t, err)
	assert.Equal(t, 1, res.Ops)
}

func TestRate(t *testing.T) {
	assert.Equal(t, rate.Inf, Rate(0))
	assert.Equal(t, rate.Inf, Rate(-3))
	assert.Equal(t, rate.Limit(50), Rate(50))
}
