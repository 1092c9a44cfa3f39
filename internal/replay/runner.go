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
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/cloudwego/buddy/buddy"
)

const tracerName = "github.com/cloudwego/buddy/replay"

var (
	// ErrUnknownName indicates a free of a name that is not bound to an allocation.
	ErrUnknownName = errors.New("replay: unknown name")

	// ErrNameInUse indicates an alloc to a name that is still bound.
	ErrNameInUse = errors.New("replay: name already bound")
)

// Runner executes parsed operations against an allocator.
// A Runner is not safe for concurrent use.
type Runner struct {
	// Allocator is the allocator under test.
	Allocator *buddy.Allocator

	// Out receives one line per operation and the dumps. nil discards.
	Out io.Writer

	// Tracer starts one span per operation. nil uses the global provider.
	Tracer trace.Tracer

	// Limiter paces operations. nil runs them back to back.
	Limiter *rate.Limiter

	// Logger receives per-operation records at V(1).
	Logger logr.Logger

	// StopOnError makes Run return at the first failed operation.
	StopOnError bool

	names map[string]buddy.Addr
}

// Result summarizes a run.
type Result struct {
	Ops      int
	Allocs   int
	Frees    int
	Failures int
	Elapsed  time.Duration
}

// Rate returns a limit of n operations per second, or rate.Inf for n <= 0.
func Rate(n float64) rate.Limit {
	if n <= 0 {
		return rate.Inf
	}
	return rate.Limit(n)
}

// Addr returns the address bound to name.
func (r *Runner) Addr(name string) (buddy.Addr, bool) {
	addr, ok := r.names[name]
	return addr, ok
}

// Run executes ops in order. Failed operations are reported and counted;
// Run only returns early when ctx is done, the limiter fails, or StopOnError is set.
func (r *Runner) Run(ctx context.Context, ops []Op) (Result, error) {
	if r.names == nil {
		r.names = make(map[string]buddy.Addr)
	}
	out := r.Out
	if out == nil {
		out = io.Discard
	}
	tracer := r.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	log := r.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	var res Result
	start := time.Now()
	done := func() Result {
		res.Elapsed = time.Since(start)
		return res
	}

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return done(), err
		}
		if r.Limiter != nil {
			if err := r.Limiter.Wait(ctx); err != nil {
				return done(), err
			}
		}

		err := r.exec(ctx, tracer, out, op, &res)
		res.Ops++
		if err != nil {
			res.Failures++
			log.V(1).Info("operation failed", "line", op.Line, "op", op.String(), "error", err.Error())
			if r.StopOnError {
				return done(), fmt.Errorf("line %d: %w", op.Line, err)
			}
			continue
		}
		log.V(1).Info("operation done", "line", op.Line, "op", op.String())
	}
	return done(), nil
}

func (r *Runner) exec(ctx context.Context, tracer trace.Tracer, out io.Writer, op Op, res *Result) (err error) {
	_, span := tracer.Start(ctx, "buddy."+op.Kind.String(), trace.WithAttributes(
		attribute.Int("replay.line", op.Line),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	a := r.Allocator
	switch op.Kind {
	case Alloc:
		span.SetAttributes(attribute.String("replay.name", op.Name), attribute.Int("buddy.size", op.Size))
		if addr, ok := r.names[op.Name]; ok {
			err = fmt.Errorf("%w: %s -> %v", ErrNameInUse, op.Name, addr)
			fmt.Fprintf(out, "alloc %s %d: %v\n", op.Name, op.Size, err)
			return err
		}
		var addr buddy.Addr
		if addr, err = a.Alloc(op.Size); err != nil {
			fmt.Fprintf(out, "alloc %s %d: %v\n", op.Name, op.Size, err)
			return err
		}
		size, _ := a.SizeOf(addr)
		r.names[op.Name] = addr
		res.Allocs++
		span.SetAttributes(attribute.Int64("buddy.addr", int64(addr)), attribute.Int("buddy.block", size))
		fmt.Fprintf(out, "alloc %s %d -> %v (%d)\n", op.Name, op.Size, addr, size)
	case Free:
		span.SetAttributes(attribute.String("replay.name", op.Name))
		addr, ok := r.names[op.Name]
		if !ok {
			err = fmt.Errorf("%w: %s", ErrUnknownName, op.Name)
			fmt.Fprintf(out, "free %s: %v\n", op.Name, err)
			return err
		}
		span.SetAttributes(attribute.Int64("buddy.addr", int64(addr)))
		if err = a.Free(addr); err != nil {
			fmt.Fprintf(out, "free %s: %v\n", op.Name, err)
			return err
		}
		delete(r.names, op.Name)
		res.Frees++
		fmt.Fprintf(out, "free %s %v\n", op.Name, addr)
	case Dump:
		err = a.WriteDump(out)
	case Check:
		if err = a.Validate(); err != nil {
			fmt.Fprintf(out, "check: %v\n", err)
			return err
		}
		fmt.Fprintln(out, "check: ok")
	case Reset:
		a.Reset()
		for name := range r.names {
			delete(r.names, name)
		}
		fmt.Fprintln(out, "reset")
	default:
		err = fmt.Errorf("unknown operation %v", op.Kind)
	}
	return err
}
