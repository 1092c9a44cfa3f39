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

package buddy

import (
	"fmt"
	"math/bits"

	"github.com/go-logr/logr"
)

const (
	// DefaultMinOrder is log2 of the minimum block size (4KB).
	DefaultMinOrder = 12

	// DefaultMaxOrder is log2 of the arena size (1MB).
	DefaultMaxOrder = 20

	// PageSize is the minimum block size with the default orders.
	PageSize = 1 << DefaultMinOrder

	// maxOrderLimit caps the arena at 4GB.
	maxOrderLimit = 32

	// maxPageBits caps the descriptor table at 2^24 pages so page indices fit int32.
	maxPageBits = 24
)

// Backing selects where the arena memory comes from.
type Backing int

const (
	// HeapBacking allocates the arena on the Go heap without zeroing it.
	HeapBacking Backing = iota

	// MmapBacking maps the arena as anonymous private memory outside the Go heap.
	// Platforms without mmap fall back to HeapBacking.
	MmapBacking
)

func (b Backing) String() string {
	switch b {
	case HeapBacking:
		return "heap"
	case MmapBacking:
		return "mmap"
	}
	return fmt.Sprintf("Backing(%d)", int(b))
}

// Option ...
type Option struct {
	// MinOrder is log2 of the minimum block ("page") size.
	MinOrder int

	// MaxOrder is log2 of the arena size. The arena is a single block of this order.
	MaxOrder int

	// Backing selects the arena memory source.
	Backing Backing

	// Logger receives split/merge traces at V(1) and V(2).
	// The zero value discards everything.
	Logger logr.Logger
}

// DefaultOption returns the default values of Option.
func DefaultOption() *Option {
	return &Option{
		MinOrder: DefaultMinOrder,
		MaxOrder: DefaultMaxOrder,
		Backing:  HeapBacking,
		Logger:   logr.Discard(),
	}
}

func (o *Option) validate() error {
	if o.MinOrder < 0 {
		return fmt.Errorf("%w: MinOrder must be >= 0, got %d", ErrInvalidOption, o.MinOrder)
	}
	if o.MinOrder > o.MaxOrder {
		return fmt.Errorf("%w: MinOrder (%d) must be <= MaxOrder (%d)", ErrInvalidOption, o.MinOrder, o.MaxOrder)
	}
	if o.MaxOrder > maxOrderLimit || o.MaxOrder >= bits.UintSize-1 {
		return fmt.Errorf("%w: MaxOrder must be <= %d, got %d", ErrInvalidOption, maxOrderLimit, o.MaxOrder)
	}
	if o.MaxOrder-o.MinOrder > maxPageBits {
		return fmt.Errorf("%w: MaxOrder-MinOrder must be <= %d, got %d",
			ErrInvalidOption, maxPageBits, o.MaxOrder-o.MinOrder)
	}
	switch o.Backing {
	case HeapBacking, MmapBacking:
	default:
		return fmt.Errorf("%w: unknown backing %v", ErrInvalidOption, o.Backing)
	}
	return nil
}
