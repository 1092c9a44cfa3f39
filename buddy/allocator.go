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

	"github.com/bytedance/gopkg/lang/dirtmake"
	"github.com/go-logr/logr"

	"github.com/cloudwego/buddy/internal/mmap"
)

// Allocator is a binary buddy allocator over a single fixed arena of 2^MaxOrder bytes.
//
// Allocator is not safe for concurrent use. Callers that share one must serialize
// every call, e.g. with a mutex around the whole allocator.
type Allocator struct {
	// arena is the memory we are managing.
	arena []byte

	// release unmaps the arena, nil for heap backed arenas.
	release func() error

	// pages holds one descriptor per minimum-size page.
	pages []page

	// freeLists holds one list per order.
	// freeLists[0] is for MinOrder blocks, freeLists[MaxOrder-MinOrder] for the whole arena.
	freeLists []freeList

	// live is the number of allocated blocks.
	live int
	// freeBytes is the sum of the sizes of all free blocks.
	freeBytes int

	minOrder int
	maxOrder int
	backing  Backing

	log logr.Logger
}

// New creates an allocator with the default orders (4KB pages, 1MB arena).
func New() (*Allocator, error) {
	return NewWithOption(nil)
}

// NewWithOption creates an allocator configured by opt. A nil opt means DefaultOption().
// The returned allocator holds the whole arena as one free block.
func NewWithOption(opt *Option) (*Allocator, error) {
	if opt == nil {
		opt = DefaultOption()
	}
	if err := opt.validate(); err != nil {
		return nil, err
	}

	size := 1 << uint(opt.MaxOrder)
	arena, release, err := newArena(opt.Backing, size)
	if err != nil {
		return nil, err
	}

	a := &Allocator{
		arena:     arena,
		release:   release,
		pages:     make([]page, 1<<uint(opt.MaxOrder-opt.MinOrder)),
		freeLists: make([]freeList, opt.MaxOrder-opt.MinOrder+1),
		minOrder:  opt.MinOrder,
		maxOrder:  opt.MaxOrder,
		backing:   opt.Backing,
		log:       opt.Logger,
	}
	if a.log.GetSink() == nil {
		a.log = logr.Discard()
	}
	a.Reset()

	a.log.V(1).Info("arena ready", "size", size, "pages", len(a.pages),
		"minOrder", a.minOrder, "maxOrder", a.maxOrder, "backing", a.backing.String())
	return a, nil
}

func newArena(b Backing, size int) ([]byte, func() error, error) {
	if b == MmapBacking {
		return mmap.Anonymous(size)
	}
	return dirtmake.Bytes(size, size), nil, nil
}

// Reset clears all allocations and returns the allocator to its initial state:
// every page unassigned, every free list empty except MaxOrder's, which holds the whole arena.
// Reset does nothing after Close.
func (a *Allocator) Reset() {
	if a.arena == nil {
		return
	}
	for i := range a.pages {
		a.pages[i] = page{
			order: noOrder,
			index: uint32(i),
			prev:  nilPage,
			next:  nilPage,
		}
	}
	for i := range a.freeLists {
		a.freeLists[i].init()
	}
	a.pages[0].order = int8(a.maxOrder)
	a.list(a.maxOrder).push(a.pages, 0)
	a.live = 0
	a.freeBytes = len(a.arena)
}

// Close releases the arena and empties the allocator: Alloc returns ErrClosed
// and Free rejects every address. Close is idempotent.
func (a *Allocator) Close() error {
	release := a.release
	a.release = nil
	a.arena = nil
	a.pages = nil
	for i := range a.freeLists {
		a.freeLists[i].init()
	}
	a.live = 0
	a.freeBytes = 0
	if release == nil {
		return nil
	}
	return release()
}

// Alloc allocates a block of at least size bytes and returns its address.
//
// It takes the head of the smallest non-empty free list that fits, splitting it
// down to size. The lower half of every split goes on to the caller and the
// upper half is added to the free list of its order.
//
// It returns ErrRequestTooLarge if size exceeds the arena, ErrOutOfMemory
// if no free block is large enough, and ErrClosed after Close. The allocator
// is unchanged on failure.
func (a *Allocator) Alloc(size int) (Addr, error) {
	if a.arena == nil {
		return 0, ErrClosed
	}
	if size < 1 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}
	order, ok := a.OrderFor(size)
	if !ok {
		return 0, fmt.Errorf("%w: %d bytes, arena is %d bytes", ErrRequestTooLarge, size, len(a.arena))
	}

	found := -1
	for o := order; o <= a.maxOrder; o++ {
		if !a.list(o).empty() {
			found = o
			break
		}
	}
	if found == -1 {
		a.log.V(1).Info("arena exhausted", "size", size, "order", order)
		return 0, fmt.Errorf("%w: no free block of order >= %d", ErrOutOfMemory, order)
	}

	idx := a.list(found).pop(a.pages)
	a.split(idx, found, order)
	a.pages[idx].order = int8(order)
	a.live++
	a.freeBytes -= 1 << uint(order)
	return a.addressOf(idx), nil
}

// split halves the block at idx from order down to target.
func (a *Allocator) split(idx int32, order, target int) {
	for order > target {
		order--
		buddy := a.buddyPage(idx, order)
		a.pages[buddy].order = int8(order)
		a.list(order).push(a.pages, buddy)
		if v := a.log.V(2); v.Enabled() {
			v.Info("split", "addr", a.addressOf(idx), "buddy", a.addressOf(buddy), "order", order)
		}
	}
}

// Free returns the block at addr to the allocator, merging it with its buddy
// for as long as the buddy is free and of the same order.
//
// Free returns ErrInvalidFree, and changes nothing, if addr is not the address
// of a live allocation: out of the arena, misaligned, inside a block, or already free.
func (a *Allocator) Free(addr Addr) error {
	idx, err := a.lookup(addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFree, err)
	}

	order := int(a.pages[idx].order)
	a.live--
	a.freeBytes += 1 << uint(order)

	for order < a.maxOrder {
		buddy := a.buddyPage(idx, order)
		bp := &a.pages[buddy]
		if int(bp.order) != order || !bp.onList {
			break
		}
		a.list(order).remove(a.pages, buddy)
		// the higher of the two stops being a block head
		if buddy < idx {
			a.pages[idx].order = noOrder
			idx = buddy
		} else {
			bp.order = noOrder
		}
		order++
		if v := a.log.V(2); v.Enabled() {
			v.Info("merge", "addr", a.addressOf(idx), "order", order)
		}
	}

	a.pages[idx].order = int8(order)
	a.list(order).push(a.pages, idx)
	return nil
}

// lookup resolves addr to the page of a live allocation.
func (a *Allocator) lookup(addr Addr) (int32, error) {
	if uint64(addr) >= uint64(len(a.arena)) {
		return nilPage, fmt.Errorf("%v out of arena", addr)
	}
	if addr&Addr(1<<uint(a.minOrder)-1) != 0 {
		return nilPage, fmt.Errorf("%v not page aligned", addr)
	}
	idx := a.pageOf(addr)
	p := &a.pages[idx]
	if p.order == noOrder {
		return nilPage, fmt.Errorf("%v is not a block head", addr)
	}
	if p.onList {
		return nilPage, fmt.Errorf("%v is already free", addr)
	}
	return idx, nil
}

// Block returns the arena memory of the live allocation at addr.
// The slice covers the whole block and its capacity is clipped to the block size.
func (a *Allocator) Block(addr Addr) ([]byte, error) {
	idx, err := a.lookup(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	off := int(addr)
	end := off + 1<<uint(a.pages[idx].order)
	return a.arena[off:end:end], nil
}

// SizeOf returns the block size of the live allocation at addr.
func (a *Allocator) SizeOf(addr Addr) (int, error) {
	idx, err := a.lookup(addr)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return 1 << uint(a.pages[idx].order), nil
}

// IsValidAddress checks if addr could be a valid allocation start.
// It validates bounds and alignment without checking the allocation state.
func (a *Allocator) IsValidAddress(addr Addr) bool {
	return uint64(addr) < uint64(len(a.arena)) && addr&Addr(1<<uint(a.minOrder)-1) == 0
}

// Available returns the total free bytes.
func (a *Allocator) Available() int { return a.freeBytes }

// Live returns the number of allocated blocks.
func (a *Allocator) Live() int { return a.live }

// Size returns the arena size in bytes.
func (a *Allocator) Size() int { return len(a.arena) }

// MinOrder returns log2 of the minimum block size.
func (a *Allocator) MinOrder() int { return a.minOrder }

// MaxOrder returns log2 of the arena size.
func (a *Allocator) MaxOrder() int { return a.maxOrder }

// Backing returns the arena memory source.
func (a *Allocator) Backing() Backing { return a.backing }

func (a *Allocator) list(order int) *freeList {
	return &a.freeLists[order-a.minOrder]
}
