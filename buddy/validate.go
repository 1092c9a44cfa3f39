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
	"errors"
	"fmt"

	"github.com/cloudwego/buddy/internal/bitset"
)

// Validate walks the descriptor table and the free lists and reports every
// broken invariant, each wrapping ErrCorrupted. It returns nil for a healthy allocator.
//
// Checked: the blocks tile the arena exactly once, every block is aligned to its
// size, free lists only hold free blocks of their own order and are well linked,
// no two free buddies of the same order are left unmerged, and the cached
// counters match.
//
// Validate walks every page, so it is meant for tests and diagnostics.
func (a *Allocator) Validate() error {
	var errs []error
	corrupt := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]interface{}{ErrCorrupted}, args...)...))
	}

	for o := a.minOrder; o <= a.maxOrder; o++ {
		l := a.list(o)
		n, prev := 0, nilPage
		for idx := l.head; idx != nilPage; idx = a.pages[idx].next {
			p := &a.pages[idx]
			if !p.onList {
				corrupt("order %d list holds %v which is not marked free", o, a.addressOf(idx))
			}
			if int(p.order) != o {
				corrupt("order %d list holds %v of order %d", o, a.addressOf(idx), p.order)
			}
			if p.prev != prev {
				corrupt("order %d list: %v has a broken back link", o, a.addressOf(idx))
			}
			prev = idx
			n++
			if n > len(a.pages) {
				corrupt("order %d list is cyclic", o)
				break
			}
		}
		if n != l.n {
			corrupt("order %d list has %d blocks, counted %d", o, n, l.n)
		}
	}

	covered := bitset.New(len(a.pages))
	freeBytes, live := 0, 0
	for i := range a.pages {
		idx := int32(i)
		p := &a.pages[i]
		if p.order == noOrder {
			if p.onList {
				corrupt("%v is on a free list without an order", a.addressOf(idx))
			}
			continue
		}
		o := int(p.order)
		if o < a.minOrder || o > a.maxOrder {
			corrupt("%v has order %d out of range", a.addressOf(idx), o)
			continue
		}
		span := int(a.pagesIn(o))
		if i&(span-1) != 0 {
			corrupt("%v is not aligned to order %d", a.addressOf(idx), o)
			continue
		}
		if covered.AnySet(i, span) {
			corrupt("%v of order %d overlaps another block", a.addressOf(idx), o)
		}
		covered.SetRange(i, span)

		if !p.onList {
			live++
			continue
		}
		freeBytes += 1 << uint(o)
		if o < a.maxOrder {
			b := a.buddyPage(idx, o)
			if bp := &a.pages[b]; b > idx && int(bp.order) == o && bp.onList {
				corrupt("free buddies %v and %v of order %d are not merged", a.addressOf(idx), a.addressOf(b), o)
			}
		}
	}

	if gap := covered.NextClear(0); gap != -1 {
		corrupt("%v is not covered by any block", a.addressOf(int32(gap)))
	}
	if freeBytes != a.freeBytes {
		corrupt("free bytes %d, counted %d", freeBytes, a.freeBytes)
	}
	if live != a.live {
		corrupt("live blocks %d, counted %d", live, a.live)
	}
	return errors.Join(errs...)
}
