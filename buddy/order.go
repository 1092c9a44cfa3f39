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
)

// Addr is a byte offset from the arena base. The arena base is Addr(0).
type Addr uint64

func (a Addr) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}

// BuddyOf returns the address of the buddy of the block at addr with the given order.
func BuddyOf(addr Addr, order int) Addr {
	return addr ^ (1 << uint(order))
}

// orderFor returns the smallest order in [minOrder, maxOrder] whose block holds size bytes.
// It uses bits.Len to round size up to a power of two.
func orderFor(size, minOrder, maxOrder int) (int, bool) {
	if size <= 1<<uint(minOrder) {
		return minOrder, true
	}
	order := bits.Len(uint(size - 1))
	if order > maxOrder {
		return -1, false
	}
	return order, true
}

// OrderFor returns the order of the block Alloc(size) would hand out.
// ok is false if size exceeds the arena.
func (a *Allocator) OrderFor(size int) (order int, ok bool) {
	return orderFor(size, a.minOrder, a.maxOrder)
}

// pageOf translates an address to its page index.
func (a *Allocator) pageOf(addr Addr) int32 {
	return int32(addr >> uint(a.minOrder))
}

// addressOf translates a page index to its address.
func (a *Allocator) addressOf(idx int32) Addr {
	return Addr(a.pages[idx].index) << uint(a.minOrder)
}

// buddyPage is BuddyOf expressed on page indices.
func (a *Allocator) buddyPage(idx int32, order int) int32 {
	return idx ^ (1 << uint(order-a.minOrder))
}

// pagesIn returns the number of pages covered by a block of the given order.
func (a *Allocator) pagesIn(order int) int32 {
	return 1 << uint(order-a.minOrder)
}
