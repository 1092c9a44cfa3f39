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

const (
	// noOrder marks a page that is not the head of a block.
	noOrder int8 = -1

	// nilPage terminates a free list.
	nilPage int32 = -1
)

// page is the descriptor of one minimum-size page.
// Only the head page of a block carries an order.
type page struct {
	// order is the order of the block this page is the head of, or noOrder.
	order int8
	// onList reports whether the block is linked into freeLists[order].
	onList bool
	// index is the page number, used for address translation.
	index uint32
	// prev and next link the page into its free list.
	prev, next int32
}

// freeList is a doubly-linked list of page indices threaded through the
// descriptor table. Insert and remove are O(1).
type freeList struct {
	head int32
	n    int
}

func (l *freeList) init() {
	l.head = nilPage
	l.n = 0
}

func (l *freeList) empty() bool {
	return l.head == nilPage
}

// push inserts idx at the head of the list.
func (l *freeList) push(pages []page, idx int32) {
	p := &pages[idx]
	p.prev = nilPage
	p.next = l.head
	p.onList = true
	if l.head != nilPage {
		pages[l.head].prev = idx
	}
	l.head = idx
	l.n++
}

// pop unlinks and returns the head of the list. The list must not be empty.
func (l *freeList) pop(pages []page) int32 {
	idx := l.head
	l.remove(pages, idx)
	return idx
}

// remove unlinks idx, which must be on this list.
func (l *freeList) remove(pages []page, idx int32) {
	p := &pages[idx]
	if p.prev != nilPage {
		pages[p.prev].next = p.next
	} else {
		l.head = p.next
	}
	if p.next != nilPage {
		pages[p.next].prev = p.prev
	}
	p.prev, p.next = nilPage, nilPage
	p.onList = false
	l.n--
}
