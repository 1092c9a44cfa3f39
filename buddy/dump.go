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
	"io"
	"strconv"
	"strings"

	"github.com/bytedance/gopkg/lang/mcache"
)

// dumpEntrySize bounds one "<count>:<size>K " entry: 8 digits of count, 7 of size.
const dumpEntrySize = 20

// OrderStats describes the free list of one order.
type OrderStats struct {
	Order     int `json:"order"`
	BlockSize int `json:"block_size"`
	Free      int `json:"free"`
}

// Stats is a snapshot of the allocator state.
type Stats struct {
	MinOrder  int          `json:"min_order"`
	MaxOrder  int          `json:"max_order"`
	ArenaSize int          `json:"arena_size"`
	FreeBytes int          `json:"free_bytes"`
	Live      int          `json:"live"`
	Orders    []OrderStats `json:"orders"`
}

// FreeBlocks returns the number of free blocks of the given order.
func (a *Allocator) FreeBlocks(order int) int {
	if order < a.minOrder || order > a.maxOrder {
		return 0
	}
	return a.list(order).n
}

// Stats returns the free block count of every order along with totals.
func (a *Allocator) Stats() Stats {
	s := Stats{
		MinOrder:  a.minOrder,
		MaxOrder:  a.maxOrder,
		ArenaSize: len(a.arena),
		FreeBytes: a.freeBytes,
		Live:      a.live,
		Orders:    make([]OrderStats, 0, len(a.freeLists)),
	}
	for o := a.minOrder; o <= a.maxOrder; o++ {
		s.Orders = append(s.Orders, OrderStats{
			Order:     o,
			BlockSize: 1 << uint(o),
			Free:      a.list(o).n,
		})
	}
	return s
}

// WriteDump writes one "<free blocks>:<block size> " entry per order, smallest
// order first, followed by a newline. Sizes are in KB, or in bytes below 1KB.
func (a *Allocator) WriteDump(w io.Writer) error {
	buf := mcache.Malloc(0, dumpEntrySize*len(a.freeLists)+1)
	for o := a.minOrder; o <= a.maxOrder; o++ {
		buf = strconv.AppendInt(buf, int64(a.list(o).n), 10)
		buf = append(buf, ':')
		buf = appendSize(buf, 1<<uint(o))
		buf = append(buf, ' ')
	}
	buf = append(buf, '\n')
	_, err := w.Write(buf)
	mcache.Free(buf)
	return err
}

// Dump returns the WriteDump output as a string.
func (a *Allocator) Dump() string {
	var sb strings.Builder
	_ = a.WriteDump(&sb)
	return sb.String()
}

func appendSize(buf []byte, size int) []byte {
	if size < 1024 {
		buf = strconv.AppendInt(buf, int64(size), 10)
		return append(buf, 'B')
	}
	buf = strconv.AppendInt(buf, int64(size/1024), 10)
	return append(buf, 'K')
}
