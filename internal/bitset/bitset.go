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

// Package bitset implements a fixed-size bitmap with one bit per page.
package bitset

import (
	"encoding/binary"
	"math/bits"
)

// Bitset is a fixed-size set of bits. Bit i lives in byte i>>3, bit i&7.
type Bitset struct {
	bitmap []byte
	n      int
}

// New returns a Bitset of n cleared bits.
func New(n int) *Bitset {
	return &Bitset{bitmap: make([]byte, (n+7)>>3), n: n}
}

// IsSet returns true if bit idx is set.
func (b *Bitset) IsSet(idx int) bool {
	return b.bitmap[idx>>3]&(1<<(idx&7)) != 0
}

// AnySet reports whether any of the count bits starting at idx is set.
func (b *Bitset) AnySet(idx, count int) bool {
	for i := idx; i < idx+count; {
		if i&7 == 0 && i+8 <= idx+count {
			if b.bitmap[i>>3] != 0 {
				return true
			}
			i += 8
			continue
		}
		if b.IsSet(i) {
			return true
		}
		i++
	}
	return false
}

// SetRange sets count bits starting at idx.
func (b *Bitset) SetRange(idx, count int) {
	if count == 0 {
		return
	}
	end := idx + count
	startByte := idx >> 3
	endByte := (end - 1) >> 3

	if startByte == endByte {
		b.bitmap[startByte] |= byte((1<<count)-1) << (idx & 7)
		return
	}
	b.bitmap[startByte] |= byte(0xFF) << (idx & 7)
	for i := startByte + 1; i < endByte; i++ {
		b.bitmap[i] = 0xFF
	}
	b.bitmap[endByte] |= byte((1 << ((end-1)&7 + 1)) - 1)
}

// NextClear returns the index of the first clear bit at or after from, or -1.
func (b *Bitset) NextClear(from int) int {
	bitmap := b.bitmap
	n := len(bitmap)
	byteIdx := from >> 3
	bitIdx := from & 7

	// partial first byte
	if bitIdx != 0 && byteIdx < n {
		v := bitmap[byteIdx] | (byte(1<<bitIdx) - 1)
		if v != 0xFF {
			return b.clip(byteIdx<<3 + bits.TrailingZeros8(^v))
		}
		byteIdx++
	}

	// 64-bit words
	for byteIdx+8 <= n {
		v := binary.LittleEndian.Uint64(bitmap[byteIdx:])
		if v != ^uint64(0) {
			return b.clip(byteIdx<<3 + bits.TrailingZeros64(^v))
		}
		byteIdx += 8
	}

	for ; byteIdx < n; byteIdx++ {
		if bitmap[byteIdx] != 0xFF {
			return b.clip(byteIdx<<3 + bits.TrailingZeros8(^bitmap[byteIdx]))
		}
	}
	return -1
}

func (b *Bitset) clip(idx int) int {
	if idx < b.n {
		return idx
	}
	return -1
}

