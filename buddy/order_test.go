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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderFor(t *testing.T) {
	tests := []struct {
		size  int
		order int
		ok    bool
	}{
		{1, 12, true},
		{4095, 12, true},
		{4096, 12, true},
		{4097, 13, true},
		{5000, 13, true},
		{8192, 13, true},
		{8193, 14, true},
		{1 << 19, 19, true},
		{1<<19 + 1, 20, true},
		{1 << 20, 20, true},
		{1<<20 + 1, -1, false},
		{1 << 30, -1, false},
	}
	for _, tt := range tests {
		order, ok := orderFor(tt.size, 12, 20)
		assert.Equal(t, tt.ok, ok, "size=%d", tt.size)
		assert.Equal(t, tt.order, order, "size=%d", tt.size)
	}
}

func TestOrderForMatchesPowerOfTwo(t *testing.T) {
	// orderFor is the smallest o with 2^o >= size
	for size := 1; size <= 1<<14; size++ {
		order, ok := orderFor(size, 4, 14)
		if !assert.True(t, ok, "size=%d", size) {
			return
		}
		want := 4
		for 1<<uint(want) < size {
			want++
		}
		if !assert.Equal(t, want, order, "size=%d", size) {
			return
		}
	}
}

func TestAllocatorOrderFor(t *testing.T) {
	a := newTestAllocator(t, 12, 14)
	order, ok := a.OrderFor(5000)
	assert.True(t, ok)
	assert.Equal(t, 13, order)
	_, ok = a.OrderFor(16385)
	assert.False(t, ok)
}

func TestBuddyOf(t *testing.T) {
	tests := []struct {
		addr  Addr
		order int
		want  Addr
	}{
		{0, 12, 4096},
		{4096, 12, 0},
		{0, 13, 8192},
		{8192, 13, 0},
		{12288, 12, 8192},
		{1 << 19, 19, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BuddyOf(tt.addr, tt.order), "addr=%v order=%d", tt.addr, tt.order)
		// the relation is symmetric
		assert.Equal(t, tt.addr, BuddyOf(tt.want, tt.order))
	}
}

func TestPageTranslation(t *testing.T) {
	a := newTestAllocator(t, 12, 16)
	for i := int32(0); i < int32(len(a.pages)); i++ {
		addr := a.addressOf(i)
		assert.Equal(t, Addr(i)*4096, addr)
		assert.Equal(t, i, a.pageOf(addr))
	}

	// page-index buddies agree with address buddies
	for i := int32(0); i < int32(len(a.pages)); i++ {
		for o := 12; o < 16; o++ {
			if int(i)&(1<<uint(o-12)-1) != 0 {
				continue
			}
			assert.Equal(t, BuddyOf(a.addressOf(i), o), a.addressOf(a.buddyPage(i, o)))
		}
	}
	assert.Equal(t, int32(1), a.pagesIn(12))
	assert.Equal(t, int32(16), a.pagesIn(16))
}

func TestAddrString(t *testing.T) {
	assert.Equal(t, "0x0", Addr(0).String())
	assert.Equal(t, "0x3000", Addr(12288).String())
}
