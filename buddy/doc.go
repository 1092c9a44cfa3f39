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

// Package buddy implements a binary buddy allocator over one fixed arena.
//
// The arena is 2^MaxOrder bytes, carved into pages of 2^MinOrder bytes. Every
// block has a power-of-two size between the two and starts at an offset aligned
// to its size. Alloc rounds a request up to the next order and splits a larger
// free block when needed; Free merges a block with its buddy, the other half of
// the block it was split from, for as long as that buddy is free. Both are
// O(MaxOrder-MinOrder).
//
// Addresses are byte offsets from the arena base, so the first block handed out
// of a fresh allocator is Addr(0). Block returns the arena bytes behind an address.
package buddy
