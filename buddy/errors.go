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

import "errors"

var (
	// ErrRequestTooLarge indicates the requested size exceeds the arena capacity.
	ErrRequestTooLarge = errors.New("buddy: request too large")

	// ErrOutOfMemory indicates no free block of sufficient size exists.
	// Retrying only makes sense after an intervening Free.
	ErrOutOfMemory = errors.New("buddy: out of memory")

	// ErrInvalidSize indicates a request for less than one byte.
	ErrInvalidSize = errors.New("buddy: size must be >= 1")

	// ErrInvalidFree indicates Free was called with an address that is not
	// the head of a live allocation: foreign, misaligned, interior or already free.
	ErrInvalidFree = errors.New("buddy: invalid free")

	// ErrInvalidAddress indicates an address that does not name a live allocation.
	ErrInvalidAddress = errors.New("buddy: invalid address")

	// ErrInvalidOption indicates a rejected Option.
	ErrInvalidOption = errors.New("buddy: invalid option")

	// ErrClosed indicates Alloc on an allocator whose arena has been released.
	ErrClosed = errors.New("buddy: allocator closed")

	// ErrCorrupted is wrapped by every violation reported by Validate.
	ErrCorrupted = errors.New("buddy: corrupted state")
)
