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

package malloc

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfMemory indicates that the heap could not grow to satisfy a request.
	ErrOutOfMemory = errors.New("malloc: out of memory")

	// ErrInvalidPointer indicates an address that is not owned by any live allocation.
	ErrInvalidPointer = errors.New("malloc: invalid pointer")

	// ErrDoubleFree indicates an address whose slot or block is already free.
	// It wraps ErrInvalidPointer.
	ErrDoubleFree = fmt.Errorf("%w: double free", ErrInvalidPointer)

	// ErrInvalidSize indicates a negative size, or an access beyond an allocation's capacity.
	ErrInvalidSize = errors.New("malloc: invalid size")

	// ErrCorrupted is returned by Check when heap bookkeeping is inconsistent.
	ErrCorrupted = errors.New("malloc: heap corrupted")
)
