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

// Package unsafex holds the unsafe helpers shared by the heap and the allocator.
// Callers are responsible for bounds checks; nothing here validates offsets.
package unsafex

import "unsafe"

// WordSize is the size of a machine word stored inline in heap memory.
const WordSize = 8

// LoadWord reads the 8-byte word at b[off:].
func LoadWord(b []byte, off int) uint64 {
	return *(*uint64)(unsafe.Add(unsafe.Pointer(unsafe.SliceData(b)), off))
}

// StoreWord writes v to the 8-byte word at b[off:].
func StoreWord(b []byte, off int, v uint64) {
	*(*uint64)(unsafe.Add(unsafe.Pointer(unsafe.SliceData(b)), off)) = v
}

// BinaryToString converts []byte to string without copy.
// The string is only valid as long as b is not modified.
func BinaryToString(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}
