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

import "github.com/cloudwego/mmalloc/unsafex"

const (
	// WordSize is the size of every inline bookkeeping word, and the alignment of every address.
	WordSize = unsafex.WordSize

	// DefaultPageSize is the default chunk size (4KB).
	DefaultPageSize = 4 << 10

	// MaxSmallSize is the largest request served from a size class.
	MaxSmallSize = 64

	numClasses = 5
)

// classSizes lists the size classes in the order Free and Realloc search them.
var classSizes = [numClasses]int{8, 16, 32, 48, 64}

// Classify maps a request size to its class: the smallest fixed class that fits,
// or the size itself for requests above MaxSmallSize.
func Classify(size int) int {
	switch {
	case size <= 8:
		return 8
	case size <= 16:
		return 16
	case size <= 32:
		return 32
	case size <= 48:
		return 48
	case size <= MaxSmallSize:
		return MaxSmallSize
	}
	return size
}

// IsBig reports whether class is served from the big-block list.
func IsBig(class int) bool {
	return class > MaxSmallSize
}

// classIndex returns the index of a fixed class in classSizes, or -1.
func classIndex(class int) int {
	for i, sz := range classSizes {
		if sz == class {
			return i
		}
	}
	return -1
}

// alignUp rounds n up to a multiple of a, a must be a power of two.
func alignUp(n, a int) int {
	return (n + a - 1) &^ (a - 1)
}
