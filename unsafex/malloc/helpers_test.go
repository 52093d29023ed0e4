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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/mmalloc/heap"
)

func newTestHeap(t testing.TB, maxSize int) *heap.Heap {
	h, err := heap.NewWithOption(&heap.Option{MaxSize: maxSize, Base: heap.DefaultBase})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func newTestAllocator(t testing.TB, maxSize int) *Allocator {
	a, err := New(newTestHeap(t, maxSize), nil)
	require.NoError(t, err)
	return a
}

// failingHeap rejects every Grow while fail is set.
type failingHeap struct {
	*heap.Heap
	fail bool
}

func (f *failingHeap) Grow(n int) (int, error) {
	if f.fail {
		return 0, heap.ErrExhausted
	}
	return f.Heap.Grow(n)
}

// overlap reports whether [p, p+n) and [q, q+m) intersect.
func overlap(p Ptr, n int, q Ptr, m int) bool {
	if n == 0 || m == 0 {
		return false
	}
	return p < q+Ptr(m) && q < p+Ptr(n)
}

func fill(t testing.TB, a *Allocator, p Ptr, n int, seed byte) {
	b, err := a.Bytes(p, n)
	require.NoError(t, err)
	for i := range b {
		b[i] = seed + byte(i)
	}
}

func requireFilled(t testing.TB, a *Allocator, p Ptr, n int, seed byte) {
	b, err := a.Bytes(p, n)
	require.NoError(t, err)
	for i := range b {
		require.Equal(t, seed+byte(i), b[i], "byte %d at %#x", i, int(p))
	}
}
