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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBigBlockLayout(t *testing.T) {
	a := newTestAllocator(t, 1<<20)
	l := &a.big

	p, err := a.Malloc(100)
	require.NoError(t, err)
	b := l.root
	require.NotZero(t, b)
	assert.Equal(t, Ptr(b+bigHeaderSize), p)
	assert.Equal(t, 104, l.size(b), "size is rounded up to a word multiple")
	assert.True(t, l.allocated(b))
	assert.Zero(t, l.next(b))
	assert.Equal(t, 104+bigOverhead, a.Heap().Size())

	n, err := a.UsableSize(p)
	require.NoError(t, err)
	assert.Equal(t, 104, n)

	// the whole capacity is writable without touching the footer
	fill(t, a, p, 104, 1)
	assert.Zero(t, l.next(b))
	assert.True(t, l.allocated(b))
	assert.Equal(t, 104, l.size(b))
}

func TestBigBlockFirstFit(t *testing.T) {
	a := newTestAllocator(t, 1<<20)

	p100, err := a.Malloc(100)
	require.NoError(t, err)
	p200, err := a.Malloc(200)
	require.NoError(t, err)
	p300, err := a.Malloc(300)
	require.NoError(t, err)
	assert.True(t, p100 < p200 && p200 < p300, "blocks are appended in heap order")

	require.NoError(t, a.Free(p200))
	require.NoError(t, a.Free(p300))

	// 150 fits the 200 block first; the excess is not split off
	q, err := a.Malloc(150)
	require.NoError(t, err)
	assert.Equal(t, p200, q)
	n, err := a.UsableSize(q)
	require.NoError(t, err)
	assert.Equal(t, 200, n)

	// exact and oversized fits are treated alike: first one wins
	q, err = a.Malloc(200)
	require.NoError(t, err)
	assert.Equal(t, p300, q)

	size := a.Heap().Size()
	q, err = a.Malloc(1000)
	require.NoError(t, err)
	assert.Greater(t, q, p300)
	assert.Equal(t, size+1000+bigOverhead, a.Heap().Size())

	st := a.Stats()
	assert.Equal(t, 4, st.BigBlocks)
	assert.Zero(t, st.FreeBigBlocks)
	assert.Equal(t, 104+200+304+1000, st.BigBytes)
	require.NoError(t, a.Check())
}

func TestBigBlocksNeverCoalesce(t *testing.T) {
	a := newTestAllocator(t, 1<<20)

	p1, err := a.Malloc(200)
	require.NoError(t, err)
	p2, err := a.Malloc(200)
	require.NoError(t, err)
	require.NoError(t, a.Free(p1))
	require.NoError(t, a.Free(p2))

	// two adjacent free 200-byte blocks do not serve a 300-byte request
	q, err := a.Malloc(300)
	require.NoError(t, err)
	assert.NotEqual(t, p1, q)
	assert.NotEqual(t, p2, q)

	st := a.Stats()
	assert.Equal(t, 3, st.BigBlocks)
	assert.Equal(t, 2, st.FreeBigBlocks)
}

func TestBigBlockOwner(t *testing.T) {
	a := newTestAllocator(t, 1<<20)
	l := &a.big

	p, err := a.Malloc(128)
	require.NoError(t, err)

	b, err := l.owner(int(p))
	require.NoError(t, err)
	assert.Equal(t, l.root, b)

	b, err = l.owner(int(p) + 8)
	require.NoError(t, err)
	assert.Zero(t, b, "interior pointers have no owner")

	l.release(l.root)
	_, err = l.owner(int(p))
	assert.ErrorIs(t, err, ErrDoubleFree)
}

func TestBigBlockRejectsUnrepresentableSize(t *testing.T) {
	a := newTestAllocator(t, 1<<20)
	l := &a.big

	p, err := a.Malloc(100)
	require.NoError(t, err)
	require.NoError(t, a.Free(p))

	for _, size := range []int{-1, maxBigSize + 1, math.MaxInt} {
		b, err := l.acquire(size)
		assert.ErrorIs(t, err, ErrOutOfMemory, "size=%d", size)
		assert.Zero(t, b)
	}
	assert.False(t, l.allocated(l.root), "the free block is not claimed")
	assert.Equal(t, 1, l.blocks)
	assert.Equal(t, 104, l.bytes)
}
