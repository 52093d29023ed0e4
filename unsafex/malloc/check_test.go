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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats(t *testing.T) {
	a := newTestAllocator(t, 1<<20)
	st := a.Stats()
	require.Len(t, st.Classes, numClasses)
	assert.Zero(t, st.HeapSize)
	assert.Equal(t, DefaultPageSize, st.PageSize)

	_, err := a.Malloc(8)
	require.NoError(t, err)
	p, err := a.Malloc(30)
	require.NoError(t, err)
	_, err = a.Malloc(1000)
	require.NoError(t, err)
	require.NoError(t, a.Free(p))

	st = a.Stats()
	assert.Equal(t, 2*DefaultPageSize+1000+bigOverhead, st.HeapSize)
	assert.Equal(t, ClassStats{Size: 8, Chunks: 1, Slots: 509, FreeSlots: 508}, st.Classes[0])
	assert.Equal(t, ClassStats{Size: 16}, st.Classes[1])
	assert.Equal(t, ClassStats{Size: 32, Chunks: 1, Slots: 127, FreeSlots: 127}, st.Classes[2])
	assert.Equal(t, 1, st.BigBlocks)
	assert.Zero(t, st.FreeBigBlocks)
	assert.Equal(t, 1000, st.BigBytes)
}

func TestCheckDetectsCorruption(t *testing.T) {
	setup := func(t *testing.T) (*Allocator, Ptr, Ptr) {
		a := newTestAllocator(t, 1<<20)
		p, err := a.Malloc(16)
		require.NoError(t, err)
		b, err := a.Malloc(200)
		require.NoError(t, err)
		require.NoError(t, a.Check())
		return a, p, b
	}
	tests := []struct {
		name    string
		corrupt func(t *testing.T, a *Allocator, p, b Ptr)
	}{
		{"free_count_too_large", func(t *testing.T, a *Allocator, p, b Ptr) {
			c := a.pools[1].root
			a.h.SetWord(c+chunkCountOff, uint64(a.pools[1].slots+1))
		}},
		{"free_count_mismatch", func(t *testing.T, a *Allocator, p, b Ptr) {
			c := a.pools[1].root
			a.h.SetWord(c+chunkCountOff, 0)
		}},
		{"free_list_cycle", func(t *testing.T, a *Allocator, p, b Ptr) {
			// the head slot links to itself
			c := a.pools[1].root
			head := a.pools[1].freeHead(c)
			a.h.SetWord(head, uint64(head))
		}},
		{"free_link_misaligned", func(t *testing.T, a *Allocator, p, b Ptr) {
			c := a.pools[1].root
			head := a.pools[1].freeHead(c)
			a.h.SetWord(head, uint64(head+3))
		}},
		{"chunk_link_backwards", func(t *testing.T, a *Allocator, p, b Ptr) {
			pool := &a.pools[1]
			c := pool.root
			a.h.SetWord(c+pool.nextOff(), uint64(c))
		}},
		{"big_size_unaligned", func(t *testing.T, a *Allocator, p, b Ptr) {
			blk := int(b) - bigHeaderSize
			a.h.SetWord(blk, 204|allocBit)
		}},
		{"big_size_past_heap", func(t *testing.T, a *Allocator, p, b Ptr) {
			blk := int(b) - bigHeaderSize
			a.h.SetWord(blk, 1<<21)
		}},
		{"big_chain_truncated", func(t *testing.T, a *Allocator, p, b Ptr) {
			_, err := a.Malloc(300)
			require.NoError(t, err)
			// the footer of b's block no longer names the 300-byte block
			a.h.SetWord(int(b)+200, 0)
		}},
		{"big_block_swallows_next", func(t *testing.T, a *Allocator, p, b Ptr) {
			_, err := a.Malloc(300)
			require.NoError(t, err)
			// b's size now spans the next block, whose footer ends the chain
			blk := int(b) - bigHeaderSize
			a.h.SetWord(blk, uint64(200+bigOverhead+304)|allocBit)
		}},
		{"chunk_chain_truncated", func(t *testing.T, a *Allocator, p, b Ptr) {
			pool := &a.pools[1]
			for pool.chunks < 2 {
				_, err := a.Malloc(16)
				require.NoError(t, err)
			}
			a.h.SetWord(pool.root+pool.nextOff(), 0)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, p, b := setup(t)
			tt.corrupt(t, a, p, b)
			assert.ErrorIs(t, a.Check(), ErrCorrupted)
		})
	}
}
