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

package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOption(t *testing.T) {
	tests := []struct {
		name    string
		opt     *Option
		wantErr bool
	}{
		{"default", nil, false},
		{"small", &Option{MaxSize: 4096, Base: 4096}, false},
		{"mmap", &Option{MaxSize: 1 << 20, Base: 4096, Mmap: true}, false},
		{"zero_size", &Option{MaxSize: 0, Base: 4096}, true},
		{"zero_base", &Option{MaxSize: 4096, Base: 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewWithOption(tt.opt)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, h.Close())
		})
	}
}

func TestGrow(t *testing.T) {
	h, err := NewWithOption(&Option{MaxSize: 3 * 4096, Base: 4096})
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, 0, h.Size())
	assert.Equal(t, h.Lo()-1, h.Hi())

	a, err := h.Grow(4096)
	require.NoError(t, err)
	assert.Equal(t, 4096, a)

	b, err := h.Grow(100)
	require.NoError(t, err)
	assert.Equal(t, a+4096, b) // contiguous

	brk, err := h.Grow(0)
	require.NoError(t, err)
	assert.Equal(t, b+100, brk)
	assert.Equal(t, 4196, h.Size())
	assert.Equal(t, h.Lo()+4196-1, h.Hi())

	_, err = h.Grow(-1)
	assert.Error(t, err)

	_, err = h.Grow(3 * 4096)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 4196, h.Size(), "failed grow must not move the break")

	_, err = h.Grow(3*4096 - 4196)
	require.NoError(t, err)
	assert.Equal(t, h.Cap(), h.Size())
}

func TestWordAndBytes(t *testing.T) {
	for _, mmap := range []bool{false, true} {
		h, err := NewWithOption(&Option{MaxSize: 1 << 16, Base: 1 << 12, Mmap: mmap})
		require.NoError(t, err)

		addr, err := h.Grow(64)
		require.NoError(t, err)
		h.SetWord(addr, 42)
		h.SetWord(addr+56, 0xdeadbeef)
		assert.Equal(t, uint64(42), h.Word(addr))
		assert.Equal(t, uint64(0xdeadbeef), h.Word(addr+56))

		b := h.Bytes(addr+8, 16)
		assert.Len(t, b, 16)
		assert.Equal(t, 16, cap(b))
		for i := range b {
			b[i] = byte(i)
		}
		b2 := h.Bytes(addr+8, 16)
		assert.Equal(t, b, b2)

		// views survive growth
		_, err = h.Grow(1 << 12)
		require.NoError(t, err)
		assert.Equal(t, byte(15), b[15])
		assert.Equal(t, uint64(42), h.Word(addr))

		require.NoError(t, h.Close())
	}
}

func TestOutOfRangeAccessPanics(t *testing.T) {
	h, err := NewWithOption(&Option{MaxSize: 1 << 12, Base: 1 << 12})
	require.NoError(t, err)
	defer h.Close()

	addr, err := h.Grow(16)
	require.NoError(t, err)

	assert.Panics(t, func() { h.Word(addr - 8) })
	assert.Panics(t, func() { h.Word(addr + 16) })
	assert.Panics(t, func() { h.Word(addr + 12) }) // straddles the break
	assert.Panics(t, func() { h.SetWord(0, 1) })
	assert.Panics(t, func() { h.Bytes(addr, 17) })
	assert.NotPanics(t, func() { h.Bytes(addr, 16) })
	assert.NotPanics(t, func() { h.Word(addr + 8) })
}

func BenchmarkGrow(b *testing.B) {
	h, err := NewWithOption(&Option{MaxSize: 8*b.N + 8, Base: 1 << 12, Mmap: true})
	if err != nil {
		b.Fatal(err)
	}
	defer h.Close()
	for i := 0; i < b.N; i++ {
		if _, err := h.Grow(8); err != nil {
			b.Fatal(err)
		}
	}
}
