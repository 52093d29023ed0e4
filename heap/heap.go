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

// Package heap implements an sbrk-style heap: a contiguous address range
// that only grows, backed by memory reserved up front.
package heap

import (
	"errors"
	"fmt"

	"github.com/cloudwego/mmalloc/unsafex"
)

const (
	// DefaultBase is the address of the first heap byte.
	// It is non-zero so that address 0 never names heap memory.
	DefaultBase = 4 << 10

	// DefaultMaxSize is the default reservation (64MB).
	DefaultMaxSize = 64 << 20
)

var (
	// ErrExhausted is returned by Grow when the reservation is used up.
	ErrExhausted = errors.New("heap: exhausted")

	errNegativeGrow = errors.New("heap: negative grow")
)

// Provider supplies contiguous memory on demand and word-level access to it.
//
// Grow extends the heap by n bytes and returns the address of the first new byte.
// Regions returned by consecutive calls are contiguous, and their contents are unspecified.
type Provider interface {
	Grow(n int) (int, error)
	Word(addr int) uint64
	SetWord(addr int, v uint64)
	Bytes(addr, n int) []byte
	Lo() int
	Size() int
}

// Option configures a Heap.
type Option struct {
	// MaxSize is the number of bytes reserved. Grow fails once they are all granted.
	MaxSize int

	// Base is the address of the first heap byte. Must be > 0.
	Base int

	// Mmap backs the heap with an anonymous private mapping instead of Go memory.
	// Ignored on platforms without mmap.
	Mmap bool
}

// DefaultOption returns the default values of Option.
func DefaultOption() *Option {
	return &Option{
		MaxSize: DefaultMaxSize,
		Base:    DefaultBase,
	}
}

// Heap is the default Provider.
//
// Memory is reserved once, so slices returned by Bytes stay valid across Grow calls.
// Heap is not safe for concurrent use.
type Heap struct {
	mem     []byte
	base    int
	brk     int
	release func() error
}

var _ Provider = (*Heap)(nil)

// New creates a heap with default options.
func New() (*Heap, error) {
	return NewWithOption(nil)
}

// NewWithOption creates a heap. A nil opt means DefaultOption().
func NewWithOption(opt *Option) (*Heap, error) {
	if opt == nil {
		opt = DefaultOption()
	}
	if opt.MaxSize <= 0 {
		return nil, fmt.Errorf("heap: MaxSize must be > 0, got %d", opt.MaxSize)
	}
	if opt.Base <= 0 {
		return nil, fmt.Errorf("heap: Base must be > 0, got %d", opt.Base)
	}
	var (
		mem     []byte
		release func() error
		err     error
	)
	if opt.Mmap {
		mem, release, err = reserve(opt.MaxSize)
	} else {
		mem, release, err = reserveGo(opt.MaxSize)
	}
	if err != nil {
		return nil, fmt.Errorf("heap: reserve %d bytes: %w", opt.MaxSize, err)
	}
	return &Heap{mem: mem, base: opt.Base, release: release}, nil
}

// Grow extends the heap by n bytes and returns the old break.
// Grow(0) returns the current break.
func (h *Heap) Grow(n int) (int, error) {
	if n < 0 {
		return 0, errNegativeGrow
	}
	if n > len(h.mem)-h.brk {
		return 0, fmt.Errorf("%w: need %d bytes, %d left", ErrExhausted, n, len(h.mem)-h.brk)
	}
	addr := h.base + h.brk
	h.brk += n
	return addr, nil
}

// Word returns the word stored at addr.
func (h *Heap) Word(addr int) uint64 {
	return unsafex.LoadWord(h.mem, h.offset(addr, unsafex.WordSize))
}

// SetWord stores v at addr.
func (h *Heap) SetWord(addr int, v uint64) {
	unsafex.StoreWord(h.mem, h.offset(addr, unsafex.WordSize), v)
}

// Bytes returns the n bytes starting at addr. The slice cap is n.
func (h *Heap) Bytes(addr, n int) []byte {
	off := h.offset(addr, n)
	return h.mem[off : off+n : off+n]
}

// offset converts addr to an index into mem, panics if [addr, addr+n) was never granted.
func (h *Heap) offset(addr, n int) int {
	off := addr - h.base
	if off < 0 || n < 0 || off > h.brk-n {
		panic(fmt.Sprintf("heap: access [%#x, %#x) outside [%#x, %#x)", addr, addr+n, h.base, h.base+h.brk))
	}
	return off
}

// Base returns the address of the first heap byte.
func (h *Heap) Base() int { return h.base }

// Lo returns the address of the first heap byte.
func (h *Heap) Lo() int { return h.base }

// Hi returns the address of the last granted byte, or Lo()-1 for an empty heap.
func (h *Heap) Hi() int { return h.base + h.brk - 1 }

// Size returns the number of bytes granted so far.
func (h *Heap) Size() int { return h.brk }

// Cap returns the number of bytes reserved.
func (h *Heap) Cap() int { return len(h.mem) }

// Close releases the reservation. The heap must not be used afterwards.
func (h *Heap) Close() error {
	if h.release == nil {
		return nil
	}
	err := h.release()
	h.release = nil
	h.mem = nil
	h.brk = 0
	return err
}
