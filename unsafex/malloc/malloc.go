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
	"fmt"
	"log/slog"

	"github.com/cloudwego/mmalloc/heap"
)

// Ptr is the address of an allocation in the heap's address space.
type Ptr int

// Nil is the null address. Malloc and Realloc return it on failure.
const Nil Ptr = 0

// Allocator serves Malloc, Free and Realloc from a heap.Provider.
type Allocator struct {
	h        heap.Provider
	log      *slog.Logger
	pageSize int

	pools [numClasses]classPool
	big   bigList
}

// owner is the structure holding a live allocation: a slot of pool.chunk, or block.
type owner struct {
	pool  *classPool
	chunk int
	block int
	size  int
}

// New creates an allocator with no chunks and no blocks.
// The heap is not touched until the first Malloc. A nil opt means DefaultOption().
func New(h heap.Provider, opt *Option) (*Allocator, error) {
	if h == nil {
		return nil, fmt.Errorf("malloc: nil heap")
	}
	if opt == nil {
		opt = DefaultOption()
	}
	ps := opt.PageSize
	if ps <= 0 || ps&(ps-1) != 0 {
		return nil, fmt.Errorf("malloc: PageSize must be a power of two, got %d", ps)
	}
	if ps < chunkOverhead+MaxSmallSize {
		return nil, fmt.Errorf("malloc: PageSize must be >= %d, got %d", chunkOverhead+MaxSmallSize, ps)
	}
	log := opt.Logger
	if log == nil {
		log = discardLogger()
	}
	a := &Allocator{
		h:        h,
		log:      log,
		pageSize: ps,
		big:      bigList{h: h, log: log},
	}
	for i, sz := range classSizes {
		a.pools[i] = newClassPool(h, log, sz, ps)
	}
	return a, nil
}

// Malloc returns the address of a region of at least size bytes.
// The contents of the region are unspecified. Sizes too large to ever be
// represented in the heap fail with ErrOutOfMemory.
func (a *Allocator) Malloc(size int) (Ptr, error) {
	if size < 0 {
		return Nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if size > maxBigSize {
		return Nil, fmt.Errorf("%w: %d bytes requested", ErrOutOfMemory, size)
	}
	var (
		addr int
		err  error
	)
	if class := Classify(size); IsBig(class) {
		addr, err = a.big.acquire(class)
	} else {
		addr, err = a.pools[classIndex(class)].acquire()
	}
	if err != nil {
		return Nil, err
	}
	return Ptr(addr), nil
}

// Free makes the allocation at p reusable. Free(Nil) does nothing.
//
// Pointers that were never returned by Malloc or Realloc, interior pointers,
// and pointers that are already free are reported as ErrInvalidPointer
// (ErrDoubleFree for the latter) and leave the heap untouched.
func (a *Allocator) Free(p Ptr) error {
	if p == Nil {
		return nil
	}
	o, err := a.locate(p)
	if err != nil {
		a.log.Warn("malloc: rejected free", "addr", int(p), "err", err)
		return err
	}
	a.release(o, p)
	return nil
}

// Realloc resizes the allocation at p.
//
// If the current slot or block already holds size bytes, p is returned unchanged;
// allocations never shrink in place. Otherwise a new region is allocated, the old
// contents are copied and the old region is freed. On error p stays valid.
// Realloc(Nil, size) is Malloc(size).
func (a *Allocator) Realloc(p Ptr, size int) (Ptr, error) {
	if p == Nil {
		return a.Malloc(size)
	}
	if size < 0 {
		return Nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	o, err := a.locate(p)
	if err != nil {
		a.log.Warn("malloc: rejected realloc", "addr", int(p), "err", err)
		return Nil, err
	}
	if o.size >= size {
		return p, nil
	}
	np, err := a.Malloc(size)
	if err != nil {
		return Nil, err
	}
	// size > o.size, so the whole old capacity is copied
	copy(a.h.Bytes(int(np), o.size), a.h.Bytes(int(p), o.size))
	a.release(o, p)
	return np, nil
}

// UsableSize returns the capacity of the live allocation at p:
// its class size for small allocations, its block size for big ones.
func (a *Allocator) UsableSize(p Ptr) (int, error) {
	o, err := a.locate(p)
	if err != nil {
		return 0, err
	}
	return o.size, nil
}

// Bytes returns the first n bytes of the live allocation at p.
// The returned slice aliases heap memory and must not be used after p is freed.
func (a *Allocator) Bytes(p Ptr, n int) ([]byte, error) {
	o, err := a.locate(p)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > o.size {
		return nil, fmt.Errorf("%w: %d bytes requested, %d usable at %#x", ErrInvalidSize, n, o.size, int(p))
	}
	return a.h.Bytes(int(p), n), nil
}

// PageSize returns the chunk size of the size classes.
func (a *Allocator) PageSize() int {
	return a.pageSize
}

// Heap returns the provider the allocator grows.
func (a *Allocator) Heap() heap.Provider {
	return a.h
}

// locate finds the live allocation at p: size classes first, in class order, then big blocks.
func (a *Allocator) locate(p Ptr) (owner, error) {
	addr := int(p)
	for i := range a.pools {
		pool := &a.pools[i]
		c, err := pool.owner(addr)
		if err != nil {
			return owner{}, fmt.Errorf("%w: %#x", err, addr)
		}
		if c != 0 {
			return owner{pool: pool, chunk: c, size: pool.class}, nil
		}
	}
	b, err := a.big.owner(addr)
	if err != nil {
		return owner{}, fmt.Errorf("%w: %#x", err, addr)
	}
	if b == 0 {
		return owner{}, fmt.Errorf("%w: %#x", ErrInvalidPointer, addr)
	}
	return owner{block: b, size: a.big.size(b)}, nil
}

func (a *Allocator) release(o owner, p Ptr) {
	if o.pool != nil {
		o.pool.release(o.chunk, int(p))
		return
	}
	a.big.release(o.block)
}

// growAligned extends the heap by n bytes starting at a word-aligned address.
func growAligned(h heap.Provider, n int) (int, error) {
	brk, err := h.Grow(0)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutOfMemory, err)
	}
	pad := alignUp(brk, WordSize) - brk
	addr, err := h.Grow(pad + n)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutOfMemory, err)
	}
	return addr + pad, nil
}
