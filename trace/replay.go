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

package trace

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"

	"github.com/bytedance/gopkg/lang/mcache"
	"github.com/bytedance/gopkg/util/xxhash3"

	"github.com/cloudwego/mmalloc/heap"
	"github.com/cloudwego/mmalloc/unsafex/malloc"
)

var (
	// ErrBadOp indicates an op that is invalid for the current state of its id.
	ErrBadOp = errors.New("trace: bad op")

	// ErrMisaligned indicates an address that is not word aligned.
	ErrMisaligned = errors.New("trace: misaligned address")

	// ErrOverlap indicates a region that overlaps another live region.
	ErrOverlap = errors.New("trace: overlapping regions")

	// ErrPayload indicates payload bytes changed while the region was live.
	ErrPayload = errors.New("trace: payload corrupted")
)

// Allocator is what Replay drives. *malloc.Allocator implements it.
type Allocator interface {
	Malloc(size int) (malloc.Ptr, error)
	Free(p malloc.Ptr) error
	Realloc(p malloc.Ptr, size int) (malloc.Ptr, error)
	Bytes(p malloc.Ptr, n int) ([]byte, error)
	Heap() heap.Provider
}

var _ Allocator = (*malloc.Allocator)(nil)

// Result summarizes a replay.
type Result struct {
	Name        string  `json:"name"`
	Ops         int     `json:"ops"`
	PeakPayload int     `json:"peak_payload"`
	HeapSize    int     `json:"heap_size"`
	Utilization float64 `json:"utilization"`
}

type region struct {
	p    malloc.Ptr
	size int
	sum  uint64
	live bool
}

type replayer struct {
	a       Allocator
	rnd     *rand.Rand
	regions []region
	payload int
	peak    int
}

// Replay runs every op of t against a and verifies each result: addresses are
// word aligned, live regions never overlap, payloads are not modified behind the
// client's back, and Realloc keeps the leading bytes.
//
// It stops at the first failure and returns an error naming the op.
func Replay(a Allocator, t *Trace) (*Result, error) {
	r := &replayer{
		a:       a,
		rnd:     rand.New(rand.NewSource(int64(len(t.Ops)))),
		regions: make([]region, t.NumIDs),
	}
	for i, op := range t.Ops {
		if op.ID < 0 || op.ID >= len(r.regions) {
			return nil, fmt.Errorf("op %d (%s %d): %w: id out of range", i, op.Kind, op.ID, ErrBadOp)
		}
		if err := r.run(op); err != nil {
			return nil, fmt.Errorf("op %d (%s %d): %w", i, op.Kind, op.ID, err)
		}
	}
	res := &Result{
		Name:        t.Name,
		Ops:         len(t.Ops),
		PeakPayload: r.peak,
		HeapSize:    a.Heap().Size(),
	}
	if res.HeapSize > 0 {
		res.Utilization = float64(res.PeakPayload) / float64(res.HeapSize)
	}
	return res, nil
}

func (r *replayer) run(op Op) error {
	reg := &r.regions[op.ID]
	switch op.Kind {
	case Alloc:
		if reg.live {
			return fmt.Errorf("%w: id is already allocated", ErrBadOp)
		}
		p, err := r.a.Malloc(op.Size)
		if err != nil {
			return err
		}
		if err := r.place(op.ID, p, op.Size); err != nil {
			return err
		}
		r.payload += op.Size
	case Realloc:
		if !reg.live {
			return fmt.Errorf("%w: id is not allocated", ErrBadOp)
		}
		if err := r.verify(reg); err != nil {
			return err
		}
		keep := reg.size
		if op.Size < keep {
			keep = op.Size
		}
		old, err := r.a.Bytes(reg.p, keep)
		if err != nil {
			return err
		}
		snap := mcache.Malloc(keep)
		defer mcache.Free(snap)
		copy(snap, old)

		p, err := r.a.Realloc(reg.p, op.Size)
		if err != nil {
			return err
		}
		moved, err := r.a.Bytes(p, keep)
		if err != nil {
			return err
		}
		if !bytes.Equal(snap, moved) {
			return fmt.Errorf("%w: realloc lost leading %d bytes", ErrPayload, keep)
		}
		r.payload -= reg.size
		reg.live = false
		if err := r.place(op.ID, p, op.Size); err != nil {
			return err
		}
		r.payload += op.Size
	case Free:
		if !reg.live {
			return fmt.Errorf("%w: id is not allocated", ErrBadOp)
		}
		if err := r.verify(reg); err != nil {
			return err
		}
		if err := r.a.Free(reg.p); err != nil {
			return err
		}
		reg.live = false
		r.payload -= reg.size
	default:
		return fmt.Errorf("%w: unknown kind", ErrBadOp)
	}
	if r.payload > r.peak {
		r.peak = r.payload
	}
	return nil
}

// place checks a fresh region for id, fills it with random bytes and records its fingerprint.
func (r *replayer) place(id int, p malloc.Ptr, size int) error {
	if p%malloc.WordSize != 0 {
		return fmt.Errorf("%w: %#x", ErrMisaligned, int(p))
	}
	for i := range r.regions {
		o := &r.regions[i]
		if i == id || !o.live {
			continue
		}
		if p < o.p+malloc.Ptr(o.size) && o.p < p+malloc.Ptr(size) {
			return fmt.Errorf("%w: [%#x, %#x) and id %d [%#x, %#x)",
				ErrOverlap, int(p), int(p)+size, i, int(o.p), int(o.p)+o.size)
		}
	}
	b, err := r.a.Bytes(p, size)
	if err != nil {
		return err
	}
	r.rnd.Read(b)
	r.regions[id] = region{p: p, size: size, sum: xxhash3.Hash(b), live: true}
	return nil
}

func (r *replayer) verify(reg *region) error {
	b, err := r.a.Bytes(reg.p, reg.size)
	if err != nil {
		return err
	}
	if xxhash3.Hash(b) != reg.sum {
		return fmt.Errorf("%w: %d bytes at %#x", ErrPayload, reg.size, int(reg.p))
	}
	return nil
}
