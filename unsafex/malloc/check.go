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

import "fmt"

// ClassStats describes the chunk chain of one size class.
type ClassStats struct {
	Size      int `json:"size"`
	Chunks    int `json:"chunks"`
	Slots     int `json:"slots"`
	FreeSlots int `json:"free_slots"`
}

// Stats is a snapshot of the allocator's bookkeeping.
type Stats struct {
	HeapSize int          `json:"heap_size"`
	PageSize int          `json:"page_size"`
	Classes  []ClassStats `json:"classes"`

	BigBlocks     int `json:"big_blocks"`
	FreeBigBlocks int `json:"free_big_blocks"`
	// BigBytes is the payload capacity of all big blocks.
	BigBytes int `json:"big_bytes"`
}

// Stats walks every chain. It assumes the heap is consistent, see Check.
func (a *Allocator) Stats() Stats {
	s := Stats{
		HeapSize: a.h.Size(),
		PageSize: a.pageSize,
		Classes:  make([]ClassStats, 0, numClasses),
	}
	for i := range a.pools {
		p := &a.pools[i]
		cs := ClassStats{Size: p.class}
		for c := p.root; c != 0; c = p.next(c) {
			cs.Chunks++
			cs.Slots += p.slots
			cs.FreeSlots += p.freeCount(c)
		}
		s.Classes = append(s.Classes, cs)
	}
	for b := a.big.root; b != 0; b = a.big.next(b) {
		s.BigBlocks++
		s.BigBytes += a.big.size(b)
		if !a.big.allocated(b) {
			s.FreeBigBlocks++
		}
	}
	return s
}

// Check verifies the heap bookkeeping and returns an ErrCorrupted error
// describing the first inconsistency found.
//
// For every chunk, the free count must equal the length of its free list and
// every free-list link must name a distinct slot of that chunk. Chains must stay
// inside the heap and move forward, so they always terminate. Big block sizes
// must be word multiples. Every chunk and block ever created must still be
// reachable from its chain with its original size.
func (a *Allocator) Check() error {
	for i := range a.pools {
		if err := a.checkPool(&a.pools[i]); err != nil {
			return err
		}
	}
	return a.checkBig()
}

func (a *Allocator) inHeap(addr, n int) bool {
	lo := a.h.Lo()
	return addr >= lo && addr%WordSize == 0 && addr+n <= lo+a.h.Size()
}

func (a *Allocator) checkPool(p *classPool) error {
	prev, chunks := 0, 0
	for c := p.root; c != 0; c = p.next(c) {
		if c <= prev || !a.inHeap(c, p.nextOff()+WordSize) {
			return fmt.Errorf("%w: class %d: chunk %#x out of order or outside heap", ErrCorrupted, p.class, c)
		}
		prev = c

		n := p.freeCount(c)
		if n < 0 || n > p.slots {
			return fmt.Errorf("%w: class %d chunk %#x: free count %d of %d slots", ErrCorrupted, p.class, c, n, p.slots)
		}
		head := p.freeHead(c)
		if (n == 0) != (head == 0) {
			return fmt.Errorf("%w: class %d chunk %#x: free count %d with head %#x", ErrCorrupted, p.class, c, n, head)
		}
		lo, hi := p.slotRange(c)
		seen := make(map[int]struct{}, n)
		s := head
		for i := 0; i < n; i++ {
			if s < lo || s >= hi || (s-lo)%p.class != 0 {
				return fmt.Errorf("%w: class %d chunk %#x: free link %#x is not a slot", ErrCorrupted, p.class, c, s)
			}
			if _, ok := seen[s]; ok {
				return fmt.Errorf("%w: class %d chunk %#x: free list cycles at %#x", ErrCorrupted, p.class, c, s)
			}
			seen[s] = struct{}{}
			s = int(a.h.Word(s))
		}
		chunks++
	}
	if chunks != p.chunks {
		return fmt.Errorf("%w: class %d: %d chunks reachable, %d created", ErrCorrupted, p.class, chunks, p.chunks)
	}
	return nil
}

func (a *Allocator) checkBig() error {
	l := &a.big
	prev, blocks, bytes := 0, 0, 0
	for b := l.root; b != 0; b = l.next(b) {
		if b <= prev || !a.inHeap(b, bigOverhead) {
			return fmt.Errorf("%w: big block %#x out of order or outside heap", ErrCorrupted, b)
		}
		prev = b
		sz := l.size(b)
		if sz%WordSize != 0 {
			return fmt.Errorf("%w: big block %#x: size %d is not a multiple of %d", ErrCorrupted, b, sz, WordSize)
		}
		if !a.inHeap(b, bigOverhead+sz) {
			return fmt.Errorf("%w: big block %#x: size %d runs past the heap", ErrCorrupted, b, sz)
		}
		blocks++
		bytes += sz
	}
	if blocks != l.blocks || bytes != l.bytes {
		return fmt.Errorf("%w: big list: %d blocks of %d bytes reachable, %d blocks of %d bytes created",
			ErrCorrupted, blocks, bytes, l.blocks, l.bytes)
	}
	return nil
}
