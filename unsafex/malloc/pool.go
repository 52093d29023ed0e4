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

// Chunk layout, as offsets from the chunk address.
const (
	chunkCountOff = 0
	chunkHeadOff  = WordSize
	chunkSlotsOff = 2 * WordSize

	// chunkOverhead is count, head and the trailing next link.
	chunkOverhead = 3 * WordSize
)

// classPool manages the chunk chain of one size class.
type classPool struct {
	h        heap.Provider
	log      *slog.Logger
	class    int // slot size
	slots    int // slots per chunk
	pageSize int
	root     int // first chunk, 0 if none yet
	chunks   int // chunks created by grow
}

func newClassPool(h heap.Provider, log *slog.Logger, class, pageSize int) classPool {
	return classPool{
		h:        h,
		log:      log,
		class:    class,
		slots:    (pageSize - chunkOverhead) / class,
		pageSize: pageSize,
	}
}

func (p *classPool) nextOff() int {
	return chunkSlotsOff + p.slots*p.class
}

func (p *classPool) next(c int) int {
	return int(p.h.Word(c + p.nextOff()))
}

func (p *classPool) freeCount(c int) int {
	return int(p.h.Word(c + chunkCountOff))
}

func (p *classPool) freeHead(c int) int {
	return int(p.h.Word(c + chunkHeadOff))
}

// slotRange returns the [lo, hi) addresses of the slot array of chunk c.
func (p *classPool) slotRange(c int) (lo, hi int) {
	lo = c + chunkSlotsOff
	return lo, lo + p.slots*p.class
}

// acquire returns a free slot, appending a new chunk to the chain if every chunk is full.
func (p *classPool) acquire() (int, error) {
	last := 0
	for c := p.root; c != 0; c = p.next(c) {
		if p.freeCount(c) > 0 {
			return p.pop(c), nil
		}
		last = c
	}
	c, err := p.grow()
	if err != nil {
		return 0, err
	}
	if last == 0 {
		p.root = c
	} else {
		p.h.SetWord(last+p.nextOff(), uint64(c))
	}
	return p.pop(c), nil
}

// pop takes the head of the free list of chunk c, which must have a free slot.
func (p *classPool) pop(c int) int {
	n := p.freeCount(c) - 1
	slot := p.freeHead(c)
	p.h.SetWord(c+chunkCountOff, uint64(n))
	if n == 0 {
		p.h.SetWord(c+chunkHeadOff, 0)
	} else {
		p.h.SetWord(c+chunkHeadOff, p.h.Word(slot))
	}
	return slot
}

// release pushes slot onto the free list of chunk c.
func (p *classPool) release(c, slot int) {
	p.h.SetWord(slot, uint64(p.freeHead(c)))
	p.h.SetWord(c+chunkHeadOff, uint64(slot))
	p.h.SetWord(c+chunkCountOff, uint64(p.freeCount(c)+1))
}

// grow requests one page and formats it as a chunk with every slot free.
func (p *classPool) grow() (int, error) {
	c, err := growAligned(p.h, p.pageSize)
	if err != nil {
		return 0, err
	}
	first, _ := p.slotRange(c)
	p.h.SetWord(c+chunkCountOff, uint64(p.slots))
	p.h.SetWord(c+chunkHeadOff, uint64(first))
	for i := 0; i < p.slots; i++ {
		slot := first + i*p.class
		next := slot + p.class
		if i == p.slots-1 {
			next = 0
		}
		p.h.SetWord(slot, uint64(next))
	}
	p.h.SetWord(c+p.nextOff(), 0)
	p.chunks++
	p.log.Debug("malloc: new chunk", "class", p.class, "addr", c, "slots", p.slots)
	return c, nil
}

// owner returns the chunk whose slot array holds addr, or 0 if no chunk of this class does.
// An address inside a chunk that is not a live slot is an error.
func (p *classPool) owner(addr int) (int, error) {
	for c := p.root; c != 0; c = p.next(c) {
		lo, hi := p.slotRange(c)
		if addr < lo || addr >= hi {
			continue
		}
		if (addr-lo)%p.class != 0 {
			return c, fmt.Errorf("%w: not at a %d-byte slot boundary", ErrInvalidPointer, p.class)
		}
		if p.isFree(c, addr) {
			return c, ErrDoubleFree
		}
		return c, nil
	}
	return 0, nil
}

// isFree reports whether slot is on the free list of chunk c.
func (p *classPool) isFree(c, slot int) bool {
	s := p.freeHead(c)
	for n := p.freeCount(c); n > 0 && s != 0; n-- {
		if s == slot {
			return true
		}
		s = int(p.h.Word(s))
	}
	return false
}
