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
	"math"

	"github.com/cloudwego/mmalloc/heap"
)

const (
	bigHeaderSize = WordSize
	// bigOverhead is the header plus the trailing next link.
	bigOverhead = 2 * WordSize

	allocBit = 1

	// maxBigSize is the largest request whose rounded size plus overhead fits in an int.
	maxBigSize = math.MaxInt - bigOverhead - (WordSize - 1)
)

// bigList manages variable-size blocks as a singly linked list in heap order.
type bigList struct {
	h    heap.Provider
	log  *slog.Logger
	root int // first block, 0 if none yet

	// blocks and bytes count what acquire appended; Check compares them with the chain.
	blocks int
	bytes  int
}

// size returns the payload size of block b.
func (l *bigList) size(b int) int {
	return int(l.h.Word(b) &^ allocBit)
}

func (l *bigList) allocated(b int) bool {
	return l.h.Word(b)&allocBit != 0
}

func (l *bigList) next(b int) int {
	return int(l.h.Word(b + bigHeaderSize + l.size(b)))
}

// acquire claims the first free block of at least size bytes, or appends a new one.
// It returns the payload address.
func (l *bigList) acquire(size int) (int, error) {
	if size < 0 || size > maxBigSize {
		return 0, fmt.Errorf("%w: %d bytes requested", ErrOutOfMemory, size)
	}
	size = alignUp(size, WordSize)
	last := 0
	for b := l.root; b != 0; b = l.next(b) {
		if !l.allocated(b) && l.size(b) >= size {
			l.h.SetWord(b, uint64(l.size(b))|allocBit)
			return b + bigHeaderSize, nil
		}
		last = b
	}
	b, err := growAligned(l.h, size+bigOverhead)
	if err != nil {
		return 0, err
	}
	l.h.SetWord(b, uint64(size)|allocBit)
	l.h.SetWord(b+bigHeaderSize+size, 0)
	if last == 0 {
		l.root = b
	} else {
		l.h.SetWord(last+bigHeaderSize+l.size(last), uint64(b))
	}
	l.blocks++
	l.bytes += size
	l.log.Debug("malloc: new big block", "addr", b, "size", size)
	return b + bigHeaderSize, nil
}

// release clears the allocated bit of block b. Neighbours are left untouched.
func (l *bigList) release(b int) {
	l.h.SetWord(b, uint64(l.size(b)))
}

// owner returns the block whose payload starts at addr, or 0 if there is none.
func (l *bigList) owner(addr int) (int, error) {
	for b := l.root; b != 0; b = l.next(b) {
		if b+bigHeaderSize != addr {
			continue
		}
		if !l.allocated(b) {
			return b, ErrDoubleFree
		}
		return b, nil
	}
	return 0, nil
}
