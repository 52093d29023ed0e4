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

// Package trace parses allocation traces and replays them against an allocator.
//
// A trace starts with four integers, one per line: suggested heap size, number
// of ids, number of ops and weight. Each following line is one op:
//
//	a <id> <size>   allocate size bytes for id
//	r <id> <size>   reallocate id to size bytes
//	f <id>          free id
//
// Blank lines and lines starting with '#' are ignored.
package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cloudwego/mmalloc/unsafex"
)

// ErrFormat indicates a malformed trace.
var ErrFormat = errors.New("trace: bad format")

// Kind is the type of an op.
type Kind byte

const (
	Alloc   Kind = 'a'
	Realloc Kind = 'r'
	Free    Kind = 'f'
)

func (k Kind) String() string {
	switch k {
	case Alloc:
		return "alloc"
	case Realloc:
		return "realloc"
	case Free:
		return "free"
	}
	return fmt.Sprintf("Kind(%q)", byte(k))
}

// Op is one trace line. Size is unused for Free.
type Op struct {
	Kind Kind
	ID   int
	Size int
}

// Trace is a parsed trace.
type Trace struct {
	Name              string
	SuggestedHeapSize int
	NumIDs            int
	Weight            int
	Ops               []Op
}

// ParseFile parses the trace at path; the trace is named after the file.
func ParseFile(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t.Name = filepath.Base(path)
	return t, nil
}

// Parse reads a trace from r.
func Parse(r io.Reader) (*Trace, error) {
	var (
		t      Trace
		header [4]int
		nhdr   int
		numOps int
		lineno int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(unsafex.BinaryToString(sc.Bytes()))
		if line == "" || line[0] == '#' {
			continue
		}
		if nhdr < len(header) {
			v, err := strconv.Atoi(line)
			if err != nil || v < 0 {
				return nil, fmt.Errorf("%w: line %d: header value %q", ErrFormat, lineno, line)
			}
			header[nhdr] = v
			nhdr++
			if nhdr == len(header) {
				t.SuggestedHeapSize, t.NumIDs, numOps, t.Weight = header[0], header[1], header[2], header[3]
				t.Ops = make([]Op, 0, numOps)
			}
			continue
		}
		op, err := parseOp(line, t.NumIDs)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrFormat, lineno, err)
		}
		t.Ops = append(t.Ops, op)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if nhdr < len(header) {
		return nil, fmt.Errorf("%w: truncated header", ErrFormat)
	}
	if len(t.Ops) != numOps {
		return nil, fmt.Errorf("%w: header declares %d ops, found %d", ErrFormat, numOps, len(t.Ops))
	}
	return &t, nil
}

func parseOp(line string, numIDs int) (Op, error) {
	fields := strings.Fields(line)
	if len(fields[0]) != 1 {
		return Op{}, fmt.Errorf("unknown op %q", fields[0])
	}
	op := Op{Kind: Kind(fields[0][0])}
	want := 3
	switch op.Kind {
	case Alloc, Realloc:
	case Free:
		want = 2
	default:
		return Op{}, fmt.Errorf("unknown op %q", fields[0])
	}
	if len(fields) != want {
		return Op{}, fmt.Errorf("%s takes %d arguments, got %d", op.Kind, want-1, len(fields)-1)
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil || id < 0 || id >= numIDs {
		return Op{}, fmt.Errorf("id %q not in [0, %d)", fields[1], numIDs)
	}
	op.ID = id
	if want == 3 {
		size, err := strconv.Atoi(fields[2])
		if err != nil || size < 0 {
			return Op{}, fmt.Errorf("bad size %q", fields[2])
		}
		op.Size = size
	}
	return op, nil
}
