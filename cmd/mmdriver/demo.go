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

package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cloudwego/mmalloc/heap"
	"github.com/cloudwego/mmalloc/trace"
	"github.com/cloudwego/mmalloc/unsafex/malloc"
)

// demoReport is the JSON form of the demo command output.
type demoReport struct {
	Result *trace.Result `json:"result"`
	Stats  malloc.Stats  `json:"stats"`
	HeapLo int           `json:"heap_lo"`
	HeapHi int           `json:"heap_hi"`
}

func newDemoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Replay the built-in demo workload and print the heap layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, h, err := opts.newAllocator(opts.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer h.Close()

			res, err := trace.Replay(a, trace.Demo())
			if err != nil {
				return err
			}
			if err := a.Check(); err != nil {
				return err
			}
			rep := demoReport{Result: res, Stats: a.Stats(), HeapLo: h.Lo(), HeapHi: h.Hi()}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), rep)
			}
			printDemo(cmd.OutOrStdout(), h, rep)
			return nil
		},
	}
}

func printDemo(w io.Writer, h *heap.Heap, rep demoReport) {
	st := rep.Stats
	fmt.Fprintf(w, "heap size: %s, page size: %d, heap start: %#x, heap end: %#x\n",
		humanize.IBytes(uint64(st.HeapSize)), st.PageSize, rep.HeapLo, rep.HeapHi)
	fmt.Fprintf(w, "reserved: %s\n", humanize.IBytes(uint64(h.Cap())))
	for _, cs := range st.Classes {
		if cs.Chunks == 0 {
			continue
		}
		fmt.Fprintf(w, "class %2d: %d chunk(s), %d/%d slots free\n", cs.Size, cs.Chunks, cs.FreeSlots, cs.Slots)
	}
	fmt.Fprintf(w, "big: %d block(s), %d free, %s payload\n",
		st.BigBlocks, st.FreeBigBlocks, humanize.IBytes(uint64(st.BigBytes)))
	fmt.Fprintf(w, "ops: %d, peak payload: %s, utilization: %.1f%%\n",
		rep.Result.Ops, humanize.IBytes(uint64(rep.Result.PeakPayload)), rep.Result.Utilization*100)
}
