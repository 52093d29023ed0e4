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
	"io"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/cloudwego/mmalloc/heap"
	"github.com/cloudwego/mmalloc/unsafex/malloc"
)

type options struct {
	verbose  bool
	jsonOut  bool
	mmap     bool
	pageSize int
	heapMax  int
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "mmdriver",
		Short: "Replay allocation traces against the segregated-fit allocator",
		Long: `mmdriver runs malloc-lab style traces against a fresh heap per trace,
verifies every result (alignment, overlap, payload integrity) and reports
peak payload, heap size and utilization.`,
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Log heap growth and rejected pointers to stderr")
	pf.BoolVar(&opts.jsonOut, "json", false, "Output in JSON format")
	pf.BoolVar(&opts.mmap, "mmap", false, "Back the heap with an anonymous mapping")
	pf.IntVar(&opts.pageSize, "page-size", malloc.DefaultPageSize, "Chunk size of the size classes")
	pf.IntVar(&opts.heapMax, "heap-max", heap.DefaultMaxSize, "Bytes reserved for each heap")

	root.AddCommand(newRunCmd(opts), newDemoCmd(opts))
	return root
}

func (o *options) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newAllocator creates a heap and an allocator on it. The caller closes the heap.
func (o *options) newAllocator(log *slog.Logger) (*malloc.Allocator, *heap.Heap, error) {
	h, err := heap.NewWithOption(&heap.Option{
		MaxSize: o.heapMax,
		Base:    heap.DefaultBase,
		Mmap:    o.mmap,
	})
	if err != nil {
		return nil, nil, err
	}
	a, err := malloc.New(h, &malloc.Option{PageSize: o.pageSize, Logger: log})
	if err != nil {
		_ = h.Close()
		return nil, nil, err
	}
	return a, h, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
