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
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cloudwego/mmalloc/trace"
)

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run <trace>...",
		Short: "Replay trace files, one fresh heap per trace",
		Long: `run parses and replays every trace file in parallel. Each trace gets its own
heap and allocator, so traces never share state. The command fails if any
trace is malformed, runs out of memory or fails verification.

Example:
  mmdriver run traces/*.rep
  mmdriver run --json --page-size 8192 short1.rep`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := runTraces(opts, cmd.ErrOrStderr(), args)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), results)
			}
			return printResults(cmd.OutOrStdout(), results)
		},
	}
}

func runTraces(opts *options, logw io.Writer, paths []string) ([]*trace.Result, error) {
	log := opts.logger(logw)
	results := make([]*trace.Result, len(paths))
	var g errgroup.Group
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			tr, err := trace.ParseFile(path)
			if err != nil {
				return err
			}
			a, h, err := opts.newAllocator(log.With("trace", tr.Name))
			if err != nil {
				return err
			}
			defer h.Close()

			res, err := trace.Replay(a, tr)
			if err != nil {
				return fmt.Errorf("%s: %w", tr.Name, err)
			}
			if err := a.Check(); err != nil {
				return fmt.Errorf("%s: %w", tr.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func printResults(w io.Writer, results []*trace.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "trace\tops\tpeak payload\theap\tutil\t")
	var util float64
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%.1f%%\t\n", r.Name, r.Ops,
			humanize.IBytes(uint64(r.PeakPayload)), humanize.IBytes(uint64(r.HeapSize)), r.Utilization*100)
		util += r.Utilization
	}
	if len(results) > 1 {
		fmt.Fprintf(tw, "mean\t\t\t\t%.1f%%\t\n", util/float64(len(results))*100)
	}
	return tw.Flush()
}
