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

// Demo returns a trace of a short interleaved workload: one 16-byte allocation
// kept for the whole run, then ten rounds of malloc(8)/free, malloc(65)/free,
// a malloc(66) that is kept, and malloc(7)/free.
func Demo() *Trace {
	const rounds = 10
	t := &Trace{
		Name:   "demo",
		NumIDs: 4 + rounds,
		Weight: 1,
	}
	t.Ops = append(t.Ops, Op{Kind: Alloc, ID: 0, Size: 16})
	for i := 0; i < rounds; i++ {
		t.Ops = append(t.Ops,
			Op{Kind: Alloc, ID: 1, Size: 8},
			Op{Kind: Free, ID: 1},
			Op{Kind: Alloc, ID: 2, Size: 65},
			Op{Kind: Free, ID: 2},
			Op{Kind: Alloc, ID: 4 + i, Size: 66},
			Op{Kind: Alloc, ID: 3, Size: 7},
			Op{Kind: Free, ID: 3},
		)
	}
	return t
}
