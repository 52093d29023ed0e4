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

// Package malloc implements a segregated-fit allocator on top of a heap.Provider.
//
// Requests of up to 64 bytes are served from five size classes (8, 16, 32, 48, 64).
// Each class owns a chain of page-sized chunks; a chunk is laid out as
//
//	[free count][free head][slot 0] ... [slot N-1][next chunk]
//
// and a free slot stores the address of the next free slot in its first word.
//
// Larger requests are served from a single list of big blocks laid out as
//
//	[size | allocated][payload][next block]
//
// scanned first-fit. Blocks are never split or merged, and nothing is ever
// returned to the heap: chunks and blocks live as long as the Allocator.
//
// All bookkeeping lives inside the heap. An Allocator is not safe for
// concurrent use; callers must serialize Malloc, Free and Realloc.
package malloc
