/*
Copyright © 2024 the gridalign authors.
This file is part of gridalign.

gridalign is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gridalign is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gridalign.  If not, see <http://www.gnu.org/licenses/>.
*/

package gridalign

import (
	"fmt"
	"runtime"
)

// Reducer transforms one chunk of a field, for example by coarsening it.
type Reducer func(chunk *Field) (*Field, error)

// ChunkOption configures Chunked.
type ChunkOption func(*chunkConfig)

type chunkConfig struct {
	progress func(done, total int)
	gc       bool
}

// WithProgress registers a function that is called after each chunk is
// reduced.
func WithProgress(f func(done, total int)) ChunkOption {
	return func(c *chunkConfig) { c.progress = f }
}

// WithGC requests a garbage collection after each chunk so that the
// chunk's intermediate arrays are returned before the next one is built.
func WithGC() ChunkOption {
	return func(c *chunkConfig) { c.gc = true }
}

// ChunkBounds splits nt time steps into at most n contiguous chunks of
// ceil(nt/n) steps and returns the [begin, end) bounds of each non-empty
// chunk.
func ChunkBounds(nt, n int) [][2]int {
	if n < 1 || nt < 1 {
		return nil
	}
	size := (nt + n - 1) / n
	var b [][2]int
	for i := 0; i < n; i++ {
		begin := i * size
		if begin >= nt {
			break
		}
		end := begin + size
		if end > nt {
			end = nt
		}
		b = append(b, [2]int{begin, end})
	}
	return b
}

// Chunked applies reduce to n contiguous time chunks of f one at a time
// and concatenates the results along time. Only one chunk and its
// reduction are held at once in addition to the results, which bounds
// peak memory. For reductions that treat each time step independently,
// such as Coarsen, the result equals reducing f in one piece.
func Chunked(f *Field, n int, reduce Reducer, opts ...ChunkOption) (*Field, error) {
	if n < 1 {
		return nil, fmt.Errorf("gridalign: number of chunks must be >= 1; got %d", n)
	}
	var c chunkConfig
	for _, o := range opts {
		o(&c)
	}
	if f.Time == nil {
		return reduce(f)
	}
	bounds := ChunkBounds(f.Nt(), n)
	results := make([]*Field, 0, len(bounds))
	for i, b := range bounds {
		chunk, err := f.TimeSlice(b[0], b[1])
		if err != nil {
			return nil, err
		}
		r, err := reduce(chunk)
		if err != nil {
			return nil, fmt.Errorf("gridalign: reducing time steps [%d, %d) of %s: %w", b[0], b[1], f.Name, err)
		}
		results = append(results, r)
		chunk = nil
		if c.gc {
			runtime.GC()
		}
		if c.progress != nil {
			c.progress(i+1, len(bounds))
		}
	}
	return Concat(results...)
}
