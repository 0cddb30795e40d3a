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
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkBounds(t *testing.T) {
	tests := []struct {
		nt, n int
		want  [][2]int
	}{
		{24, 4, [][2]int{{0, 6}, {6, 12}, {12, 18}, {18, 24}}},
		{10, 4, [][2]int{{0, 3}, {3, 6}, {6, 9}, {9, 10}}},
		// ceil(5/4) = 2 leaves the fourth chunk empty.
		{5, 4, [][2]int{{0, 2}, {2, 4}, {4, 5}}},
		{3, 1, [][2]int{{0, 3}}},
		{2, 5, [][2]int{{0, 1}, {1, 2}}},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, ChunkBounds(test.nt, test.n), "nt=%d n=%d", test.nt, test.n)
	}
	assert.Nil(t, ChunkBounds(0, 4))
}

func TestChunkedMatchesUnbatched(t *testing.T) {
	// 30 months in 4 batches of 8: boundaries fall in September 2001,
	// May 2002 and January 2003.
	f := testField("x", date(2001, 1, 1), 30, seq(6, 0, 1), seq(8, 0, 1), func(t, j, i int) float64 {
		if (t+j+i)%7 == 0 {
			return math.NaN()
		}
		return float64(t*100 + j*10 + i)
	})
	coarsen := func(c *Field) (*Field, error) { return Coarsen(c, 2, 2) }
	whole, err := coarsen(f)
	require.NoError(t, err)

	var calls []int
	batched, err := Chunked(f, 4, coarsen, WithGC(), WithProgress(func(done, total int) {
		assert.Equal(t, 4, total)
		calls = append(calls, done)
	}))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, calls)

	require.Equal(t, whole.Data.Shape, batched.Data.Shape)
	assert.Equal(t, whole.Time.Times, batched.Time.Times)
	assert.Equal(t, whole.Lat.Values, batched.Lat.Values)
	for i, w := range whole.Data.Elements {
		b := batched.Data.Elements[i]
		if math.IsNaN(w) != math.IsNaN(b) || (!math.IsNaN(w) && w != b) {
			t.Fatalf("element %d: unbatched %g, batched %g", i, w, b)
		}
	}
}

func TestChunkedErrors(t *testing.T) {
	f := testField("x", date(2001, 1, 1), 4, seq(2, 0, 1), seq(2, 0, 1), func(t, j, i int) float64 { return 1 })
	_, err := Chunked(f, 0, func(c *Field) (*Field, error) { return c, nil })
	assert.Error(t, err)

	boom := errors.New("boom")
	_, err = Chunked(f, 2, func(c *Field) (*Field, error) { return nil, boom })
	assert.True(t, errors.Is(err, boom))
}
