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
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualBlockMean averages the k×k block of slice t starting at (j0, i0)
// the long way.
func manualBlockMean(f *Field, t, j0, i0, ky, kx int) float64 {
	var vals []float64
	for j := j0; j < j0+ky; j++ {
		for i := i0; i < i0+kx; i++ {
			if v := f.Data.Get(t, j, i); !math.IsNaN(v) {
				vals = append(vals, v)
			}
		}
	}
	if len(vals) == 0 {
		return math.NaN()
	}
	var s float64
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals))
}

func TestCoarsenMatchesManualPartition(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	f := testField("x", date(2000, 1, 1), 3, seq(12, 89.75, -0.5), seq(18, -179.75, 0.5), func(t, j, i int) float64 {
		if r.Float64() < 0.2 {
			return math.NaN()
		}
		return r.Float64()
	})
	for _, k := range [][2]int{{2, 2}, {3, 3}, {6, 6}, {4, 3}} {
		c, err := Coarsen(f, k[0], k[1])
		require.NoError(t, err)
		assert.Equal(t, 12/k[0], c.Ny())
		assert.Equal(t, 18/k[1], c.Nx())
		for tt := 0; tt < c.Nt(); tt++ {
			for j := 0; j < c.Ny(); j++ {
				for i := 0; i < c.Nx(); i++ {
					want := manualBlockMean(f, tt, j*k[0], i*k[1], k[0], k[1])
					if have := c.Data.Get(tt, j, i); different(want, have, 1e-12) {
						t.Errorf("%v block (%d,%d,%d): want %g, have %g", k, tt, j, i, want, have)
					}
				}
			}
		}
	}
}

func TestCoarsenAllMissingBlock(t *testing.T) {
	f := testField("x", date(2000, 1, 1), 1, seq(2, 0, 1), seq(4, 0, 1), func(t, j, i int) float64 {
		if i < 2 {
			return math.NaN()
		}
		return float64(j + i)
	})
	c, err := Coarsen(f, 2, 2)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(c.Data.Get(0, 0, 0)))
	assert.Equal(t, 3., c.Data.Get(0, 0, 1))
}

func TestCoarsenTrim(t *testing.T) {
	f := testField("x", date(2000, 1, 1), 1, seq(7, 10, -1), seq(5, 0, 1), func(t, j, i int) float64 { return float64(i) })
	c, err := Coarsen(f, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Ny())
	assert.Equal(t, 2, c.Nx())
	// Coordinates are block means and keep their north-to-south order.
	assert.Equal(t, []float64{9, 6}, c.Lat.Values)
	assert.Equal(t, []float64{0.5, 2.5}, c.Lon.Values)
	assert.Equal(t, 2.5, c.Data.Get(0, 1, 1))
	assert.Equal(t, 1, f.Nt(), "input must not be modified")
	assert.Equal(t, 7, f.Ny())
}

func TestCoarsenErrors(t *testing.T) {
	f := testField("x", date(2000, 1, 1), 1, seq(2, 0, 1), seq(2, 0, 1), func(t, j, i int) float64 { return 1 })
	_, err := Coarsen(f, 0, 2)
	assert.Error(t, err)
	_, err = Coarsen(f, 3, 3)
	assert.Error(t, err)
}

func TestMeanOf(t *testing.T) {
	lat, lon := seq(1, 0, 1), seq(3, 0, 1)
	// Cells: both valid, one valid, both missing.
	a := testField("a", date(2000, 1, 1), 1, lat, lon, func(t, j, i int) float64 {
		return []float64{0.2, 0.4, math.NaN()}[i]
	})
	b := testField("b", date(2000, 1, 1), 1, lat, lon, func(t, j, i int) float64 {
		return []float64{0.6, math.NaN(), math.NaN()}[i]
	})
	m, err := MeanOf(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, m.Data.Get(0, 0, 0), 1e-12)
	assert.Equal(t, 0.4, m.Data.Get(0, 0, 1))
	assert.True(t, math.IsNaN(m.Data.Get(0, 0, 2)))
	assert.Equal(t, "a", m.Name)

	_, err = MeanOf()
	assert.Error(t, err)
}
