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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntersect(t *testing.T) {
	lat, lon := seq(1, 0, 1), seq(1, 0, 1)
	one := func(t, j, i int) float64 { return 1 }
	// A spans [t0, t3] and B spans [t1, t4].
	t0, t1, t3 := date(2000, 1, 1), date(2000, 6, 1), date(2001, 3, 1)
	a := testField("a", t0, 15, lat, lon, one)
	b := testField("b", t1, 20, lat, lon, one)

	start, end, err := Intersect(a, b)
	require.NoError(t, err)
	assert.Equal(t, t1, start)
	assert.Equal(t, t3, end)

	start2, end2, err := Intersect(b, a)
	require.NoError(t, err)
	assert.Equal(t, start, start2)
	assert.Equal(t, end, end2)

	ca, err := ClipTime(a, start, end)
	require.NoError(t, err)
	cb, err := ClipTime(b, start, end)
	require.NoError(t, err)
	assert.Equal(t, 10, ca.Nt())
	assert.Equal(t, ca.Time.Times, cb.Time.Times)
	assert.Equal(t, t1, ca.Time.Times[0])
	assert.Equal(t, t3, ca.Time.Times[ca.Nt()-1])
	assert.Equal(t, 15, a.Nt(), "input must not be modified")

	t.Run("disjoint", func(t *testing.T) {
		c := testField("c", date(2010, 1, 1), 2, lat, lon, one)
		_, _, err := Intersect(a, c)
		assert.True(t, errors.Is(err, ErrNoOverlap))
	})
}

func TestObservedRangeUnordered(t *testing.T) {
	f := NewField("x", &TimeAxis{Name: "time", Times: []time.Time{date(2000, 5, 1), date(2000, 1, 1), date(2000, 3, 1)}},
		Axis{Name: "lat", Values: []float64{0}}, Axis{Name: "lon", Values: []float64{0}})
	start, end, err := ObservedRange(f)
	require.NoError(t, err)
	assert.Equal(t, date(2000, 1, 1), start)
	assert.Equal(t, date(2000, 5, 1), end)
}
