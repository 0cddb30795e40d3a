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
	"math"
	"time"
)

// NearestIndex returns the index of the value closest to v. When two
// values are equally close, the lower index is returned. It returns -1
// if values is empty.
func NearestIndex(values []float64, v float64) int {
	best := -1
	bestDist := math.Inf(1)
	for i, x := range values {
		if d := math.Abs(x - v); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Series is the time series of a field at one grid cell.
type Series struct {
	// Lon and Lat are the coordinates of the selected cell center,
	// which may differ from the requested location.
	Lon, Lat float64
	Times    []time.Time
	Values   []float64
}

// Point returns the time series at the grid cell nearest to (lon, lat).
// Each axis is searched independently.
func (f *Field) Point(lon, lat float64) (*Series, error) {
	if f.Time == nil || !f.Time.Decoded() {
		return nil, fmt.Errorf("gridalign: selecting a point from %s: %w", f.Name, ErrNoTime)
	}
	j := NearestIndex(f.Lat.Values, lat)
	i := NearestIndex(f.Lon.Values, lon)
	if i < 0 || j < 0 {
		return nil, fmt.Errorf("gridalign: %s has an empty grid", f.Name)
	}
	s := &Series{
		Lon:    f.Lon.Values[i],
		Lat:    f.Lat.Values[j],
		Times:  append([]time.Time(nil), f.Time.Times...),
		Values: make([]float64, f.Nt()),
	}
	for t := range s.Values {
		s.Values[t] = f.Data.Get(t, j, i)
	}
	return s, nil
}
