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

	"github.com/ctessum/sparse"
)

// Coarsen downsamples f by averaging blocks of latFactor × lonFactor
// cells. Missing cells are skipped within each block and a block with no
// valid cells is missing. Rows and columns at the end of each axis that
// do not fill a complete block are dropped. The coordinates of each
// output cell are the mean of the coordinates of its block.
func Coarsen(f *Field, latFactor, lonFactor int) (*Field, error) {
	if latFactor < 1 || lonFactor < 1 {
		return nil, fmt.Errorf("gridalign: coarsening factors must be >= 1; got %d×%d", latFactor, lonFactor)
	}
	ny, nx := f.Ny()/latFactor, f.Nx()/lonFactor
	if ny == 0 || nx == 0 {
		return nil, fmt.Errorf("gridalign: cannot coarsen %s: grid %d×%d is smaller than one %d×%d block",
			f.Name, f.Ny(), f.Nx(), latFactor, lonFactor)
	}
	lat := coarsenAxis(f.Lat, latFactor, ny)
	lon := coarsenAxis(f.Lon, lonFactor, nx)

	nt := f.Nt()
	out := sparse.ZerosDense(nt, ny, nx)
	inNx := f.Nx()
	for t := 0; t < nt; t++ {
		in := f.Slice(t)
		o := out.Elements[t*ny*nx : (t+1)*ny*nx]
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				var sum float64
				var n int
				for jj := j * latFactor; jj < (j+1)*latFactor; jj++ {
					row := in[jj*inNx : (jj+1)*inNx]
					for ii := i * lonFactor; ii < (i+1)*lonFactor; ii++ {
						if v := row[ii]; !math.IsNaN(v) {
							sum += v
							n++
						}
					}
				}
				if n == 0 {
					o[j*nx+i] = math.NaN()
				} else {
					o[j*nx+i] = sum / float64(n)
				}
			}
		}
	}
	return f.withData(f.Time.Copy(), lat, lon, out), nil
}

func coarsenAxis(a Axis, factor, n int) Axis {
	o := Axis{Name: a.Name, Values: make([]float64, n), Attrs: a.Attrs.Copy()}
	for i := range o.Values {
		var sum float64
		for _, v := range a.Values[i*factor : (i+1)*factor] {
			sum += v
		}
		o.Values[i] = sum / float64(factor)
	}
	return o
}

// MeanOf returns the cell-by-cell mean of fields, skipping missing
// values. A cell that is missing in every field is missing in the
// result. All fields must share a grid and number of time steps; the
// metadata of the first field is kept.
func MeanOf(fields ...*Field) (*Field, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("gridalign: no fields to average")
	}
	first := fields[0]
	for _, f := range fields[1:] {
		if err := first.SameGrid(f); err != nil {
			return nil, err
		}
		if f.Nt() != first.Nt() {
			return nil, fmt.Errorf("gridalign: averaging %s and %s: %d != %d time steps",
				first.Name, f.Name, first.Nt(), f.Nt())
		}
	}
	out := sparse.ZerosDense(first.Nt(), first.Ny(), first.Nx())
	for i := range out.Elements {
		var sum float64
		var n int
		for _, f := range fields {
			if v := f.Data.Elements[i]; !math.IsNaN(v) {
				sum += v
				n++
			}
		}
		if n == 0 {
			out.Elements[i] = math.NaN()
		} else {
			out.Elements[i] = sum / float64(n)
		}
	}
	return first.withData(first.Time.Copy(), first.Lat.Copy(), first.Lon.Copy(), out), nil
}
