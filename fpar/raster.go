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

package fpar

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/airbusgeo/godal"
	"gonum.org/v1/gonum/floats"
)

// ErrTooFewBands is returned when a raster has fewer than the two bands
// (value and quality) that make up an acquisition.
var ErrTooFewBands = errors.New("fpar: raster has fewer than two bands")

// Raster holds the undecoded bands of one acquisition together with its
// cell-center coordinates. Bands are stored row-major, north to south as
// in the file.
type Raster struct {
	Width, Height int
	Bands         [][]float64
	Lat, Lon      []float64
}

// RasterSource reads acquisitions. Read must return an error for which
// errors.Is(err, os.ErrNotExist) is true when path does not exist.
type RasterSource interface {
	Read(path string) (*Raster, error)
}

var registerOnce sync.Once

// GDALSource reads GeoTIFF (or any other GDAL-supported) rasters.
type GDALSource struct{}

// Read implements RasterSource. Only the first two bands are read.
func (GDALSource) Read(path string) (*Raster, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	registerOnce.Do(godal.RegisterAll)
	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fpar: opening raster %s: %v", path, err)
	}
	defer ds.Close()

	bands := ds.Bands()
	if len(bands) < 2 {
		return nil, fmt.Errorf("%w: %s has %d", ErrTooFewBands, path, len(bands))
	}
	s := ds.Structure()
	r := &Raster{Width: s.SizeX, Height: s.SizeY}
	for i, b := range bands[:2] {
		buf := make([]float64, r.Width*r.Height)
		if err := b.Read(0, 0, buf, r.Width, r.Height); err != nil {
			return nil, fmt.Errorf("fpar: reading band %d of %s: %v", i+1, path, err)
		}
		r.Bands = append(r.Bands, buf)
	}
	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("fpar: reading geotransform of %s: %v", path, err)
	}
	left, top := gt[0], gt[3]
	right := left + float64(r.Width)*gt[1]
	bottom := top + float64(r.Height)*gt[5]
	r.Lat = span(r.Height, top, bottom)
	r.Lon = span(r.Width, left, right)
	return r, nil
}

// span returns n evenly spaced values from l to u inclusive.
func span(n int, l, u float64) []float64 {
	switch n {
	case 0:
		return nil
	case 1:
		return []float64{l}
	}
	return floats.Span(make([]float64, n), l, u)
}
