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

// Package gridalign holds the gridded time-series type shared by the
// fpar, gppcheck and gppcomplete pipelines, along with the temporal and
// spatial operations they are built from.
package gridalign

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ctessum/sparse"
)

// Version is the version of this software. It is written into the
// metadata of every output file.
const Version = "1.0.0"

var (
	// ErrGridMismatch is returned when two fields that are being combined
	// do not share the same spatial axes.
	ErrGridMismatch = errors.New("gridalign: spatial axes do not match")

	// ErrTimeOrder is returned when a concatenation would produce a time
	// axis that is not unique and strictly increasing.
	ErrTimeOrder = errors.New("gridalign: time axis is not strictly increasing")
)

// Attributes holds descriptive metadata such as units and descriptions.
type Attributes map[string]string

// Copy returns a copy of a.
func (a Attributes) Copy() Attributes {
	if a == nil {
		return nil
	}
	o := make(Attributes, len(a))
	for k, v := range a {
		o[k] = v
	}
	return o
}

// Quantity specifies whether the values in a field are a rate per day or
// a total over the time step.
type Quantity int

const (
	// Unknown means that it has not been established what the values represent.
	Unknown Quantity = iota
	// Rate values are per-day rates.
	Rate
	// Total values are totals over the time step.
	Total
)

func (q Quantity) String() string {
	switch q {
	case Rate:
		return "rate"
	case Total:
		return "total"
	default:
		return "unknown"
	}
}

// ParseQuantity parses "rate", "total", or "auto". "auto" (and the empty
// string) returns Unknown, meaning the quantity should be determined from
// the units attribute.
func ParseQuantity(s string) (Quantity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rate":
		return Rate, nil
	case "total":
		return Total, nil
	case "auto", "", "unknown":
		return Unknown, nil
	}
	return Unknown, fmt.Errorf("gridalign: invalid quantity %q; valid options are rate, total and auto", s)
}

// perDay are the unit suffixes that indicate a per-day rate.
var perDay = []string{"d-1", "d^-1", "day-1", "day^-1", "/d", "/day", "per day", "days-1"}

// QuantityFromUnits guesses the quantity from a units string such as
// "g C m-2 d-1".
func QuantityFromUnits(units string) Quantity {
	u := strings.ToLower(strings.TrimSpace(units))
	if u == "" {
		return Unknown
	}
	for _, s := range perDay {
		if strings.HasSuffix(u, s) {
			return Rate
		}
	}
	for _, s := range []string{"mon-1", "mon^-1", "month-1", "/month", "per month"} {
		if strings.HasSuffix(u, s) {
			return Total
		}
	}
	return Unknown
}

// Axis is a spatial coordinate axis.
type Axis struct {
	Name   string
	Values []float64
	Attrs  Attributes
}

// Len returns the number of coordinate values.
func (a Axis) Len() int { return len(a.Values) }

// Copy returns a deep copy of a.
func (a Axis) Copy() Axis {
	return Axis{
		Name:   a.Name,
		Values: append([]float64(nil), a.Values...),
		Attrs:  a.Attrs.Copy(),
	}
}

func (a Axis) equal(b Axis) bool {
	if len(a.Values) != len(b.Values) {
		return false
	}
	for i, v := range a.Values {
		if v != b.Values[i] {
			return false
		}
	}
	return true
}

// TimeAxis is a time coordinate. A decoded (calendar-aware) axis has
// Times set. An undecoded axis holds the raw numeric Offsets together
// with the Units they were stored in.
type TimeAxis struct {
	Name    string
	Times   []time.Time
	Offsets []float64
	Units   string
	Attrs   Attributes
}

// Decoded returns whether t holds calendar timestamps.
func (t *TimeAxis) Decoded() bool { return t.Times != nil }

// Len returns the number of time steps.
func (t *TimeAxis) Len() int {
	if t.Decoded() {
		return len(t.Times)
	}
	return len(t.Offsets)
}

// Copy returns a deep copy of t.
func (t *TimeAxis) Copy() *TimeAxis {
	if t == nil {
		return nil
	}
	o := &TimeAxis{Name: t.Name, Units: t.Units, Attrs: t.Attrs.Copy()}
	if t.Times != nil {
		o.Times = append([]time.Time(nil), t.Times...)
	}
	if t.Offsets != nil {
		o.Offsets = append([]float64(nil), t.Offsets...)
	}
	return o
}

// Field is a gridded, time-indexed scalar field. Data is always
// shaped [time, latitude, longitude]; a field without a time coordinate
// (Time == nil) has exactly one time step.
type Field struct {
	Name  string
	Time  *TimeAxis
	Lat   Axis
	Lon   Axis
	Data  *sparse.DenseArray
	Attrs Attributes
	Kind  Quantity
}

// NewField allocates a field of the given shape with every value set to NaN.
func NewField(name string, t *TimeAxis, lat, lon Axis) *Field {
	nt := 1
	if t != nil {
		nt = t.Len()
	}
	f := &Field{
		Name: name,
		Time: t,
		Lat:  lat,
		Lon:  lon,
		Data: sparse.ZerosDense(nt, lat.Len(), lon.Len()),
	}
	for i := range f.Data.Elements {
		f.Data.Elements[i] = math.NaN()
	}
	return f
}

// Nt returns the number of time steps.
func (f *Field) Nt() int { return f.Data.Shape[0] }

// Ny returns the number of latitude cells.
func (f *Field) Ny() int { return f.Data.Shape[1] }

// Nx returns the number of longitude cells.
func (f *Field) Nx() int { return f.Data.Shape[2] }

// Slice returns the 2-D values at time index t, which alias f.Data.
func (f *Field) Slice(t int) []float64 {
	n := f.Ny() * f.Nx()
	return f.Data.Elements[t*n : (t+1)*n]
}

// Units returns the units attribute of f.
func (f *Field) Units() string { return f.Attrs["units"] }

// Copy returns a deep copy of f.
func (f *Field) Copy() *Field {
	return &Field{
		Name:  f.Name,
		Time:  f.Time.Copy(),
		Lat:   f.Lat.Copy(),
		Lon:   f.Lon.Copy(),
		Data:  f.Data.Copy(),
		Attrs: f.Attrs.Copy(),
		Kind:  f.Kind,
	}
}

// withData returns a field with f's metadata and the given data and
// time axis.
func (f *Field) withData(t *TimeAxis, lat, lon Axis, data *sparse.DenseArray) *Field {
	return &Field{
		Name:  f.Name,
		Time:  t,
		Lat:   lat,
		Lon:   lon,
		Data:  data,
		Attrs: f.Attrs.Copy(),
		Kind:  f.Kind,
	}
}

// TimeSlice returns a copy of the time steps [begin, end) of f.
func (f *Field) TimeSlice(begin, end int) (*Field, error) {
	if begin < 0 || end > f.Nt() || begin > end {
		return nil, fmt.Errorf("gridalign: time slice [%d, %d) out of range for %d steps", begin, end, f.Nt())
	}
	if f.Time == nil && (begin != 0 || end != 1) {
		return nil, fmt.Errorf("gridalign: cannot slice static field %s", f.Name)
	}
	n := f.Ny() * f.Nx()
	data := sparse.ZerosDense(end-begin, f.Ny(), f.Nx())
	copy(data.Elements, f.Data.Elements[begin*n:end*n])
	var t *TimeAxis
	if f.Time != nil {
		t = &TimeAxis{Name: f.Time.Name, Units: f.Time.Units, Attrs: f.Time.Attrs.Copy()}
		if f.Time.Decoded() {
			t.Times = append([]time.Time{}, f.Time.Times[begin:end]...)
		} else {
			t.Offsets = append([]float64{}, f.Time.Offsets[begin:end]...)
		}
	}
	return f.withData(t, f.Lat.Copy(), f.Lon.Copy(), data), nil
}

// SameGrid returns ErrGridMismatch if f and g do not share spatial axes.
func (f *Field) SameGrid(g *Field) error {
	if !f.Lat.equal(g.Lat) || !f.Lon.equal(g.Lon) {
		return fmt.Errorf("%w: %s (%dx%d) and %s (%dx%d)", ErrGridMismatch,
			f.Name, f.Ny(), f.Nx(), g.Name, g.Ny(), g.Nx())
	}
	return nil
}

// Scale returns a copy of f with every value multiplied by factor.
// Missing values stay missing.
func Scale(f *Field, factor float64) *Field {
	o := f.Copy()
	o.Data.Scale(factor)
	return o
}

// RenameAxes returns a copy of f whose latitude and longitude axes have
// the given names.
func RenameAxes(f *Field, lat, lon string) *Field {
	o := f.Copy()
	o.Lat.Name = lat
	o.Lon.Name = lon
	return o
}

// Concat concatenates fields along the time axis. All fields must share
// the same spatial axes and have decoded time axes, and the resulting
// time axis must be strictly increasing.
func Concat(fields ...*Field) (*Field, error) {
	if len(fields) == 0 {
		return nil, errors.New("gridalign: nothing to concatenate")
	}
	first := fields[0]
	nt := 0
	var times []time.Time
	for _, f := range fields {
		if f.Time == nil || !f.Time.Decoded() {
			return nil, fmt.Errorf("gridalign: concatenating %s: %w", f.Name, ErrNoTime)
		}
		if err := first.SameGrid(f); err != nil {
			return nil, err
		}
		for _, t := range f.Time.Times {
			if len(times) > 0 && !t.After(times[len(times)-1]) {
				return nil, fmt.Errorf("%w: %s follows %s", ErrTimeOrder,
					t.Format(time.RFC3339), times[len(times)-1].Format(time.RFC3339))
			}
			times = append(times, t)
		}
		nt += f.Nt()
	}
	data := sparse.ZerosDense(nt, first.Ny(), first.Nx())
	i := 0
	for _, f := range fields {
		i += copy(data.Elements[i:], f.Data.Elements)
	}
	t := &TimeAxis{Name: first.Time.Name, Times: times, Attrs: first.Time.Attrs.Copy()}
	return first.withData(t, first.Lat.Copy(), first.Lon.Copy(), data), nil
}
