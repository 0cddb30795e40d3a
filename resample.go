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
	"fmt"
	"math"
	"time"

	"github.com/ctessum/sparse"
)

var (
	// ErrNotRate is returned when a field is converted from a per-day
	// rate to a monthly total but its values are not known to be a rate.
	ErrNotRate = errors.New("gridalign: values are not a per-day rate")

	// ErrNotMonthly is returned when an operation needs a time axis of
	// consecutive month starts.
	ErrNotMonthly = errors.New("gridalign: time axis is not monthly")
)

// ResampleMonthly returns the calendar-month means of f. Each output
// time step is labelled with the first instant of its month (UTC) and
// the output covers every month from the first to the last month that
// f has data for; months without any time steps are missing.
// Missing values are skipped.
func ResampleMonthly(f *Field) (*Field, error) {
	if f.Time == nil || !f.Time.Decoded() {
		return nil, fmt.Errorf("gridalign: resampling %s: %w", f.Name, ErrNoTime)
	}
	if f.Nt() == 0 {
		return nil, fmt.Errorf("gridalign: resampling %s: no time steps", f.Name)
	}
	first, last := monthStart(f.Time.Times[0]), monthStart(f.Time.Times[0])
	for _, t := range f.Time.Times {
		m := monthStart(t)
		if m.Before(first) {
			first = m
		}
		if m.After(last) {
			last = m
		}
	}
	var months []time.Time
	index := make(map[time.Time]int)
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		index[m] = len(months)
		months = append(months, m)
	}

	n := f.Ny() * f.Nx()
	sum := sparse.ZerosDense(len(months), f.Ny(), f.Nx())
	count := make([]int, len(months)*n)
	for t, tt := range f.Time.Times {
		m := index[monthStart(tt)]
		s := sum.Elements[m*n : (m+1)*n]
		c := count[m*n : (m+1)*n]
		for i, v := range f.Slice(t) {
			if !math.IsNaN(v) {
				s[i] += v
				c[i]++
			}
		}
	}
	for i, c := range count {
		if c == 0 {
			sum.Elements[i] = math.NaN()
		} else {
			sum.Elements[i] /= float64(c)
		}
	}
	ta := &TimeAxis{Name: f.Time.Name, Times: months, Attrs: f.Time.Attrs.Copy()}
	return f.withData(ta, f.Lat.Copy(), f.Lon.Copy(), sum), nil
}

// ToMonthlyTotals multiplies each time step of monthly field f by the
// number of days in its month, converting a mean per-day rate into a
// monthly total with the given units. f must be a Rate; any other
// Quantity returns ErrNotRate rather than silently producing wrong
// values.
func ToMonthlyTotals(f *Field, units string) (*Field, error) {
	if f.Kind != Rate {
		return nil, fmt.Errorf("gridalign: converting %s (units %q, quantity %s) to monthly totals: %w",
			f.Name, f.Units(), f.Kind, ErrNotRate)
	}
	if err := checkMonthly(f); err != nil {
		return nil, err
	}
	o := f.Copy()
	for t, tt := range o.Time.Times {
		d := float64(DaysInMonth(tt))
		s := o.Slice(t)
		for i := range s {
			s[i] *= d
		}
	}
	o.Kind = Total
	if o.Attrs == nil {
		o.Attrs = make(Attributes)
	}
	if units != "" {
		o.Attrs["units"] = units
	}
	return o, nil
}

// checkMonthly returns ErrNotMonthly unless f's time axis is a sequence
// of consecutive month starts.
func checkMonthly(f *Field) error {
	if f.Time == nil || !f.Time.Decoded() {
		return fmt.Errorf("gridalign: %s: %w", f.Name, ErrNoTime)
	}
	for i, t := range f.Time.Times {
		if !t.Equal(monthStart(t)) {
			return fmt.Errorf("%w: %s time step %d (%s) is not the start of a month",
				ErrNotMonthly, f.Name, i, t.Format(time.RFC3339))
		}
		if i > 0 && !t.Equal(f.Time.Times[i-1].AddDate(0, 1, 0)) {
			return fmt.Errorf("%w: %s time steps %d and %d are not consecutive months",
				ErrNotMonthly, f.Name, i-1, i)
		}
	}
	return nil
}

// PadToCalendarYears extends monthly field f with missing time steps so
// that it starts in January of its first year and ends in December of
// its last year. It returns the padded field and the number of steps
// added before and after.
func PadToCalendarYears(f *Field) (padded *Field, before, after int, err error) {
	if err := checkMonthly(f); err != nil {
		return nil, 0, 0, err
	}
	if f.Nt() == 0 {
		return nil, 0, 0, fmt.Errorf("gridalign: padding %s: no time steps", f.Name)
	}
	start, end := f.Time.Times[0], f.Time.Times[f.Nt()-1]
	before = int(start.Month()) - 1
	after = 12 - int(end.Month())
	if before == 0 && after == 0 {
		return f.Copy(), 0, 0, nil
	}
	parts := make([]*Field, 0, 3)
	if before > 0 {
		parts = append(parts, filler(f, time.Date(start.Year(), 1, 1, 0, 0, 0, 0, time.UTC), before))
	}
	parts = append(parts, f)
	if after > 0 {
		parts = append(parts, filler(f, end.AddDate(0, 1, 0), after))
	}
	padded, err = Concat(parts...)
	if err != nil {
		return nil, 0, 0, err
	}
	return padded, before, after, nil
}

// filler returns n missing monthly time steps on f's grid, starting at
// month first.
func filler(f *Field, first time.Time, n int) *Field {
	times := make([]time.Time, n)
	for i := range times {
		times[i] = first.AddDate(0, i, 0)
	}
	ta := &TimeAxis{Name: f.Time.Name, Times: times, Attrs: f.Time.Attrs.Copy()}
	o := NewField(f.Name, ta, f.Lat.Copy(), f.Lon.Copy())
	o.Attrs = f.Attrs.Copy()
	o.Kind = f.Kind
	return o
}
