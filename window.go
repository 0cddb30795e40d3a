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
	"time"

	"github.com/ctessum/sparse"
)

// ErrNoOverlap is returned when two time ranges do not intersect.
var ErrNoOverlap = errors.New("gridalign: time ranges do not overlap")

// ObservedRange returns the earliest and latest time of f.
func ObservedRange(f *Field) (start, end time.Time, err error) {
	if f.Time == nil || !f.Time.Decoded() {
		return start, end, fmt.Errorf("gridalign: %s: %w", f.Name, ErrNoTime)
	}
	if f.Nt() == 0 {
		return start, end, fmt.Errorf("gridalign: %s has no time steps", f.Name)
	}
	start, end = f.Time.Times[0], f.Time.Times[0]
	for _, t := range f.Time.Times[1:] {
		if t.Before(start) {
			start = t
		}
		if t.After(end) {
			end = t
		}
	}
	return start, end, nil
}

// Intersect returns the time window covered by both a and b: the later
// of the two starts and the earlier of the two ends.
func Intersect(a, b *Field) (start, end time.Time, err error) {
	as, ae, err := ObservedRange(a)
	if err != nil {
		return start, end, err
	}
	bs, be, err := ObservedRange(b)
	if err != nil {
		return start, end, err
	}
	start, end = as, ae
	if bs.After(start) {
		start = bs
	}
	if be.Before(end) {
		end = be
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("%w: %s [%s, %s] and %s [%s, %s]", ErrNoOverlap,
			a.Name, as.Format(time.RFC3339), ae.Format(time.RFC3339),
			b.Name, bs.Format(time.RFC3339), be.Format(time.RFC3339))
	}
	return start, end, nil
}

// ClipTime returns the time steps of f that fall within [start, end].
func ClipTime(f *Field, start, end time.Time) (*Field, error) {
	if f.Time == nil || !f.Time.Decoded() {
		return nil, fmt.Errorf("gridalign: clipping %s: %w", f.Name, ErrNoTime)
	}
	var keep []int
	for i, t := range f.Time.Times {
		if !t.Before(start) && !t.After(end) {
			keep = append(keep, i)
		}
	}
	n := f.Ny() * f.Nx()
	data := sparse.ZerosDense(len(keep), f.Ny(), f.Nx())
	times := make([]time.Time, len(keep))
	for j, i := range keep {
		copy(data.Elements[j*n:(j+1)*n], f.Slice(i))
		times[j] = f.Time.Times[i]
	}
	ta := &TimeAxis{Name: f.Time.Name, Times: times, Attrs: f.Time.Attrs.Copy()}
	return f.withData(ta, f.Lat.Copy(), f.Lon.Copy(), data), nil
}
