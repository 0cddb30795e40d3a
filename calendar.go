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
	"strconv"
	"strings"
	"time"
)

// DefaultTimeUnits is used to decode a numeric time axis that does not
// declare its own units.
const DefaultTimeUnits = "days since 1582-10-14 00:00:00"

// ErrNoTime is returned when a field that needs a time coordinate does
// not have one.
var ErrNoTime = errors.New("gridalign: dataset does not contain a time coordinate")

const secondsPerDay = 86400

// NormalizeCalendar returns f with a calendar-aware time axis. If f's
// time axis is already decoded, f is returned unchanged. Otherwise the
// numeric offsets are decoded using the axis units, or defaultUnits if
// the axis does not declare any. Dates are proleptic Gregorian.
func NormalizeCalendar(f *Field, defaultUnits string) (*Field, error) {
	if f.Time == nil {
		return nil, fmt.Errorf("%w (variable %s)", ErrNoTime, f.Name)
	}
	if f.Time.Decoded() {
		return f, nil
	}
	units := f.Time.Units
	if units == "" {
		units = defaultUnits
	}
	times, err := DecodeTimes(f.Time.Offsets, units)
	if err != nil {
		return nil, fmt.Errorf("gridalign: decoding time of %s: %w", f.Name, err)
	}
	o := f.Copy()
	o.Time.Times = times
	o.Time.Offsets = nil
	o.Time.Units = ""
	return o, nil
}

// DecodeTimes converts numeric offsets in units such as
// "days since 1582-10-14 00:00:00" to timestamps.
func DecodeTimes(offsets []float64, units string) ([]time.Time, error) {
	step, epoch, err := ParseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(offsets))
	for i, v := range offsets {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("invalid time offset %g at index %d", v, i)
		}
		// Whole days are added with the calendar so that offsets larger
		// than time.Duration can represent stay exact.
		secs := v * step
		days := math.Floor(secs / secondsPerDay)
		rem := secs - days*secondsPerDay
		t := epoch.AddDate(0, 0, int(days))
		out[i] = t.Add(time.Duration(math.Round(rem * float64(time.Second))))
	}
	return out, nil
}

// EncodeTimes converts timestamps to offsets in the given units.
func EncodeTimes(times []time.Time, units string) ([]float64, error) {
	step, epoch, err := ParseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(times))
	for i, t := range times {
		// Split into whole days for the same reason as in DecodeTimes.
		days := math.Floor(float64(t.Unix()-epoch.Unix()) / secondsPerDay)
		rem := t.Sub(epoch.AddDate(0, 0, int(days))).Seconds()
		out[i] = (days*secondsPerDay + rem) / step
	}
	return out, nil
}

// ParseTimeUnits parses a CF-style time units string and returns the
// length of one unit in seconds and the reference epoch.
func ParseTimeUnits(units string) (step float64, epoch time.Time, err error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("invalid time units %q", units)
	}
	switch strings.ToLower(strings.TrimSpace(parts[0])) {
	case "days", "day", "d":
		step = secondsPerDay
	case "hours", "hour", "hr", "hrs", "h":
		step = 3600
	case "minutes", "minute", "min", "mins":
		step = 60
	case "seconds", "second", "sec", "secs", "s":
		step = 1
	default:
		return 0, time.Time{}, fmt.Errorf("unsupported time unit %q in %q", parts[0], units)
	}
	epoch, err = parseEpoch(parts[1])
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("invalid reference date in %q: %v", units, err)
	}
	return step, epoch, nil
}

// parseEpoch parses reference dates such as "1582-10-14 00:00:00",
// "1900-1-1", and "1970-01-01T00:00:00Z". Year, month and day do not need
// to be zero-padded.
func parseEpoch(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "Z")
	s = strings.TrimSuffix(s, " UTC")
	s = strings.Replace(s, "T", " ", 1)
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return time.Time{}, errors.New("empty date")
	}
	ymd := strings.Split(fields[0], "-")
	if len(ymd) != 3 {
		return time.Time{}, fmt.Errorf("date %q is not year-month-day", fields[0])
	}
	var d [3]int
	for i, p := range ymd {
		v, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, err
		}
		d[i] = v
	}
	var hms [3]float64
	if len(fields) > 1 {
		for i, p := range strings.Split(fields[1], ":") {
			if i > 2 {
				break
			}
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return time.Time{}, err
			}
			hms[i] = v
		}
	}
	t := time.Date(d[0], time.Month(d[1]), d[2], 0, 0, 0, 0, time.UTC)
	secs := hms[0]*3600 + hms[1]*60 + hms[2]
	return t.Add(time.Duration(secs * float64(time.Second))), nil
}

// monthStart returns the first instant of the month containing t, in UTC.
func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DaysInMonth returns the number of days in the month containing t.
func DaysInMonth(t time.Time) int {
	return monthStart(t).AddDate(0, 1, -1).Day()
}
