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
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/google/uuid"
)

// OutputTimeUnits are the units that time coordinates are written in.
const OutputTimeUnits = "days since 1970-01-01 00:00:00"

var (
	timeNames = []string{"time", "t", "date"}
	latNames  = []string{"lat", "latitude", "y"}
	lonNames  = []string{"lon", "longitude", "x"}
)

func dimKind(name string) string {
	n := strings.ToLower(name)
	for _, k := range timeNames {
		if n == k {
			return "time"
		}
	}
	for _, k := range latNames {
		if n == k {
			return "lat"
		}
	}
	for _, k := range lonNames {
		if n == k {
			return "lon"
		}
	}
	return ""
}

// ReadField reads a variable from a NetCDF file. Both classic and
// NetCDF-4 files are supported.
func ReadField(path, variable string) (*Field, error) {
	fs, err := ReadFields(path, variable)
	if err != nil {
		return nil, err
	}
	return fs[0], nil
}

// ReadFields reads several variables from one NetCDF file.
func ReadFields(path string, variables ...string) ([]*Field, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gridalign: opening %s: %w", path, err)
	}
	defer nc.Close()
	out := make([]*Field, len(variables))
	for i, v := range variables {
		out[i], err = readField(nc, v)
		if err != nil {
			return nil, fmt.Errorf("gridalign: reading %s from %s: %w", v, path, err)
		}
	}
	return out, nil
}

func readField(nc api.Group, name string) (*Field, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, err
	}
	dims := vg.Dimensions()
	pos := map[string]int{}
	for i, d := range dims {
		k := dimKind(d)
		if k == "" {
			return nil, fmt.Errorf("unsupported dimension %q; dimensions are %v", d, dims)
		}
		if _, ok := pos[k]; ok {
			return nil, fmt.Errorf("more than one %s dimension in %v", k, dims)
		}
		pos[k] = i
	}
	if _, ok := pos["lat"]; !ok {
		return nil, fmt.Errorf("no latitude dimension in %v", dims)
	}
	if _, ok := pos["lon"]; !ok {
		return nil, fmt.Errorf("no longitude dimension in %v", dims)
	}

	f := &Field{Name: name, Attrs: stringAttributes(vg.Attributes())}
	f.Kind = QuantityFromUnits(f.Units())
	if f.Lat, err = readAxis(nc, dims[pos["lat"]]); err != nil {
		return nil, err
	}
	if f.Lon, err = readAxis(nc, dims[pos["lon"]]); err != nil {
		return nil, err
	}
	nt := 1
	if i, ok := pos["time"]; ok {
		if f.Time, err = readTimeAxis(nc, dims[i]); err != nil {
			return nil, err
		}
		nt = f.Time.Len()
	}

	raw, err := vg.Values()
	if err != nil {
		return nil, err
	}
	vals, err := flatten(raw)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %v", name, err)
	}
	ny, nx := f.Lat.Len(), f.Lon.Len()
	if len(vals) != nt*ny*nx {
		return nil, fmt.Errorf("variable %s has %d values; want %d×%d×%d", name, len(vals), nt, ny, nx)
	}
	decode(vals, vg.Attributes())

	// Reorder to [time, lat, lon] regardless of the stored order.
	lengths := map[string]int{"time": nt, "lat": ny, "lon": nx}
	stride := map[string]int{"time": 0, "lat": 0, "lon": 0}
	s := 1
	for i := len(dims) - 1; i >= 0; i-- {
		k := dimKind(dims[i])
		stride[k] = s
		s *= lengths[k]
	}
	f.Data = sparse.ZerosDense(nt, ny, nx)
	for t := 0; t < nt; t++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				f.Data.Elements[(t*ny+j)*nx+i] = vals[t*stride["time"]+j*stride["lat"]+i*stride["lon"]]
			}
		}
	}
	return f, nil
}

// decode replaces fill values with NaN and applies packing attributes.
func decode(vals []float64, attrs api.AttributeMap) {
	fills := make([]float64, 0, 2)
	for _, k := range []string{"_FillValue", "missing_value"} {
		if v, ok := floatAttribute(attrs, k); ok {
			fills = append(fills, v)
		}
	}
	scale, hasScale := floatAttribute(attrs, "scale_factor")
	offset, hasOffset := floatAttribute(attrs, "add_offset")
	for i, v := range vals {
		for _, fv := range fills {
			if v == fv {
				v = math.NaN()
				break
			}
		}
		if hasScale {
			v *= scale
		}
		if hasOffset {
			v += offset
		}
		vals[i] = v
	}
}

func readAxis(nc api.Group, name string) (Axis, error) {
	a := Axis{Name: name}
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return a, fmt.Errorf("no coordinate variable for dimension %s: %v", name, err)
	}
	raw, err := vg.Values()
	if err != nil {
		return a, err
	}
	if a.Values, err = flatten(raw); err != nil {
		return a, fmt.Errorf("coordinate %s: %v", name, err)
	}
	a.Attrs = stringAttributes(vg.Attributes())
	return a, nil
}

func readTimeAxis(nc api.Group, name string) (*TimeAxis, error) {
	a, err := readAxis(nc, name)
	if err != nil {
		return nil, err
	}
	t := &TimeAxis{Name: name, Offsets: a.Values, Attrs: a.Attrs}
	if t.Offsets == nil {
		t.Offsets = []float64{}
	}
	t.Units = t.Attrs["units"]
	delete(t.Attrs, "units")
	switch c := strings.ToLower(t.Attrs["calendar"]); c {
	case "", "standard", "gregorian", "proleptic_gregorian":
		delete(t.Attrs, "calendar")
	default:
		return nil, fmt.Errorf("time coordinate %s: unsupported calendar %q", name, c)
	}
	return t, nil
}

// stringAttributes returns the text attributes in attrs.
func stringAttributes(attrs api.AttributeMap) Attributes {
	o := make(Attributes)
	if attrs == nil {
		return o
	}
	for _, k := range attrs.Keys() {
		if v, ok := attrs.Get(k); ok {
			if s, ok := v.(string); ok {
				o[k] = s
			}
		}
	}
	return o
}

func floatAttribute(attrs api.AttributeMap, key string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	v, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	f, err := flatten(v)
	if err != nil || len(f) == 0 {
		return 0, false
	}
	return f[0], true
}

// flatten converts the nested slices returned by the NetCDF reader into
// a row-major []float64.
func flatten(v interface{}) ([]float64, error) {
	var out []float64
	var walk func(r reflect.Value) error
	walk = func(r reflect.Value) error {
		switch r.Kind() {
		case reflect.Slice, reflect.Array:
			switch s := r.Interface().(type) {
			case []float32:
				for _, x := range s {
					out = append(out, float64(x))
				}
				return nil
			case []float64:
				out = append(out, s...)
				return nil
			}
			for i := 0; i < r.Len(); i++ {
				if err := walk(r.Index(i)); err != nil {
					return err
				}
			}
		case reflect.Float32, reflect.Float64:
			out = append(out, r.Float())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			out = append(out, float64(r.Int()))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			out = append(out, float64(r.Uint()))
		default:
			return fmt.Errorf("unsupported data type %s", r.Type())
		}
		return nil
	}
	if err := walk(reflect.ValueOf(v)); err != nil {
		return nil, err
	}
	return out, nil
}

// Provenance returns the global attributes that identify a run.
func Provenance(runID uuid.UUID, command string) Attributes {
	return Attributes{
		"history": fmt.Sprintf("%s: %s", time.Now().UTC().Format(time.RFC3339), command),
		"run_id":  runID.String(),
		"source":  "gridalign " + Version,
	}
}

// WriteField writes f to a new classic-format NetCDF file at path,
// creating the parent directory if necessary. Values are stored as
// float32 with NaN as the fill value. A time coordinate is written as
// days since 1970-01-01 on the proleptic Gregorian calendar.
func WriteField(path string, f *Field, global Attributes) error {
	return WriteFields(path, global, f)
}

// WriteFields writes fields that share a grid to one file in the same
// way as WriteField. Fields without a time axis are written as static
// (lat, lon) variables; the others must share the same time axis.
func WriteFields(path string, global Attributes, fields ...*Field) error {
	if len(fields) == 0 {
		return fmt.Errorf("gridalign: writing %s: no fields", path)
	}
	ref := fields[0]
	var ta *TimeAxis
	for _, f := range fields {
		if err := ref.SameGrid(f); err != nil {
			return fmt.Errorf("gridalign: writing %s: %w", path, err)
		}
		if f.Time == nil {
			continue
		}
		if !f.Time.Decoded() {
			return fmt.Errorf("gridalign: writing %s: time axis must be decoded", f.Name)
		}
		if ta == nil {
			ta = f.Time
		} else if f.Nt() != ta.Len() || f.Time.Name != ta.Name {
			return fmt.Errorf("gridalign: writing %s: time axis of %s differs from the other fields", path, f.Name)
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("gridalign: creating output directory: %w", err)
		}
	}
	var times []float64
	static := []string{ref.Lat.Name, ref.Lon.Name}
	dims, lengths := static, []int{ref.Ny(), ref.Nx()}
	if ta != nil {
		var err error
		if times, err = EncodeTimes(ta.Times, OutputTimeUnits); err != nil {
			return err
		}
		dims = append([]string{ta.Name}, dims...)
		lengths = append([]int{ta.Len()}, lengths...)
	}
	h := cdf.NewHeader(dims, lengths)
	for _, k := range sortedKeys(global) {
		h.AddAttribute("", k, global[k])
	}

	if ta != nil {
		h.AddVariable(ta.Name, []string{ta.Name}, []float64{0})
		attrs := ta.Attrs.Copy()
		delete(attrs, "units")
		addAttributes(h, ta.Name, attrs)
		h.AddAttribute(ta.Name, "units", OutputTimeUnits)
		h.AddAttribute(ta.Name, "calendar", "proleptic_gregorian")
	}
	for _, a := range []Axis{ref.Lat, ref.Lon} {
		h.AddVariable(a.Name, []string{a.Name}, []float64{0})
		addAttributes(h, a.Name, a.Attrs)
	}
	for _, f := range fields {
		if f.Time != nil {
			h.AddVariable(f.Name, dims, []float32{0})
		} else {
			h.AddVariable(f.Name, static, []float32{0})
		}
		addAttributes(h, f.Name, f.Attrs)
		h.AddAttribute(f.Name, "_FillValue", []float32{float32(math.NaN())})
	}
	h.Define()

	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("gridalign: creating %s: %w", path, err)
	}
	defer w.Close()
	ff, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("gridalign: writing header of %s: %w", path, err)
	}
	if ta != nil {
		if err := writeNCF(ff, ta.Name, times); err != nil {
			return err
		}
	}
	if err := writeNCF(ff, ref.Lat.Name, ref.Lat.Values); err != nil {
		return err
	}
	if err := writeNCF(ff, ref.Lon.Name, ref.Lon.Values); err != nil {
		return err
	}
	for _, f := range fields {
		data32 := make([]float32, len(f.Data.Elements))
		for i, e := range f.Data.Elements {
			data32[i] = float32(e)
		}
		if err := writeNCF(ff, f.Name, data32); err != nil {
			return err
		}
	}
	if err := cdf.UpdateNumRecs(w); err != nil {
		return err
	}
	return w.Close()
}

// writeNCF writes the whole of variable v.
func writeNCF(f *cdf.File, v string, data interface{}) error {
	end := f.Header.Lengths(v)
	start := make([]int, len(end))
	w := f.Writer(v, start, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("gridalign: writing variable %s to netcdf file: %v", v, err)
	}
	return nil
}

func addAttributes(h *cdf.Header, v string, attrs Attributes) {
	for _, k := range sortedKeys(attrs) {
		switch k {
		case "_FillValue", "missing_value", "scale_factor", "add_offset", "calendar":
			continue
		}
		h.AddAttribute(v, k, attrs[k])
	}
}

// sortedKeys returns the keys of a so that attributes are written in the
// same order every time.
func sortedKeys(a Attributes) []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
