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

package gppcomplete

import (
	"errors"
	"io"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/gridalign"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var (
	lat = []float64{40, 39, 38, 37}
	lon = []float64{-100, -99, -98, -97}
)

// writeInput writes a daily rate of 2 from 15 February through 10 May
// 2001 on a 4×4 grid, with the cell in the top-left corner missing on
// odd days, and a static uncertainty layer of 1.2.
func writeInput(t *testing.T, path, units string) {
	var times []time.Time
	for d := date(2001, 2, 15); !d.After(date(2001, 5, 10)); d = d.AddDate(0, 0, 1) {
		times = append(times, d)
	}
	gpp := gridalign.NewField("GPP", &gridalign.TimeAxis{Name: "time", Times: times},
		gridalign.Axis{Name: "lat", Values: lat}, gridalign.Axis{Name: "lon", Values: lon})
	for i, d := range times {
		s := gpp.Slice(i)
		for k := range s {
			s[k] = 2
		}
		if d.Day()%2 == 1 {
			s[0] = math.NaN()
		}
	}
	gpp.Attrs = gridalign.Attributes{"units": units}

	u := gridalign.NewField("Uncertainties", nil,
		gridalign.Axis{Name: "lat", Values: lat}, gridalign.Axis{Name: "lon", Values: lon})
	for i := range u.Data.Elements {
		u.Data.Elements[i] = 1.2
	}
	require.NoError(t, gridalign.WriteFields(path, nil, gpp, u))
}

func testConfig(dir string) *Config {
	cfg := DefaultConfig()
	cfg.InputFile = filepath.Join(dir, "VODCA2GPP.nc")
	cfg.OutputDir = filepath.Join(dir, "combined_output")
	cfg.UncertaintyDir = filepath.Join(dir, "coarsened_uncertainties")
	cfg.Progress = false
	cfg.RunID = uuid.New()
	l := logrus.New()
	l.Out = io.Discard
	cfg.Log = l
	return cfg
}

func TestRun(t *testing.T) {
	cfg := testConfig(t.TempDir())
	writeInput(t, cfg.InputFile, "g C m-2 d-1")

	s, err := Run(cfg)
	require.NoError(t, err)
	assert.Equal(t, &Summary{Months: 12, PaddedBefore: 1, PaddedAfter: 7, Batches: 4}, s)

	v, err := gridalign.ReadField(filepath.Join(cfg.OutputDir, cfg.ValueFile), "GPP")
	require.NoError(t, err)
	v, err = gridalign.NormalizeCalendar(v, gridalign.DefaultTimeUnits)
	require.NoError(t, err)
	require.Equal(t, 12, v.Nt())
	assert.Equal(t, date(2001, 1, 1), v.Time.Times[0])
	assert.Equal(t, date(2001, 12, 1), v.Time.Times[11])
	assert.Equal(t, 2, v.Ny())
	assert.Equal(t, 2, v.Nx())
	assert.Equal(t, []float64{39.5, 37.5}, v.Lat.Values)
	assert.Equal(t, []float64{-99.5, -97.5}, v.Lon.Values)
	assert.Equal(t, cfg.MonthlyUnits, v.Units())

	for _, tt := range []int{0, 5, 11} {
		for _, x := range v.Slice(tt) {
			assert.True(t, math.IsNaN(x), "padded month %d", tt)
		}
	}
	for i, want := range map[int]float64{1: 56, 2: 62, 3: 60, 4: 62} {
		for k, x := range v.Slice(i) {
			assert.InDelta(t, want, x, 1e-4, "month %d cell %d", i, k)
		}
	}

	u, err := gridalign.ReadField(filepath.Join(cfg.UncertaintyDir, cfg.UncertaintyFile), "Uncertainties")
	require.NoError(t, err)
	assert.Nil(t, u.Time)
	assert.Equal(t, 2, u.Ny())
	for _, x := range u.Data.Elements {
		assert.InDelta(t, 100, x, 1e-4)
	}
	assert.Equal(t, "Coarsened spatial uncertainties of the data (scaled)", u.Attrs["description"])
}

func TestRunBatchedMatchesWhole(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	writeInput(t, cfg.InputFile, "g C m-2 d-1")
	cfg.Progress = true
	_, err := Run(cfg)
	require.NoError(t, err)
	batched, err := gridalign.ReadField(filepath.Join(cfg.OutputDir, cfg.ValueFile), "GPP")
	require.NoError(t, err)

	cfg.Batches = 1
	cfg.Progress = false
	cfg.OutputDir = filepath.Join(dir, "whole")
	s, err := Run(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Batches)
	whole, err := gridalign.ReadField(filepath.Join(cfg.OutputDir, cfg.ValueFile), "GPP")
	require.NoError(t, err)

	require.Equal(t, whole.Data.Shape, batched.Data.Shape)
	for i, w := range whole.Data.Elements {
		b := batched.Data.Elements[i]
		if math.IsNaN(w) {
			assert.True(t, math.IsNaN(b), "element %d", i)
			continue
		}
		assert.Equal(t, w, b, "element %d", i)
	}
}

func TestRunNotRate(t *testing.T) {
	cfg := testConfig(t.TempDir())
	writeInput(t, cfg.InputFile, "g C m-2")
	_, err := Run(cfg)
	assert.True(t, errors.Is(err, gridalign.ErrNotRate), "%v", err)

	cfg.Quantity = gridalign.Rate
	_, err = Run(cfg)
	assert.NoError(t, err)
}

func TestRunInvalidConfig(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Batches = 0
	cfg.UncertaintyScale = 0
	_, err := Run(cfg)
	require.True(t, errors.Is(err, gridalign.ErrInvalidConfig))
	assert.Contains(t, err.Error(), "Batches")
	assert.Contains(t, err.Error(), "UncertaintyScale")
}
