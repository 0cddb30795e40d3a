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

// Package fpar assembles monthly composites of paired two-band rasters
// (a value band and a quality band) into value and quality time series.
package fpar

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/gridalign"
)

// RasterPair is the input class of a month's pair of acquisitions.
const RasterPair = "raster-pair"

// DateFormat is the format of the acquisition date in raster file names.
const DateFormat = "20060102"

// ErrNoData is returned when no month could be composited.
var ErrNoData = errors.New("fpar: no raster pairs were found")

// Config holds the configuration of an fpar run.
type Config struct {
	// Prefix is prepended to "<YYYY><MM><suffix>.tif" to form the path of
	// each acquisition, where suffix is 01 or 02.
	Prefix string `validate:"required"`

	StartYear int `validate:"gte=1"`
	EndYear   int `validate:"gtefield=StartYear"`

	LatFactor int `validate:"gte=1"`
	LonFactor int `validate:"gte=1"`

	// FillCode marks cells without data in both bands.
	FillCode float64

	// ScaleFactor converts the stored value band to a fraction.
	ScaleFactor float64 `validate:"gt=0"`

	ValueFile   string `validate:"required"`
	QualityFile string `validate:"required"`

	// MissingPair says whether a month whose rasters do not exist is
	// skipped or aborts the run.
	MissingPair gridalign.Policy

	RunID uuid.UUID
	Log   logrus.FieldLogger
}

// DefaultConfig returns the default configuration for GIMMS FPAR data.
func DefaultConfig() *Config {
	return &Config{
		Prefix:      "GIMMS_FPAR4g_solely_",
		StartYear:   1982,
		EndYear:     2015,
		LatFactor:   6,
		LonFactor:   6,
		FillCode:    65535,
		ScaleFactor: 0.001,
		ValueFile:   "mod_FPAR_combined.nc",
		QualityFile: "mod_QC_combined.nc",
		MissingPair: gridalign.Skip,
	}
}

// Summary reports the outcome of a run.
type Summary struct {
	// Composited and Skipped hold the months as YYYYMM.
	Composited []string
	Skipped    []string

	// OutOfRange is the number of scaled values outside of [0, 1].
	OutOfRange int
}

// PairFiles returns the paths of the two acquisitions for a month.
func PairFiles(prefix string, year, month int) (string, string) {
	return fmt.Sprintf("%s%d%02d01.tif", prefix, year, month),
		fmt.Sprintf("%s%d%02d02.tif", prefix, year, month)
}

var dateToken = regexp.MustCompile(`(\d{8})\D*$`)

// AcquisitionDate returns the date encoded in the last eight digits of
// the base name of path.
func AcquisitionDate(path string) (time.Time, error) {
	m := dateToken.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return time.Time{}, fmt.Errorf("fpar: no 8-digit date in file name %s", path)
	}
	t, err := time.Parse(DateFormat, m[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("fpar: parsing date in file name %s: %v", path, err)
	}
	return t, nil
}

// Run composites every month from January of StartYear to December of
// EndYear and writes the value and quality time series.
func Run(cfg *Config, src RasterSource) (*Summary, error) {
	if err := gridalign.Validate(cfg); err != nil {
		return nil, err
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	policy := gridalign.InputPolicy{RasterPair: cfg.MissingPair}

	s := new(Summary)
	var values, qualities []*gridalign.Field
	for year := cfg.StartYear; year <= cfg.EndYear; year++ {
		for month := 1; month <= 12; month++ {
			label := fmt.Sprintf("%d%02d", year, month)
			file1, file2 := PairFiles(cfg.Prefix, year, month)
			v, q, n, err := Composite(cfg, src, file1, file2)
			if errors.Is(err, os.ErrNotExist) {
				if err := policy.Handle(RasterPair, err, log.WithField("month", label)); err != nil {
					return s, fmt.Errorf("fpar: %w", err)
				}
				s.Skipped = append(s.Skipped, label)
				continue
			} else if err != nil {
				return s, err
			}
			values = append(values, v)
			qualities = append(qualities, q)
			s.Composited = append(s.Composited, label)
			s.OutOfRange += n
			log.WithFields(logrus.Fields{"month": label, "time": v.Time.Times[0].Format(DateFormat)}).Info("composited")
		}
	}
	if len(values) == 0 {
		return s, ErrNoData
	}

	value, err := gridalign.Concat(values...)
	if err != nil {
		return s, fmt.Errorf("fpar: combining values: %w", err)
	}
	values = nil
	quality, err := gridalign.Concat(qualities...)
	if err != nil {
		return s, fmt.Errorf("fpar: combining quality: %w", err)
	}
	qualities = nil

	global := gridalign.Provenance(cfg.RunID, "gridalign fpar")
	if err := gridalign.WriteField(cfg.ValueFile, value, global); err != nil {
		return s, err
	}
	if err := gridalign.WriteField(cfg.QualityFile, quality, global); err != nil {
		return s, err
	}
	log.WithFields(logrus.Fields{
		"composited":   len(s.Composited),
		"skipped":      len(s.Skipped),
		"out_of_range": s.OutOfRange,
	}).Infof("wrote %s and %s", cfg.ValueFile, cfg.QualityFile)
	return s, nil
}

// Composite reads the two acquisitions of a month and returns the
// coarsened monthly mean value and quality fields, stamped with the date
// in the name of file1, along with the number of scaled values that fall
// outside of [0, 1].
func Composite(cfg *Config, src RasterSource, file1, file2 string) (value, quality *gridalign.Field, outOfRange int, err error) {
	date, err := AcquisitionDate(file1)
	if err != nil {
		return nil, nil, 0, err
	}
	var vs, qs []*gridalign.Field
	for _, path := range []string{file1, file2} {
		r, err := src.Read(path)
		if err != nil {
			return nil, nil, 0, err
		}
		if len(r.Bands) < 2 {
			return nil, nil, 0, fmt.Errorf("%w: %s has %d", ErrTooFewBands, path, len(r.Bands))
		}
		v, n := decodeBand(r, 0, cfg.FillCode, cfg.ScaleFactor)
		if n > 0 {
			if cfg.Log != nil {
				cfg.Log.WithField("file", path).Warnf("%d scaled values are outside of [0, 1]", n)
			}
			outOfRange += n
		}
		q, _ := decodeBand(r, 1, cfg.FillCode, 1)
		vs = append(vs, v)
		qs = append(qs, q)
	}
	if err := vs[0].SameGrid(vs[1]); err != nil {
		return nil, nil, 0, fmt.Errorf("fpar: %s and %s: %w", file1, file2, err)
	}

	ta := &gridalign.TimeAxis{Name: "time", Times: []time.Time{date}}
	build := func(name string, fields []*gridalign.Field, attrs gridalign.Attributes) (*gridalign.Field, error) {
		m, err := gridalign.MeanOf(fields...)
		if err != nil {
			return nil, err
		}
		c, err := gridalign.Coarsen(m, cfg.LatFactor, cfg.LonFactor)
		if err != nil {
			return nil, err
		}
		c.Name = name
		c.Time = ta
		c.Attrs = attrs
		return c, nil
	}
	if value, err = build("fpar", vs, valueAttributes()); err != nil {
		return nil, nil, 0, fmt.Errorf("fpar: %s: %w", file1, err)
	}
	if quality, err = build("qc", qs, qualityAttributes()); err != nil {
		return nil, nil, 0, fmt.Errorf("fpar: %s: %w", file1, err)
	}
	return value, quality, outOfRange, nil
}

// decodeBand converts band b of r to a field, replacing the fill code
// with NaN and multiplying by scale. It also returns the number of
// scaled values outside of [0, 1].
func decodeBand(r *Raster, b int, fill, scale float64) (*gridalign.Field, int) {
	f := gridalign.NewField("", nil,
		gridalign.Axis{Name: "latitude", Values: r.Lat, Attrs: gridalign.Attributes{"units": "degrees_north"}},
		gridalign.Axis{Name: "longitude", Values: r.Lon, Attrs: gridalign.Attributes{"units": "degrees_east"}})
	n := 0
	for i, v := range r.Bands[b] {
		if v == fill {
			continue
		}
		v *= scale
		if v < 0 || v > 1 {
			n++
		}
		f.Data.Elements[i] = v
	}
	return f, n
}

func valueAttributes() gridalign.Attributes {
	return gridalign.Attributes{
		"description": "GIMMS Monthly mean FPAR, sourced from PKU GIMMS NDVI",
		"units":       "Fraction",
		"long_name":   "Fraction of Photosynthetically Active Radiation",
	}
}

func qualityAttributes() gridalign.Attributes {
	return gridalign.Attributes{
		"description": "Monthly mean Quality Control (QC) data, inherited from PKU GIMMS NDVI",
		"long_name":   "Quality Control (QC)",
		"notes":       "Quality levels are 0, 1, 2, 3, in decreasing order of quality",
	}
}
