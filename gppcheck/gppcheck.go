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

// Package gppcheck compares two independently produced gridded time
// series. It puts both on the same calendar, time window and coordinate
// names and plots the two series side by side at a list of points.
package gppcheck

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/gridalign"
	"gonum.org/v1/plot/vg"
)

// TimeCoordinate is the input class of a dataset's time coordinate.
// A dataset without one is always fatal.
const TimeCoordinate = "time-coordinate"

// ErrNoPoints is returned when the point list does not hold any valid
// points.
var ErrNoPoints = errors.New("gppcheck: no valid points to plot")

// Config holds the configuration of a gppcheck run.
type Config struct {
	// ReferenceFile and ReferenceVar locate the existing dataset, which
	// is assumed to already be monthly.
	ReferenceFile string `validate:"required"`
	ReferenceVar  string `validate:"required"`

	// CandidateFile and CandidateVar locate the new dataset, which is
	// resampled to monthly totals.
	CandidateFile string `validate:"required"`
	CandidateVar  string `validate:"required"`

	// PointsFile is a text file with a header line followed by
	// "lon lat" lines.
	PointsFile string `validate:"required"`
	OutputFile string `validate:"required"`

	// DefaultTimeUnits are used for numeric time coordinates that do not
	// declare units.
	DefaultTimeUnits string `validate:"required"`

	// CandidateQuantity overrides the quantity read from the candidate's
	// units. The candidate must be a per-day rate.
	CandidateQuantity gridalign.Quantity

	// ResampleReference also converts the reference to monthly totals,
	// using ReferenceQuantity in the same way as CandidateQuantity.
	ResampleReference bool
	ReferenceQuantity gridalign.Quantity

	// MonthlyUnits are the units of the monthly totals.
	MonthlyUnits string

	PointRecords gridalign.Policy

	ReferenceLabel string
	CandidateLabel string

	PageWidth  vg.Length `validate:"gt=0"`
	PageHeight vg.Length `validate:"gt=0"`

	RunID uuid.UUID
	Log   logrus.FieldLogger
}

// DefaultConfig returns the default configuration for comparing
// FLUXCOM and VODCA2GPP gross primary production.
func DefaultConfig() *Config {
	return &Config{
		ReferenceFile:    "FLUXCOMmet.GPP.360.720.1982.2010.30days.nc",
		ReferenceVar:     "GPP",
		CandidateFile:    "VODCA2GPP_v1.nc",
		CandidateVar:     "GPP",
		PointsFile:       "grid_cal_uniq.txt",
		OutputFile:       "gpp_plots.pdf",
		DefaultTimeUnits: gridalign.DefaultTimeUnits,
		MonthlyUnits:     "g C m^-2 month^-1",
		PointRecords:     gridalign.Skip,
		ReferenceLabel:   "Old",
		CandidateLabel:   "New",
		PageWidth:        12 * vg.Inch,
		PageHeight:       6 * vg.Inch,
	}
}

func (cfg *Config) policy() gridalign.InputPolicy {
	return gridalign.InputPolicy{
		TimeCoordinate:          gridalign.Fatal,
		gridalign.PointRecords: cfg.PointRecords,
	}
}

func (cfg *Config) log() logrus.FieldLogger {
	if cfg.Log == nil {
		return logrus.StandardLogger()
	}
	return cfg.Log
}

// Aligned holds the two datasets after alignment. Both cover the time
// window [Start, End] and use the reference's coordinate names.
type Aligned struct {
	Reference, Candidate *gridalign.Field
	Start, End           time.Time
}

// Align reads both datasets and aligns them.
func Align(cfg *Config) (*Aligned, error) {
	ref, err := gridalign.ReadField(cfg.ReferenceFile, cfg.ReferenceVar)
	if err != nil {
		return nil, err
	}
	cand, err := gridalign.ReadField(cfg.CandidateFile, cfg.CandidateVar)
	if err != nil {
		return nil, err
	}
	return AlignFields(cfg, ref, cand)
}

// AlignFields aligns candidate to reference:
//  1. Both time axes are decoded to calendar time.
//  2. The working window is the overlap of the two decoded ranges.
//  3. The candidate (and optionally the reference) is resampled to
//     calendar months and converted from per-day rates to monthly totals.
//  4. Both are clipped to the working window.
//  5. The candidate's axes are renamed to match the reference.
func AlignFields(cfg *Config, ref, cand *gridalign.Field) (*Aligned, error) {
	log := cfg.log()
	policy := cfg.policy()
	var err error
	for _, f := range []**gridalign.Field{&ref, &cand} {
		n, err := gridalign.NormalizeCalendar(*f, cfg.DefaultTimeUnits)
		if err != nil {
			return nil, fmt.Errorf("gppcheck: %w", policy.Handle(TimeCoordinate, err, log))
		}
		*f = n
	}
	a := &Aligned{}
	a.Start, a.End, err = gridalign.Intersect(ref, cand)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"start": a.Start.Format(time.RFC3339),
		"end":   a.End.Format(time.RFC3339),
	}).Info("common time window")

	if cand, err = monthlyTotals(cand, cfg.CandidateQuantity, cfg.MonthlyUnits); err != nil {
		return nil, fmt.Errorf("gppcheck: candidate: %w", err)
	}
	if cfg.ResampleReference {
		if ref, err = monthlyTotals(ref, cfg.ReferenceQuantity, cfg.MonthlyUnits); err != nil {
			return nil, fmt.Errorf("gppcheck: reference: %w", err)
		}
	}
	if a.Reference, err = gridalign.ClipTime(ref, a.Start, a.End); err != nil {
		return nil, err
	}
	if a.Candidate, err = gridalign.ClipTime(cand, a.Start, a.End); err != nil {
		return nil, err
	}
	a.Candidate = gridalign.RenameAxes(a.Candidate, a.Reference.Lat.Name, a.Reference.Lon.Name)
	return a, nil
}

// monthlyTotals resamples f to calendar-month means and converts them to
// monthly totals. q overrides the quantity read from f's units unless it
// is Unknown.
func monthlyTotals(f *gridalign.Field, q gridalign.Quantity, units string) (*gridalign.Field, error) {
	m, err := gridalign.ResampleMonthly(f)
	if err != nil {
		return nil, err
	}
	if q != gridalign.Unknown {
		m.Kind = q
	}
	return gridalign.ToMonthlyTotals(m, units)
}

// Summary reports the outcome of a run.
type Summary struct {
	Points     int
	Start, End time.Time
}

// Run aligns the datasets and writes one page of plots per point to
// OutputFile.
func Run(cfg *Config) (*Summary, error) {
	if err := gridalign.Validate(cfg); err != nil {
		return nil, err
	}
	log := cfg.log()
	a, err := Align(cfg)
	if err != nil {
		return nil, err
	}
	pts, err := gridalign.ReadPointsFile(cfg.PointsFile, cfg.policy(), log)
	if err != nil {
		return nil, err
	}
	if len(pts) == 0 {
		return nil, ErrNoPoints
	}
	if dir := filepath.Dir(cfg.OutputFile); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("gppcheck: creating output directory: %w", err)
		}
	}
	w, err := os.Create(cfg.OutputFile)
	if err != nil {
		return nil, fmt.Errorf("gppcheck: %w", err)
	}
	defer w.Close()
	if err := RenderPDF(w, cfg, a, pts); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"points": len(pts), "run_id": cfg.RunID}).Infof("wrote %s", cfg.OutputFile)
	return &Summary{Points: len(pts), Start: a.Start, End: a.End}, nil
}
