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

// Package gppcomplete converts a gridded gross primary production series
// to monthly totals covering complete calendar years and coarsens it in
// memory-bounded batches, together with its uncertainty layer.
package gppcomplete

import (
	"fmt"
	"path/filepath"

	"github.com/cheggaaa/pb"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/gridalign"
)

// Config holds the configuration of a gppcomplete run.
type Config struct {
	InputFile      string `validate:"required"`
	ValueVar       string `validate:"required"`
	UncertaintyVar string `validate:"required"`

	// DefaultTimeUnits are used if the time coordinate does not declare
	// units.
	DefaultTimeUnits string `validate:"required"`

	// Factor is the number of cells along each axis that are averaged
	// into one output cell.
	Factor int `validate:"gte=1"`

	// Batches is the number of time chunks that are coarsened one at a
	// time.
	Batches int `validate:"gte=1"`

	// UncertaintyScale multiplies the coarsened uncertainties.
	UncertaintyScale float64 `validate:"gt=0"`

	// Quantity overrides the quantity read from the value units. The
	// values must be per-day rates.
	Quantity gridalign.Quantity

	MonthlyUnits string `validate:"required"`

	OutputDir       string `validate:"required"`
	ValueFile       string `validate:"required"`
	UncertaintyDir  string `validate:"required"`
	UncertaintyFile string `validate:"required"`

	// Progress shows a progress bar while coarsening.
	Progress bool

	RunID uuid.UUID
	Log   logrus.FieldLogger
}

// DefaultConfig returns the default configuration for VODCA2GPP data.
func DefaultConfig() *Config {
	return &Config{
		InputFile:        "VODCA2GPP_wild2021_GPP_1988-2020.nc",
		ValueVar:         "GPP",
		UncertaintyVar:   "Uncertainties",
		DefaultTimeUnits: gridalign.DefaultTimeUnits,
		Factor:           2,
		Batches:          4,
		UncertaintyScale: 1000. / 12,
		MonthlyUnits:     "g C m^-2 mon^-1",
		OutputDir:        "combined_output",
		ValueFile:        "combined_GPP.nc",
		UncertaintyDir:   "coarsened_uncertainties",
		UncertaintyFile:  "coarsened_uncertainties.nc",
		Progress:         true,
	}
}

// Summary reports the outcome of a run.
type Summary struct {
	// Months is the number of monthly steps written, including padding.
	Months       int
	PaddedBefore int
	PaddedAfter  int
	Batches      int
}

// Run processes the value and uncertainty layers of InputFile.
func Run(cfg *Config) (*Summary, error) {
	if err := gridalign.Validate(cfg); err != nil {
		return nil, err
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	fields, err := gridalign.ReadFields(cfg.InputFile, cfg.ValueVar, cfg.UncertaintyVar)
	if err != nil {
		return nil, err
	}
	value, uncertainty := fields[0], fields[1]

	s, err := processValue(cfg, log, value)
	if err != nil {
		return nil, err
	}
	if err := processUncertainty(cfg, log, uncertainty); err != nil {
		return nil, err
	}
	return s, nil
}

func processValue(cfg *Config, log logrus.FieldLogger, f *gridalign.Field) (*Summary, error) {
	f, err := gridalign.NormalizeCalendar(f, cfg.DefaultTimeUnits)
	if err != nil {
		return nil, fmt.Errorf("gppcomplete: %w", err)
	}
	monthly, err := gridalign.ResampleMonthly(f)
	if err != nil {
		return nil, err
	}
	if cfg.Quantity != gridalign.Unknown {
		monthly.Kind = cfg.Quantity
	}
	totals, err := gridalign.ToMonthlyTotals(monthly, cfg.MonthlyUnits)
	if err != nil {
		return nil, fmt.Errorf("gppcomplete: %w", err)
	}
	padded, before, after, err := gridalign.PadToCalendarYears(totals)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"months":        padded.Nt(),
		"padded_before": before,
		"padded_after":  after,
	}).Info("padded to calendar years")

	s := &Summary{
		PaddedBefore: before,
		PaddedAfter:  after,
		Batches:      len(gridalign.ChunkBounds(padded.Nt(), cfg.Batches)),
	}
	coarse, err := coarsen(cfg, padded, "Processing GPP batches")
	if err != nil {
		return nil, err
	}
	coarse.Attrs["description"] = fmt.Sprintf("Monthly totals coarsened by %d×%d in %d batches",
		cfg.Factor, cfg.Factor, s.Batches)
	s.Months = coarse.Nt()

	path := filepath.Join(cfg.OutputDir, cfg.ValueFile)
	if err := gridalign.WriteField(path, coarse, gridalign.Provenance(cfg.RunID, "gridalign gppcomplete")); err != nil {
		return nil, err
	}
	log.Infof("saved combined %s data: %s", f.Name, path)
	return s, nil
}

func processUncertainty(cfg *Config, log logrus.FieldLogger, f *gridalign.Field) error {
	if f.Time != nil {
		var err error
		if f, err = gridalign.NormalizeCalendar(f, cfg.DefaultTimeUnits); err != nil {
			return fmt.Errorf("gppcomplete: %w", err)
		}
	}
	coarse, err := coarsen(cfg, f, "Processing uncertainties")
	if err != nil {
		return err
	}
	scaled := gridalign.Scale(coarse, cfg.UncertaintyScale)
	scaled.Attrs["description"] = "Coarsened spatial uncertainties of the data (scaled)"
	scaled.Attrs["units"] = cfg.MonthlyUnits

	path := filepath.Join(cfg.UncertaintyDir, cfg.UncertaintyFile)
	if err := gridalign.WriteField(path, scaled, gridalign.Provenance(cfg.RunID, "gridalign gppcomplete")); err != nil {
		return err
	}
	log.Infof("saved coarsened %s data: %s", f.Name, path)
	return nil
}

// coarsen coarsens f in cfg.Batches time chunks.
func coarsen(cfg *Config, f *gridalign.Field, status string) (*gridalign.Field, error) {
	opts := []gridalign.ChunkOption{gridalign.WithGC()}
	if cfg.Progress {
		n := 1
		if f.Time != nil {
			n = len(gridalign.ChunkBounds(f.Nt(), cfg.Batches))
		}
		bar := pb.New(n).Prefix(status + " ")
		bar.ShowPercent = true
		bar.ShowCounters = true
		bar.ShowTimeLeft = true
		bar.Start()
		defer bar.Finish()
		opts = append(opts, gridalign.WithProgress(func(int, int) { bar.Increment() }))
	}
	return gridalign.Chunked(f, cfg.Batches, func(c *gridalign.Field) (*gridalign.Field, error) {
		return gridalign.Coarsen(c, cfg.Factor, cfg.Factor)
	}, opts...)
}
