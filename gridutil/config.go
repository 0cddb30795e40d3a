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

package gridutil

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/gridalign"
	"github.com/spatialmodel/gridalign/fpar"
	"github.com/spatialmodel/gridalign/gppcheck"
	"github.com/spatialmodel/gridalign/gppcomplete"
	"github.com/spf13/cast"
	"gonum.org/v1/plot/vg"
)

// expand expands the environment variables in s.
func expand(s string) string { return os.ExpandEnv(s) }

// getString returns the value of the named option with any environment
// variables expanded.
func (cfg *Cfg) getString(name string) string {
	return expand(cfg.GetString(name))
}

func (cfg *Cfg) getInt(name string) (int, error) {
	v, err := cast.ToIntE(cfg.Get(name))
	if err != nil {
		return 0, fmt.Errorf("gridalign: reading '%s': %v", name, err)
	}
	return v, nil
}

func (cfg *Cfg) getFloat(name string) (float64, error) {
	v, err := cast.ToFloat64E(cfg.Get(name))
	if err != nil {
		return 0, fmt.Errorf("gridalign: reading '%s': %v", name, err)
	}
	return v, nil
}

func (cfg *Cfg) getBool(name string) (bool, error) {
	v, err := cast.ToBoolE(cfg.Get(name))
	if err != nil {
		return false, fmt.Errorf("gridalign: reading '%s': %v", name, err)
	}
	return v, nil
}

func (cfg *Cfg) getPolicy(name string) (gridalign.Policy, error) {
	p, err := gridalign.ParsePolicy(cfg.getString(name))
	if err != nil {
		return p, fmt.Errorf("gridalign: reading '%s': %w", name, err)
	}
	return p, nil
}

func (cfg *Cfg) getQuantity(name string) (gridalign.Quantity, error) {
	q, err := gridalign.ParseQuantity(cfg.getString(name))
	if err != nil {
		return q, fmt.Errorf("gridalign: reading '%s': %w", name, err)
	}
	return q, nil
}

// errs collects the first error of a sequence of conversions.
type errs struct{ err error }

func (e *errs) int(v int, err error) int {
	if e.err == nil {
		e.err = err
	}
	return v
}

func (e *errs) float(v float64, err error) float64 {
	if e.err == nil {
		e.err = err
	}
	return v
}

func (e *errs) bool(v bool, err error) bool {
	if e.err == nil {
		e.err = err
	}
	return v
}

func (e *errs) policy(v gridalign.Policy, err error) gridalign.Policy {
	if e.err == nil {
		e.err = err
	}
	return v
}

func (e *errs) quantity(v gridalign.Quantity, err error) gridalign.Quantity {
	if e.err == nil {
		e.err = err
	}
	return v
}

// FparConfig builds an fpar configuration from cfg.
func FparConfig(cfg *Cfg) (*fpar.Config, error) {
	var e errs
	c := &fpar.Config{
		Prefix:      cfg.getString("fpar.Prefix"),
		StartYear:   e.int(cfg.getInt("fpar.StartYear")),
		EndYear:     e.int(cfg.getInt("fpar.EndYear")),
		LatFactor:   e.int(cfg.getInt("fpar.LatFactor")),
		LonFactor:   e.int(cfg.getInt("fpar.LonFactor")),
		FillCode:    e.float(cfg.getFloat("fpar.FillCode")),
		ScaleFactor: e.float(cfg.getFloat("fpar.ScaleFactor")),
		ValueFile:   cfg.getString("fpar.ValueFile"),
		QualityFile: cfg.getString("fpar.QualityFile"),
		MissingPair: e.policy(cfg.getPolicy("fpar.MissingPair")),
	}
	if e.err != nil {
		return nil, e.err
	}
	return c, nil
}

// GPPCheckConfig builds a gppcheck configuration from cfg.
func GPPCheckConfig(cfg *Cfg) (*gppcheck.Config, error) {
	var e errs
	c := &gppcheck.Config{
		ReferenceFile:     cfg.getString("gppcheck.ReferenceFile"),
		ReferenceVar:      cfg.getString("gppcheck.ReferenceVar"),
		CandidateFile:     cfg.getString("gppcheck.CandidateFile"),
		CandidateVar:      cfg.getString("gppcheck.CandidateVar"),
		PointsFile:        cfg.getString("gppcheck.PointsFile"),
		OutputFile:        cfg.getString("gppcheck.OutputFile"),
		DefaultTimeUnits:  cfg.getString("DefaultTimeUnits"),
		CandidateQuantity: e.quantity(cfg.getQuantity("gppcheck.CandidateQuantity")),
		ResampleReference: e.bool(cfg.getBool("gppcheck.ResampleReference")),
		ReferenceQuantity: e.quantity(cfg.getQuantity("gppcheck.ReferenceQuantity")),
		MonthlyUnits:      cfg.getString("gppcheck.MonthlyUnits"),
		PointRecords:      e.policy(cfg.getPolicy("gppcheck.PointRecords")),
		ReferenceLabel:    cfg.getString("gppcheck.ReferenceLabel"),
		CandidateLabel:    cfg.getString("gppcheck.CandidateLabel"),
		PageWidth:         vg.Length(e.float(cfg.getFloat("gppcheck.PageWidth"))) * vg.Inch,
		PageHeight:        vg.Length(e.float(cfg.getFloat("gppcheck.PageHeight"))) * vg.Inch,
	}
	if e.err != nil {
		return nil, e.err
	}
	return c, nil
}

// GPPCompleteConfig builds a gppcomplete configuration from cfg.
func GPPCompleteConfig(cfg *Cfg) (*gppcomplete.Config, error) {
	var e errs
	c := &gppcomplete.Config{
		InputFile:        cfg.getString("gppcomplete.InputFile"),
		ValueVar:         cfg.getString("gppcomplete.ValueVar"),
		UncertaintyVar:   cfg.getString("gppcomplete.UncertaintyVar"),
		DefaultTimeUnits: cfg.getString("DefaultTimeUnits"),
		Factor:           e.int(cfg.getInt("gppcomplete.Factor")),
		Batches:          e.int(cfg.getInt("gppcomplete.Batches")),
		UncertaintyScale: e.float(cfg.getFloat("gppcomplete.UncertaintyScale")),
		Quantity:         e.quantity(cfg.getQuantity("gppcomplete.Quantity")),
		MonthlyUnits:     cfg.getString("gppcomplete.MonthlyUnits"),
		OutputDir:        cfg.getString("gppcomplete.OutputDir"),
		ValueFile:        cfg.getString("gppcomplete.ValueFile"),
		UncertaintyDir:   cfg.getString("gppcomplete.UncertaintyDir"),
		UncertaintyFile:  cfg.getString("gppcomplete.UncertaintyFile"),
		Progress:         e.bool(cfg.getBool("gppcomplete.Progress")),
	}
	if e.err != nil {
		return nil, e.err
	}
	return c, nil
}

// WriteTOML writes the effective value of every pipeline option to w in
// TOML format. Dotted option names become tables.
func (cfg *Cfg) WriteTOML(w io.Writer) error {
	out := make(map[string]interface{})
	for _, o := range cfg.options {
		if o.name == "config" {
			continue
		}
		var v interface{}
		var err error
		switch o.defaultVal.(type) {
		case int:
			v, err = cfg.getInt(o.name)
		case float64:
			v, err = cfg.getFloat(o.name)
		case bool:
			v, err = cfg.getBool(o.name)
		default:
			v = cfg.GetString(o.name)
		}
		if err != nil {
			return err
		}
		if i := strings.Index(o.name, "."); i >= 0 {
			table, key := o.name[:i], o.name[i+1:]
			t, ok := out[table].(map[string]interface{})
			if !ok {
				t = make(map[string]interface{})
				out[table] = t
			}
			t[key] = v
			continue
		}
		out[o.name] = v
	}
	if err := toml.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("gridalign: writing configuration: %v", err)
	}
	return nil
}
