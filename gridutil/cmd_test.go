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
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/gridalign"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"
)

// execute runs the command line args and returns what was written to
// standard output.
func execute(t *testing.T, cfg *Cfg, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cfg.Root.SetOut(&out)
	cfg.Root.SetErr(&errOut)
	cfg.Root.SetArgs(args)
	err := cfg.Root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, InitializeConfig(), "version")
	require.NoError(t, err)
	assert.Equal(t, "gridalign v"+gridalign.Version+"\n", out)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, InitializeConfig(), "version", "--log-level=loud")
	assert.Error(t, err)
}

type dump struct {
	LogLevel         string `toml:"log-level"`
	DefaultTimeUnits string
	Fpar             struct {
		StartYear, EndYear   int
		LatFactor, LonFactor int
		ScaleFactor          float64
		MissingPair          string
	} `toml:"fpar"`
	GPPComplete struct {
		Batches  int
		Progress bool
	} `toml:"gppcomplete"`
}

func TestConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(file, []byte(`
[fpar]
StartYear = 1990
EndYear = 1995

[gppcomplete]
Batches = 8
`), 0644))
	t.Setenv("GRIDALIGN_FPAR_ENDYEAR", "2001")

	out, err := execute(t, InitializeConfig(), "config", "--config="+file, "--fpar.LatFactor=3")
	require.NoError(t, err)

	var d dump
	_, err = toml.Decode(out, &d)
	require.NoError(t, err, out)
	assert.Equal(t, 1990, d.Fpar.StartYear)
	assert.Equal(t, 2001, d.Fpar.EndYear)
	assert.Equal(t, 3, d.Fpar.LatFactor)
	assert.Equal(t, 6, d.Fpar.LonFactor)
	assert.Equal(t, 0.001, d.Fpar.ScaleFactor)
	assert.Equal(t, "skip", d.Fpar.MissingPair)
	assert.Equal(t, 8, d.GPPComplete.Batches)
	assert.True(t, d.GPPComplete.Progress)
	assert.Equal(t, "info", d.LogLevel)
	assert.Equal(t, gridalign.DefaultTimeUnits, d.DefaultTimeUnits)
}

func TestFparConfig(t *testing.T) {
	t.Setenv("GRIDALIGN_DATA", "/data")
	t.Setenv("GRIDALIGN_FPAR_PREFIX", "${GRIDALIGN_DATA}/GIMMS_")
	t.Setenv("GRIDALIGN_FPAR_MISSINGPAIR", "fatal")
	c, err := FparConfig(InitializeConfig())
	require.NoError(t, err)
	assert.Equal(t, "/data/GIMMS_", c.Prefix)
	assert.Equal(t, gridalign.Fatal, c.MissingPair)
	assert.Equal(t, 1982, c.StartYear)
	assert.Equal(t, 65535., c.FillCode)
}

func TestFparConfigErrors(t *testing.T) {
	t.Setenv("GRIDALIGN_FPAR_STARTYEAR", "nineteen")
	_, err := FparConfig(InitializeConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fpar.StartYear")

	t.Setenv("GRIDALIGN_FPAR_STARTYEAR", "1990")
	t.Setenv("GRIDALIGN_FPAR_MISSINGPAIR", "maybe")
	_, err = FparConfig(InitializeConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fpar.MissingPair")
}

func TestGPPCheckConfig(t *testing.T) {
	cfg := InitializeConfig()
	require.NoError(t, cfg.gppcheckCmd.Flags().Parse([]string{
		"--gppcheck.PageWidth=10",
		"--gppcheck.CandidateQuantity=rate",
		"--gppcheck.PointRecords=fatal",
	}))
	c, err := GPPCheckConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 10*vg.Inch, c.PageWidth)
	assert.Equal(t, 6*vg.Inch, c.PageHeight)
	assert.Equal(t, gridalign.Rate, c.CandidateQuantity)
	assert.Equal(t, gridalign.Unknown, c.ReferenceQuantity)
	assert.Equal(t, gridalign.Fatal, c.PointRecords)
	assert.Equal(t, "Old", c.ReferenceLabel)
}

func TestGPPCompleteCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "gpp.nc")
	lat, lon := []float64{1, 0.5, 0, -0.5}, []float64{0, 0.5, 1, 1.5}

	var times []time.Time
	for d := time.Date(2001, 2, 15, 0, 0, 0, 0, time.UTC); d.Month() < time.June; d = d.AddDate(0, 0, 1) {
		times = append(times, d)
	}
	gpp := gridalign.NewField("GPP", &gridalign.TimeAxis{Name: "time", Times: times},
		gridalign.Axis{Name: "lat", Values: lat}, gridalign.Axis{Name: "lon", Values: lon})
	for i := range gpp.Data.Elements {
		gpp.Data.Elements[i] = 1
	}
	gpp.Attrs = gridalign.Attributes{"units": "g C m-2 d-1"}
	u := gridalign.NewField("Uncertainties", nil,
		gridalign.Axis{Name: "lat", Values: lat}, gridalign.Axis{Name: "lon", Values: lon})
	for i := range u.Data.Elements {
		u.Data.Elements[i] = 0.12
	}
	require.NoError(t, gridalign.WriteFields(input, nil, gpp, u))

	out, err := execute(t, InitializeConfig(), "gppcomplete",
		"--gppcomplete.InputFile="+input,
		"--gppcomplete.OutputDir="+filepath.Join(dir, "out"),
		"--gppcomplete.UncertaintyDir="+filepath.Join(dir, "unc"),
		"--gppcomplete.Progress=false",
		"--log-level=error",
	)
	require.NoError(t, err)
	assert.Equal(t, "wrote 12 months (1 padded before, 7 after) in 4 batches\n", out)

	v, err := gridalign.ReadField(filepath.Join(dir, "out", "combined_GPP.nc"), "GPP")
	require.NoError(t, err)
	assert.Equal(t, 12, v.Nt())
	assert.Equal(t, 2, v.Nx())
	assert.InDelta(t, 31, v.Data.Get(2, 0, 0), 1e-4)

	_, err = os.Stat(filepath.Join(dir, "unc", "coarsened_uncertainties.nc"))
	assert.NoError(t, err)
}

func TestConfigExample(t *testing.T) {
	t.Setenv("GIMMS_DIR", "/data/gimms")
	cfg := InitializeConfig()
	_, err := execute(t, cfg, "config", "--config=../cmd/gridalign/configExample.toml")
	require.NoError(t, err)

	c, err := FparConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "/data/gimms/GIMMS_FPAR4g_solely_", c.Prefix)
	assert.Equal(t, 2015, c.EndYear)

	g, err := GPPCompleteConfig(cfg)
	require.NoError(t, err)
	assert.InDelta(t, 1000./12, g.UncertaintyScale, 1e-12)
	assert.NoError(t, gridalign.Validate(g))

	// Every key in the example is a known option.
	var keys map[string]interface{}
	_, err = toml.DecodeFile("../cmd/gridalign/configExample.toml", &keys)
	require.NoError(t, err)
	known := make(map[string]bool)
	for _, o := range cfg.options {
		known[o.name] = true
	}
	for k, v := range keys {
		if table, ok := v.(map[string]interface{}); ok {
			for kk := range table {
				assert.True(t, known[k+"."+kk], "%s.%s", k, kk)
			}
			continue
		}
		assert.True(t, known[k], k)
	}
}
