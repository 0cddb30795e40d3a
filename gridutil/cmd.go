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

// Package gridutil holds the command-line interface of gridalign.
package gridutil

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/gridalign"
	"github.com/spatialmodel/gridalign/fpar"
	"github.com/spatialmodel/gridalign/gppcheck"
	"github.com/spatialmodel/gridalign/gppcomplete"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gonum.org/v1/plot/vg"
)

// Cfg holds configuration information and the command tree.
type Cfg struct {
	*viper.Viper

	Root *cobra.Command

	versionCmd, fparCmd, gppcheckCmd, gppcompleteCmd, configCmd *cobra.Command

	options []option
	log     *logrus.Logger
}

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

// InitializeConfig creates the command tree and binds every option to
// a flag, an environment variable and a configuration file key.
func InitializeConfig() *Cfg {
	cfg := &Cfg{
		Viper: viper.New(),
		log:   logrus.New(),
	}

	cfg.Root = &cobra.Command{
		Use:   "gridalign",
		Short: "Resample and align gridded remote-sensing datasets.",
		Long: `gridalign resamples gridded remote-sensing and climate datasets in time and
space, aligns independent datasets onto a common time window and writes
NetCDF files and diagnostic plots. Use the subcommands specified below to
access the pipelines.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'GRIDALIGN_var' where 'var'
is the name of the variable to be set, with '.' replaced by '_'. Environment
variables are also read from a .env file in the working directory if there is
one. String settings may contain environment variables.`,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.setConfig(); err != nil {
				return err
			}
			return cfg.setLogger(cmd)
		},
	}

	cfg.versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Long:  "version prints the version number of this version of gridalign.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gridalign v%s\n", gridalign.Version)
		},
		DisableAutoGenTag: true,
	}

	cfg.fparCmd = &cobra.Command{
		Use:   "fpar",
		Short: "Composite monthly FPAR raster pairs",
		Long: `fpar reads the two acquisitions of each month between StartYear and
EndYear, averages them, coarsens the result and writes the value and quality
time series to two NetCDF files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := FparConfig(cfg)
			if err != nil {
				return err
			}
			c.RunID, c.Log = cfg.runLog("fpar")
			s, err := fpar.Run(c, fpar.GDALSource{})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "composited %d months, skipped %d, %d values out of range\n",
				len(s.Composited), len(s.Skipped), s.OutOfRange)
			return nil
		},
		DisableAutoGenTag: true,
	}

	cfg.gppcheckCmd = &cobra.Command{
		Use:   "gppcheck",
		Short: "Compare two GPP datasets at a list of points",
		Long: `gppcheck aligns a candidate dataset to a reference dataset in time and
coordinate names and writes a PDF with one page of side-by-side time series
plots for each point in PointsFile.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := GPPCheckConfig(cfg)
			if err != nil {
				return err
			}
			c.RunID, c.Log = cfg.runLog("gppcheck")
			s, err := gppcheck.Run(c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "plotted %d points from %s to %s\n",
				s.Points, s.Start.Format("2006-01"), s.End.Format("2006-01"))
			return nil
		},
		DisableAutoGenTag: true,
	}

	cfg.gppcompleteCmd = &cobra.Command{
		Use:   "gppcomplete",
		Short: "Convert GPP to complete years of coarsened monthly totals",
		Long: `gppcomplete converts a daily GPP rate to monthly totals, pads the series
to whole calendar years, coarsens it in batches and coarsens and scales the
uncertainty layer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := GPPCompleteConfig(cfg)
			if err != nil {
				return err
			}
			c.RunID, c.Log = cfg.runLog("gppcomplete")
			s, err := gppcomplete.Run(c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d months (%d padded before, %d after) in %d batches\n",
				s.Months, s.PaddedBefore, s.PaddedAfter, s.Batches)
			return nil
		},
		DisableAutoGenTag: true,
	}

	cfg.configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `config prints the configuration that results from the defaults, the
configuration file, the environment and the command-line flags in TOML format.
The output can be used as a configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cfg.WriteTOML(cmd.OutOrStdout())
		},
		DisableAutoGenTag: true,
	}

	fd, cd, gd := fpar.DefaultConfig(), gppcheck.DefaultConfig(), gppcomplete.DefaultConfig()
	fparFlags := []*pflag.FlagSet{cfg.fparCmd.Flags(), cfg.configCmd.Flags()}
	checkFlags := []*pflag.FlagSet{cfg.gppcheckCmd.Flags(), cfg.configCmd.Flags()}
	completeFlags := []*pflag.FlagSet{cfg.gppcompleteCmd.Flags(), cfg.configCmd.Flags()}

	cfg.options = []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "log-level",
			usage: `
              log-level is the minimum level of log messages that are printed.
              Valid options are trace, debug, info, warn and error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "DefaultTimeUnits",
			usage: `
              DefaultTimeUnits are the units assumed for numeric time
              coordinates that do not declare any, in the form
              "<unit> since <date>".`,
			defaultVal: gridalign.DefaultTimeUnits,
			flagsets:   []*pflag.FlagSet{cfg.gppcheckCmd.Flags(), cfg.gppcompleteCmd.Flags(), cfg.configCmd.Flags()},
		},
		{
			name: "fpar.Prefix",
			usage: `
              fpar.Prefix is prepended to "<YYYY><MM>01.tif" and "<YYYY><MM>02.tif"
              to form the paths of the two acquisitions of each month. It can
              include environment variables.`,
			defaultVal: fd.Prefix,
			flagsets:   fparFlags,
		},
		{
			name: "fpar.StartYear",
			usage: `
              fpar.StartYear is the first year to composite.`,
			defaultVal: fd.StartYear,
			flagsets:   fparFlags,
		},
		{
			name: "fpar.EndYear",
			usage: `
              fpar.EndYear is the last year to composite.`,
			defaultVal: fd.EndYear,
			flagsets:   fparFlags,
		},
		{
			name: "fpar.LatFactor",
			usage: `
              fpar.LatFactor is the number of raster rows averaged into one
              output row.`,
			defaultVal: fd.LatFactor,
			flagsets:   fparFlags,
		},
		{
			name: "fpar.LonFactor",
			usage: `
              fpar.LonFactor is the number of raster columns averaged into one
              output column.`,
			defaultVal: fd.LonFactor,
			flagsets:   fparFlags,
		},
		{
			name: "fpar.FillCode",
			usage: `
              fpar.FillCode is the raster value that marks missing data.`,
			defaultVal: fd.FillCode,
			flagsets:   fparFlags,
		},
		{
			name: "fpar.ScaleFactor",
			usage: `
              fpar.ScaleFactor converts stored values to fractions.`,
			defaultVal: fd.ScaleFactor,
			flagsets:   fparFlags,
		},
		{
			name: "fpar.ValueFile",
			usage: `
              fpar.ValueFile is the path of the composited value output.`,
			defaultVal: fd.ValueFile,
			flagsets:   fparFlags,
		},
		{
			name: "fpar.QualityFile",
			usage: `
              fpar.QualityFile is the path of the composited quality output.`,
			defaultVal: fd.QualityFile,
			flagsets:   fparFlags,
		},
		{
			name: "fpar.MissingPair",
			usage: `
              fpar.MissingPair says what happens when the rasters of a month
              do not exist: "skip" logs a warning and continues, "fatal" stops
              the run.`,
			defaultVal: fd.MissingPair.String(),
			flagsets:   fparFlags,
		},
		{
			name: "gppcheck.ReferenceFile",
			usage: `
              gppcheck.ReferenceFile is the path of the existing monthly dataset.`,
			defaultVal: cd.ReferenceFile,
			flagsets:   checkFlags,
		},
		{
			name: "gppcheck.ReferenceVar",
			usage: `
              gppcheck.ReferenceVar is the variable read from ReferenceFile.`,
			defaultVal: cd.ReferenceVar,
			flagsets:   checkFlags,
		},
		{
			name: "gppcheck.CandidateFile",
			usage: `
              gppcheck.CandidateFile is the path of the dataset to check.`,
			defaultVal: cd.CandidateFile,
			flagsets:   checkFlags,
		},
		{
			name: "gppcheck.CandidateVar",
			usage: `
              gppcheck.CandidateVar is the variable read from CandidateFile.`,
			defaultVal: cd.CandidateVar,
			flagsets:   checkFlags,
		},
		{
			name: "gppcheck.PointsFile",
			usage: `
              gppcheck.PointsFile is a text file with a header line followed by
              one "lon lat" pair per line.`,
			defaultVal: cd.PointsFile,
			flagsets:   checkFlags,
		},
		{
			name: "gppcheck.OutputFile",
			usage: `
              gppcheck.OutputFile is the path of the PDF to create.`,
			defaultVal: cd.OutputFile,
			flagsets:   checkFlags,
		},
		{
			name: "gppcheck.CandidateQuantity",
			usage: `
              gppcheck.CandidateQuantity says whether the candidate values are
              per-day rates ("rate") or totals ("total"). "auto" determines it
              from the units attribute.`,
			defaultVal: "auto",
			flagsets:   checkFlags,
		},
		{
			name: "gppcheck.ResampleReference",
			usage: `
              gppcheck.ResampleReference also converts the reference to monthly
              totals.`,
			defaultVal: cd.ResampleReference,
			flagsets:   checkFlags,
		},
		{
			name: "gppcheck.ReferenceQuantity",
			usage: `
              gppcheck.ReferenceQuantity is used like CandidateQuantity when
              ResampleReference is true.`,
			defaultVal: "auto",
			flagsets:   checkFlags,
		},
		{
			name: "gppcheck.MonthlyUnits",
			usage: `
              gppcheck.MonthlyUnits are the units of the monthly totals.`,
			defaultVal: cd.MonthlyUnits,
			flagsets:   checkFlags,
		},
		{
			name: "gppcheck.PointRecords",
			usage: `
              gppcheck.PointRecords says what happens to malformed lines in
              PointsFile: "skip" or "fatal".`,
			defaultVal: cd.PointRecords.String(),
			flagsets:   checkFlags,
		},
		{
			name: "gppcheck.ReferenceLabel",
			usage: `
              gppcheck.ReferenceLabel labels the reference panels.`,
			defaultVal: cd.ReferenceLabel,
			flagsets:   checkFlags,
		},
		{
			name: "gppcheck.CandidateLabel",
			usage: `
              gppcheck.CandidateLabel labels the candidate panels.`,
			defaultVal: cd.CandidateLabel,
			flagsets:   checkFlags,
		},
		{
			name: "gppcheck.PageWidth",
			usage: `
              gppcheck.PageWidth is the page width in inches.`,
			defaultVal: float64(cd.PageWidth / vg.Inch),
			flagsets:   checkFlags,
		},
		{
			name: "gppcheck.PageHeight",
			usage: `
              gppcheck.PageHeight is the page height in inches.`,
			defaultVal: float64(cd.PageHeight / vg.Inch),
			flagsets:   checkFlags,
		},
		{
			name: "gppcomplete.InputFile",
			usage: `
              gppcomplete.InputFile holds the value and uncertainty variables.`,
			defaultVal: gd.InputFile,
			flagsets:   completeFlags,
		},
		{
			name: "gppcomplete.ValueVar",
			usage: `
              gppcomplete.ValueVar is the variable holding daily rates.`,
			defaultVal: gd.ValueVar,
			flagsets:   completeFlags,
		},
		{
			name: "gppcomplete.UncertaintyVar",
			usage: `
              gppcomplete.UncertaintyVar is the variable holding uncertainties.`,
			defaultVal: gd.UncertaintyVar,
			flagsets:   completeFlags,
		},
		{
			name: "gppcomplete.Factor",
			usage: `
              gppcomplete.Factor is the number of cells along each axis
              averaged into one output cell.`,
			defaultVal: gd.Factor,
			flagsets:   completeFlags,
		},
		{
			name: "gppcomplete.Batches",
			usage: `
              gppcomplete.Batches is the number of time chunks that are
              coarsened one after another to limit memory use.`,
			defaultVal: gd.Batches,
			flagsets:   completeFlags,
		},
		{
			name: "gppcomplete.UncertaintyScale",
			usage: `
              gppcomplete.UncertaintyScale multiplies the coarsened uncertainties.`,
			defaultVal: gd.UncertaintyScale,
			flagsets:   completeFlags,
		},
		{
			name: "gppcomplete.Quantity",
			usage: `
              gppcomplete.Quantity says whether the values are per-day rates
              ("rate") or totals ("total"). "auto" determines it from the units
              attribute.`,
			defaultVal: "auto",
			flagsets:   completeFlags,
		},
		{
			name: "gppcomplete.MonthlyUnits",
			usage: `
              gppcomplete.MonthlyUnits are the units of the monthly totals.`,
			defaultVal: gd.MonthlyUnits,
			flagsets:   completeFlags,
		},
		{
			name: "gppcomplete.OutputDir",
			usage: `
              gppcomplete.OutputDir is the directory of the value output.`,
			defaultVal: gd.OutputDir,
			flagsets:   completeFlags,
		},
		{
			name: "gppcomplete.ValueFile",
			usage: `
              gppcomplete.ValueFile is the name of the value output.`,
			defaultVal: gd.ValueFile,
			flagsets:   completeFlags,
		},
		{
			name: "gppcomplete.UncertaintyDir",
			usage: `
              gppcomplete.UncertaintyDir is the directory of the uncertainty output.`,
			defaultVal: gd.UncertaintyDir,
			flagsets:   completeFlags,
		},
		{
			name: "gppcomplete.UncertaintyFile",
			usage: `
              gppcomplete.UncertaintyFile is the name of the uncertainty output.`,
			defaultVal: gd.UncertaintyFile,
			flagsets:   completeFlags,
		},
		{
			name: "gppcomplete.Progress",
			usage: `
              gppcomplete.Progress shows a progress bar while coarsening.`,
			defaultVal: gd.Progress,
			flagsets:   completeFlags,
		},
	}

	// Set the prefix for configuration environment variables.
	cfg.SetEnvPrefix("GRIDALIGN")
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	cfg.AutomaticEnv()

	for _, option := range cfg.options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
		}
		cfg.BindPFlag(option.name, option.flagsets[0].Lookup(option.name))
	}

	// Link the commands together.
	cfg.Root.AddCommand(cfg.versionCmd)
	cfg.Root.AddCommand(cfg.fparCmd)
	cfg.Root.AddCommand(cfg.gppcheckCmd)
	cfg.Root.AddCommand(cfg.gppcompleteCmd)
	cfg.Root.AddCommand(cfg.configCmd)
	return cfg
}

// setConfig loads a .env file if there is one and reads in the
// configuration file, if there is one.
func (cfg *Cfg) setConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("gridalign: problem reading .env file: %v", err)
	}
	if cfgpath := cfg.GetString("config"); cfgpath != "" {
		cfg.SetConfigFile(expand(cfgpath))
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("gridalign: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// setLogger configures the logger from the log-level option. Log
// messages go to the command's error stream.
func (cfg *Cfg) setLogger(cmd *cobra.Command) error {
	level, err := logrus.ParseLevel(cfg.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("gridalign: %v", err)
	}
	cfg.log.SetLevel(level)
	cfg.log.SetOutput(cmd.ErrOrStderr())
	cfg.log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

// runLog returns a new run id and a logger that tags every message
// with it.
func (cfg *Cfg) runLog(command string) (uuid.UUID, logrus.FieldLogger) {
	id := uuid.New()
	log := cfg.log.WithFields(logrus.Fields{"command": command, "run_id": id.String()})
	log.Info("starting run")
	return id, log
}
