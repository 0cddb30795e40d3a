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

package gppcheck

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/spatialmodel/gridalign"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgpdf"
)

// RenderPDF writes a multi-page PDF to w with one page per point. Each
// page holds the reference series on the left and the candidate series
// on the right.
func RenderPDF(w io.Writer, cfg *Config, a *Aligned, pts []gridalign.Point) error {
	c := vgpdf.New(cfg.PageWidth, cfg.PageHeight)
	tiles := draw.Tiles{
		Rows:      1,
		Cols:      2,
		PadX:      vg.Millimeter * 5,
		PadY:      vg.Millimeter * 5,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	for i, pt := range pts {
		if i > 0 {
			c.NextPage()
		}
		ref, err := a.Reference.Point(pt.Lon, pt.Lat)
		if err != nil {
			return err
		}
		cand, err := a.Candidate.Point(pt.Lon, pt.Lat)
		if err != nil {
			return err
		}
		left, err := seriesPlot(fmt.Sprintf("%s %s pixel %d", cfg.ReferenceLabel, a.Reference.Name, i+1),
			cfg.ReferenceLabel, pt, ref, a.Reference.Units(), false)
		if err != nil {
			return err
		}
		right, err := seriesPlot(fmt.Sprintf("%s %s pixel %d", cfg.CandidateLabel, a.Candidate.Name, i+1),
			cfg.CandidateLabel, pt, cand, a.Candidate.Units(), true)
		if err != nil {
			return err
		}
		canvases := plot.Align([][]*plot.Plot{{left, right}}, tiles, draw.New(c))
		left.Draw(canvases[0][0])
		right.Draw(canvases[0][1])
	}
	if _, err := c.WriteTo(w); err != nil {
		return fmt.Errorf("gppcheck: writing pdf: %v", err)
	}
	return nil
}

// seriesPlot plots one point's time series. Missing values break the line.
func seriesPlot(title, label string, pt gridalign.Point, s *gridalign.Series, units string, solid bool) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%.2f, %.2f)", title, pt.Lat, pt.Lon)
	p.X.Label.Text = "Time"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}
	p.Y.Label.Text = units
	p.Add(plotter.NewGrid())

	var legend bool
	for _, seg := range segments(s) {
		l, err := plotter.NewLine(seg)
		if err != nil {
			return nil, fmt.Errorf("gppcheck: plotting %s: %v", title, err)
		}
		l.LineStyle.Width = vg.Points(1)
		if solid {
			l.LineStyle.Color = color.RGBA{R: 255, G: 127, A: 255}
		} else {
			l.LineStyle.Color = color.RGBA{B: 180, A: 255}
			l.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}
		p.Add(l)
		if !legend {
			p.Legend.Add(fmt.Sprintf("%s (%.2f, %.2f)", label, pt.Lat, pt.Lon), l)
			legend = true
		}
	}
	if !legend && len(s.Times) > 0 {
		// Nothing to draw; keep the time axis so the panel stays readable.
		p.X.Min = float64(s.Times[0].Unix())
		p.X.Max = float64(s.Times[len(s.Times)-1].Unix())
		p.Y.Min, p.Y.Max = 0, 1
	}
	return p, nil
}

// segments splits s into runs of consecutive valid values.
func segments(s *gridalign.Series) []plotter.XYs {
	var out []plotter.XYs
	var cur plotter.XYs
	for i, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: float64(s.Times[i].Unix()), Y: v})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
