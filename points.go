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
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// PointRecords is the input class of rows in a point list.
const PointRecords = "point-record"

// Point is a location in degrees.
type Point struct {
	Lon, Lat float64
}

// ReadPoints reads a point list: a header line, which is discarded,
// followed by lines holding a longitude and a latitude separated by
// white space. Lines that do not hold exactly two numbers are handled
// according to the point-record entry of policy; with Skip they are
// dropped and logged at debug level.
func ReadPoints(r io.Reader, policy InputPolicy, log logrus.FieldLogger) ([]Point, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := bufio.NewScanner(r)
	var pts []Point
	line := 0
	for s.Scan() {
		line++
		if line == 1 {
			continue
		}
		p, err := parsePoint(s.Text())
		if err != nil {
			err = fmt.Errorf("line %d: %v", line, err)
			if policy[PointRecords] == Skip {
				log.WithField("line", line).Debugf("dropping point record: %v", err)
				continue
			}
			return nil, policy.Handle(PointRecords, err, log)
		}
		pts = append(pts, p)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("gridalign: reading points: %v", err)
	}
	return pts, nil
}

func parsePoint(line string) (Point, error) {
	f := strings.Fields(line)
	if len(f) != 2 {
		return Point{}, fmt.Errorf("want 2 fields, have %d", len(f))
	}
	lon, err := strconv.ParseFloat(f[0], 64)
	if err != nil {
		return Point{}, err
	}
	lat, err := strconv.ParseFloat(f[1], 64)
	if err != nil {
		return Point{}, err
	}
	return Point{Lon: lon, Lat: lat}, nil
}

// ReadPointsFile reads a point list from the named file.
func ReadPointsFile(path string, policy InputPolicy, log logrus.FieldLogger) ([]Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gridalign: opening point list: %w", err)
	}
	defer f.Close()
	return ReadPoints(f, policy, log)
}
