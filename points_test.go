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
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pointList = `lon lat
-100.5 45.25
12.75 -3.5
0 0
1 2 3
`

func TestReadPoints(t *testing.T) {
	pts, err := ReadPoints(strings.NewReader(pointList), InputPolicy{PointRecords: Skip}, nil)
	require.NoError(t, err)
	assert.Equal(t, []Point{{-100.5, 45.25}, {12.75, -3.5}, {0, 0}}, pts)
}

func TestReadPointsMalformed(t *testing.T) {
	in := "header\n1 x\n\n5 6\nonly\n"
	pts, err := ReadPoints(strings.NewReader(in), InputPolicy{PointRecords: Skip}, nil)
	require.NoError(t, err)
	assert.Equal(t, []Point{{5, 6}}, pts)

	_, err = ReadPoints(strings.NewReader(in), InputPolicy{PointRecords: Fatal}, nil)
	assert.Error(t, err)
	_, err = ReadPoints(strings.NewReader(in), nil, nil)
	assert.Error(t, err, "unlisted classes are fatal")
}

func TestReadPointsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.txt")
	require.NoError(t, os.WriteFile(path, []byte(pointList), 0644))
	pts, err := ReadPointsFile(path, InputPolicy{PointRecords: Skip}, nil)
	require.NoError(t, err)
	assert.Len(t, pts, 3)

	_, err = ReadPointsFile(filepath.Join(t.TempDir(), "missing.txt"), nil, nil)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestInputPolicy(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.Out = &buf
	p := InputPolicy{"raster-pair": Skip, "time-coordinate": Fatal}
	cause := errors.New("not found")

	assert.NoError(t, p.Handle("raster-pair", cause, log))
	assert.Contains(t, buf.String(), "not found")

	err := p.Handle("time-coordinate", cause, log)
	assert.True(t, errors.Is(err, cause))
	assert.Error(t, p.Handle("other", cause, log))
	assert.NoError(t, p.Handle("time-coordinate", nil, log))

	for s, want := range map[string]Policy{"skip": Skip, "FATAL": Fatal} {
		have, err := ParsePolicy(s)
		require.NoError(t, err)
		assert.Equal(t, want, have)
	}
	_, err = ParsePolicy("ignore")
	assert.Error(t, err)
}
