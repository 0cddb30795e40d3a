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
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Policy specifies what happens when an expected input is absent or
// malformed.
type Policy int

const (
	// Fatal aborts the run with an error.
	Fatal Policy = iota
	// Skip logs the problem and continues without the input.
	Skip
)

func (p Policy) String() string {
	if p == Skip {
		return "skip"
	}
	return "fatal"
}

// ParsePolicy parses "skip" or "fatal".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "skip":
		return Skip, nil
	case "fatal":
		return Fatal, nil
	}
	return Fatal, fmt.Errorf("gridalign: invalid absence policy %q; valid options are skip and fatal", s)
}

// InputPolicy maps each input class of a pipeline, such as
// "raster-pair", to the policy that applies when an input of that
// class is absent. Classes that are not listed are fatal.
type InputPolicy map[string]Policy

// Handle applies the policy for class to err. If the policy is Skip, err
// is logged as a warning and nil is returned. Otherwise err is returned
// wrapped with the class name.
func (p InputPolicy) Handle(class string, err error, log logrus.FieldLogger) error {
	if err == nil {
		return nil
	}
	if p[class] == Skip {
		if log != nil {
			log.WithFields(logrus.Fields{"input": class}).Warnf("skipping: %v", err)
		}
		return nil
	}
	return fmt.Errorf("%s: %w", class, err)
}
