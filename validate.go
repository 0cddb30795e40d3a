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
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig is returned when a pipeline configuration fails
// validation.
var ErrInvalidConfig = errors.New("gridalign: invalid configuration")

var validate = validator.New()

// Validate checks the `validate` struct tags of a pipeline configuration.
// The returned error names every offending field.
func Validate(cfg interface{}) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, len(verrs))
	for i, e := range verrs {
		if e.Param() != "" {
			msgs[i] = fmt.Sprintf("%s must satisfy %s=%s (have %v)", e.Field(), e.Tag(), e.Param(), e.Value())
		} else {
			msgs[i] = fmt.Sprintf("%s must satisfy %s (have %v)", e.Field(), e.Tag(), e.Value())
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}
