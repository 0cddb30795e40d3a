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

// Command gridalign is a command-line interface for resampling and
// aligning gridded remote-sensing datasets.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/gridalign/gridutil"
)

func main() {
	cfg := gridutil.InitializeConfig()
	if err := cfg.Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
