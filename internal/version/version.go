// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package version reports the gifplay build version.
package version

import (
	"errors"
	"fmt"
	"io"
	"runtime/debug"
)

// String returns the module version of the running binary followed by the
// VCS revision it was built from, if known.
func String() (string, error) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "", errors.New("no build info")
	}
	return describe(bi), nil
}

func describe(bi *debug.BuildInfo) string {
	var rev, dirty string
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value
		}
	}
	switch {
	case rev == "":
		return bi.Main.Version
	case dirty == "true":
		return fmt.Sprintf("%s %s (modified)", bi.Main.Version, rev)
	case dirty == "false", dirty == "":
		return fmt.Sprintf("%s %s", bi.Main.Version, rev)
	default:
		return fmt.Sprintf("%s %s %s", bi.Main.Version, rev, dirty)
	}
}

// Print writes the build version to w.
func Print(w io.Writer) error {
	v, err := String()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, v)
	return err
}
