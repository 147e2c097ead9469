// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package version

import (
	"runtime/debug"
	"testing"
)

func TestDescribe(t *testing.T) {
	for _, test := range []struct {
		name     string
		settings []debug.BuildSetting
		want     string
	}{
		{
			name: "no_vcs",
			want: "v1.2.3",
		},
		{
			name: "clean",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "abcdef"},
				{Key: "vcs.modified", Value: "false"},
			},
			want: "v1.2.3 abcdef",
		},
		{
			name: "dirty",
			settings: []debug.BuildSetting{
				{Key: "vcs.modified", Value: "true"},
				{Key: "vcs.revision", Value: "abcdef"},
			},
			want: "v1.2.3 abcdef (modified)",
		},
		{
			name: "odd",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "abcdef"},
				{Key: "vcs.modified", Value: "maybe"},
			},
			want: "v1.2.3 abcdef maybe",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			bi := &debug.BuildInfo{Main: debug.Module{Version: "v1.2.3"}, Settings: test.settings}
			got := describe(bi)
			if got != test.want {
				t.Errorf("unexpected version: got:%q want:%q", got, test.want)
			}
		})
	}
}
