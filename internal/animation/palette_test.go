// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultPalette(t *testing.T) {
	pal := DefaultPalette()
	if len(pal) != 256 {
		t.Fatalf("unexpected palette length: got:%d want:256", len(pal))
	}
	for i, c := range pal {
		want := RGB{R: uint8(i), G: uint8(i), B: uint8(i)}
		if c != want {
			t.Errorf("unexpected entry %d: got:%v want:%v", i, c, want)
		}
	}
	if got, want := pal[10], (RGB{R: 10, G: 10, B: 10}); got != want {
		t.Errorf("unexpected entry 10: got:%v want:%v", got, want)
	}
	if &DefaultPalette()[0] != &pal[0] {
		t.Error("default palette regenerated")
	}
}

var resolveTests = []struct {
	name          string
	local, global Palette
	want          Palette
}{
	{
		name:   "local",
		local:  Palette{{R: 1}},
		global: Palette{{G: 2}},
		want:   Palette{{R: 1}},
	},
	{
		name:   "global",
		global: Palette{{G: 2}},
		want:   Palette{{G: 2}},
	},
	{
		name: "default",
		want: DefaultPalette(),
	},
}

func TestResolve(t *testing.T) {
	for _, test := range resolveTests {
		t.Run(test.name, func(t *testing.T) {
			got := Resolve(test.local, test.global)
			if !cmp.Equal(got, test.want) {
				t.Errorf("unexpected palette:\n--- want:\n+++ got:\n%s", cmp.Diff(test.want, got))
			}
		})
	}
}

func TestPaletteOf(t *testing.T) {
	got := PaletteOf(color.Palette{
		color.Black,
		color.RGBA{R: 0xff, A: 0xff},
		color.NRGBA{G: 0x80, A: 0xff},
		color.RGBA{},
	})
	want := Palette{{}, {R: 0xff}, {G: 0x80}, {}}
	if !cmp.Equal(got, want) {
		t.Errorf("unexpected palette:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
	}
	if PaletteOf(nil) != nil {
		t.Error("expected nil palette for nil input")
	}
}
