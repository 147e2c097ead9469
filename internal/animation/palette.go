// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"image/color"
	"sync"
)

// RGB is a palette entry.
type RGB struct {
	R, G, B uint8
}

// Palette is an ordered set of up to 256 colors indexed by frame pixels.
type Palette []RGB

// PaletteOf returns the Palette corresponding to p. Alpha is discarded;
// colors are taken as non-premultiplied.
func PaletteOf(p color.Palette) Palette {
	if p == nil {
		return nil
	}
	pal := make(Palette, len(p))
	for i, c := range p {
		n := color.NRGBAModel.Convert(c).(color.NRGBA)
		pal[i] = RGB{R: n.R, G: n.G, B: n.B}
	}
	return pal
}

var (
	defaultOnce sync.Once
	defaultPal  Palette
)

// DefaultPalette returns the fallback palette used when a frame has neither
// a local nor a global palette. Entry i is RGB(i, i, i). The returned palette
// is shared and must not be modified.
func DefaultPalette() Palette {
	defaultOnce.Do(func() {
		defaultPal = make(Palette, 256)
		for i := range defaultPal {
			defaultPal[i] = RGB{R: uint8(i), G: uint8(i), B: uint8(i)}
		}
	})
	return defaultPal
}

// Resolve returns the palette to use for a frame: local if it is not nil,
// then global, then the default palette.
func Resolve(local, global Palette) Palette {
	switch {
	case local != nil:
		return local
	case global != nil:
		return global
	default:
		return DefaultPalette()
	}
}
