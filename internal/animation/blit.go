// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

// drawFrame draws the frame's indexed pixels into dst at the frame's offset,
// resolving indices through pal. Pixels matching the frame's transparent
// index leave dst unaltered. All other pixels are written opaque.
//
// Frame regions outside dst are not drawn, rows missing from the index
// plane are skipped and indices outside pal are drawn opaque black.
func drawFrame(dst *Canvas, f *Frame, pal Palette) {
	r := f.Bounds().Intersect(dst.Bounds())
	if r.Empty() || f.Width <= 0 {
		return
	}
	transparent := -1
	if f.HasTransparency {
		transparent = int(f.Transparent)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := (y - f.Top) * f.Width
		start := row + r.Min.X - f.Left
		end := row + r.Max.X - f.Left
		if start >= len(f.Pix) {
			break
		}
		if end > len(f.Pix) {
			end = len(f.Pix)
		}
		src := f.Pix[start:end]
		i := dst.offset(r.Min.X, y)
		out := dst.Pix[i : i+4*len(src)]
		for x, idx := range src {
			if int(idx) == transparent {
				continue
			}
			var c RGB
			if int(idx) < len(pal) {
				c = pal[idx]
			}
			p := out[4*x : 4*x+4 : 4*x+4]
			p[0], p[1], p[2], p[3] = c.R, c.G, c.B, 0xff
		}
	}
}
