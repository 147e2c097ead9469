// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package text provides functions for laying out and rendering
// [basicfont.Face] text to an image.
package text

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/bbrks/wrap/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Size returns the size, in font rows and columns, of the bounding rectangle.
func Size(bound image.Rectangle, fnt *basicfont.Face) (rows, cols int) {
	rows = bound.Dy() / fnt.Height
	cols = bound.Dx() / fnt.Advance
	return rows, cols
}

// Lines splits text into at most rows lines of at most cols runes. If words
// is true, lines are broken at word boundaries where possible. Text that
// does not fit is truncated with an ellipsis.
func Lines(text string, rows, cols int, words bool) []string {
	if rows <= 0 || cols <= 0 {
		return nil
	}
	var lines []string
	if words {
		wrapper := wrap.NewWrapper()
		wrapper.StripTrailingNewline = true
		wrapper.CutLongWords = true
		lines = strings.Split(wrapper.Wrap(text, cols), "\n")
		for i, l := range lines {
			lines[i] = strings.TrimSpace(l)
		}
	} else {
		t := []rune(text)
		for len(t) != 0 {
			n := min(cols, len(t))
			lines = append(lines, string(t[:n]))
			t = t[n:]
		}
	}
	if len(lines) > rows {
		lines = lines[:rows]
		last := []rune(lines[rows-1])
		if n := cols - len("..."); len(last) > n {
			last = last[:max(n, 0)]
		}
		lines[rows-1] = string(last) + "..."
	}
	return lines
}

// Fits returns whether text can be presented in full within rows and cols
// when broken at word boundaries.
func Fits(text string, rows, cols int) bool {
	if rows <= 0 || cols <= 0 {
		return false
	}
	wrapper := wrap.NewWrapper()
	wrapper.StripTrailingNewline = true
	wrapper.CutLongWords = true
	lines := strings.Split(wrapper.Wrap(text, cols), "\n")
	if len(lines) > rows {
		return false
	}
	for _, l := range lines {
		if len([]rune(strings.TrimSpace(l))) > cols {
			return false
		}
	}
	return true
}

// KeepAspectRatio returns a draw rectangle that can be used in a call to
// a draw.Scaler to maintain the src aspect ratio in the dst image.
//
//	draw.BiLinear.Scale(dst, KeepAspectRatio(dst, src), src, src.Bounds(), op, opts)
func KeepAspectRatio(dst, src image.Image) image.Rectangle {
	b := dst.Bounds()
	dx, dy := src.Bounds().Dx(), src.Bounds().Dy()
	if dx == 0 || dy == 0 {
		return b
	}
	bx, by := b.Dx(), b.Dy()
	switch {
	case dx*by < dy*bx:
		dx, dy = dx*by/dy, by
	case dx*by > dy*bx:
		dx, dy = bx, dy*bx/dx
	default:
		return b
	}
	offset := image.Point{X: (bx - dx) / 2, Y: (by - dy) / 2}
	return image.Rectangle{Max: image.Point{X: dx, Y: dy}}.Add(b.Min).Add(offset)
}

// Draw draws the provided text to the destination in the provided color.
// Relative position of the text is specified by dx and dy which must be
// in the range [0, 1]. If words is true, text spanning lines will be broken
// at word boundaries where possible.
func Draw(dst draw.Image, text string, col color.Color, fnt *basicfont.Face, dx, dy float64, words bool) {
	rows, cols := Size(dst.Bounds(), fnt)
	lines := Lines(text, rows, cols, words)

	if dx != 0 || dy != 0 {
		ext := newExtent(dst)
		min := dst.Bounds().Min
		for i, l := range lines {
			ext.addString(l, fnt, fixed.P(min.X, min.Y+fnt.Ascent+fnt.Height*i))
		}
		dst = ext.offset(dst, dx, dy)
	}
	fg := &image.Uniform{col}
	min := dst.Bounds().Min
	for i, l := range lines {
		drawer := font.Drawer{
			Dst:  dst,
			Src:  fg,
			Face: fnt,
			Dot:  fixed.P(min.X, min.Y+fnt.Ascent+fnt.Height*i),
		}
		drawer.DrawString(l)
	}
}

// extent is the inked rectangle of a set of glyphs.
type extent image.Rectangle

func newExtent(dst draw.Image) *extent {
	e := extent(image.Rectangle{Min: dst.Bounds().Max, Max: dst.Bounds().Min})
	return &e
}

func (e *extent) addString(s string, fnt font.Face, dot fixed.Point26_6) {
	prev := rune(-1)
	for _, c := range s {
		if prev >= 0 {
			dot.X += fnt.Kern(prev, c)
		}
		dr, _, _, advance, ok := fnt.Glyph(dot, c)
		if !ok {
			continue
		}
		e.add(dr.Min)
		e.add(dr.Max)
		dot.X += advance
		prev = c
	}
}

func (e *extent) add(p image.Point) {
	e.Min.X = min(e.Min.X, p.X)
	e.Min.Y = min(e.Min.Y, p.Y)
	e.Max.X = max(e.Max.X, p.X)
	e.Max.Y = max(e.Max.Y, p.Y)
}

// offset returns img shifted so that the extent is placed at the relative
// position dx, dy within the free space of img.
func (e *extent) offset(img draw.Image, dx, dy float64) draw.Image {
	if e.Min.X > e.Max.X {
		return img
	}
	free := img.Bounds().Max.Sub(e.Max)
	return shifted{Image: img, by: image.Point{X: int(float64(free.X) * dx), Y: int(float64(free.Y) * dy)}}
}

type shifted struct {
	draw.Image
	by image.Point
}

func (s shifted) Set(x, y int, c color.Color) {
	s.Image.Set(x+s.by.X, y+s.by.Y, c)
}

func (s shifted) At(x, y int) color.Color {
	return s.Image.At(x+s.by.X, y+s.by.Y)
}
