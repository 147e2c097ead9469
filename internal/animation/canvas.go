// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// ErrInvalidCanvas is returned when canvas geometry does not match its
// pixel buffer.
var ErrInvalidCanvas = errors.New("invalid canvas")

// Canvas is a non-premultiplied RGBA pixel buffer. Each pixel is four bytes
// in R, G, B, A order and rows are Stride pixels apart. Only the first Width
// pixels of each row are part of the image, but fills may touch the full
// stride.
type Canvas struct {
	Pix    []uint8
	Width  int
	Height int
	Stride int
}

// NewCanvas returns a transparent canvas with the given dimensions and a
// stride equal to its width.
func NewCanvas(width, height int) *Canvas {
	if width < 0 || height < 0 {
		panic("animation: negative canvas size")
	}
	return &Canvas{
		Pix:    make([]uint8, 4*width*height),
		Width:  width,
		Height: height,
		Stride: width,
	}
}

// CanvasOf returns a Canvas using pix as its backing store. The stride is
// in pixels and must not be less than width.
func CanvasOf(pix []uint8, width, height, stride int) (*Canvas, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("%w: negative size %dx%d", ErrInvalidCanvas, width, height)
	}
	if stride < width {
		return nil, fmt.Errorf("%w: stride %d less than width %d", ErrInvalidCanvas, stride, width)
	}
	if height != 0 && len(pix) < 4*(stride*(height-1)+width) {
		return nil, fmt.Errorf("%w: buffer too short: %d bytes for %dx%d stride %d", ErrInvalidCanvas, len(pix), width, height, stride)
	}
	return &Canvas{Pix: pix, Width: width, Height: height, Stride: stride}, nil
}

// ColorModel implements the image.Image interface.
func (c *Canvas) ColorModel() color.Model { return color.NRGBAModel }

// Bounds implements the image.Image interface.
func (c *Canvas) Bounds() image.Rectangle { return image.Rect(0, 0, c.Width, c.Height) }

// At implements the image.Image interface.
func (c *Canvas) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}.In(c.Bounds())) {
		return color.NRGBA{}
	}
	i := c.offset(x, y)
	s := c.Pix[i : i+4 : i+4]
	return color.NRGBA{R: s[0], G: s[1], B: s[2], A: s[3]}
}

// Set implements the draw.Image interface.
func (c *Canvas) Set(x, y int, col color.Color) {
	if !(image.Point{X: x, Y: y}.In(c.Bounds())) {
		return
	}
	n := color.NRGBAModel.Convert(col).(color.NRGBA)
	i := c.offset(x, y)
	s := c.Pix[i : i+4 : i+4]
	s[0], s[1], s[2], s[3] = n.R, n.G, n.B, n.A
}

// NRGBA returns an image.NRGBA sharing the receiver's pixels.
func (c *Canvas) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    c.Pix,
		Stride: 4 * c.Stride,
		Rect:   c.Bounds(),
	}
}

// Fill sets every pixel in the stride×height plane to col.
func (c *Canvas) Fill(col color.NRGBA) {
	n := 4 * c.Stride * c.Height
	if n > len(c.Pix) {
		n = len(c.Pix)
	}
	pix := c.Pix[:n]
	if col == (color.NRGBA{}) {
		clear(pix)
		return
	}
	if len(pix) < 4 {
		return
	}
	pix[0], pix[1], pix[2], pix[3] = col.R, col.G, col.B, col.A
	for done := 4; done < len(pix); done *= 2 {
		copy(pix[done:], pix[:done])
	}
}

// clearRect sets the pixels of r that lie within the canvas to transparent
// zero.
func (c *Canvas) clearRect(r image.Rectangle) {
	r = r.Intersect(c.Bounds())
	if r.Empty() {
		return
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := c.offset(r.Min.X, y)
		clear(c.Pix[i : i+4*r.Dx()])
	}
}

// copyFrom copies the pixel plane of src into the receiver. The two canvases
// must have the same geometry.
func (c *Canvas) copyFrom(src *Canvas) {
	if c.Width != src.Width || c.Height != src.Height || c.Stride != src.Stride {
		panic(fmt.Sprintf("animation: canvas geometry mismatch: %dx%d/%d != %dx%d/%d",
			c.Width, c.Height, c.Stride, src.Width, src.Height, src.Stride))
	}
	copy(c.Pix, src.Pix)
}

// offset returns the index of the first byte of the pixel at (x, y).
func (c *Canvas) offset(x, y int) int {
	return 4 * (y*c.Stride + x)
}
