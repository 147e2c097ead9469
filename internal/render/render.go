// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package render writes composited animation frames.
package render

import (
	"image"
	"math"
	"time"

	"golang.org/x/image/draw"

	"github.com/kortschak/gifplay/internal/text"
)

// Frame is a composited frame to be written.
type Frame struct {
	// Image is the composite. It is only valid until
	// Write returns.
	Image image.Image

	// Index and Loop are the schedule position of the
	// frame drawn into the composite. Composites with
	// the same Index are identical in every Loop.
	Index, Loop int

	// Delay is the display duration of the composite.
	Delay time.Duration
}

// Writer is a destination for composited frames.
type Writer interface {
	Write(Frame) error
	Close() error
}

// Scaled returns the dimensions of a width×height image scaled by factor.
// Dimensions are rounded and never less than one.
func Scaled(width, height int, factor float64) (int, int) {
	return max(1, int(math.Round(float64(width)*factor))), max(1, int(math.Round(float64(height)*factor)))
}

// Scale returns a copy of img scaled by factor using bilinear
// interpolation. A factor that is not positive is treated as one.
func Scale(img image.Image, factor float64) *image.NRGBA {
	b := img.Bounds()
	if factor <= 0 || factor == 1 {
		dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Copy(dst, image.Point{}, img, b, draw.Src, nil)
		return dst
	}
	w, h := Scaled(b.Dx(), b.Dy(), factor)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, text.KeepAspectRatio(dst, img), img, b, draw.Src, nil)
	return dst
}
