// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/kortschak/gifplay/internal/slogext"
)

// Disposal is the treatment of a frame's drawn region before the next frame
// is drawn.
type Disposal uint8

const (
	DisposeNone       Disposal = iota // Leave the frame in place.
	DisposeBackground                 // Clear the frame's region to transparent.
	DisposePrevious                   // Restore the canvas from before the frame.
)

func (d Disposal) String() string {
	switch d {
	case DisposeNone:
		return "none"
	case DisposeBackground:
		return "background"
	case DisposePrevious:
		return "previous"
	default:
		return fmt.Sprintf("Disposal(%d)", uint8(d))
	}
}

// Frame is a decoded palette-indexed animation frame. Frames are treated as
// immutable once handed to a Session.
type Frame struct {
	// Left, Top, Width and Height are the frame's rectangle in
	// canvas coordinates. The rectangle may extend past the
	// canvas; only the intersecting region is drawn.
	Left, Top     int
	Width, Height int

	// Palette is the frame's local palette. If it is nil
	// the decoder's global palette is used, or the
	// default palette if there is no global palette.
	Palette Palette

	// Pix holds one palette index per pixel, row major
	// with a stride of Width.
	Pix []uint8

	Disposal Disposal

	// HasTransparency indicates that pixels with the
	// Transparent palette index are not drawn. The zero
	// Frame is opaque.
	HasTransparency bool
	Transparent     uint8

	// Delay is the requested display duration.
	Delay time.Duration
}

// Bounds returns the frame's rectangle in canvas coordinates. Frames with
// a non-positive width or height have an empty rectangle at their origin.
func (f *Frame) Bounds() image.Rectangle {
	if f.Width <= 0 || f.Height <= 0 {
		p := image.Point{X: f.Left, Y: f.Top}
		return image.Rectangle{Min: p, Max: p}
	}
	return image.Rect(f.Left, f.Top, f.Left+f.Width, f.Top+f.Height)
}

// opaque returns whether drawing f writes every canvas pixel within its
// rectangle.
func (f *Frame) opaque() bool {
	return !f.HasTransparency && f.Width > 0 && f.Height > 0 && len(f.Pix) >= f.Width*f.Height
}

// covers returns whether the declared rectangle of f completely contains
// the declared rectangle of other.
func (f *Frame) covers(other *Frame) bool {
	return f.Left <= other.Left &&
		other.Left+other.Width <= f.Left+f.Width &&
		f.Top <= other.Top &&
		other.Top+other.Height <= f.Top+f.Height
}

func (f *Frame) LogValue() slog.Value {
	if f == nil {
		return slog.StringValue("<nil>")
	}
	attrs := []slog.Attr{
		slog.Any("rect", slogext.Rect(f.Bounds())),
		slog.String("disposal", f.Disposal.String()),
		slog.Duration("delay", f.Delay),
		slog.Bool("local_palette", f.Palette != nil),
	}
	if f.HasTransparency {
		attrs = append(attrs, slog.Int("transparent", int(f.Transparent)))
	}
	return slog.GroupValue(attrs...)
}
