// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"io"
	"time"
)

// IsGIF returns whether the data held by r is a GIF image.
func IsGIF(r ReadPeeker) bool {
	return hasMagic("GIF8?a", r)
}

// ReadPeeker is an io.Reader that can also peek n bytes ahead.
type ReadPeeker interface {
	io.Reader
	Peek(n int) ([]byte, error)
}

// AsReadPeeker converts an io.Reader to a ReadPeeker.
func AsReadPeeker(r io.Reader) ReadPeeker {
	if r, ok := r.(ReadPeeker); ok {
		return r
	}
	return bufio.NewReader(r)
}

// hasMagic returns whether r starts with the provided magic bytes.
func hasMagic(magic string, r ReadPeeker) bool {
	b, err := r.Peek(len(magic))
	if err != nil || len(b) != len(magic) {
		return false
	}
	for i, c := range b {
		if magic[i] != c && magic[i] != '?' {
			return false
		}
	}
	return true
}

// GIF is an animated GIF. It is a Decoder over the frames of the underlying
// gif.GIF.
//
// It is safe to share a GIF between goroutines, but a Session over it must
// not be shared.
type GIF struct {
	*gif.GIF

	frames []*Frame
	global Palette
}

// DecodeGIF returns a [GIF] decoded from the provided io.Reader. GIF delay,
// disposal and global background index values are checked for validity.
func DecodeGIF(r io.Reader) (*GIF, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, err
	}
	return NewGIF(g)
}

// NewGIF returns a GIF wrapping g after validating that its delay, disposal
// and global background index values are consistent.
func NewGIF(g *gif.GIF) (*GIF, error) {
	if len(g.Image) == 0 {
		return nil, errors.New("no frames")
	}
	if len(g.Image) != len(g.Delay) && g.Delay != nil {
		return nil, fmt.Errorf("mismatched image count and delay count: %d != %d", len(g.Image), len(g.Delay))
	}
	if len(g.Image) != len(g.Disposal) && g.Disposal != nil {
		return nil, fmt.Errorf("mismatched image count and disposal count: %d != %d", len(g.Image), len(g.Disposal))
	}
	pal, ok := g.Config.ColorModel.(color.Palette)
	if idx := int(g.BackgroundIndex); ok && len(pal) != 0 && idx >= len(pal) {
		return nil, fmt.Errorf("global background colour index not in palette: %d", idx)
	}
	img := &GIF{GIF: g}
	if ok && len(pal) != 0 {
		img.global = PaletteOf(pal)
	}
	img.frames = make([]*Frame, len(g.Image))
	for i, m := range g.Image {
		img.frames[i] = frameOf(m, pal)
		if g.Delay != nil {
			img.frames[i].Delay = 10 * time.Duration(g.Delay[i]) * time.Millisecond
		}
		if g.Disposal != nil {
			img.frames[i].Disposal = disposalOf(g.Disposal[i])
		}
	}
	return img, nil
}

// frameOf returns the Frame corresponding to m. The image/gif decoder does
// not retain transparent indices; they are recovered from the zero-alpha
// palette entry it writes for them.
func frameOf(m *image.Paletted, global color.Palette) *Frame {
	b := m.Bounds()
	f := &Frame{
		Left:   b.Min.X,
		Top:    b.Min.Y,
		Width:  b.Dx(),
		Height: b.Dy(),
	}
	for i, c := range m.Palette {
		if _, _, _, a := c.RGBA(); a == 0 {
			f.HasTransparency = true
			f.Transparent = uint8(i)
			break
		}
	}
	if !sharesBacking(m.Palette, global) {
		f.Palette = PaletteOf(m.Palette)
	}
	if m.Stride == f.Width {
		f.Pix = m.Pix[:min(len(m.Pix), f.Width*f.Height)]
	} else {
		f.Pix = make([]uint8, 0, f.Width*f.Height)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			i := m.PixOffset(b.Min.X, y)
			f.Pix = append(f.Pix, m.Pix[i:i+f.Width]...)
		}
	}
	return f
}

// sharesBacking returns whether a and b are the same palette.
func sharesBacking(a, b color.Palette) bool {
	return len(a) != 0 && len(a) == len(b) && &a[0] == &b[0]
}

// disposalOf returns the Disposal for a GIF disposal method. Unspecified
// and reserved methods leave the frame in place.
func disposalOf(method byte) Disposal {
	switch method {
	case gif.DisposalBackground:
		return DisposeBackground
	case gif.DisposalPrevious:
		return DisposePrevious
	default:
		return DisposeNone
	}
}

// Len implements the Decoder interface.
func (img *GIF) Len() int { return len(img.frames) }

// Frame implements the Decoder interface.
func (img *GIF) Frame(i int) *Frame { return img.frames[i] }

// Global implements the Decoder interface.
func (img *GIF) Global() Palette { return img.global }

// BackgroundIndex implements the Decoder interface.
func (img *GIF) BackgroundIndex() int { return int(img.GIF.BackgroundIndex) }

// Size implements the Decoder interface. If the logical screen size is not
// set, the union of the frame bounds is used.
func (img *GIF) Size() (width, height int) {
	if img.Config.Width > 0 && img.Config.Height > 0 {
		return img.Config.Width, img.Config.Height
	}
	var b image.Rectangle
	for _, m := range img.Image {
		b = b.Union(m.Bounds())
	}
	return b.Max.X, b.Max.Y
}

// Rewind implements the Decoder interface. All frames are held in memory,
// so rewinding always succeeds.
func (img *GIF) Rewind() error { return nil }

// Loops returns the number of times the animation is to be played, with zero
// meaning forever.
func (img *GIF) Loops() int {
	switch {
	case img.LoopCount == 0:
		return 0
	case img.LoopCount < 0:
		return 1
	default:
		return img.LoopCount + 1
	}
}
