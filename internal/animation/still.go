// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"io"

	// Still image formats.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"golang.org/x/image/draw"
)

// Decode returns the animation held in r. GIF data is decoded as an
// animation and other registered image formats are decoded as a single
// frame quantized to the Plan 9 palette.
func Decode(r io.Reader) (*GIF, error) {
	rp := AsReadPeeker(r)
	if IsGIF(rp) {
		return DecodeGIF(rp)
	}
	return DecodeStill(rp)
}

// DecodeStill returns a single frame GIF holding the image in r, dithered to
// the Plan 9 palette with Floyd-Steinberg error diffusion.
func DecodeStill(r io.Reader) (*GIF, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("empty %s image", format)
	}
	pal := color.Palette(palette.Plan9)
	dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), pal)
	draw.FloydSteinberg.Draw(dst, dst.Bounds(), img, b.Min)
	return NewGIF(&gif.GIF{
		Image:     []*image.Paletted{dst},
		Delay:     []int{0},
		Disposal:  []byte{gif.DisposalNone},
		LoopCount: -1,
		Config: image.Config{
			ColorModel: pal,
			Width:      dst.Rect.Dx(),
			Height:     dst.Rect.Dy(),
		},
	})
}
