// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"errors"
	"image"
	"image/color"
	"image/gif"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font/basicfont"

	"github.com/kortschak/gifplay/internal/text"
)

// textDelay is the frame delay of scrolling text in GIF units.
const textDelay = 15

// Text is a scrolling text animation source.
type Text string

// GIF returns a GIF containing animation frames required to present the full
// length of the receiver within a width by height canvas using
// [basicfont.Face7x13]. Text that fits the canvas is presented centered in
// a single frame, otherwise it scrolls through the canvas one rune per frame
// forever.
func (t Text) GIF(width, height int, fg, bg color.Color) (*GIF, error) {
	bound := image.Rect(0, 0, width, height)
	rows, cols := text.Size(bound, basicfont.Face7x13)
	if rows == 0 || cols == 0 {
		return nil, errors.New("bound too small")
	}

	s := string(t)
	single := text.Fits(s, rows, cols)
	var runes []rune
	if !single {
		if rows*cols < 4 {
			return nil, errors.New("bound too small")
		}
		runes = []rune(strings.Repeat(" ", rows*cols-4) + s)
	}
	frames := max(len(runes), 1)

	const (
		bgIdx = 0
		fgIdx = 1
	)
	pal := color.Palette{bg, fg}
	g := &gif.GIF{
		Image:    make([]*image.Paletted, 0, frames),
		Delay:    make([]int, 0, frames),
		Disposal: make([]byte, 0, frames),
		Config: image.Config{
			ColorModel: pal,
			Width:      width,
			Height:     height,
		},
		BackgroundIndex: bgIdx,
	}
	background := &image.Uniform{pal[bgIdx]}
	for i := range frames {
		dst := image.NewPaletted(bound, pal)
		draw.Draw(dst, dst.Bounds(), background, image.Point{}, draw.Src)
		if single {
			text.Draw(dst, s, pal[fgIdx], basicfont.Face7x13, 0.5, 0.5, true)
		} else {
			text.Draw(dst, string(runes[i:]), pal[fgIdx], basicfont.Face7x13, 0, 0, false)
		}
		g.Image = append(g.Image, dst)
		g.Delay = append(g.Delay, textDelay)
		g.Disposal = append(g.Disposal, gif.DisposalNone)
	}
	if single {
		g.LoopCount = -1
	}
	return NewGIF(g)
}
