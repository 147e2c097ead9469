// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"io"
	"log/slog"
	"time"

	"golang.org/x/image/draw"

	"github.com/kortschak/gifplay/internal/animation"
)

// flatPalette is the output palette: the first 255 Plan 9 colors and a
// transparent entry for uncovered canvas.
var flatPalette = append(color.Palette(palette.Plan9[:255:255]), color.Transparent)

// GIF re-encodes frames as a flattened animated GIF. Each composite becomes
// a full-canvas frame that is cleared before the next is drawn, so the
// output does not depend on a decoder's handling of restore to previous.
type GIF struct {
	w     io.Writer
	loops int
	g     gif.GIF

	cache *animation.Cache
	log   *slog.Logger
}

// NewGIF returns a GIF writer that encodes to w when closed. The output
// plays loops times, or forever if loops is zero. Frames are scaled by the
// scale factor and dithered to a fixed palette.
func NewGIF(w io.Writer, loops int, scale float64, log *slog.Logger) *GIF {
	return &GIF{
		w:     w,
		loops: loops,
		cache: animation.NewCache(func(m image.Image) (image.Image, error) {
			return quantize(Scale(m, scale)), nil
		}),
		log: log.With(slog.String("component", "render.gif")),
	}
}

// quantize returns img dithered to flatPalette.
func quantize(img image.Image) *image.Paletted {
	b := img.Bounds()
	dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), flatPalette)
	draw.FloydSteinberg.Draw(dst, dst.Bounds(), img, b.Min)
	return dst
}

// Write adds f to the output animation.
func (w *GIF) Write(f Frame) error {
	img, err := w.cache.Convert(f.Index, f.Image)
	if err != nil {
		return err
	}
	m := img.(*image.Paletted)
	w.g.Image = append(w.g.Image, m)
	w.g.Delay = append(w.g.Delay, centiseconds(f.Delay))
	w.g.Disposal = append(w.g.Disposal, gif.DisposalBackground)
	w.log.LogAttrs(context.Background(), slog.LevelDebug, "added frame",
		slog.Int("frame", len(w.g.Image)-1), slog.Int("index", f.Index), slog.Int("loop", f.Loop), slog.Duration("delay", f.Delay),
	)
	return nil
}

// Len returns the number of frames added.
func (w *GIF) Len() int { return len(w.g.Image) }

// Close encodes the accumulated frames.
func (w *GIF) Close() error {
	if len(w.g.Image) == 0 {
		return errors.New("no frames to encode")
	}
	b := w.g.Image[0].Bounds()
	w.g.Config = image.Config{
		ColorModel: flatPalette,
		Width:      b.Dx(),
		Height:     b.Dy(),
	}
	w.g.LoopCount = loopCount(w.loops)
	return gif.EncodeAll(w.w, &w.g)
}

// centiseconds returns d in GIF delay units, rounded to the nearest unit.
func centiseconds(d time.Duration) int {
	return int((d + 5*time.Millisecond) / (10 * time.Millisecond))
}

// loopCount returns the GIF loop count for playing an animation n times,
// with zero meaning forever.
func loopCount(n int) int {
	switch {
	case n <= 0:
		return 0
	case n == 1:
		return -1
	default:
		return n - 1
	}
}
