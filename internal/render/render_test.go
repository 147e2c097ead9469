// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var discard = slog.New(slog.DiscardHandler)

// composite returns a w×h image filled with c.
func composite(w, h int, c color.Color) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			m.Set(x, y, c)
		}
	}
	return m
}

func TestScaled(t *testing.T) {
	for _, test := range []struct {
		w, h   int
		factor float64
		wantW  int
		wantH  int
	}{
		{w: 10, h: 4, factor: 1, wantW: 10, wantH: 4},
		{w: 10, h: 4, factor: 2, wantW: 20, wantH: 8},
		{w: 10, h: 4, factor: 0.5, wantW: 5, wantH: 2},
		{w: 10, h: 4, factor: 0.01, wantW: 1, wantH: 1},
		{w: 3, h: 3, factor: 1.5, wantW: 5, wantH: 5},
	} {
		w, h := Scaled(test.w, test.h, test.factor)
		if w != test.wantW || h != test.wantH {
			t.Errorf("unexpected scaled size for %dx%d by %v: got:%dx%d want:%dx%d",
				test.w, test.h, test.factor, w, h, test.wantW, test.wantH)
		}
	}
}

func TestScale(t *testing.T) {
	red := color.NRGBA{R: 0xff, A: 0xff}
	src := composite(4, 2, red)

	same := Scale(src, 1)
	if same == src {
		t.Error("unscaled image not copied")
	}
	if !cmp.Equal(same.Pix, src.Pix) {
		t.Error("unscaled copy differs from source")
	}

	big := Scale(src, 2)
	if got, want := big.Bounds(), image.Rect(0, 0, 8, 4); got != want {
		t.Errorf("unexpected scaled bounds: got:%v want:%v", got, want)
	}
	for y := range 4 {
		for x := range 8 {
			if got := big.NRGBAAt(x, y); got != red {
				t.Fatalf("unexpected scaled pixel at (%d,%d): got:%v want:%v", x, y, got, red)
			}
		}
	}
}

func TestPNGs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w, err := NewPNGs(dir, "frame_", 0, 2, discard)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}

	_, err = NewPNGs(dir, "other_", 0, 1, discard)
	if !errors.Is(err, ErrLocked) {
		t.Errorf("unexpected error for locked directory: got:%v want:%v", err, ErrLocked)
	}

	colors := []color.NRGBA{
		{R: 0xff, A: 0xff},
		{G: 0xff, A: 0xff},
		{R: 0xff, A: 0xff},
	}
	live := composite(3, 2, color.Black)
	for i, c := range colors {
		// The same composite buffer is reused for each frame.
		copy(live.Pix, composite(3, 2, c).Pix)
		err = w.Write(Frame{Image: live, Index: i % 2, Loop: i / 2, Delay: 10 * time.Millisecond})
		if err != nil {
			t.Fatalf("failed to write frame %d: %v", i, err)
		}
	}
	if w.Len() != len(colors) {
		t.Errorf("unexpected written count: got:%d want:%d", w.Len(), len(colors))
	}
	err = w.Close()
	if err != nil {
		t.Errorf("failed to close writer: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LockFile)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("lock file not removed: %v", err)
	}

	for i, want := range colors {
		path := filepath.Join(dir, []string{"frame_00000.png", "frame_00001.png", "frame_00002.png"}[i])
		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("failed to open %s: %v", path, err)
		}
		m, err := png.Decode(f)
		f.Close()
		if err != nil {
			t.Fatalf("failed to decode %s: %v", path, err)
		}
		if got, wantB := m.Bounds(), image.Rect(0, 0, 6, 4); got != wantB {
			t.Errorf("unexpected bounds for %s: got:%v want:%v", path, got, wantB)
		}
		if got := color.NRGBAModel.Convert(m.At(2, 2)); got != want {
			t.Errorf("unexpected color in %s: got:%v want:%v", path, got, want)
		}
	}

	again, err := NewPNGs(dir, "again_", 0, 1, discard)
	if err != nil {
		t.Errorf("failed to relock released directory: %v", err)
	} else {
		again.Close()
	}
}

func TestPNGsContinue(t *testing.T) {
	dir := t.TempDir()
	red := color.NRGBA{R: 0xff, A: 0xff}
	green := color.NRGBA{G: 0xff, A: 0xff}

	_, err := NewPNGs(dir, "frame_", -1, 1, discard)
	if err == nil {
		t.Error("expected error for negative first sequence number")
	}

	w, err := NewPNGs(dir, "frame_", 0, 1, discard)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	for i := range 2 {
		err = w.Write(Frame{Image: composite(2, 2, red), Index: i})
		if err != nil {
			t.Fatalf("failed to write frame %d: %v", i, err)
		}
	}
	err = w.Close()
	if err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	// A later writer continues the sequence without
	// overwriting the earlier files.
	w, err = NewPNGs(dir, "frame_", 2, 1, discard)
	if err != nil {
		t.Fatalf("failed to create continuing writer: %v", err)
	}
	err = w.Write(Frame{Image: composite(2, 2, green), Index: 2})
	if err != nil {
		t.Fatalf("failed to write continued frame: %v", err)
	}
	if w.Len() != 1 {
		t.Errorf("unexpected written count: got:%d want:1", w.Len())
	}
	err = w.Close()
	if err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	for name, want := range map[string]color.NRGBA{
		"frame_00000.png": red,
		"frame_00001.png": red,
		"frame_00002.png": green,
	} {
		path := filepath.Join(dir, name)
		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("failed to open %s: %v", path, err)
		}
		m, err := png.Decode(f)
		f.Close()
		if err != nil {
			t.Fatalf("failed to decode %s: %v", path, err)
		}
		if got := color.NRGBAModel.Convert(m.At(1, 1)); got != want {
			t.Errorf("unexpected color in %s: got:%v want:%v", name, got, want)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "frame_00003.png")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("unexpected extra file: %v", err)
	}
}

func TestGIF(t *testing.T) {
	a := palette.Plan9[17]
	b := palette.Plan9[200]
	frames := []struct {
		img   *image.NRGBA
		index int
		delay time.Duration
	}{
		{img: composite(4, 3, a), index: 0, delay: 100 * time.Millisecond},
		{img: composite(4, 3, b), index: 1, delay: 24 * time.Millisecond},
		{img: composite(4, 3, color.Transparent), index: 2, delay: 0},
	}
	// Leave one pixel of the second frame uncovered.
	frames[1].img.Set(0, 0, color.Transparent)

	var buf bytes.Buffer
	w := NewGIF(&buf, 3, 1, discard)
	for _, f := range frames {
		err := w.Write(Frame{Image: f.img, Index: f.index, Delay: f.delay})
		if err != nil {
			t.Fatalf("failed to write frame: %v", err)
		}
	}
	// A second loop reuses the cached conversions.
	err := w.Write(Frame{Image: composite(4, 3, color.White), Index: 0, Loop: 1, Delay: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("failed to write frame: %v", err)
	}
	err = w.Close()
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}

	g, err := gif.DecodeAll(&buf)
	if err != nil {
		t.Fatalf("failed to decode output: %v", err)
	}
	if len(g.Image) != 4 {
		t.Fatalf("unexpected frame count: got:%d want:4", len(g.Image))
	}
	if !cmp.Equal(g.Delay, []int{10, 2, 0, 10}) {
		t.Errorf("unexpected delays: %v", g.Delay)
	}
	if g.LoopCount != 2 {
		t.Errorf("unexpected loop count: got:%d want:2", g.LoopCount)
	}
	for i, d := range g.Disposal {
		if d != gif.DisposalBackground {
			t.Errorf("unexpected disposal for frame %d: %d", i, d)
		}
	}
	rgba := func(c color.Color) color.RGBA { return color.RGBAModel.Convert(c).(color.RGBA) }
	for _, test := range []struct {
		frame int
		x, y  int
		want  color.Color
	}{
		{frame: 0, x: 2, y: 1, want: a},
		{frame: 1, x: 2, y: 1, want: b},
		{frame: 1, x: 0, y: 0, want: color.Transparent},
		{frame: 2, x: 3, y: 2, want: color.Transparent},
		{frame: 3, x: 2, y: 1, want: a},
	} {
		got := rgba(g.Image[test.frame].At(test.x, test.y))
		if want := rgba(test.want); got != want {
			t.Errorf("unexpected color in frame %d at (%d,%d): got:%v want:%v", test.frame, test.x, test.y, got, want)
		}
	}
}

func TestGIFEmpty(t *testing.T) {
	err := NewGIF(&bytes.Buffer{}, 1, 1, discard).Close()
	if err == nil {
		t.Error("expected error encoding no frames")
	}
}

func TestLoopCount(t *testing.T) {
	for n, want := range map[int]int{0: 0, 1: -1, 2: 1, 5: 4} {
		if got := loopCount(n); got != want {
			t.Errorf("unexpected loop count for %d plays: got:%d want:%d", n, got, want)
		}
	}
}

func TestCentiseconds(t *testing.T) {
	for d, want := range map[time.Duration]int{
		0:                      0,
		4 * time.Millisecond:   0,
		5 * time.Millisecond:   1,
		100 * time.Millisecond: 10,
		time.Second:            100,
	} {
		if got := centiseconds(d); got != want {
			t.Errorf("unexpected delay for %v: got:%d want:%d", d, got, want)
		}
	}
}
