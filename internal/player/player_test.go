// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package player

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kortschak/gifplay/internal/animation"
	"github.com/kortschak/gifplay/internal/celext"
	"github.com/kortschak/gifplay/internal/render"
)

var pal = color.Palette{
	color.RGBA{A: 0xff},
	color.RGBA{R: 0xff, A: 0xff},
	color.RGBA{G: 0xff, A: 0xff},
	color.RGBA{B: 0xff, A: 0xff},
}

// bars returns an n frame 4x1 animation where frame i paints column i%4
// with color index i%3+1 and is disposed to previous on odd frames.
func bars(t *testing.T, n int, delay int) *animation.GIF {
	t.Helper()
	g := &gif.GIF{
		Config: image.Config{ColorModel: pal, Width: 4, Height: 1},
	}
	for i := range n {
		m := image.NewPaletted(image.Rect(i%4, 0, i%4+1, 1), pal)
		m.Pix[0] = uint8(i%3 + 1)
		g.Image = append(g.Image, m)
		g.Delay = append(g.Delay, delay)
		disposal := byte(gif.DisposalNone)
		if i%2 == 1 {
			disposal = gif.DisposalPrevious
		}
		g.Disposal = append(g.Disposal, disposal)
	}
	a, err := animation.NewGIF(g)
	if err != nil {
		t.Fatalf("failed to make animation: %v", err)
	}
	return a
}

type written struct {
	Index, Loop int
	Delay       time.Duration
	Pix         []uint8
}

type recorder struct {
	frames []written
	err    error
}

func (r *recorder) Write(f render.Frame) error {
	if r.err != nil {
		return r.err
	}
	c := f.Image.(*animation.Canvas)
	r.frames = append(r.frames, written{Index: f.Index, Loop: f.Loop, Delay: f.Delay, Pix: slices.Clone(c.Pix)})
	return nil
}

func (r *recorder) Close() error { return nil }

func positions(frames []written) []animation.Position {
	var p []animation.Position
	for _, f := range frames {
		p = append(p, animation.Position{Index: f.Index, Loop: f.Loop})
	}
	return p
}

func TestPlay(t *testing.T) {
	a := bars(t, 3, 2)
	var rec recorder
	var (
		progress []animation.Position
		counts   []int
	)
	res, err := Play(context.Background(), a, &rec, Options{
		Loops: 2,
		Progress: func(p animation.Position, n int) error {
			progress = append(progress, p)
			counts = append(counts, n)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantRes := Result{Drawn: 6, Written: 6, End: animation.Position{Index: 2, Loop: 2}, Finished: true}
	if res != wantRes {
		t.Errorf("unexpected result: got:%+v want:%+v", res, wantRes)
	}
	wantPos := []animation.Position{
		{Index: 0, Loop: 0}, {Index: 1, Loop: 0}, {Index: 2, Loop: 0},
		{Index: 0, Loop: 1}, {Index: 1, Loop: 1}, {Index: 2, Loop: 1},
	}
	if got := positions(rec.frames); !cmp.Equal(got, wantPos) {
		t.Errorf("unexpected written positions:\n--- want:\n+++ got:\n%s", cmp.Diff(wantPos, got))
	}
	wantProgress := []animation.Position{
		{Index: 1, Loop: 0}, {Index: 2, Loop: 0}, {Index: 0, Loop: 1},
		{Index: 1, Loop: 1}, {Index: 2, Loop: 1}, {Index: 2, Loop: 2},
	}
	if !cmp.Equal(progress, wantProgress) {
		t.Errorf("unexpected progress:\n--- want:\n+++ got:\n%s", cmp.Diff(wantProgress, progress))
	}
	if wantCounts := []int{1, 2, 3, 4, 5, 6}; !cmp.Equal(counts, wantCounts) {
		t.Errorf("unexpected written counts:\n--- want:\n+++ got:\n%s", cmp.Diff(wantCounts, counts))
	}
	for i, f := range rec.frames {
		if f.Delay != 20*time.Millisecond {
			t.Errorf("unexpected delay for write %d: %v", i, f.Delay)
		}
	}

	// Frame 1 is disposed to previous but frame 2 is not, so
	// frame 1 is left in place and frame 2 is drawn beside it on
	// the opaque global background.
	red := []uint8{0xff, 0, 0, 0xff}
	green := []uint8{0, 0xff, 0, 0xff}
	blue := []uint8{0, 0, 0xff, 0xff}
	black := []uint8{0, 0, 0, 0xff}
	want := slices.Concat(red, green, blue, black)
	if !cmp.Equal(rec.frames[2].Pix, want) {
		t.Errorf("unexpected final composite: got:%v want:%v", rec.frames[2].Pix, want)
	}
	for i := range 3 {
		if !cmp.Equal(rec.frames[i].Pix, rec.frames[i+3].Pix) {
			t.Errorf("composite %d differs between loops", i)
		}
	}
}

func TestPlaySelect(t *testing.T) {
	sel, err := celext.Compile("index == 1 || iteration == 1 && index == 2", nil)
	if err != nil {
		t.Fatalf("failed to compile selector: %v", err)
	}
	var rec recorder
	res, err := Play(context.Background(), bars(t, 3, 0), &rec, Options{Loops: 2, Select: sel})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Drawn != 6 || res.Written != 3 {
		t.Errorf("unexpected counts: drawn=%d written=%d", res.Drawn, res.Written)
	}
	want := []animation.Position{{Index: 1, Loop: 0}, {Index: 1, Loop: 1}, {Index: 2, Loop: 1}}
	if got := positions(rec.frames); !cmp.Equal(got, want) {
		t.Errorf("unexpected written positions:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
	}
}

func TestPlayResume(t *testing.T) {
	var full recorder
	_, err := Play(context.Background(), bars(t, 5, 0), &full, Options{Loops: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := animation.Position{Index: 3, Loop: 1}
	var resumed recorder
	res, err := Play(context.Background(), bars(t, 5, 0), &resumed, Options{Loops: 2, Start: start})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Drawn != 2 {
		t.Errorf("unexpected drawn count after resume: got:%d want:2", res.Drawn)
	}
	if !cmp.Equal(resumed.frames, full.frames[8:]) {
		t.Errorf("resumed composites differ from full playback:\n--- want:\n+++ got:\n%s",
			cmp.Diff(full.frames[8:], resumed.frames))
	}
}

func TestPlayResumePastEnd(t *testing.T) {
	var rec recorder
	res, err := Play(context.Background(), bars(t, 3, 0), &rec, Options{
		Loops: 1,
		Start: animation.Position{Index: 1, Loop: 4},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Drawn != 3 || !res.Finished {
		t.Errorf("unexpected result after restart: %+v", res)
	}
}

func TestPlayResumeForever(t *testing.T) {
	// A position stored by a finite run is not reachable when
	// the animation plays forever.
	errStop := errors.New("stop")
	a := bars(t, 3, 0)
	done := make(chan struct{})
	var (
		rec recorder
		res Result
		err error
	)
	go func() {
		defer close(done)
		res, err = Play(context.Background(), a, &rec, Options{
			Loops: 0,
			Start: animation.Position{Index: 1, Loop: 1},
			Progress: func(_ animation.Position, n int) error {
				if n == 4 {
					return errStop
				}
				return nil
			},
		})
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("resume of endless animation did not return")
	}
	if !errors.Is(err, errStop) {
		t.Errorf("unexpected error: got:%v want:%v", err, errStop)
	}
	want := []animation.Position{{Index: 0}, {Index: 1}, {Index: 2}, {Index: 0}}
	if got := positions(rec.frames); !cmp.Equal(got, want) {
		t.Errorf("unexpected written positions:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
	}
	if res.Drawn != 4 || res.Finished {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestPlayCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var rec recorder
	// One minute per frame.
	res, err := Play(ctx, bars(t, 3, 6000), &rec, Options{Realtime: true})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("unexpected error: got:%v want:%v", err, context.DeadlineExceeded)
	}
	if res.Drawn != 1 || res.Finished {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestPlayRealtime(t *testing.T) {
	var rec recorder
	start := time.Now()
	_, err := Play(context.Background(), bars(t, 3, 2), &rec, Options{Loops: 1, Realtime: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Two waits of 20ms; the final composite is not waited on.
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("realtime playback too fast: %v", elapsed)
	}
}

func TestPlayErrors(t *testing.T) {
	errWrite := errors.New("write failed")
	_, err := Play(context.Background(), bars(t, 3, 0), &recorder{err: errWrite}, Options{Loops: 1})
	if !errors.Is(err, errWrite) {
		t.Errorf("unexpected error: got:%v want:%v", err, errWrite)
	}

	errStop := errors.New("stop")
	var rec recorder
	res, err := Play(context.Background(), bars(t, 3, 0), &rec, Options{
		Loops:    1,
		Progress: func(animation.Position, int) error { return errStop },
	})
	if !errors.Is(err, errStop) {
		t.Errorf("unexpected error: got:%v want:%v", err, errStop)
	}
	if res.Drawn != 1 || len(rec.frames) != 1 {
		t.Errorf("unexpected progress after stop: %+v", res)
	}

	var oom recorder
	_, err = Play(context.Background(), bars(t, 3, 0), &oom, Options{
		Loops:   1,
		Session: []animation.Option{animation.WithMaxBackup(1)},
	})
	if !errors.Is(err, animation.ErrOutOfMemory) {
		t.Errorf("unexpected error: got:%v want:%v", err, animation.ErrOutOfMemory)
	}
}
