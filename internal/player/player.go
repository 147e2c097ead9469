// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package player drives animation sessions and writes the selected
// composites.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kortschak/gifplay/internal/animation"
	"github.com/kortschak/gifplay/internal/celext"
	"github.com/kortschak/gifplay/internal/render"
)

// Options control a Play call.
type Options struct {
	// Loops is the number of times to play the animation,
	// zero is forever.
	Loops int

	// Select chooses which composites are written. A nil
	// Select writes every composite.
	Select *celext.Selector

	// Realtime waits for each composite's delay before
	// drawing the next.
	Realtime bool

	// Start is the position to resume playback from.
	// Composites before Start are drawn but not written.
	Start animation.Position

	// Session holds options for the animation session.
	Session []animation.Option

	// Progress is called with the session position and
	// the number of composites written by this call after
	// each composite is handled. If it returns an error,
	// playback stops.
	Progress func(pos animation.Position, written int) error

	Log *slog.Logger
}

// Result summarises a playback.
type Result struct {
	// Drawn is the number of composites drawn, excluding
	// those drawn while seeking to the start position.
	Drawn int
	// Written is the number of composites written.
	Written int
	// End is the final session position.
	End animation.Position
	// Finished is whether playback ran to completion.
	Finished bool
}

// Play composites the frames of dec and writes the selected composites to
// w. It returns when the animation finishes, ctx is cancelled or an error
// occurs. A start position beyond the end of the animation restarts
// playback from the beginning.
func Play(ctx context.Context, dec animation.Decoder, w render.Writer, opts Options) (Result, error) {
	log := opts.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	sessOpts := append(opts.Session[:len(opts.Session):len(opts.Session)], animation.WithLogger(log))

	width, height := dec.Size()
	canvas := animation.NewCanvas(width, height)
	sess := animation.NewSession(dec, opts.Loops, sessOpts...)

	var res Result
	if opts.Start != (animation.Position{}) {
		err := sess.Seek(canvas, opts.Start)
		switch {
		case err == nil:
			log.LogAttrs(ctx, slog.LevelInfo, "resumed", slog.Any("position", opts.Start))
		case errors.Is(err, animation.ErrFinished):
			log.LogAttrs(ctx, slog.LevelWarn, "resume position past end, restarting", slog.Any("position", opts.Start))
			if err := dec.Rewind(); err != nil {
				return res, fmt.Errorf("%w: %w", animation.ErrRewind, err)
			}
			sess = animation.NewSession(dec, opts.Loops, sessOpts...)
		default:
			return res, err
		}
	}

	n := dec.Len()
	for {
		pos := sess.Position()
		_, err := sess.Advance(canvas)
		if err != nil {
			if errors.Is(err, animation.ErrFinished) {
				res.Finished = true
				break
			}
			res.End = sess.Position()
			return res, err
		}
		res.Drawn++
		frame := dec.Frame(pos.Index)

		ok, err := opts.Select.Match(celext.InfoOf(frame, pos, n))
		if err != nil {
			res.End = sess.Position()
			return res, err
		}
		if ok {
			err = w.Write(render.Frame{Image: canvas, Index: pos.Index, Loop: pos.Loop, Delay: frame.Delay})
			if err != nil {
				res.End = sess.Position()
				return res, err
			}
			res.Written++
		}
		if opts.Progress != nil {
			err = opts.Progress(sess.Position(), res.Written)
			if err != nil {
				res.End = sess.Position()
				return res, err
			}
		}
		if sess.Done() {
			res.Finished = true
			break
		}

		err = wait(ctx, frame.Delay, opts.Realtime)
		if err != nil {
			res.End = sess.Position()
			return res, err
		}
	}
	res.End = sess.Position()
	log.LogAttrs(ctx, slog.LevelDebug, "playback complete",
		slog.Int("drawn", res.Drawn), slog.Int("written", res.Written), slog.Any("end", res.End),
	)
	return res, nil
}

// wait blocks for d if realtime is true, returning early with the context's
// error if ctx is cancelled.
func wait(ctx context.Context, d time.Duration, realtime bool) error {
	if !realtime || d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
