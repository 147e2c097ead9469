// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"time"
)

var (
	// ErrFinished is returned by Advance once the animation's loop
	// budget has been exhausted or playback ended.
	ErrFinished = errors.New("animation finished")

	// ErrRewind is returned when the decoder could not be rewound
	// to the first frame to start a new loop.
	ErrRewind = errors.New("rewind failed")
)

// Decoder is the source of an animation's frames.
type Decoder interface {
	// Len returns the number of frames.
	Len() int
	// Frame returns the ith frame.
	Frame(i int) *Frame
	// Global returns the session-wide palette, or nil
	// if there is none.
	Global() Palette
	// BackgroundIndex returns the index of the background
	// color in the global palette.
	BackgroundIndex() int
	// Size returns the canvas dimensions.
	Size() (width, height int)
	// Rewind resets the decode position to the first frame.
	Rewind() error
}

// State is the playback state of a Session.
type State int

const (
	Initial     State = iota // No frame has been drawn.
	Playing                  // Frames are being drawn within a loop.
	LoopPending              // A loop completed and the next call starts another.
	Finished                 // Playback has ended.
)

func (s State) String() string {
	switch s {
	case Initial:
		return "initial"
	case Playing:
		return "playing"
	case LoopPending:
		return "loop_pending"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Position is a point in an animation's schedule: the index of the next
// frame to draw and the number of completed loops.
type Position struct {
	Index int `json:"index"`
	Loop  int `json:"loop"`
}

func (p Position) LogValue() slog.Value {
	return slog.GroupValue(slog.Int("index", p.Index), slog.Int("loop", p.Loop))
}

// Session composites the frames of a Decoder into a canvas, one frame per
// call to Advance. A Session is not safe for concurrent use; calls to
// Advance must be serialised by the caller.
type Session struct {
	dec   Decoder
	loops int

	index int
	loop  int
	state State

	// backup holds the canvas state that a restore to
	// previous disposal returns to.
	backup *Canvas

	alloc        func(width, height, stride int) (*Canvas, error)
	maxBackup    int64
	report       func(error)
	coverageSkip bool
	log          *slog.Logger
}

// Option is a Session option.
type Option func(*Session)

// WithAllocator sets the function used to allocate the backup buffer. The
// returned canvas must have the requested geometry.
func WithAllocator(fn func(width, height, stride int) (*Canvas, error)) Option {
	return func(s *Session) { s.alloc = fn }
}

// WithMaxBackup limits the size in bytes of the backup buffer. Animations
// needing a larger buffer fail with ErrOutOfMemory. A limit of zero or less
// is no limit.
func WithMaxBackup(bytes int64) Option {
	return func(s *Session) { s.maxBackup = bytes }
}

// WithReporter sets a function to be called with each out of memory or
// rewind failure.
func WithReporter(fn func(error)) Option {
	return func(s *Session) { s.report = fn }
}

// WithLogger sets the session's logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithoutCoverageSkip disables skipping disposal when a frame is opaque and
// completely covers the frame before it. The composited output is the same
// either way.
func WithoutCoverageSkip() Option {
	return func(s *Session) { s.coverageSkip = false }
}

// NewSession returns a Session playing the frames of dec. The animation is
// played loops times, or forever if loops is zero.
func NewSession(dec Decoder, loops int, opts ...Option) *Session {
	s := &Session{
		dec:          dec,
		loops:        loops,
		alloc:        allocCanvas,
		coverageSkip: true,
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	return s
}

// Advance draws the next frame of the animation into dst and returns how
// long the result should be displayed. The same canvas, or one with the
// same geometry, must be passed to each call.
//
// When the final frame of the final loop is drawn, Advance returns a zero
// duration and a nil error. Subsequent calls return ErrFinished and leave
// dst unaltered. If the backup buffer cannot be allocated, an error
// wrapping ErrOutOfMemory is returned, dst is not altered and the next call
// retries the same frame. If the decoder cannot be rewound for another loop
// an error wrapping ErrRewind is returned and playback is finished.
func (s *Session) Advance(dst *Canvas) (time.Duration, error) {
	if s.state == Finished {
		return 0, ErrFinished
	}
	n := s.dec.Len()
	if n == 0 {
		s.state = Finished
		return 0, ErrFinished
	}

	curr := s.dec.Frame(s.index)
	if s.index == 0 {
		err := s.initCanvas(dst, curr)
		if err != nil {
			return 0, err
		}
	} else {
		err := s.dispose(dst, s.dec.Frame(s.index-1), curr)
		if err != nil {
			return 0, err
		}
	}
	drawFrame(dst, curr, Resolve(curr.Palette, s.dec.Global()))
	delay := curr.Delay
	s.log.LogAttrs(context.Background(), slog.LevelDebug, "draw frame",
		slog.Int("index", s.index), slog.Int("loop", s.loop), slog.Any("frame", curr),
	)

	s.index++
	s.state = Playing
	if s.index < n {
		return delay, nil
	}
	if s.loops == 0 || s.loop+1 < s.loops {
		err := s.dec.Rewind()
		if err != nil {
			s.index = n - 1
			s.state = Finished
			return 0, s.fail(fmt.Errorf("%w: %w", ErrRewind, err))
		}
		if s.loops > 0 {
			s.loop++
		}
		s.index = 0
		s.state = LoopPending
		return delay, nil
	}
	s.loop++
	s.index = n - 1
	s.state = Finished
	return 0, nil
}

// initCanvas prepares dst for the first frame of a loop. The canvas is
// filled with the opaque global background color if there is a global
// palette holding it and the first frame is not transparent, otherwise it
// is cleared to transparent.
func (s *Session) initCanvas(dst *Canvas, first *Frame) error {
	if first.Disposal == DisposePrevious {
		// Allocate before touching dst so that failure
		// leaves it unaltered.
		err := s.ensureBackup(dst)
		if err != nil {
			return err
		}
	}
	var bg color.NRGBA
	global := s.dec.Global()
	if idx := s.dec.BackgroundIndex(); global != nil && !first.HasTransparency && 0 <= idx && idx < len(global) {
		c := global[idx]
		bg = color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
	}
	dst.Fill(bg)
	if first.Disposal == DisposePrevious {
		s.backup.copyFrom(dst)
	}
	return nil
}

// fail reports err to the session's reporter and logger and returns it.
func (s *Session) fail(err error) error {
	s.log.LogAttrs(context.Background(), slog.LevelError, "advance failed",
		slog.Int("index", s.index), slog.Int("loop", s.loop), slog.Any("error", err),
	)
	if s.report != nil {
		s.report(err)
	}
	return err
}

// State returns the playback state of the session.
func (s *Session) State() State { return s.state }

// Done returns whether playback has finished.
func (s *Session) Done() bool { return s.state == Finished }

// Index returns the index of the next frame to be drawn.
func (s *Session) Index() int { return s.index }

// Loop returns the number of completed loops. Loops are not counted for
// animations that play forever.
func (s *Session) Loop() int { return s.loop }

// Position returns the current position in the animation's schedule.
func (s *Session) Position() Position {
	return Position{Index: s.index, Loop: s.loop}
}

// Seek advances the session without delay until it reaches pos, drawing
// each intermediate composite into dst. Seek must be called on a session
// that has not passed pos. It returns ErrFinished without drawing if pos
// is not in the session's schedule, and if the session finishes before
// reaching pos.
func (s *Session) Seek(dst *Canvas, pos Position) error {
	if !s.reachable(pos) {
		return fmt.Errorf("%w: position %d:%d not in schedule of %d frames", ErrFinished, pos.Loop, pos.Index, s.dec.Len())
	}
	for s.index != pos.Index || s.loop != pos.Loop {
		if s.loop > pos.Loop || (s.loop == pos.Loop && s.index > pos.Index) {
			return fmt.Errorf("cannot seek backwards from %d:%d to %d:%d", s.loop, s.index, pos.Loop, pos.Index)
		}
		_, err := s.Advance(dst)
		if err != nil {
			return err
		}
		if s.state == Finished && (s.index != pos.Index || s.loop != pos.Loop) {
			return ErrFinished
		}
	}
	return nil
}

// reachable returns whether pos is a position in the session's schedule.
// Loops are not counted when playing forever, so only the first loop's
// positions are reachable.
func (s *Session) reachable(pos Position) bool {
	n := s.dec.Len()
	switch {
	case pos.Index < 0, pos.Index >= n, pos.Loop < 0:
		return false
	case s.loops == 0:
		return pos.Loop == 0
	case pos.Loop == s.loops:
		// The final position after the last frame is drawn.
		return pos.Index == n-1
	default:
		return pos.Loop < s.loops
	}
}
