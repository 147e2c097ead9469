// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package celext provides CEL frame selection expressions.
package celext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kortschak/gifplay/internal/animation"
)

// FrameInfo describes a composited frame offered for selection.
type FrameInfo struct {
	// Index is the index of the frame drawn into the
	// composite and Loop is the loop it was drawn in.
	Index, Loop int

	// Frames is the number of frames in the animation.
	Frames int

	Delay    time.Duration
	Disposal animation.Disposal

	// Left, Top, Width and Height are the drawn frame's
	// rectangle.
	Left, Top     int
	Width, Height int

	Transparent bool
}

// InfoOf returns the FrameInfo for the frame f drawn at pos in an animation
// of n frames.
func InfoOf(f *animation.Frame, pos animation.Position, n int) FrameInfo {
	return FrameInfo{
		Index:       pos.Index,
		Loop:        pos.Loop,
		Frames:      n,
		Delay:       f.Delay,
		Disposal:    f.Disposal,
		Left:        f.Left,
		Top:         f.Top,
		Width:       f.Width,
		Height:      f.Height,
		Transparent: f.HasTransparency,
	}
}

func (f FrameInfo) activation() map[string]any {
	return map[string]any{
		"index":       f.Index,
		"iteration":   f.Loop,
		"frames":      f.Frames,
		"delay":       f.Delay,
		"delay_ms":    f.Delay.Milliseconds(),
		"disposal":    f.Disposal.String(),
		"left":        f.Left,
		"top":         f.Top,
		"width":       f.Width,
		"height":      f.Height,
		"transparent": f.Transparent,
	}
}

// Selector is a compiled frame selection expression.
type Selector struct {
	src string
	prg cel.Program
}

// Compile returns a Selector for the boolean CEL expression src. The
// expression is evaluated with the following variables:
//
//	index       int       index of the drawn frame
//	iteration   int       loop the frame was drawn in, from zero
//	frames      int       number of frames in the animation
//	delay       duration  the frame's display duration
//	delay_ms    int       the frame's display duration in milliseconds
//	disposal    string    "none", "background" or "previous"
//	left, top   int       the frame's origin
//	width       int       the frame's width
//	height      int       the frame's height
//	transparent bool      whether the frame has a transparent index
//
// The functions provided by [Lib] are available. An empty src selects
// every frame. If log is nil, debug output is discarded.
func Compile(src string, log *slog.Logger) (*Selector, error) {
	if src == "" {
		return &Selector{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("index", cel.IntType),
		cel.Variable("iteration", cel.IntType),
		cel.Variable("frames", cel.IntType),
		cel.Variable("delay", cel.DurationType),
		cel.Variable("delay_ms", cel.IntType),
		cel.Variable("disposal", cel.StringType),
		cel.Variable("left", cel.IntType),
		cel.Variable("top", cel.IntType),
		cel.Variable("width", cel.IntType),
		cel.Variable("height", cel.IntType),
		cel.Variable("transparent", cel.BoolType),
		Lib(log),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create env: %w", err)
	}
	ast, iss := env.Compile(src)
	if iss.Err() != nil {
		return nil, fmt.Errorf("failed compilation: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("selection expression must be bool, not %s", ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed program instantiation: %w", err)
	}
	return &Selector{src: src, prg: prg}, nil
}

// String returns the source of the selection expression.
func (s *Selector) String() string {
	if s == nil {
		return ""
	}
	return s.src
}

// Match returns whether the frame described by f is selected. A nil
// Selector selects every frame.
func (s *Selector) Match(f FrameInfo) (bool, error) {
	if s == nil || s.prg == nil {
		return true, nil
	}
	out, _, err := s.prg.Eval(f.activation())
	if err != nil {
		return false, fmt.Errorf("failed eval: %w", err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, errors.New("selection expression did not return bool")
	}
	return ok, nil
}

// Lib returns a cel.EnvOption adding the debug function.
//
// # Debug
//
// The second parameter is returned unaltered and the value is logged to the
// lib's logger:
//
//	debug(<string>, <dyn>) -> <dyn>
//
// Examples:
//
//	debug("tag", expr) // return expr even if it is an error and logs with "tag".
func Lib(log *slog.Logger) cel.EnvOption {
	return cel.Lib(lib{log: log})
}

type lib struct {
	log *slog.Logger
}

func (l lib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Function("debug",
			cel.Overload(
				"debug_string_dyn",
				[]*cel.Type{cel.StringType, cel.DynType},
				cel.DynType,
				cel.BinaryBinding(l.logDebug),
				cel.OverloadIsNonStrict(),
			),
		),
	}
}

func (lib) ProgramOptions() []cel.ProgramOption { return nil }

func (l lib) logDebug(tag, val ref.Val) ref.Val {
	t, ok := tag.(types.String)
	if !ok {
		return types.ValOrErr(tag, "no such overload")
	}
	if l.log == nil {
		return val
	}
	ctx := context.Background()
	if err, ok := val.(*types.Err); ok {
		l.log.LogAttrs(ctx, slog.LevelDebug, "cel debug log", slog.String("tag", string(t)), slog.Any("error", err))
		return val
	}
	v, err := val.ConvertToNative(reflect.TypeOf((*structpb.Value)(nil)))
	if err != nil {
		l.log.LogAttrs(ctx, slog.LevelError, "cel debug log error", slog.String("tag", string(t)), slog.Any("error", err))
		return val
	}
	l.log.LogAttrs(ctx, slog.LevelDebug, "cel debug log", slog.String("tag", string(t)), slog.Any("value", v.(*structpb.Value).AsInterface()))
	return val
}
