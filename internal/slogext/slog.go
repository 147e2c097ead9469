// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package slogext provides slog helpers used by gifplay.
package slogext

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/kortschak/goroutine"
)

// GoID is a slog.Handler that adds the goid of the goroutine making the
// logging call. Renders run on their own goroutines, so the goid separates
// interleaved output.
type GoID struct {
	slog.Handler
}

func (h GoID) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(slog.Int64("goid", goroutine.ID()))
	return h.Handler.Handle(ctx, r)
}

func (h GoID) WithAttrs(attrs []slog.Attr) slog.Handler {
	return GoID{h.Handler.WithAttrs(attrs)}
}

func (h GoID) WithGroup(name string) slog.Handler {
	return GoID{h.Handler.WithGroup(name)}
}

// Stringer implements slog.LogValuer for [fmt.Stringer].
type Stringer struct {
	fmt.Stringer
}

func (v Stringer) LogValue() slog.Value {
	if v.Stringer == nil {
		return slog.StringValue("<nil>")
	}
	return slog.StringValue(v.String())
}

// Rect implements slog.LogValuer for [image.Rectangle], logging the
// rectangle as origin and extent.
type Rect image.Rectangle

func (v Rect) LogValue() slog.Value {
	r := image.Rectangle(v)
	return slog.GroupValue(
		slog.Int("left", r.Min.X),
		slog.Int("top", r.Min.Y),
		slog.Int("width", r.Dx()),
		slog.Int("height", r.Dy()),
	)
}

// JSONHandler is a slog.Handler that writes line-delimited JSON records to
// an io.Writer. Unlike [slog.JSONHandler], whether source locations are
// added can be changed after the handler is constructed.
type JSONHandler struct {
	addSource *atomic.Bool
	src       *slog.JSONHandler
	noSrc     *slog.JSONHandler
}

// NewJSONHandler returns a JSONHandler writing to w. A nil opts is
// equivalent to a zero HandlerOptions.
func NewJSONHandler(w io.Writer, opts *HandlerOptions) *JSONHandler {
	var o HandlerOptions
	if opts != nil {
		o = *opts
	}
	if o.AddSource == nil {
		o.AddSource = new(atomic.Bool)
	}
	std := func(src bool) *slog.JSONHandler {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource:   src,
			Level:       o.Level,
			ReplaceAttr: o.ReplaceAttr,
		})
	}
	return &JSONHandler{addSource: o.AddSource, src: std(true), noSrc: std(false)}
}

// Enabled reports whether records at level are handled.
func (h *JSONHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.noSrc.Enabled(ctx, level)
}

// WithAttrs returns a JSONHandler that adds attrs to every record.
func (h *JSONHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &JSONHandler{
		addSource: h.addSource,
		src:       h.src.WithAttrs(attrs).(*slog.JSONHandler),
		noSrc:     h.noSrc.WithAttrs(attrs).(*slog.JSONHandler),
	}
}

// WithGroup returns a JSONHandler that qualifies later attributes with name.
func (h *JSONHandler) WithGroup(name string) slog.Handler {
	return &JSONHandler{
		addSource: h.addSource,
		src:       h.src.WithGroup(name).(*slog.JSONHandler),
		noSrc:     h.noSrc.WithGroup(name).(*slog.JSONHandler),
	}
}

// Handle writes r as a single line JSON object. See [slog.JSONHandler.Handle].
func (h *JSONHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.addSource.Load() {
		return h.src.Handle(ctx, r)
	}
	return h.noSrc.Handle(ctx, r)
}

// HandlerOptions are options for a JSONHandler. They mirror
// [slog.HandlerOptions] except that AddSource may be toggled while the
// handler is in use.
type HandlerOptions struct {
	// AddSource adds the source location of the logging
	// call to each record when true. A nil AddSource is
	// false.
	AddSource *atomic.Bool

	// Level is the minimum level of records to log.
	Level slog.Leveler

	// ReplaceAttr rewrites each non-group attribute before
	// it is written.
	ReplaceAttr func(groups []string, a slog.Attr) slog.Attr
}

// NewAtomicBool returns an atomic.Bool holding t.
func NewAtomicBool(t bool) *atomic.Bool {
	var b atomic.Bool
	b.Store(t)
	return &b
}
