// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/kortschak/gifplay/internal/animation"
)

// LockFile is the name of the lock file held in an output directory while
// frames are being written to it.
const LockFile = ".gifplay.lock"

// ErrLocked is returned when an output directory is in use by another
// render.
var ErrLocked = errors.New("output directory locked")

// PNGs writes each frame as a numbered PNG file in a directory.
type PNGs struct {
	dir    string
	prefix string
	first  int
	n      int

	cache *animation.Cache
	lock  *flock.Flock
	log   *slog.Logger
}

// NewPNGs returns a PNGs writing into dir, creating the directory if
// needed. Files are named by prefix followed by a zero-padded sequence
// number starting from first. Frames are scaled by the scale factor. The
// directory is locked until Close is called.
func NewPNGs(dir, prefix string, first int, scale float64, log *slog.Logger) (*PNGs, error) {
	if first < 0 {
		return nil, fmt.Errorf("negative first sequence number: %d", first)
	}
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(dir, LockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}
	return &PNGs{
		dir:    dir,
		prefix: prefix,
		first:  first,
		n:      first,
		cache: animation.NewCache(func(m image.Image) (image.Image, error) {
			return Scale(m, scale), nil
		}),
		lock: lock,
		log:  log.With(slog.String("component", "render.png")),
	}, nil
}

// Write writes f to the next numbered file.
func (w *PNGs) Write(f Frame) error {
	img, err := w.cache.Convert(f.Index, f.Image)
	if err != nil {
		return err
	}
	path := filepath.Join(w.dir, fmt.Sprintf("%s%05d.png", w.prefix, w.n))
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	err = png.Encode(file, img)
	if err != nil {
		file.Close()
		return err
	}
	err = file.Close()
	if err != nil {
		return err
	}
	w.log.LogAttrs(context.Background(), slog.LevelDebug, "wrote frame",
		slog.String("path", path), slog.Int("index", f.Index), slog.Int("loop", f.Loop), slog.Duration("delay", f.Delay),
	)
	w.n++
	return nil
}

// Len returns the number of files written by w.
func (w *PNGs) Len() int { return w.n - w.first }

// Close releases the output directory lock.
func (w *PNGs) Close() error {
	err := w.lock.Unlock()
	return errors.Join(err, os.Remove(w.lock.Path()))
}
