// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrOutOfMemory is returned when the backup buffer needed for restore to
// previous disposal cannot be allocated.
var ErrOutOfMemory = errors.New("out of memory")

// dispose removes the effect of prev from dst as required by its disposal
// mode before next is drawn, and snapshots dst into the backup buffer if
// next will need to be restored from.
//
// If the backup buffer cannot be allocated, dispose returns an error
// wrapping ErrOutOfMemory and dst is not altered.
func (s *Session) dispose(dst *Canvas, prev, next *Frame) error {
	if prev.Disposal == DisposePrevious || next.Disposal == DisposePrevious {
		err := s.ensureBackup(dst)
		if err != nil {
			return err
		}
	}

	// When next is opaque and completely covers prev, drawing next
	// overwrites everything restoration would have touched. The
	// snapshot taken for a following restore must still see the
	// disposed canvas, so background clearing is only skipped when
	// no snapshot follows.
	covered := s.coverageSkip && next.opaque() && next.covers(prev)

	switch prev.Disposal {
	case DisposeBackground:
		if !covered || next.Disposal == DisposePrevious {
			dst.clearRect(prev.Bounds())
		}
	case DisposePrevious:
		if next.Disposal == DisposePrevious {
			// The backup already holds the canvas as it was
			// before prev was drawn, which is also the state
			// next must be restored to, so no new snapshot
			// is taken.
			if !covered {
				dst.copyFrom(s.backup)
			}
			return nil
		}
	}

	if next.Disposal == DisposePrevious {
		s.backup.copyFrom(dst)
	}
	return nil
}

// ensureBackup allocates the backup buffer with the geometry of dst if it
// does not already exist.
func (s *Session) ensureBackup(dst *Canvas) error {
	if s.backup != nil {
		if s.backup.Width == dst.Width && s.backup.Height == dst.Height && s.backup.Stride == dst.Stride {
			return nil
		}
		s.log.LogAttrs(context.Background(), slog.LevelWarn, "canvas geometry changed, discarding backup",
			slog.Int("width", dst.Width), slog.Int("height", dst.Height), slog.Int("stride", dst.Stride),
		)
		s.backup = nil
	}
	need := 4 * int64(dst.Stride) * int64(dst.Height)
	if s.maxBackup > 0 && need > s.maxBackup {
		return s.fail(fmt.Errorf("%w: backup buffer of %d bytes exceeds limit of %d", ErrOutOfMemory, need, s.maxBackup))
	}
	b, err := s.alloc(dst.Width, dst.Height, dst.Stride)
	if err != nil {
		if !errors.Is(err, ErrOutOfMemory) {
			err = fmt.Errorf("%w: %w", ErrOutOfMemory, err)
		}
		return s.fail(err)
	}
	if b == nil || b.Width != dst.Width || b.Height != dst.Height || b.Stride != dst.Stride {
		return s.fail(fmt.Errorf("%w: allocator returned invalid backup buffer", ErrOutOfMemory))
	}
	s.log.LogAttrs(context.Background(), slog.LevelDebug, "allocated backup buffer", slog.Int64("bytes", need))
	s.backup = b
	return nil
}

// allocCanvas is the default backup allocator.
func allocCanvas(width, height, stride int) (*Canvas, error) {
	return CanvasOf(make([]uint8, 4*stride*height), width, height, stride)
}
