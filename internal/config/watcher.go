// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"crypto/sha1"
	"errors"
	"hash"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileDebounce is the default duration we wait for the contents to have
// stabilised to work around some editors writing an empty file and then the
// buffer.
const FileDebounce = 10 * time.Millisecond

// Change is a semantically meaningful configuration change identified by a
// Watcher.
type Change struct {
	Event  fsnotify.Event
	Config *Config
	Err    error
}

// Watcher watches a configuration file, sending a Change each time its
// semantic content changes.
type Watcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	done     chan struct{}
	changes  chan<- Change
	hash     hash.Hash
	sum      *Sum
	log      *slog.Logger
}

// NewWatcher starts watching the configuration file at path, sending changes
// on the changes channel until ctx is cancelled or the Watcher is closed.
// The file's directory is watched so that replacements of the file by
// editors are seen. The debounce parameter specifies how long to wait after
// an fsnotify.Event before reading the file to ensure that writes will be
// reflected in the content sum. If it is less than zero, FileDebounce is
// used.
func NewWatcher(ctx context.Context, path string, changes chan<- Change, debounce time.Duration, log *slog.Logger) (*Watcher, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	err = watcher.Add(filepath.Dir(path))
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if debounce < 0 {
		debounce = FileDebounce
	}
	w := &Watcher{
		path:     path,
		debounce: debounce,
		watcher:  watcher,
		done:     make(chan struct{}),
		changes:  changes,
		hash:     sha1.New(),
		log:      log.With(slog.String("component", "config_watcher")),
	}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		cfg, err := parse(w.hash, b)
		if err == nil {
			w.sum = cfg.Sum
		}
	case !errors.Is(err, fs.ErrNotExist):
		watcher.Close()
		return nil, err
	}
	w.log.LogAttrs(ctx, slog.LevelDebug, "watching", slog.String("path", path), slog.Any("sum", sumValue{w.sum}))
	go w.process(ctx)
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

// process watches the fsnotify.Watcher's events, filtering for changes to
// the configuration file's semantic content.
func (w *Watcher) process(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.LogAttrs(ctx, slog.LevelError, "watch", slog.Any("error", err))
			if !w.send(ctx, Change{Err: err}) {
				return
			}
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				w.log.LogAttrs(ctx, slog.LevelDebug, "ignore", slog.String("op", ev.Op.String()))
				if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					w.sum = nil
				}
				continue
			}
			time.Sleep(w.debounce)

			b, err := os.ReadFile(w.path)
			if err != nil {
				w.log.LogAttrs(ctx, slog.LevelError, "read file", slog.Any("error", err))
				if !w.send(ctx, Change{Event: ev, Err: err}) {
					return
				}
				continue
			}
			cfg, err := parse(w.hash, b)
			if cfg != nil {
				if cfg.Sum.Equal(w.sum) {
					w.log.LogAttrs(ctx, slog.LevelDebug, "no change", slog.Any("sum", sumValue{cfg.Sum}))
					continue
				}
				w.sum = cfg.Sum
			}
			c := Change{Event: ev, Config: cfg, Err: err}
			w.log.LogAttrs(ctx, slog.LevelInfo, "change", slog.Any("change", changeValue{c}))
			if !w.send(ctx, c) {
				return
			}
		}
	}
}

// send sends c on the changes channel, returning false if ctx is cancelled
// first.
func (w *Watcher) send(ctx context.Context, c Change) bool {
	select {
	case w.changes <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
