// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kortschak/gifplay/internal/locked"
	"github.com/kortschak/gifplay/internal/slogext"
)

var watchOperations = []struct {
	name    string
	data    string
	want    *Config
	wantErr bool
}{
	{
		name: "format",
		data: "format = \"gif\"\n",
		want: &Config{Format: "gif"},
	},
	{
		name: "no_semantic_change",
		data: "# comment\nformat = 'gif'\n",
	},
	{
		name: "scale",
		data: "format = \"gif\"\nscale = 2.0\n",
		want: &Config{Format: "gif", Scale: 2},
	},
	{
		name:    "invalid",
		data:    "format = \"tiff\"\n",
		wantErr: true,
	},
	{
		name: "revert",
		data: "format = \"gif\"\n",
		want: &Config{Format: "gif"},
	},
}

func TestWatcher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		level     slog.Level
		addSource = slogext.NewAtomicBool(*lines)
		logBuf    locked.BytesBuffer
	)
	if *verbose {
		level = slog.LevelDebug - 1
	}
	log := slog.New(slogext.NewJSONHandler(&logBuf, &slogext.HandlerOptions{
		Level:     &level,
		AddSource: addSource,
	}))
	defer func() {
		if *verbose {
			t.Logf("log:\n%s\n", &logBuf)
		}
	}()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	changes := make(chan Change)
	w, err := NewWatcher(ctx, path, changes, -1, log)
	if err != nil {
		t.Fatalf("unexpected error starting watcher: %v", err)
	}
	defer w.Close()

	for _, op := range watchOperations {
		// Replace the file so that partial writes are never seen.
		tmp := path + ".tmp"
		err := os.WriteFile(tmp, []byte(op.data), 0o644)
		if err != nil {
			t.Fatalf("unexpected error writing config for %s: %v", op.name, err)
		}
		err = os.Rename(tmp, path)
		if err != nil {
			t.Fatalf("unexpected error replacing config for %s: %v", op.name, err)
		}
		if op.want == nil && !op.wantErr {
			select {
			case c := <-changes:
				t.Errorf("unexpected change for %s: %+v", op.name, c)
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}

		var c Change
		select {
		case c = <-changes:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for change for %s", op.name)
		}
		if c.Event.Name != path || !c.Event.Has(fsnotify.Write|fsnotify.Create) {
			t.Errorf("unexpected event for %s: %v", op.name, c.Event)
		}
		if op.wantErr {
			if c.Err == nil {
				t.Errorf("expected error for %s", op.name)
			}
			continue
		}
		if c.Err != nil {
			t.Errorf("unexpected error for %s: %v", op.name, c.Err)
			continue
		}
		if c.Config.Format != op.want.Format || c.Config.Scale != op.want.Scale {
			t.Errorf("unexpected config for %s: got:%+v want:%+v", op.name, c.Config, op.want)
		}
	}
}
