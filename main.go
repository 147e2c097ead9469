// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The gifplay command composites the frames of animated GIFs and writes the
// resulting full-canvas images as numbered PNG files or as a flattened
// animated GIF.
//
// Usage:
//
//	gifplay [flags] <input>...
//
// Inputs are image file paths or data URIs as described in the
// documentation for the internal/source package. Each input is rendered
// into the output directory, PNG files are named <stem>_NNNNN.png and GIF
// output is named <stem>.gif.
//
// Configuration is read from $XDG_CONFIG_HOME/gifplay/config.toml or the
// file named by -config. Flags that are explicitly set take precedence over
// configuration values.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kortschak/gifplay/internal/animation"
	"github.com/kortschak/gifplay/internal/celext"
	"github.com/kortschak/gifplay/internal/config"
	"github.com/kortschak/gifplay/internal/player"
	"github.com/kortschak/gifplay/internal/render"
	"github.com/kortschak/gifplay/internal/slogext"
	"github.com/kortschak/gifplay/internal/source"
	"github.com/kortschak/gifplay/internal/state"
	"github.com/kortschak/gifplay/internal/version"
	"github.com/kortschak/gifplay/internal/xdg"
)

// Exit status codes.
const (
	success       = 0
	internalError = 1 << (iota - 1)
	invocationError
)

func main() { os.Exit(Main()) }

func Main() int {
	cfgPath := flag.String("config", "", "configuration file (default $XDG_CONFIG_HOME/gifplay/config.toml)")
	out := flag.String("out", ".", "output directory")
	format := flag.String("format", "png", "output format (png or gif)")
	scale := flag.Float64("scale", 1, "output scale factor")
	loop := flag.Int("loop", 0, "loop count using the GIF convention: 0 forever, -1 once, n for n+1 plays (default from input)")
	sel := flag.String("select", "", "CEL expression selecting the frames to write")
	realtime := flag.Bool("realtime", false, "wait for frame delays between frames")
	resume := flag.Bool("resume", false, "resume playback from the last saved position")
	dump := flag.Bool("dump_state", false, "print saved playback positions and exit")
	watch := flag.Bool("watch", false, "re-render when the configuration changes")
	maxBackup := flag.Int64("max_backup", 0, "maximum restore buffer size in bytes (0 is unlimited)")
	coverageSkip := flag.Bool("coverage_skip", true, "skip disposal of frames covered by an opaque successor")
	text := flag.String("text", "", "render text as an additional input")
	size := flag.String("size", "128x32", "canvas size for text and color inputs")
	logging := flag.String("log", "info", "logging level (debug, info, warn or error)")
	lines := flag.Bool("lines", false, "display source line details in logs")
	v := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <input>...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	if *v {
		err := version.Print(os.Stdout)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
		return success
	}
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	var logLevel slog.Level
	err := logLevel.UnmarshalText([]byte(*logging))
	if err != nil {
		flag.Usage()
		return invocationError
	}
	var level slog.LevelVar
	level.Set(logLevel)
	addSource := slogext.NewAtomicBool(*lines)
	log := slog.New(slogext.GoID{Handler: slogext.NewJSONHandler(os.Stderr, &slogext.HandlerOptions{
		Level:     &level,
		AddSource: addSource,
	})})

	var canvas image.Point
	_, err = fmt.Sscanf(*size, "%dx%d", &canvas.X, &canvas.Y)
	if err != nil || canvas.X <= 0 || canvas.Y <= 0 {
		fmt.Fprintf(os.Stderr, "invalid size: %q\n", *size)
		return invocationError
	}

	if *cfgPath == "" {
		*cfgPath, err = xdg.Config(filepath.Join("gifplay", "config.toml"), false)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.LogAttrs(context.Background(), slog.LevelError, "failed to find config", slog.Any("error", err))
			return internalError
		}
	}
	cfg := &config.Config{}
	if *cfgPath != "" {
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			log.LogAttrs(context.Background(), slog.LevelError, "failed to load config", slog.String("path", *cfgPath), slog.Any("error", err))
			return invocationError
		}
		log.LogAttrs(context.Background(), slog.LevelDebug, "loaded config", slog.String("path", *cfgPath), slog.Any("sum", cfg.Sum))
	}
	if *watch && *cfgPath == "" {
		fmt.Fprintln(os.Stderr, "-watch requires a configuration file")
		return invocationError
	}

	p := &app{
		flags: flags{
			format:       *format,
			scale:        *scale,
			loop:         *loop,
			sel:          *sel,
			realtime:     *realtime,
			maxBackup:    *maxBackup,
			coverageSkip: *coverageSkip,
			logging:      logLevel,
			lines:        *lines,
			set:          set,
		},
		out:       *out,
		size:      canvas,
		level:     &level,
		addSource: addSource,
		log:       log,
	}
	p.apply(cfg)

	if *resume || *dump {
		dir, _, err := xdg.StateDir("gifplay")
		if err != nil {
			log.LogAttrs(context.Background(), slog.LevelError, "failed to open state directory", slog.Any("error", err))
			return internalError
		}
		p.db, err = state.Open(filepath.Join(dir, "state.sqlite3"), log)
		if err != nil {
			log.LogAttrs(context.Background(), slog.LevelError, "failed to open state", slog.Any("error", err))
			return internalError
		}
		defer p.db.Close()
	}
	if *dump {
		d, err := p.db.Dump()
		if err != nil {
			log.LogAttrs(context.Background(), slog.LevelError, "failed to read state", slog.Any("error", err))
			return internalError
		}
		b, err := state.JSON(d)
		if err != nil {
			log.LogAttrs(context.Background(), slog.LevelError, "failed to format state", slog.Any("error", err))
			return internalError
		}
		fmt.Printf("%s\n", b)
		return success
	}

	inputs := flag.Args()
	if *text != "" {
		inputs = append(inputs, textInput(*text))
	}
	if len(inputs) == 0 {
		flag.Usage()
		return invocationError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	status := p.renderAll(ctx, inputs)
	if !*watch {
		return status
	}
	err = p.watch(ctx, *cfgPath, inputs)
	if err != nil {
		log.LogAttrs(ctx, slog.LevelError, "watch failed", slog.Any("error", err))
		return internalError
	}
	return success
}

// textPrefix marks inputs provided with the -text flag.
const textPrefix = "\x00text:"

func textInput(msg string) string { return textPrefix + msg }

// flags holds command line flag values and the set of flags that were
// explicitly set.
type flags struct {
	format       string
	scale        float64
	loop         int
	sel          string
	realtime     bool
	maxBackup    int64
	coverageSkip bool
	logging      slog.Level
	lines        bool

	set map[string]bool
}

// settings are the rendering parameters after merging configuration and
// flags.
type settings struct {
	format       string
	scale        float64
	loopCount    *int
	sel          string
	realtime     bool
	maxBackup    int64
	coverageSkip bool
}

type app struct {
	flags flags
	out   string
	size  image.Point

	current settings

	level     *slog.LevelVar
	addSource *atomic.Bool
	db        *state.DB
	log       *slog.Logger
}

// apply merges cfg with the command line flags and makes the result the
// current settings. Explicitly set flags take precedence.
func (p *app) apply(cfg *config.Config) {
	f := p.flags
	s := settings{
		format:       "png",
		scale:        1,
		realtime:     f.realtime,
		coverageSkip: true,
	}
	if cfg.Format != "" {
		s.format = cfg.Format
	}
	if cfg.Scale != 0 {
		s.scale = cfg.Scale
	}
	s.loopCount = cfg.LoopCount
	s.sel = cfg.Select
	s.maxBackup = cfg.MaxBackup
	if cfg.CoverageSkip != nil {
		s.coverageSkip = *cfg.CoverageSkip
	}

	if f.set["format"] {
		s.format = f.format
	}
	if f.set["scale"] {
		s.scale = f.scale
	}
	if f.set["loop"] {
		s.loopCount = &f.loop
	}
	if f.set["select"] {
		s.sel = f.sel
	}
	if f.set["max_backup"] {
		s.maxBackup = f.maxBackup
	}
	if f.set["coverage_skip"] {
		s.coverageSkip = f.coverageSkip
	}

	switch {
	case f.set["log"]:
		p.level.Set(f.logging)
	case cfg.LogLevel != nil:
		p.level.Set(*cfg.LogLevel)
	default:
		p.level.Set(slog.LevelInfo)
	}
	switch {
	case f.set["lines"]:
		p.addSource.Store(f.lines)
	case cfg.AddSource != nil:
		p.addSource.Store(*cfg.AddSource)
	default:
		p.addSource.Store(false)
	}

	p.current = s
}

// renderAll renders each input with the current settings and returns the
// command's exit status.
func (p *app) renderAll(ctx context.Context, inputs []string) int {
	s := p.current
	switch s.format {
	case "png", "gif":
	default:
		fmt.Fprintf(os.Stderr, "invalid format: %q\n", s.format)
		return invocationError
	}
	if s.scale <= 0 {
		fmt.Fprintf(os.Stderr, "invalid scale: %v\n", s.scale)
		return invocationError
	}
	if s.maxBackup < 0 {
		fmt.Fprintf(os.Stderr, "invalid max_backup: %d\n", s.maxBackup)
		return invocationError
	}
	sel, err := celext.Compile(s.sel, p.log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid select expression: %v\n", err)
		return invocationError
	}

	status := success
	for i, name := range inputs {
		err := p.render(ctx, s, sel, name, stem(name, i))
		if errors.Is(err, context.Canceled) {
			p.log.LogAttrs(ctx, slog.LevelInfo, "interrupted", slog.String("input", displayName(name)))
			return status
		}
		if err != nil {
			p.log.LogAttrs(ctx, slog.LevelError, "render failed", slog.String("input", displayName(name)), slog.Any("error", err))
			status = internalError
		}
	}
	return status
}

// render plays the named input and writes the selected composites to the
// output directory.
func (p *app) render(ctx context.Context, s settings, sel *celext.Selector, name, stem string) error {
	log := p.log.With(slog.String("input", displayName(name)))

	dec, key, err := p.open(name)
	if err != nil {
		return err
	}
	loops := dec.Loops()
	if s.loopCount != nil {
		loops = plays(*s.loopCount)
	}
	if loops == 0 && !s.realtime {
		log.LogAttrs(ctx, slog.LevelInfo, "rendering single loop of infinite animation")
		loops = 1
	}

	var resumed state.Entry
	if p.db != nil {
		resumed, err = p.db.Get(key)
		switch {
		case err == nil:
			log.LogAttrs(ctx, slog.LevelInfo, "resuming", slog.Any("position", resumed.Position), slog.Int("written", resumed.Written))
		case errors.Is(err, state.ErrNotFound):
		default:
			return err
		}
	}

	var (
		w    render.Writer
		file *os.File
	)
	switch s.format {
	case "png":
		w, err = render.NewPNGs(p.out, stem+"_", resumed.Written, s.scale, log)
		if err != nil {
			return err
		}
	case "gif":
		err = os.MkdirAll(p.out, 0o755)
		if err != nil {
			return err
		}
		file, err = os.Create(filepath.Join(p.out, stem+".gif"))
		if err != nil {
			return err
		}
		w = render.NewGIF(file, loops, s.scale, log)
	}

	opts := player.Options{
		Loops:    loops,
		Select:   sel,
		Realtime: s.realtime,
		Log:      log,
	}
	if s.maxBackup > 0 {
		opts.Session = append(opts.Session, animation.WithMaxBackup(s.maxBackup))
	}
	if !s.coverageSkip {
		opts.Session = append(opts.Session, animation.WithoutCoverageSkip())
	}
	if p.db != nil {
		opts.Start = resumed.Position
		opts.Progress = func(pos animation.Position, written int) error {
			return p.db.Set(key, state.Entry{
				Name:     displayName(name),
				Position: pos,
				Written:  resumed.Written + written,
			})
		}
	}

	start := time.Now()
	res, err := player.Play(ctx, dec, w, opts)
	err = errors.Join(err, closeWriter(w, file))
	if p.db != nil && res.Finished && err == nil {
		err = p.db.Delete(key)
	}
	log.LogAttrs(ctx, slog.LevelInfo, "rendered",
		slog.Int("drawn", res.Drawn),
		slog.Int("written", res.Written),
		slog.Any("end", res.End),
		slog.Bool("finished", res.Finished),
		slog.Duration("elapsed", time.Since(start)),
	)
	return err
}

func closeWriter(w render.Writer, file *os.File) error {
	err := w.Close()
	if file != nil {
		err = errors.Join(err, file.Close())
	}
	return err
}

// open returns the animation for the named input and its state key. Files
// are keyed by content and other inputs by name.
func (p *app) open(name string) (*animation.GIF, string, error) {
	if msg, ok := strings.CutPrefix(name, textPrefix); ok {
		g, err := animation.Text(msg).GIF(p.size.X, p.size.Y, color.White, color.Black)
		return g, state.Key([]byte(name)), err
	}
	g, err := source.Open(name, p.size, "")
	if err != nil {
		return nil, "", err
	}
	key := state.Key([]byte(name))
	if !strings.HasPrefix(name, "data:") {
		b, err := os.ReadFile(name)
		if err == nil {
			key = state.Key(b)
		}
	}
	return g, key, nil
}

// watch re-renders inputs each time the configuration at path changes
// until ctx is cancelled.
func (p *app) watch(ctx context.Context, path string, inputs []string) error {
	changes := make(chan config.Change, 1)
	w, err := config.NewWatcher(ctx, path, changes, config.FileDebounce, p.log)
	if err != nil {
		return err
	}
	defer w.Close()
	p.log.LogAttrs(ctx, slog.LevelInfo, "watching config", slog.String("path", path))
	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-changes:
			if c.Err != nil {
				p.log.LogAttrs(ctx, slog.LevelWarn, "invalid config", slog.String("path", path), slog.Any("error", c.Err))
				continue
			}
			p.log.LogAttrs(ctx, slog.LevelInfo, "config changed", slog.Any("sum", c.Config.Sum))
			p.apply(c.Config)
			p.renderAll(ctx, inputs)
		}
	}
}

// plays returns the number of times an animation with the GIF loop count n
// is played.
func plays(n int) int {
	switch {
	case n == 0:
		return 0
	case n < 0:
		return 1
	default:
		return n + 1
	}
}

// stem returns the output file stem for the ith input.
func stem(name string, i int) string {
	switch {
	case strings.HasPrefix(name, textPrefix):
		return "text"
	case strings.HasPrefix(name, "data:"):
		return fmt.Sprintf("input%d", i)
	}
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// displayName returns name in a form suitable for logging.
func displayName(name string) string {
	if msg, ok := strings.CutPrefix(name, textPrefix); ok {
		return "text:" + msg
	}
	const maxLen = 64
	if len(name) > maxLen {
		return name[:maxLen] + "…"
	}
	return name
}
