// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package source resolves gifplay input names to animations.
//
// An input is either a path to an image file or a data URI in one of the
// forms
//
//	data:text/plain[;fg=<color>][;bg=<color>],<message>
//	data:text/filename,<path>
//	data:image/<type>;base64,<data>
//	data:image/*;name,<ansi color name>
//	data:image/*;web,#<rrggbb>
//
// Colors are ANSI color names or web colors. Text and color inputs are
// rendered at the requested size.
package source

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kortschak/gifplay/internal/animation"
)

// Open returns the animation named by name. Size is the canvas size used
// for text and color inputs. Relative file paths are resolved against dir.
func Open(name string, size image.Point, dir string) (*animation.GIF, error) {
	if !strings.HasPrefix(name, "data:") {
		return openFile(name, dir)
	}
	typ, mtyp, par, val, enc, err := parseDataURI(name)
	if err != nil {
		return nil, err
	}
	param, err := getParams(par)
	if err != nil {
		return nil, err
	}
	switch typ {
	case "text":
		switch mtyp {
		case "text/plain":
			fg, bg, err := fgbg(color.White, color.Black, param)
			if err != nil {
				return nil, err
			}
			return animation.Text(val).GIF(size.X, size.Y, fg, bg)
		case "text/filename":
			return openFile(val, dir)
		default:
			return nil, fmt.Errorf("unknown text mime type: %s", mtyp)
		}
	case "image":
		switch enc {
		case "name":
			col, ok := ansiColor[val]
			if !ok {
				return nil, fmt.Errorf("invalid color name: %s", val)
			}
			return swatch(col, size)
		case "web":
			col, err := webColor(val)
			if err != nil {
				return nil, err
			}
			return swatch(col, size)
		case "base64":
			b, err := base64.StdEncoding.DecodeString(val)
			if err != nil {
				return nil, fmt.Errorf("base64: %w", err)
			}
			return animation.Decode(bytes.NewReader(b))
		}
	}
	panic("unreachable")
}

// openFile decodes the image file at path. A leading ~/ is expanded to the
// user's home directory.
func openFile(path, dir string) (*animation.GIF, error) {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("file: %w", err)
		}
		path = filepath.Join(home, rest)
	}
	if !filepath.IsAbs(path) && dir != "" {
		path = filepath.Join(dir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("file: %w", err)
	}
	defer f.Close()
	g, err := animation.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// swatch returns a single frame animation of col filling size.
func swatch(col color.Color, size image.Point) (*animation.GIF, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, errors.New("swatch size must be positive")
	}
	pal := color.Palette{col}
	// The zero value of Pix is index 0, col.
	m := image.NewPaletted(image.Rectangle{Max: size}, pal)
	return animation.NewGIF(&gif.GIF{
		Image:     []*image.Paletted{m},
		Delay:     []int{0},
		Disposal:  []byte{gif.DisposalNone},
		LoopCount: -1,
		Config: image.Config{
			ColorModel: pal,
			Width:      size.X,
			Height:     size.Y,
		},
	})
}

// parseDataURI splits a data URI in the forms described in the package
// documentation.
func parseDataURI(uri string) (typ, mtyp, par, val, enc string, err error) {
	u, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", "", "", "", "", fmt.Errorf("invalid scheme: %s", uri)
	}
	mtyp, val, ok = strings.Cut(u, ",")
	if !ok {
		return "", "", "", "", "", fmt.Errorf("invalid data uri: %s", uri)
	}
	typ, _, ok = strings.Cut(mtyp, "/")
	if !ok {
		return "", "", "", "", "", fmt.Errorf("invalid data uri: %s", uri)
	}
	switch typ {
	case "text":
		mtyp, par, _ = strings.Cut(mtyp, ";")
		return typ, mtyp, par, val, "", nil
	case "image":
		mtyp, enc, ok = cutLast(mtyp, ";")
		if !ok {
			return "", "", "", "", "", fmt.Errorf("invalid image data uri: %s", uri)
		}
		switch enc {
		case "base64", "name", "web":
			mtyp, par, _ = strings.Cut(mtyp, ";")
			return typ, mtyp, par, val, enc, nil
		default:
			return "", "", "", "", "", fmt.Errorf("invalid encoding in image uri: %s", uri)
		}
	default:
		return "", "", "", "", "", fmt.Errorf("unknown mime type: %s", uri)
	}
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}

// getParams parses semicolon-separated key=value parameters. Values are
// path unescaped.
func getParams(par string) (map[string]string, error) {
	if par == "" {
		return nil, nil
	}
	param := make(map[string]string)
	for _, kv := range strings.Split(par, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if !ok {
			return nil, fmt.Errorf("invalid params: %s", par)
		}
		v, err := url.PathUnescape(strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
		param[strings.TrimSpace(k)] = v
	}
	return param, nil
}

// fgbg returns the fg and bg parameter colors, or the provided defaults.
func fgbg(fg, bg color.Color, param map[string]string) (color.Color, color.Color, error) {
	var err error
	if v, ok := param["fg"]; ok {
		fg, err = ParseColor(v)
		if err != nil {
			return nil, nil, err
		}
	}
	if v, ok := param["bg"]; ok {
		bg, err = ParseColor(v)
		if err != nil {
			return nil, nil, err
		}
	}
	return fg, bg, nil
}

// ParseColor returns the color for an ANSI color name or a #rrggbb web
// color.
func ParseColor(val string) (color.Color, error) {
	if strings.HasPrefix(val, "#") {
		return webColor(val)
	}
	col, ok := ansiColor[val]
	if !ok {
		return nil, fmt.Errorf("invalid color name: %s", val)
	}
	return col, nil
}

var ansiColor = map[string]color.Color{
	"black":     color.RGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff},
	"red":       color.RGBA{R: 0x80, G: 0x00, B: 0x00, A: 0xff},
	"green":     color.RGBA{R: 0x00, G: 0x80, B: 0x00, A: 0xff},
	"yellow":    color.RGBA{R: 0x80, G: 0x80, B: 0x00, A: 0xff},
	"blue":      color.RGBA{R: 0x00, G: 0x00, B: 0x80, A: 0xff},
	"magenta":   color.RGBA{R: 0x80, G: 0x00, B: 0x80, A: 0xff},
	"cyan":      color.RGBA{R: 0x00, G: 0x80, B: 0x80, A: 0xff},
	"white":     color.RGBA{R: 0xc0, G: 0xc0, B: 0xc0, A: 0xff},
	"hiblack":   color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff},
	"hired":     color.RGBA{R: 0xff, G: 0x00, B: 0x00, A: 0xff},
	"higreen":   color.RGBA{R: 0x00, G: 0xff, B: 0x00, A: 0xff},
	"hiyellow":  color.RGBA{R: 0xff, G: 0xff, B: 0x00, A: 0xff},
	"hiblue":    color.RGBA{R: 0x00, G: 0x00, B: 0xff, A: 0xff},
	"himagenta": color.RGBA{R: 0xff, G: 0x00, B: 0xff, A: 0xff},
	"hicyan":    color.RGBA{R: 0x00, G: 0xff, B: 0xff, A: 0xff},
	"hiwhite":   color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
}

func webColor(val string) (color.Color, error) {
	hex, ok := strings.CutPrefix(val, "#")
	if !ok || len(hex) != 6 {
		return nil, fmt.Errorf("invalid web color: %s", val)
	}
	c, err := strconv.ParseUint(hex, 16, 24)
	if err != nil {
		return nil, err
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(c))
	return color.NRGBA{R: b[1], G: b[2], B: b[3], A: 0xff}, nil
}
