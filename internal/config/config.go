// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config provides gifplay configuration loading, validation and
// live reloading.
package config

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is a gifplay configuration. Unset fields take the command's
// defaults and any field may be overridden by a command line flag.
type Config struct {
	// LoopCount is the number of times animations are played.
	// It follows the GIF convention: 0 plays forever, -1 plays
	// once and n plays n+1 times. If nil, the animation's own
	// loop count is used.
	LoopCount *int `json:"loop_count,omitempty" toml:"loop_count"`
	// Format is the output format, "png" or "gif".
	Format string `json:"format,omitempty" toml:"format"`
	// Scale is the output scale factor.
	Scale float64 `json:"scale,omitempty" toml:"scale"`
	// Select is a CEL expression selecting the frames to
	// render.
	Select string `json:"select,omitempty" toml:"select"`
	// MaxBackup is the largest restore buffer in bytes that
	// a session may allocate. Zero is no limit.
	MaxBackup int64 `json:"max_backup,omitempty" toml:"max_backup"`
	// CoverageSkip enables skipping disposal of frames that
	// are covered by an opaque successor. If nil, it is enabled.
	CoverageSkip *bool `json:"coverage_skip,omitempty" toml:"coverage_skip"`

	LogLevel  *slog.Level `json:"log_level,omitempty" toml:"log_level"`
	AddSource *bool       `json:"log_add_source,omitempty" toml:"log_add_source"`

	Sum *Sum `json:"-" toml:"-"`
}

// Schema is the schema for a valid configuration.
const Schema = `
{
	loop_count?:     int & >=-1
	format?:         "png" | "gif"
	scale?:          number & >0 & <=64
	select?:         string
	max_backup?:     int & >=0
	coverage_skip?:  bool
	log_level?:      =~"(?i)^(?:debug|info|warn|error)$"
	log_add_source?: bool
}
`

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse returns the validated configuration in the TOML data b. The
// configuration's Sum is the SHA-1 of its semantic content, so formatting
// and comment changes do not alter it.
func Parse(b []byte) (*Config, error) {
	return parse(sha1.New(), b)
}

func parse(h hash.Hash, b []byte) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(string(b), &cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("unknown configuration keys: %v", undecoded)
	}
	_, err = Validate(Schema, &cfg)
	if err != nil {
		return nil, err
	}
	err = json.NewEncoder(h).Encode(&cfg)
	if err != nil {
		return nil, err
	}
	cfg.Sum = (*Sum)(h.Sum(nil))
	h.Reset()
	return &cfg, nil
}

// Sum is a comparable optional SHA-1 sum.
type Sum [sha1.Size]byte

// Equal returns whether s is equal to other.
func (s *Sum) Equal(other *Sum) bool {
	switch {
	case s == other:
		return true
	case s != nil && other != nil:
		return *s == *other
	default:
		return false
	}
}

func (s *Sum) String() string {
	if s == nil {
		return ""
	}
	return hex.EncodeToString(s[:])
}

func (s *Sum) UnmarshalText(text []byte) error {
	if len(text) != hex.EncodedLen(len(s)) {
		return fmt.Errorf("invalid length: %d != %d", len(text), hex.EncodedLen(len(s)))
	}
	_, err := hex.Decode(s[:], text)
	return err
}

func (s *Sum) MarshalText() (text []byte, err error) {
	if s == nil {
		return nil, nil
	}
	text = make([]byte, hex.EncodedLen(len(s)))
	hex.Encode(text, s[:])
	return text, nil
}
