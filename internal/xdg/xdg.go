// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xdg locates gifplay's configuration and state directories
// following the XDG base directory conventions, or the platform
// equivalent.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// base is an XDG base directory with an optional search list.
type base struct {
	key, def         string
	listKey, listDef string
}

var (
	config = base{
		key: key_XDG_CONFIG_HOME, def: def_XDG_CONFIG_HOME,
		listKey: key_XDG_CONFIG_DIRS, listDef: def_XDG_CONFIG_DIRS,
	}
	state = base{
		key: key_XDG_STATE_HOME, def: def_XDG_STATE_HOME,
	}
)

// Config returns the path to the named file in the user's config directory,
// or if local is false, the first match in the system config directories.
// If no file is found Config returns ENOENT.
func Config(name string, local bool) (string, error) {
	return config.find(name, local)
}

// ConfigHome returns the path corresponding to XDG_CONFIG_HOME.
func ConfigHome() (string, bool) {
	return envOrDefault(config.key, config.def, _HOME)
}

// ConfigDirs returns the path list corresponding to XDG_CONFIG_DIRS.
func ConfigDirs() (string, bool) {
	return envOrDefault(config.listKey, config.listDef, "")
}

// State returns the path to the named file in the user's state directory.
// If no file is found State returns ENOENT.
func State(name string) (string, error) {
	return state.find(name, true)
}

// StateHome returns the path corresponding to XDG_STATE_HOME.
func StateHome() (string, bool) {
	return envOrDefault(state.key, state.def, _HOME)
}

// StateDir returns the path to the named directory in the user's state
// directory, creating it if it does not exist. It reports whether the
// directory was created.
func StateDir(name string) (path string, created bool, err error) {
	path, err = State(name)
	if err == nil {
		return path, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", false, err
	}
	home, ok := StateHome()
	if !ok {
		return "", false, errors.New("no state home directory")
	}
	path = filepath.Join(home, name)
	err = os.MkdirAll(path, 0o755)
	if err != nil {
		return "", false, err
	}
	return path, true, nil
}

// find returns the path to the named file in the user's base directory,
// or if local is false, the first match in the base's search list.
func (b base) find(name string, local bool) (string, error) {
	if dir, ok := envOrDefault(b.key, b.def, _HOME); ok {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	if local {
		return "", syscall.ENOENT
	}
	list, ok := envOrDefault(b.listKey, b.listDef, "")
	if !ok {
		return "", syscall.ENOENT
	}
	for _, dir := range filepath.SplitList(list) {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", syscall.ENOENT
}

// envOrDefault returns the value of the key environment variable if it is
// set. Otherwise def is returned; relative defaults are resolved against
// the directory held in the home environment variable unless home is empty.
func envOrDefault(key, def, home string) (string, bool) {
	if key != "" {
		if val, ok := os.LookupEnv(key); ok {
			return val, true
		}
	}
	switch {
	case def == "":
		return "", false
	case home == "", filepath.IsAbs(def):
		return def, true
	}
	dir, ok := os.LookupEnv(home)
	if !ok {
		return "", false
	}
	return filepath.Join(dir, def), true
}
