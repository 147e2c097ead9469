// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package state persists animation playback positions so that an
// interrupted playback can be resumed.
package state

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/kortschak/gifplay/internal/animation"

	// For sql.DB registration.
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no position is held for an animation.
var ErrNotFound = errors.New("not found")

// DB is a persistent position store.
type DB struct {
	mu    sync.Mutex
	store *sql.DB
	log   *slog.Logger
}

// Schema is the DB schema. Animations are keyed by the hex SHA-1 of their
// encoded data.
const Schema = `
create table if not exists positions(
	sum     TEXT    NOT NULL,
	name    TEXT    NOT NULL,
	frame   INTEGER NOT NULL CHECK(frame >= 0),
	loop    INTEGER NOT NULL CHECK(loop >= 0),
	written INTEGER NOT NULL CHECK(written >= 0),
	PRIMARY KEY(sum)
);
`

const (
	upsert = `
insert into positions values(?, ?, ?, ?, ?)
  on conflict do update set name=excluded.name, frame=excluded.frame, loop=excluded.loop, written=excluded.written;
`

	get = `
select name, frame, loop, written from positions where sum is ?;
`

	delet = `
delete from positions where sum is ?;
`

	dump = `
select sum, name, frame, loop, written from positions;
`
)

// Entry is a stored playback position.
type Entry struct {
	Name     string             `json:"name"`
	Position animation.Position `json:"position"`
	// Written is the number of composites written
	// before Position.
	Written int `json:"written"`
}

// Key returns the store key for the encoded animation data.
func Key(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Open opens a DB, creating the tables if required.
// See https://pkg.go.dev/modernc.org/sqlite#Driver.Open for name handling
// details.
func Open(name string, log *slog.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", name)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(Schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &DB{store: db, log: log.With(slog.String("component", "state"))}, nil
}

// Set records e as the playback state of the animation with the given key.
func (db *DB) Set(key string, e Entry) error {
	ctx := context.Background()
	db.log.LogAttrs(ctx, slog.LevelDebug, "set", slog.String("key", key), slog.String("name", e.Name), slog.Any("position", e.Position), slog.Int("written", e.Written))
	if key == "" {
		return errors.New("empty key")
	}
	db.mu.Lock()
	_, err := db.store.Exec(upsert, key, e.Name, e.Position.Index, e.Position.Loop, e.Written)
	db.mu.Unlock()
	if err != nil {
		db.log.LogAttrs(ctx, slog.LevelError, "set", slog.String("key", key), slog.Any("error", err))
	}
	return err
}

// Get returns the stored entry for the animation with the given key. Get
// returns ErrNotFound if no position is held.
func (db *DB) Get(key string) (Entry, error) {
	ctx := context.Background()
	db.log.LogAttrs(ctx, slog.LevelDebug, "get", slog.String("key", key))
	db.mu.Lock()
	var e Entry
	err := db.store.QueryRow(get, key).Scan(&e.Name, &e.Position.Index, &e.Position.Loop, &e.Written)
	db.mu.Unlock()
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Entry{}, ErrNotFound
	case err != nil:
		db.log.LogAttrs(ctx, slog.LevelError, "get", slog.String("key", key), slog.Any("error", err))
		return Entry{}, err
	}
	return e, nil
}

// Delete removes the position held for the animation with the given key.
// Deleting an absent key is not an error.
func (db *DB) Delete(key string) error {
	ctx := context.Background()
	db.log.LogAttrs(ctx, slog.LevelDebug, "delete", slog.String("key", key))
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.store.Exec(delet, key)
	if err != nil {
		db.log.LogAttrs(ctx, slog.LevelError, "delete", slog.String("key", key), slog.Any("error", err))
	}
	return err
}

// Dump returns all stored entries keyed by animation key.
func (db *DB) Dump() (map[string]Entry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	rows, err := db.store.Query(dump)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	d := make(map[string]Entry)
	for rows.Next() {
		var (
			key string
			e   Entry
		)
		err = rows.Scan(&key, &e.Name, &e.Position.Index, &e.Position.Loop, &e.Written)
		if err != nil {
			return nil, err
		}
		d[key] = e
	}
	return d, rows.Err()
}

// JSON returns a JSON representation of a dump returned by Dump.
func JSON(d map[string]Entry) ([]byte, error) {
	return json.Marshal(d)
}

// Close closes the database.
func (db *DB) Close() error {
	return db.store.Close()
}
