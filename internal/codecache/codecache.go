// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package codecache stores instrumented modules in a bbolt database, keyed
// by the input module and a fingerprint of the instrumentation settings.
// Deterministic failures are cached too.
package codecache

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"time"

	"gate.computer/meter"
	werrors "gate.computer/meter/errors"
	"gate.computer/meter/errors/errordata"
	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

const entryVersion = 1

var bucketEntries = []byte("entries")

// Key of a cache entry.
type Key [sha256.Size]byte

// MakeKey hashes a module together with a settings fingerprint.
func MakeKey(wasm, fingerprint []byte) (k Key) {
	h := sha256.New()
	h.Write([]byte{entryVersion})
	h.Write(fingerprint)
	h.Write([]byte{0})
	h.Write(wasm)
	h.Sum(k[:0])
	return
}

// Entry is the outcome of instrumenting a module.  Either Error is set, or
// Wasm and Report are.
type Entry struct {
	Wasm   []byte              `cbor:"1,keyasint,omitempty"`
	Report *meter.Report       `cbor:"2,keyasint,omitempty"`
	Error  *errordata.Internal `cbor:"3,keyasint,omitempty"`
}

// Result of the entry.
func (e *Entry) Result() ([]byte, *meter.Report, error) {
	if e.Error != nil {
		return nil, nil, e.Error.Reconstruct()
	}
	return e.Wasm, e.Report, nil
}

type Cache struct {
	db *bolt.DB
}

// Open or create a cache database file.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, xerrors.Errorf("failed to open cache %s: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEntries)
		return err
	}); err != nil {
		db.Close()
		return nil, xerrors.Errorf("failed to create cache bucket: %w", err)
	}

	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) Path() string {
	return c.db.Path()
}

// Get an entry.  Undecodable entries are treated as missing.
func (c *Cache) Get(k Key) (*Entry, bool, error) {
	var e *Entry

	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketEntries).Get(k[:])
		if data == nil {
			return nil
		}
		e = new(Entry)
		if cbor.Unmarshal(data, e) != nil {
			e = nil
		}
		return nil
	})
	if err != nil {
		return nil, false, xerrors.Errorf("cache read failed: %w", err)
	}

	return e, e != nil, nil
}

// Put an entry.
func (c *Cache) Put(k Key, e *Entry) error {
	data, err := cbor.Marshal(e)
	if err != nil {
		return err
	}

	if err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Put(k[:], data)
	}); err != nil {
		return xerrors.Errorf("cache write failed: %w", err)
	}
	return nil
}

// Delete an entry.  Missing entry is not an error.
func (c *Cache) Delete(k Key) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Delete(k[:])
	})
}

// Len is the number of entries.
func (c *Cache) Len() (n int, err error) {
	err = c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketEntries).Stats().KeyN
		return nil
	})
	return
}

// Purge all entries.
func (c *Cache) Purge() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketEntries); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketEntries)
		return err
	})
}

// Instrument through the cache.  The hit flag tells if the result came from
// the cache.  Module and configuration errors are cached; other errors are
// not.
func (c *Cache) Instrument(wasm, fingerprint []byte, config meter.Config) (out []byte, report *meter.Report, hit bool, err error) {
	k := MakeKey(wasm, fingerprint)

	e, found, err := c.Get(k)
	if err != nil {
		return nil, nil, false, err
	}
	if found {
		out, report, err = e.Result()
		return out, report, true, err
	}

	out, report, err = meter.InstrumentBinary(wasm, config)
	if err != nil {
		if !cacheable(err) {
			return nil, nil, false, err
		}
		e = &Entry{Error: errordata.Deconstruct(err)}
	} else {
		e = &Entry{Wasm: out, Report: report}
	}

	if putErr := c.Put(k, e); putErr != nil {
		return nil, nil, false, putErr
	}
	return out, report, false, err
}

func cacheable(err error) bool {
	return werrors.AsModuleError(err) || werrors.AsConfigError(err) || xerrors.Is(err, werrors.ErrCostOverflow) || xerrors.Is(err, werrors.ErrDebugFormat)
}
