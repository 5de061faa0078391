// Copyright 2025 The kvview Authors
// This file is part of kvview.
//
// kvview is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// kvview is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with kvview. If not, see <http://www.gnu.org/licenses/>.

package kv

import (
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// boltEngine is the persistent Engine behind named Databases: every
// namespace is a top-level bbolt bucket, opened lazily on first write.
// bbolt gives kvview single-writer/many-reader MVCC transactions for free;
// kvview layers the ChangeEvent broker on top since bbolt has no
// subscription primitive of its own.
type boltEngine struct {
	db     *bolt.DB
	br     *broker
	tmpDir string
}

// OpenBolt opens (creating if absent) a persistent Engine backed by a
// bbolt file at path, with default open behavior (read-write, one second
// flock timeout).
func OpenBolt(path string) (Engine, error) {
	return openBoltFile(path, false, time.Second)
}

func openBoltFile(path string, readOnly bool, flockTimeout time.Duration) (Engine, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: flockTimeout, ReadOnly: readOnly})
	if err != nil {
		return nil, wrapStorage("open", err)
	}
	return &boltEngine{db: db, br: newBroker()}, nil
}

// OpenTemp opens a boltEngine rooted at a fresh OS temp directory, deleted
// entirely on Close. This backs kv.Database's OpenTempDB.
func OpenTemp(prefix string) (Engine, error) {
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return nil, wrapStorage("mkdirtemp", err)
	}
	db, err := bolt.Open(filepath.Join(dir, "kvview.db"), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		os.RemoveAll(dir)
		return nil, wrapStorage("open", err)
	}
	return &boltEngine{db: db, br: newBroker(), tmpDir: dir}, nil
}

type boltTxn struct {
	tx      *bolt.Tx
	pending pendingTxn
}

func (t *boltTxn) Get(ns string, k []byte) ([]byte, bool, error) {
	b := t.tx.Bucket([]byte(ns))
	if b == nil {
		return nil, false, nil
	}
	v := b.Get(k)
	if v == nil {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (t *boltTxn) Put(ns string, k, v []byte) ([]byte, bool, error) {
	b, err := t.tx.CreateBucketIfNotExists([]byte(ns))
	if err != nil {
		return nil, false, wrapStorage("put", err)
	}
	var old []byte
	existed := false
	if cur := b.Get(k); cur != nil {
		old = append([]byte(nil), cur...)
		existed = true
	}
	if err := b.Put(k, v); err != nil {
		return nil, false, wrapStorage("put", err)
	}
	ev := ChangeEvent{Namespace: ns, Kind: Insert, Key: k, NewValue: v}
	if existed {
		ev.OldValue, ev.HasOld = old, true
	}
	t.pending.record(ev)
	return old, existed, nil
}

func (t *boltTxn) Delete(ns string, k []byte) ([]byte, bool, error) {
	b := t.tx.Bucket([]byte(ns))
	if b == nil {
		return nil, false, nil
	}
	cur := b.Get(k)
	if cur == nil {
		return nil, false, nil
	}
	old := append([]byte(nil), cur...)
	if err := b.Delete(k); err != nil {
		return nil, false, wrapStorage("delete", err)
	}
	t.pending.record(ChangeEvent{Namespace: ns, Kind: Remove, Key: k, OldValue: old, HasOld: true})
	return old, true, nil
}

func (t *boltTxn) Clear(ns string) error {
	if t.tx.Bucket([]byte(ns)) != nil {
		if err := t.tx.DeleteBucket([]byte(ns)); err != nil {
			return wrapStorage("clear", err)
		}
	}
	if _, err := t.tx.CreateBucketIfNotExists([]byte(ns)); err != nil {
		return wrapStorage("clear", err)
	}
	t.pending.record(ChangeEvent{Namespace: ns, Kind: Clear})
	return nil
}

// Cursor must work inside read-only transactions, where bbolt rejects
// any bucket creation: an absent bucket is simply an empty namespace.
// The writable paths (Put, Clear) create buckets themselves.
func (t *boltTxn) Cursor(ns string) (Cursor, error) {
	b := t.tx.Bucket([]byte(ns))
	if b == nil {
		return emptyCursor{}, nil
	}
	return &boltCursor{c: b.Cursor()}, nil
}

// emptyCursor walks a namespace that has no storage yet.
type emptyCursor struct{}

func (emptyCursor) First() (k, v []byte, ok bool)          { return nil, nil, false }
func (emptyCursor) Last() (k, v []byte, ok bool)           { return nil, nil, false }
func (emptyCursor) Seek(_ []byte) (rk, rv []byte, ok bool) { return nil, nil, false }
func (emptyCursor) Next() (k, v []byte, ok bool)           { return nil, nil, false }
func (emptyCursor) Prev() (k, v []byte, ok bool)           { return nil, nil, false }
func (emptyCursor) Close()                                 {}

type boltCursor struct {
	c *bolt.Cursor
}

func copyKV(k, v []byte) (ck, cv []byte, ok bool) {
	if k == nil {
		return nil, nil, false
	}
	return append([]byte(nil), k...), append([]byte(nil), v...), true
}

func (c *boltCursor) First() (k, v []byte, ok bool) { return copyKV(c.c.First()) }
func (c *boltCursor) Last() (k, v []byte, ok bool)  { return copyKV(c.c.Last()) }
func (c *boltCursor) Seek(k []byte) (rk, rv []byte, ok bool) { return copyKV(c.c.Seek(k)) }
func (c *boltCursor) Next() (k, v []byte, ok bool)  { return copyKV(c.c.Next()) }
func (c *boltCursor) Prev() (k, v []byte, ok bool)  { return copyKV(c.c.Prev()) }
func (c *boltCursor) Close()                        {}

func (e *boltEngine) View(fn func(Txn) error) error {
	return e.db.View(func(tx *bolt.Tx) error {
		return fn(&boltTxn{tx: tx})
	})
}

func (e *boltEngine) Update(fn func(Txn) error) error {
	t := &boltTxn{}
	err := e.db.Update(func(tx *bolt.Tx) error {
		t.tx = tx
		return fn(t)
	})
	if err != nil {
		return err
	}
	for _, ev := range t.pending.events {
		e.br.publish(ev)
	}
	return nil
}

func (e *boltEngine) Subscribe(ns string, s *Sync) (<-chan ChangeEvent, func()) {
	return e.br.subscribe(ns, s)
}

func (e *boltEngine) Flush() error {
	return e.db.Sync()
}

func (e *boltEngine) Close() error {
	err := e.db.Close()
	if e.tmpDir != "" {
		if rmErr := os.RemoveAll(e.tmpDir); err == nil {
			err = rmErr
		}
	}
	return err
}
