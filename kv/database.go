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
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erigontech/kvview/log"
)

// Database owns one Engine handle and hands out typed Trees and Singles
// by name. It is the sole owner of the underlying KV engine; every
// Tree/Single holds only a shared reference back to it. mu serializes the
// open-namespace bookkeeping (the opened count logged below and the
// closed flag Close sets) against concurrent OpenTree/OpenSingle/
// OpenTempTree/Close calls from different goroutines.
type Database struct {
	mu       sync.Mutex
	engine   Engine
	path     string
	log      log.Logger
	closed   bool
	nsOpened int
	closers  []func()
}

type openOptions struct {
	logger       log.Logger
	readOnly     bool
	flockTimeout time.Duration
}

// Option configures Open. OpenTempDB accepts the same options but applies
// only WithLogger; WithReadOnly and WithFlockTimeout have no effect there.
type Option func(*openOptions)

// WithLogger routes the Database's own logging (opens, closes, dropped
// events) through l instead of a fresh component logger.
func WithLogger(l log.Logger) Option {
	return func(o *openOptions) { o.logger = l }
}

// WithReadOnly opens the underlying engine read-only; every mutating
// operation on trees opened from the Database fails with a StorageError.
func WithReadOnly() Option {
	return func(o *openOptions) { o.readOnly = true }
}

// WithFlockTimeout bounds how long Open waits on another process's file
// lock before failing. Default is one second.
func WithFlockTimeout(d time.Duration) Option {
	return func(o *openOptions) { o.flockTimeout = d }
}

func applyOptions(opts []Option) openOptions {
	o := openOptions{flockTimeout: time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New("kvview.db")
	}
	return o
}

// Open opens (creating if absent) a persistent Database rooted at dir.
func Open(dir string, opts ...Option) (*Database, error) {
	o := applyOptions(opts)
	eng, err := openBoltFile(filepath.Join(dir, "kvview.db"), o.readOnly, o.flockTimeout)
	if err != nil {
		return nil, err
	}
	d := &Database{engine: eng, path: dir, log: o.logger}
	d.log.Info("database opened", "path", dir, "read_only", o.readOnly)
	return d, nil
}

// OpenTempDB opens a Database backed by a fresh OS temp directory, deleted
// entirely when Close is called.
func OpenTempDB(opts ...Option) (*Database, error) {
	o := applyOptions(opts)
	eng, err := OpenTemp("kvview-")
	if err != nil {
		return nil, err
	}
	d := &Database{engine: eng, log: o.logger}
	d.log.Info("temp database opened")
	return d, nil
}

// WrapEngine builds a Database around a caller-supplied Engine, without
// opening any file itself. materialize.Load uses this to give its private
// in-memory sink tree the same Database-shaped handle a Store sink gets.
func WrapEngine(eng Engine) *Database {
	d := &Database{engine: eng, log: log.New("kvview.db")}
	d.log.Debug("database wrapped around caller-supplied engine")
	return d
}

// namespaceOpened logs and counts one OpenTree/OpenSingle/OpenTempTree
// call, under mu so the count and the log line it reports stay consistent
// across concurrent callers.
func (d *Database) namespaceOpened(kind, ns string) {
	d.mu.Lock()
	d.nsOpened++
	n := d.nsOpened
	closed := d.closed
	d.mu.Unlock()
	if closed {
		d.log.Warn("namespace opened on a closed database", "kind", kind, "ns", ns)
		return
	}
	d.log.Debug("namespace opened", "kind", kind, "ns", ns, "total", n)
}

// OpenSingle opens the keyless slot namespace name, typed T via codec.
func OpenSingle[T any](db *Database, name string, codec Codec[T]) *Single[T] {
	ns := singleNamespacePrefix + name
	db.namespaceOpened("single", ns)
	return &Single[T]{db: db, ns: ns, codec: codec}
}

// OpenTree opens the named tree, typed K,V via the given codecs. auto may
// be nil if the tree never calls Push.
func OpenTree[K, V any](db *Database, name string, kc Codec[K], vc Codec[V], auto AutoInc[K]) *Tree[K, V] {
	ns := treeNamespacePrefix + name
	db.namespaceOpened("tree", ns)
	return &Tree[K, V]{db: db, ns: ns, kc: kc, vc: vc, auto: auto, pushMu: &sync.Mutex{}}
}

// OpenTempTree opens an anonymous tree namespace private to db, with no
// durable name a second Open of the same directory could rediscover. The
// namespace suffix is a random uuid rather than a counter so two
// independent processes opening temp trees against the same engine (or
// two Load() sinks within one process) can never collide.
func OpenTempTree[K, V any](db *Database, kc Codec[K], vc Codec[V], auto AutoInc[K]) *Tree[K, V] {
	name := tempNamespacePrefix + uuid.NewString()
	db.namespaceOpened("temp-tree", name)
	return &Tree[K, V]{db: db, ns: name, kc: kc, vc: vc, auto: auto, pushMu: &sync.Mutex{}}
}

// Engine exposes the raw Engine handle for internal package use (view,
// materialize) without making it part of Database's public surface.
func (d *Database) Engine() Engine { return d.engine }

// Flush forces the engine to make all committed writes durable.
func (d *Database) Flush() error { return d.engine.Flush() }

// RegisterCloser records fn to run during Close, before the engine handle
// is released. Materialized views register their worker shutdown here so
// closing a Database drains propagation to a safe point first.
func (d *Database) RegisterCloser(fn func()) {
	d.mu.Lock()
	d.closers = append(d.closers, fn)
	d.mu.Unlock()
}

// Close drains registered closers (newest first, so downstream views stop
// before their upstreams) and releases the Database's Engine handle. Trees
// and Singles opened from it must not be used afterward. Close is
// idempotent.
func (d *Database) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	closers := d.closers
	d.closers = nil
	d.mu.Unlock()
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	d.log.Info("database closed")
	return d.engine.Close()
}
