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
	"bytes"
	"sync"

	"github.com/tidwall/btree"
)

type memEntry struct {
	Key, Value []byte
}

func memLess(a, b memEntry) bool { return bytes.Compare(a.Key, b.Key) < 0 }

// memEngine is the private, in-memory Engine behind materialize.Load's
// anonymous sink trees: an independent tidwall/btree.BTreeG per namespace,
// guarded by one mutex. It never touches disk and is dropped with its
// MaterializedView.
type memEngine struct {
	mu     sync.Mutex
	trees  map[string]*btree.BTreeG[memEntry]
	br     *broker
	closed bool
}

// NewMemEngine constructs a private in-memory Engine, used internally by
// materialize.Load and directly by tests that want an Engine without
// touching disk.
func NewMemEngine() Engine {
	return &memEngine{trees: make(map[string]*btree.BTreeG[memEntry]), br: newBroker()}
}

func (e *memEngine) namespace(ns string) *btree.BTreeG[memEntry] {
	tr, ok := e.trees[ns]
	if !ok {
		tr = btree.NewBTreeG(memLess)
		e.trees[ns] = tr
	}
	return tr
}

type memTxn struct {
	e        *memEngine
	writable bool
	pending  pendingTxn
}

func (t *memTxn) Get(ns string, k []byte) ([]byte, bool, error) {
	tr, ok := t.e.trees[ns]
	if !ok {
		return nil, false, nil
	}
	it, ok := tr.Get(memEntry{Key: k})
	if !ok {
		return nil, false, nil
	}
	return it.Value, true, nil
}

func (t *memTxn) Put(ns string, k, v []byte) ([]byte, bool, error) {
	tr := t.e.namespace(ns)
	old, existed := tr.Set(memEntry{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)})
	ev := ChangeEvent{Namespace: ns, Kind: Insert, Key: k, NewValue: v}
	if existed {
		ev.OldValue = old.Value
		ev.HasOld = true
		return old.Value, true, t.recordAnd(ev)
	}
	return nil, false, t.recordAnd(ev)
}

func (t *memTxn) Delete(ns string, k []byte) ([]byte, bool, error) {
	tr, ok := t.e.trees[ns]
	if !ok {
		return nil, false, nil
	}
	old, existed := tr.Delete(memEntry{Key: k})
	if !existed {
		return nil, false, nil
	}
	ev := ChangeEvent{Namespace: ns, Kind: Remove, Key: k, OldValue: old.Value, HasOld: true}
	return old.Value, true, t.recordAnd(ev)
}

func (t *memTxn) Clear(ns string) error {
	t.e.trees[ns] = btree.NewBTreeG(memLess)
	return t.recordAnd(ChangeEvent{Namespace: ns, Kind: Clear})
}

func (t *memTxn) recordAnd(ev ChangeEvent) error {
	t.pending.record(ev)
	return nil
}

func (t *memTxn) Cursor(ns string) (Cursor, error) {
	tr := t.e.namespace(ns)
	return &memCursor{tr: tr}, nil
}

type memCursor struct {
	tr      *btree.BTreeG[memEntry]
	last    []byte
	hasLast bool
}

func (c *memCursor) First() (k, v []byte, ok bool) {
	it, found := c.tr.Min()
	if !found {
		c.hasLast = false
		return nil, nil, false
	}
	c.last, c.hasLast = it.Key, true
	return it.Key, it.Value, true
}

func (c *memCursor) Last() (k, v []byte, ok bool) {
	it, found := c.tr.Max()
	if !found {
		c.hasLast = false
		return nil, nil, false
	}
	c.last, c.hasLast = it.Key, true
	return it.Key, it.Value, true
}

func (c *memCursor) Seek(k []byte) (rk, rv []byte, ok bool) {
	var found memEntry
	hit := false
	c.tr.Ascend(memEntry{Key: k}, func(it memEntry) bool {
		found, hit = it, true
		return false
	})
	if !hit {
		c.hasLast = false
		return nil, nil, false
	}
	c.last, c.hasLast = found.Key, true
	return found.Key, found.Value, true
}

func (c *memCursor) Next() (k, v []byte, ok bool) {
	if !c.hasLast {
		return nil, nil, false
	}
	var found memEntry
	hit := false
	c.tr.Ascend(memEntry{Key: c.last}, func(it memEntry) bool {
		if bytes.Equal(it.Key, c.last) {
			return true
		}
		found, hit = it, true
		return false
	})
	if !hit {
		c.hasLast = false
		return nil, nil, false
	}
	c.last = found.Key
	return found.Key, found.Value, true
}

func (c *memCursor) Prev() (k, v []byte, ok bool) {
	if !c.hasLast {
		return nil, nil, false
	}
	var found memEntry
	hit := false
	c.tr.Descend(memEntry{Key: c.last}, func(it memEntry) bool {
		if bytes.Equal(it.Key, c.last) {
			return true
		}
		found, hit = it, true
		return false
	})
	if !hit {
		c.hasLast = false
		return nil, nil, false
	}
	c.last = found.Key
	return found.Key, found.Value, true
}

func (c *memCursor) Close() {}

func (e *memEngine) View(fn func(Txn) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return wrapStorage("view", errClosedEngine)
	}
	return fn(&memTxn{e: e})
}

func (e *memEngine) Update(fn func(Txn) error) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return wrapStorage("update", errClosedEngine)
	}
	t := &memTxn{e: e, writable: true}
	err := fn(t)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	events := t.pending.events
	e.mu.Unlock()
	for _, ev := range events {
		e.br.publish(ev)
	}
	return nil
}

func (e *memEngine) Subscribe(ns string, s *Sync) (<-chan ChangeEvent, func()) {
	return e.br.subscribe(ns, s)
}

func (e *memEngine) Flush() error { return nil }

func (e *memEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
