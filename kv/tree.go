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
	"sync"

	"github.com/erigontech/kvview/metrics"
)

// Tree is the base View: a typed facade over one KV namespace. Reads
// traverse the Engine directly; writes go through it and
// emit a ChangeEvent that the propagation fabric (package materialize) and
// any Watch readers observe.
type Tree[K, V any] struct {
	db   *Database
	ns   string
	kc   Codec[K]
	vc   Codec[V]
	auto AutoInc[K]

	pushMu *sync.Mutex

	bcOnce sync.Once
	bc     *Broadcaster
}

// DB resolves to the ultimate base-tree Database: every Tree is itself
// base, so this is simply its own Database.
func (t *Tree[K, V]) DB() *Database { return t.db }

// Namespace is the Engine-level name backing t; package materialize uses
// it to label a sink's metrics, logs and DegradedErrors.
func (t *Tree[K, V]) Namespace() string { return t.ns }

func (t *Tree[K, V]) engine() Engine { return t.db.engine }

func (t *Tree[K, V]) IsEmpty() (bool, error) {
	empty := true
	err := t.engine().View(func(txn Txn) error {
		cur, err := txn.Cursor(t.ns)
		if err != nil {
			return err
		}
		defer cur.Close()
		_, _, ok := cur.First()
		empty = !ok
		return nil
	})
	if err != nil {
		return false, wrapStorage("is_empty", err)
	}
	return empty, nil
}

func (t *Tree[K, V]) ContainsKey(k K) (bool, error) {
	_, ok, err := t.Get(k)
	return ok, err
}

func (t *Tree[K, V]) Get(k K) (V, bool, error) {
	var zero V
	bk, err := t.kc.Encode(k)
	if err != nil {
		return zero, false, &EncodeError{Namespace: t.ns, Err: err}
	}
	var bv []byte
	var found bool
	err = t.engine().View(func(txn Txn) error {
		v, ok, err := txn.Get(t.ns, bk)
		bv, found = v, ok
		return err
	})
	if err != nil {
		return zero, false, wrapStorage("get", err)
	}
	if !found {
		return zero, false, nil
	}
	v, err := t.vc.Decode(bv)
	if err != nil {
		return zero, false, &DecodeError{Namespace: t.ns, Key: bk, Err: err}
	}
	return v, true, nil
}

// GetLT returns the greatest entry with key < k.
func (t *Tree[K, V]) GetLT(k K) (KV[K, V], bool, error) {
	bk, err := t.kc.Encode(k)
	if err != nil {
		return KV[K, V]{}, false, &EncodeError{Namespace: t.ns, Err: err}
	}
	return t.seekEdge(func(cur Cursor) (rk, rv []byte, ok bool) {
		// Seek lands on the first key >= bk, whose predecessor strictly
		// less than bk is one Prev step back; if Seek finds nothing, every
		// key is less than bk and the predecessor is the Last entry.
		if _, _, ok := cur.Seek(bk); !ok {
			return cur.Last()
		}
		return cur.Prev()
	})
}

// GetGT returns the least entry with key > k.
func (t *Tree[K, V]) GetGT(k K) (KV[K, V], bool, error) {
	bk, err := t.kc.Encode(k)
	if err != nil {
		return KV[K, V]{}, false, &EncodeError{Namespace: t.ns, Err: err}
	}
	return t.seekEdge(func(cur Cursor) (rk, rv []byte, ok bool) {
		rk, rv, ok = cur.Seek(bk)
		if !ok {
			return nil, nil, false
		}
		if equalBytes(rk, bk) {
			return cur.Next()
		}
		return rk, rv, ok
	})
}

func (t *Tree[K, V]) First() (KV[K, V], bool, error) {
	return t.seekEdge(func(cur Cursor) (rk, rv []byte, ok bool) { return cur.First() })
}

func (t *Tree[K, V]) Last() (KV[K, V], bool, error) {
	return t.seekEdge(func(cur Cursor) (rk, rv []byte, ok bool) { return cur.Last() })
}

func (t *Tree[K, V]) seekEdge(fn func(Cursor) (rk, rv []byte, ok bool)) (KV[K, V], bool, error) {
	var zero KV[K, V]
	var rk, rv []byte
	var ok bool
	err := t.engine().View(func(txn Txn) error {
		cur, err := txn.Cursor(t.ns)
		if err != nil {
			return err
		}
		defer cur.Close()
		rk, rv, ok = fn(cur)
		return nil
	})
	if err != nil {
		return zero, false, wrapStorage("seek", err)
	}
	if !ok {
		return zero, false, nil
	}
	key, err := t.kc.Decode(rk)
	if err != nil {
		return zero, true, &DecodeError{Namespace: t.ns, Key: rk, Err: err}
	}
	val, err := t.vc.Decode(rv)
	if err != nil {
		return zero, true, &DecodeError{Namespace: t.ns, Key: rk, Err: err}
	}
	return KV[K, V]{Key: key, Value: val}, true, nil
}

// Iter yields the whole tree in key order.
func (t *Tree[K, V]) Iter() Iterator[K, V] {
	return &treeIter[K, V]{eng: t.engine(), ns: t.ns, kc: t.kc, vc: t.vc}
}

// Range yields entries with lo <= key <= hi (per each Bound's inclusivity).
func (t *Tree[K, V]) Range(lo, hi Bound[K]) (Iterator[K, V], error) {
	it := &treeIter[K, V]{eng: t.engine(), ns: t.ns, kc: t.kc, vc: t.vc}
	if lo.Kind != Unbounded {
		bk, err := t.kc.Encode(lo.Key)
		if err != nil {
			return nil, &EncodeError{Namespace: t.ns, Err: err}
		}
		it.hasLo, it.lo, it.loIncl = true, bk, lo.Kind == Inclusive
	}
	if hi.Kind != Unbounded {
		bk, err := t.kc.Encode(hi.Key)
		if err != nil {
			return nil, &EncodeError{Namespace: t.ns, Err: err}
		}
		it.hasHi, it.hi, it.hiIncl = true, bk, hi.Kind == Inclusive
	}
	return it, nil
}

func (t *Tree[K, V]) Insert(k K, v V) (V, bool, error) {
	var zero V
	bk, err := t.kc.Encode(k)
	if err != nil {
		return zero, false, &EncodeError{Namespace: t.ns, Err: err}
	}
	bv, err := t.vc.Encode(v)
	if err != nil {
		return zero, false, &EncodeError{Namespace: t.ns, Err: err}
	}
	var old []byte
	var existed bool
	err = t.engine().Update(func(txn Txn) error {
		o, ex, err := txn.Put(t.ns, bk, bv)
		old, existed = o, ex
		return err
	})
	if err != nil {
		return zero, false, wrapStorage("insert", err)
	}
	if !existed {
		return zero, false, nil
	}
	ov, err := t.vc.Decode(old)
	if err != nil {
		return zero, true, &DecodeError{Namespace: t.ns, Key: bk, Err: err}
	}
	return ov, true, nil
}

func (t *Tree[K, V]) Remove(k K) (V, bool, error) {
	var zero V
	bk, err := t.kc.Encode(k)
	if err != nil {
		return zero, false, &EncodeError{Namespace: t.ns, Err: err}
	}
	var old []byte
	var existed bool
	err = t.engine().Update(func(txn Txn) error {
		o, ex, err := txn.Delete(t.ns, bk)
		old, existed = o, ex
		return err
	})
	if err != nil {
		return zero, false, wrapStorage("remove", err)
	}
	if !existed {
		return zero, false, nil
	}
	ov, err := t.vc.Decode(old)
	if err != nil {
		return zero, true, &DecodeError{Namespace: t.ns, Key: bk, Err: err}
	}
	return ov, true, nil
}

func (t *Tree[K, V]) Clear() error {
	err := t.engine().Update(func(txn Txn) error { return txn.Clear(t.ns) })
	if err != nil {
		return wrapStorage("clear", err)
	}
	return nil
}

// Push requires an AutoInc<K> capability; it serializes with other pushes
// on t so concurrent calls each get a distinct, strictly greater key.
func (t *Tree[K, V]) Push(v V) (K, error) {
	var zero K
	if t.auto == nil {
		return zero, &CompositionError{Op: "push", Reason: "tree has no AutoInc<K> capability"}
	}
	t.pushMu.Lock()
	defer t.pushMu.Unlock()

	last, ok, err := t.Last()
	if err != nil {
		return zero, err
	}
	var next K
	if !ok {
		next = t.auto.Zero()
	} else {
		next, err = t.auto.Next(last.Key)
		if err != nil {
			return zero, err
		}
	}
	if _, existed, err := t.Insert(next, v); err != nil {
		return zero, err
	} else if existed {
		return zero, &AutoIncOverflowError{Namespace: t.ns}
	}
	return next, nil
}

// Subscribe is the reliable, typed delta stream the propagation fabric
// consumes: unlike Watch, it is not lossy and blocks the writer rather
// than drop a delta. A non-nil s counts every delta from the writer's
// enqueue until the consumer calls Complete; a delta dropped here for a
// decode failure is completed on the caller's behalf, logged, and counted
// via metrics.SubscribeDropped — the same log-and-continue policy package
// materialize's own propagation path applies for DecodeError.
func (t *Tree[K, V]) Subscribe(s *Sync) (<-chan Delta[K, V], func()) {
	events, cancel := t.engine().Subscribe(t.ns, s)
	out := make(chan Delta[K, V])
	go func() {
		defer close(out)
		for ev := range events {
			d, err := t.decodeDelta(ev)
			if err != nil {
				metrics.SubscribeDropped.WithLabelValues(t.ns).Inc()
				t.db.log.Error("dropped change event with decode error", "ns", t.ns, "err", err)
				s.Complete()
				continue
			}
			out <- d
		}
	}()
	return out, cancel
}

func (t *Tree[K, V]) decodeDelta(ev ChangeEvent) (Delta[K, V], error) {
	var d Delta[K, V]
	if ev.Kind == Clear {
		d.Kind = Clear
		return d, nil
	}
	k, err := t.kc.Decode(ev.Key)
	if err != nil {
		return d, &DecodeError{Namespace: t.ns, Key: ev.Key, Err: err}
	}
	d.Kind, d.Key = ev.Kind, k
	if ev.Kind == Insert {
		v, err := t.vc.Decode(ev.NewValue)
		if err != nil {
			return d, &DecodeError{Namespace: t.ns, Key: ev.Key, Err: err}
		}
		d.New = v
	}
	if ev.HasOld {
		if v, err := t.vc.Decode(ev.OldValue); err == nil {
			d.Old, d.HasOld = v, true
		}
	}
	return d, nil
}

// TreeStats is a cheap read-only summary of a tree, for operational
// visibility.
type TreeStats struct {
	Namespace string
	Entries   int
}

// Stats counts t's entries with a single cursor walk.
func (t *Tree[K, V]) Stats() (TreeStats, error) {
	st := TreeStats{Namespace: t.ns}
	err := t.engine().View(func(txn Txn) error {
		cur, err := txn.Cursor(t.ns)
		if err != nil {
			return err
		}
		defer cur.Close()
		for _, _, ok := cur.First(); ok; _, _, ok = cur.Next() {
			st.Entries++
		}
		return nil
	})
	if err != nil {
		return TreeStats{}, wrapStorage("stats", err)
	}
	return st, nil
}

// RequiresMaterialization is always false for a base Tree: it is already
// concrete storage, so further operations may chain on it directly.
func (t *Tree[K, V]) RequiresMaterialization() bool { return false }

// Wait blocks until t's own pending writes are durable. Every Insert,
// Remove, Clear and Push on a Tree already commits synchronously through
// its Engine before returning, so there is never anything outstanding by
// the time Wait is called; it exists alongside MaterializedView.Wait,
// which is not a no-op since its writes happen asynchronously on a
// propagation worker.
func (t *Tree[K, V]) Wait() {}

// Watch returns a lossy broadcast reader over t's own ChangeEvents. For
// a typed Delta stream over any view, use package view's Watch; this
// reader stays at the byte level. The underlying pump, which relays the
// Engine's reliable per-namespace subscription into t's Broadcaster, is
// started lazily on first use and lives for the Database's lifetime.
func (t *Tree[K, V]) Watch() *WatchReader {
	t.bcOnce.Do(func() {
		t.bc = newBroadcaster(t.ns)
		events, _ := t.engine().Subscribe(t.ns, nil)
		go func() {
			for ev := range events {
				t.bc.publish(ev)
			}
		}()
	})
	return t.bc.newReader()
}
