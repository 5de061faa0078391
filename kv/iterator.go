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

// Iterator is a finite, restartable (via a fresh call to Iter/Range), lazy
// ordered sequence of (K,V). Items are results: a decode failure is
// surfaced as that item's error, and the next call to Next continues
// after the failing key, so a single bad row does not abort the whole
// iteration unless the caller chooses to stop.
type Iterator[K, V any] interface {
	Next() (KV[K, V], bool, error)
	Close()
}

// sliceIter is an Iterator over a caller-supplied in-memory slice, built
// with NewSliceIter. The zip and chain combinators do not use it: they
// merge their sources' iterators step by step.
type sliceIter[K, V any] struct {
	items []KV[K, V]
	i     int
}

func NewSliceIter[K, V any](items []KV[K, V]) Iterator[K, V] { return &sliceIter[K, V]{items: items} }

func (s *sliceIter[K, V]) Next() (KV[K, V], bool, error) {
	if s.i >= len(s.items) {
		var zero KV[K, V]
		return zero, false, nil
	}
	v := s.items[s.i]
	s.i++
	return v, true, nil
}

func (s *sliceIter[K, V]) Close() {}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func lessBytes(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// treeIter walks a Tree's namespace in key order. A lazy iterator is not
// snapshotted across steps, so each Next re-opens a fresh
// read transaction and reseeks from the last key observed; this is also
// why a Cursor (valid only for the lifetime of the Txn that produced it)
// never outlives a single Next call.
type treeIter[K, V any] struct {
	eng    Engine
	ns     string
	kc     Codec[K]
	vc     Codec[V]
	lo, hi []byte
	hasLo  bool
	hasHi  bool
	loIncl bool
	hiIncl bool

	started bool
	lastKey []byte
	done    bool
}

func (it *treeIter[K, V]) Next() (KV[K, V], bool, error) {
	var zero KV[K, V]
	if it.done {
		return zero, false, nil
	}
	var rk, rv []byte
	var ok bool
	err := it.eng.View(func(txn Txn) error {
		cur, err := txn.Cursor(it.ns)
		if err != nil {
			return err
		}
		defer cur.Close()
		if !it.started {
			it.started = true
			if it.hasLo {
				rk, rv, ok = cur.Seek(it.lo)
				if ok && !it.loIncl && equalBytes(rk, it.lo) {
					rk, rv, ok = cur.Next()
				}
			} else {
				rk, rv, ok = cur.First()
			}
			return nil
		}
		rk, rv, ok = cur.Seek(it.lastKey)
		if ok && equalBytes(rk, it.lastKey) {
			rk, rv, ok = cur.Next()
		}
		return nil
	})
	if err != nil {
		it.done = true
		return zero, true, wrapStorage("iter", err)
	}
	if !ok {
		it.done = true
		return zero, false, nil
	}
	if it.hasHi {
		if it.hiIncl && lessBytes(it.hi, rk) {
			it.done = true
			return zero, false, nil
		}
		if !it.hiIncl && !lessBytes(rk, it.hi) {
			it.done = true
			return zero, false, nil
		}
	}
	it.lastKey = append([]byte(nil), rk...)
	key, err := it.kc.Decode(rk)
	if err != nil {
		return zero, true, &DecodeError{Namespace: it.ns, Key: rk, Err: err}
	}
	val, err := it.vc.Decode(rv)
	if err != nil {
		return zero, true, &DecodeError{Namespace: it.ns, Key: rk, Err: err}
	}
	return KV[K, V]{Key: key, Value: val}, true, nil
}

func (it *treeIter[K, V]) Close() {}
